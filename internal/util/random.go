package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// RandomDigits returns a uniformly random numeric string of the given
// length, left-padded with zeros.
func RandomDigits(length int) string {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return fmt.Sprintf("%0*d", length, n)
}

// NewToken returns an opaque token of the form prefix_uuid_hex16.
func NewToken(prefix string) string {
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return fmt.Sprintf("%s_%s_%s", prefix, uuid.NewString(), hex.EncodeToString(suffix))
}

// HashText returns the hex-encoded sha256 of text. Used to log identity
// dimensions without storing them in plaintext.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
