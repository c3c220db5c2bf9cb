package hashing

import (
	"errors"
	"strings"
	"testing"
)

func testParams() Argon2Params {
	return Argon2Params{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher := NewHasherWithParams(testParams())

	encoded, err := hasher.HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$") {
		t.Fatalf("unexpected encoding %q", encoded)
	}

	ok, err := hasher.VerifyPassword("s3cret-pass", encoded)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !ok {
		t.Fatal("correct password must verify")
	}

	ok, err = hasher.VerifyPassword("wrong-pass", encoded)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if ok {
		t.Fatal("wrong password must not verify")
	}
}

func TestHashesAreSalted(t *testing.T) {
	hasher := NewHasherWithParams(testParams())

	first, err := hasher.HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	second, err := hasher.HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestVerifyUsesEncodedParams(t *testing.T) {
	// A hash produced with one parameter set must verify under a hasher
	// configured with another; the stored encoding wins.
	encoded, err := NewHasherWithParams(testParams()).HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	other := NewHasherWithParams(Argon2Params{
		Memory:      2048,
		Iterations:  2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	})
	ok, err := other.VerifyPassword("s3cret-pass", encoded)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !ok {
		t.Fatal("hash must verify with its embedded parameters")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher := NewHasherWithParams(testParams())

	cases := []struct {
		name    string
		encoded string
		want    error
	}{
		{"empty", "", ErrInvalidHash},
		{"not a hash", "plaintext", ErrInvalidHash},
		{"wrong algorithm", "$bcrypt$v=19$m=1024,t=1,p=1$c2FsdA$a2V5", ErrInvalidHash},
		{"wrong version", "$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5", ErrIncompatibleVersion},
		{"bad salt encoding", "$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5", ErrInvalidHash},
		{"bad key encoding", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$!!!", ErrInvalidHash},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := hasher.VerifyPassword("anything", tc.encoded)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
