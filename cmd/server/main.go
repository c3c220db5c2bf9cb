package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auth-engine/internal/client"
	"auth-engine/internal/config"
	"auth-engine/internal/handler"
	"auth-engine/internal/hashing"
	"auth-engine/internal/service"
	"auth-engine/internal/store"
	"auth-engine/internal/store/memory"
	"auth-engine/internal/store/redisstore"
	"auth-engine/internal/util"
)

func main() {
	cfg := config.LoadConfig()
	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)
	defer util.Sync()

	st, err := buildStore(cfg)
	if err != nil {
		util.Fatal("Failed to initialize store", util.ErrorField(err))
	}
	defer st.Close()

	var publisher service.RiskEventPublisher
	if cfg.Kafka.Enabled {
		producer, err := client.NewKafkaProducer(cfg, util.Get())
		if err != nil {
			util.Fatal("Failed to initialize Kafka producer", util.ErrorField(err))
		}
		defer producer.Close()
		publisher = producer
	}

	authService := service.NewAuthService(st, hashing.NewHasher(), publisher, util.Get(), cfg.IsProduction())
	authHandler := handler.NewAuthHandler(authService, util.Get())
	router := handler.NewRouter(authHandler, util.Get())

	server := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		util.Info("Starting HTTP server",
			util.String("environment", cfg.Environment),
			util.String("addr", server.Addr),
			util.String("store_backend", cfg.Store.Backend),
			util.Bool("kafka_enabled", cfg.Kafka.Enabled),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Fatal("HTTP server failed", util.ErrorField(err))
		}
	}()

	waitForShutdown(server)
}

func buildStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		redisClient, err := client.NewRedisClient(cfg, util.Get())
		if err != nil {
			return nil, err
		}
		return redisstore.New(redisClient.Client, util.Get()), nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

func waitForShutdown(server *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	util.Info("Shutdown signal received", util.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		util.Error("Graceful shutdown failed", util.ErrorField(err))
		return
	}
	util.Info("Server stopped")
}
