package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/sinkhole/go/internal/arena"
	"github.com/mcdev12/sinkhole/go/internal/gateway"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(config.Server.LogLevel)
	if err != nil {
		log.Warn().Str("level", config.Server.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", config.Server.Port).
		Str("nats_url", config.Relay.NATSURL).
		Msg("starting arena server")

	// Optional event relay
	var relay *gateway.Relay
	if config.Relay.NATSURL != "" {
		relay, err = gateway.NewRelay(config.Relay.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect event relay")
		}
		defer relay.Close()
	}

	// Wire the gateway around the room registry
	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	service := gateway.NewService(cm, relay)
	registry := arena.NewRegistry(clockwork.NewRealClock(), service)
	service.SetRegistry(registry)
	defer registry.Close()

	server := setupServer(config, cm, registry)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start broadcast fan-out
	go cm.Start(ctx)

	// Start HTTP server
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(config.Server.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()

	log.Info().Msg("arena server shutdown complete")
}
