package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/sinkhole/go/internal/arena"
	"github.com/mcdev12/sinkhole/go/internal/gateway"
)

func setupServer(config *Config, cm *gateway.ConnectionManager, registry *arena.Registry) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	// Register WebSocket and REST routes
	gateway.NewWebSocketHandler(cm).RegisterRoutes(mux)
	gateway.NewRoomsHandler(registry).RegisterRoutes(mux)

	setupHealthCheck(mux)

	// Wrap with CORS
	handler := c.Handler(mux)

	return &http.Server{
		Addr:        fmt.Sprintf(":%s", config.Server.Port),
		Handler:     h2c.NewHandler(handler, &http2.Server{}),
		IdleTimeout: 120 * time.Second,
	}
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
