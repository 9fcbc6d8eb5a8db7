// Package main is the entry point for the inference gateway.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/apexplatform/inference-gateway/internal/config"
	"github.com/apexplatform/inference-gateway/internal/gateway"
	"github.com/apexplatform/inference-gateway/internal/llm"
	"github.com/apexplatform/inference-gateway/internal/monitoring"
	"github.com/apexplatform/inference-gateway/internal/service"
	"github.com/apexplatform/inference-gateway/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	// Local .env provides API keys during development; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("failed to load configuration")
	}
	monitoring.Global(cfg.Logging)

	log.Info().
		Str("config", *configPath).
		Int("models", len(cfg.Models)).
		Msg("inference gateway starting")

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("failed to open store")
	}
	defer st.Close()

	registry := llm.NewRegistry(&http.Client{Timeout: llm.DefaultTimeout})
	svc := service.New(st, registry, cfg.Models, cfg.Tokens.Exact)
	srv := gateway.NewServer(svc)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
	}()

	if err := srv.Start(cfg.Server); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}

	log.Info().Msg("inference gateway stopped")
}
