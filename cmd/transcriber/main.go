package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"discord-transcriber/internal/app"
	"discord-transcriber/internal/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build application")
		os.Exit(1)
	}

	if err := application.Start(); err != nil {
		log.Error().Err(err).Msg("Failed to start")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		application.Shutdown(ctx)
		cancel()
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info().Str("signal", s.String()).Msg("Received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	application.Shutdown(ctx)
}
