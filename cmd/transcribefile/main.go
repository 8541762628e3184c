// Command transcribefile converts and transcribes a local audio file with the
// configured engine, without connecting to Discord.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"discord-transcriber/internal/app"
	"discord-transcriber/internal/config"
	"discord-transcriber/internal/observability/logging"
	"discord-transcriber/internal/service/transcription"
	"discord-transcriber/internal/service/worker"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to an optional YAML config file")
	file := flag.String("file", "", "Audio file to transcribe, or - for stdin")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: transcribefile -file voice-message.ogg")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath, config.Offline())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}
	logging.Init(logging.Config{
		Level:   cfg.Observability.LogLevel,
		Format:  "console",
		Service: "transcribefile",
	})

	data, err := readInput(*file)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read input")
		os.Exit(1)
	}

	engine, err := app.BuildEngine(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build engine")
		os.Exit(1)
	}
	if c, ok := engine.(io.Closer); ok {
		defer c.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := transcription.NewRecognizer(app.NewConverter(cfg), engine, worker.New(cfg.Transcribe.Workers))
	wf, err := rec.Convert(ctx, data)
	if err != nil {
		log.Error().Err(err).Msg("Conversion failed")
		os.Exit(1)
	}
	text, err := rec.Transcribe(ctx, wf)
	if err != nil {
		log.Error().Err(err).Str("engine", engine.Name()).Msg("Transcription failed")
		os.Exit(1)
	}

	log.Info().
		Str("engine", engine.Name()).
		Dur("audio", wf.Duration).
		Msg("Transcribed")
	res := transcription.Result{Text: text}
	fmt.Println(transcription.Render(&res))
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
