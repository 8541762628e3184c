// Package app wires configuration into a running bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	grpcapi "discord-transcriber/internal/api/grpc"
	"discord-transcriber/internal/bot"
	"discord-transcriber/internal/config"
	"discord-transcriber/internal/events"
	transport "discord-transcriber/internal/http"
	"discord-transcriber/internal/observability"
	"discord-transcriber/internal/observability/logging"
	"discord-transcriber/internal/observability/metrics"
	"discord-transcriber/internal/schema"
	"discord-transcriber/internal/service/audio"
	"discord-transcriber/internal/service/index"
	"discord-transcriber/internal/service/live"
	"discord-transcriber/internal/service/permission"
	"discord-transcriber/internal/service/stt"
	"discord-transcriber/internal/service/stt/google"
	"discord-transcriber/internal/service/stt/mock"
	"discord-transcriber/internal/service/stt/openai"
	"discord-transcriber/internal/service/stt/whisper"
	"discord-transcriber/internal/service/transcription"
	"discord-transcriber/internal/service/worker"
)

const serviceName = "discord-transcriber"

// fetchTimeout bounds a single attachment download.
const fetchTimeout = 60 * time.Second

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	engine    stt.Engine
	publisher *events.Publisher
	pipeline  *transcription.Pipeline
	live      *live.Manager
	bot       *bot.Bot
	grpc      *grpcapi.Server
	http      *observability.Server

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds every component. Nothing connects until Start.
func New(cfg *config.Configuration) (*Application, error) {
	logging.Init(logging.Config{
		Level:   cfg.Observability.LogLevel,
		Format:  cfg.Observability.LogFormat,
		Service: serviceName,
	})

	ctx, cancel := context.WithCancel(context.Background())
	a := &Application{
		Cfg:    cfg,
		Logger: logging.WithComponent("application"),
		ctx:    ctx,
		cancel: cancel,
	}

	engine, err := BuildEngine(cfg)
	if err != nil {
		cancel()
		return nil, err
	}
	a.engine = engine

	recognizer := transcription.NewRecognizer(
		NewConverter(cfg),
		engine,
		worker.New(cfg.Transcribe.Workers),
	)

	a.publisher = events.New(&events.Config{
		Enabled:          cfg.Kafka.Enabled,
		Brokers:          cfg.Kafka.Brokers,
		TopicTranscripts: cfg.Kafka.TopicTranscripts,
		TopicLive:        cfg.Kafka.TopicLive,
		Principal:        cfg.Kafka.Principal,
	}, schema.New())

	session, err := bot.NewSession(cfg.Discord.Token)
	if err != nil {
		cancel()
		return nil, err
	}
	messenger := bot.NewMessenger(session)

	a.pipeline = transcription.NewPipeline(
		recognizer,
		messenger,
		transcription.NewHTTPFetcher(fetchTimeout),
		index.New(cfg.Index.MaxEntries),
		a.publisher,
		transcription.Options{VoiceMessagesOnly: cfg.Transcribe.VoiceMessagesOnly},
	)

	// A nil *live.Manager must not reach the bot as a non-nil interface.
	var ctl bot.LiveController
	if cfg.Live.Enabled {
		a.live = live.NewManager(ctx, live.Deps{
			Recognizer: recognizer,
			Poster:     messenger,
			Names:      messenger,
			Events:     a.publisher,
			Limits: live.Limits{
				SilenceTimeout: cfg.Live.SilenceTimeout,
				MaxDuration:    cfg.Live.MaxDuration,
				MaxAudioBytes:  cfg.Live.MaxAudioBytes,
			},
		})
		ctl = a.live
	}

	a.grpc = grpcapi.New(cfg.Service.GRPCPort, metrics.DefaultMetrics)

	a.bot = bot.New(ctx, session, messenger, bot.Config{
		GuildID:        cfg.Discord.GuildID,
		Prefix:         cfg.Discord.CommandPrefix,
		AutoTranscribe: cfg.Transcribe.Automatically,
	}, a.pipeline, ctl, permission.NewChecker(cfg.Admin.Users, cfg.Admin.Role), func() {
		a.grpc.SetServing(true)
	})

	a.http = observability.NewServer(cfg.Service.MetricsAddr, transport.NewRouter(a.bot.Ready))

	a.Logger.Info().
		Str("engine", engine.Name()).
		Str("kind", engine.Kind().String()).
		Int("workers", cfg.Transcribe.Workers).
		Bool("auto", cfg.Transcribe.Automatically).
		Bool("voiceMessagesOnly", cfg.Transcribe.VoiceMessagesOnly).
		Bool("live", cfg.Live.Enabled).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("Discord transcriber application created")
	return a, nil
}

// BuildEngine selects the speech-to-text backend from configuration. A remote
// engine without a usable key is still built; it fails each request with the
// missing credential message.
func BuildEngine(cfg *config.Configuration) (stt.Engine, error) {
	t := cfg.Transcribe
	switch t.Engine {
	case config.EngineLocal:
		return whisper.New(whisper.Config{
			Binary:   cfg.Whisper.Binary,
			Model:    cfg.Whisper.Model,
			Language: t.Language,
			Threads:  cfg.Whisper.Threads,
		}), nil
	case config.EngineRemote:
		switch t.APIProvider {
		case config.ProviderOpenAI:
			return openai.New(openai.Config{
				APIKey:   t.APIKey,
				BaseURL:  cfg.OpenAI.BaseURL,
				Model:    cfg.OpenAI.Model,
				Language: t.Language,
			}), nil
		case config.ProviderGoogle:
			return google.New(google.Config{
				APIKey:       t.APIKey,
				LanguageCode: cfg.Google.LanguageCode,
				SampleRateHz: int32(cfg.Audio.SampleRateHz),
			}), nil
		}
		return nil, fmt.Errorf("%w: unknown api provider %q", config.ErrInvalid, t.APIProvider)
	case config.EngineMock:
		return mock.New(), nil
	}
	return nil, fmt.Errorf("%w: unknown engine %q", config.ErrInvalid, t.Engine)
}

// NewConverter builds the ffmpeg-backed converter at the configured rate.
func NewConverter(cfg *config.Configuration) *audio.Converter {
	return audio.NewConverter(audio.NewFFmpegDecoder(cfg.Audio.FFmpegPath, cfg.Audio.SampleRateHz))
}

// Start binds the gRPC port, starts the probe servers and connects the bot.
// gRPC reports SERVING once the gateway is ready.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Discord transcriber starting")

	if err := a.grpc.Listen(); err != nil {
		return err
	}
	go func() {
		if err := a.grpc.Serve(); err != nil {
			startLogger.Error().Err(err).Msg("gRPC serve failed")
		}
	}()

	a.http.Start()

	if err := a.bot.Open(); err != nil {
		return err
	}
	return nil
}

// Shutdown stops accepting work, ends live sessions and releases clients.
func (a *Application) Shutdown(ctx context.Context) {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("Discord transcriber shutting down")
	a.grpc.SetServing(false)

	if a.live != nil {
		a.live.Close()
	}
	if err := a.bot.Close(); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Discord session close failed")
	}
	a.cancel()

	var errs []error
	if err := a.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing publisher: %w", err))
	}
	if c, ok := a.engine.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing engine: %w", err))
		}
	}
	if err := a.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stopping http: %w", err))
	}
	a.grpc.Shutdown()

	if err := errors.Join(errs...); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Shutdown completed with errors")
		return
	}
	shutdownLogger.Info().Msg("Shutdown complete")
}
