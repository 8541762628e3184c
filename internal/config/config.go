// Package config loads the bot configuration from defaults, an optional YAML
// file, a .env file and the process environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"discord-transcriber/internal/service/stt"
)

// Engine selects the speech-to-text backend.
type Engine string

const (
	EngineLocal  Engine = "local"
	EngineRemote Engine = "remote"
	EngineMock   Engine = "mock"
)

// Remote API providers.
const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
)

// ErrInvalid wraps every configuration problem reported by Load.
var ErrInvalid = errors.New("invalid configuration")

// Configuration holds all settings for the service. It is immutable after Load.
type Configuration struct {
	Discord       DiscordConfig       `yaml:"discord"`
	Transcribe    TranscribeConfig    `yaml:"transcribe"`
	Whisper       WhisperConfig       `yaml:"whisper"`
	OpenAI        OpenAIConfig        `yaml:"openai"`
	Google        GoogleConfig        `yaml:"google"`
	Audio         AudioConfig         `yaml:"audio"`
	Admin         AdminConfig         `yaml:"admin"`
	Index         IndexConfig         `yaml:"index"`
	Live          LiveConfig          `yaml:"live"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Service       ServiceConfig       `yaml:"service"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type DiscordConfig struct {
	Token         string `yaml:"token"`
	GuildID       string `yaml:"guild_id"`
	CommandPrefix string `yaml:"command_prefix"`
}

type TranscribeConfig struct {
	Engine            Engine `yaml:"engine"`
	APIKey            string `yaml:"api_key"`
	APIProvider       string `yaml:"api_provider"`
	Language          string `yaml:"language"`
	Automatically     bool   `yaml:"automatically"`
	VoiceMessagesOnly bool   `yaml:"voice_messages_only"`
	Workers           int    `yaml:"workers"`
}

// HasAPIKey reports whether a usable remote credential is configured.
func (t TranscribeConfig) HasAPIKey() bool {
	return stt.HasCredential(t.APIKey)
}

type WhisperConfig struct {
	Binary  string `yaml:"binary"`
	Model   string `yaml:"model"`
	Threads int    `yaml:"threads"`
}

type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type GoogleConfig struct {
	LanguageCode string `yaml:"language_code"`
}

type AudioConfig struct {
	FFmpegPath   string `yaml:"ffmpeg_path"`
	SampleRateHz int    `yaml:"sample_rate_hz"`
}

type AdminConfig struct {
	Users []uint64 `yaml:"users"`
	Role  uint64   `yaml:"role"`
}

type IndexConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

type LiveConfig struct {
	Enabled        bool          `yaml:"enabled"`
	SilenceTimeout time.Duration `yaml:"silence_timeout"`
	MaxDuration    time.Duration `yaml:"max_duration"`
	MaxAudioBytes  int64         `yaml:"max_audio_bytes"`
}

type KafkaConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Brokers          []string `yaml:"brokers"`
	TopicTranscripts string   `yaml:"topic_transcripts"`
	TopicLive        string   `yaml:"topic_live"`
	Principal        string   `yaml:"principal"`
}

type ServiceConfig struct {
	Principal   string `yaml:"principal"`
	GRPCPort    string `yaml:"grpc_port"`
	MetricsAddr string `yaml:"metrics_addr"`
}

type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Configuration {
	return Configuration{
		Discord: DiscordConfig{CommandPrefix: "!"},
		Transcribe: TranscribeConfig{
			Engine:            EngineLocal,
			APIKey:            stt.PlaceholderKey,
			APIProvider:       ProviderOpenAI,
			Automatically:     true,
			VoiceMessagesOnly: true,
			Workers:           runtime.NumCPU(),
		},
		Whisper: WhisperConfig{
			Binary: "whisper-cli",
			Model:  "models/ggml-base.en.bin",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "whisper-1",
		},
		Google: GoogleConfig{LanguageCode: "en-US"},
		Audio: AudioConfig{
			FFmpegPath:   "ffmpeg",
			SampleRateHz: 16000,
		},
		Admin: AdminConfig{Users: []uint64{0}},
		Live: LiveConfig{
			Enabled:        true,
			SilenceTimeout: time.Second,
			MaxDuration:    30 * time.Second,
			MaxAudioBytes:  1 << 20,
		},
		Kafka: KafkaConfig{
			TopicTranscripts: "discord.voice.transcript",
			TopicLive:        "discord.voice.live",
		},
		Service: ServiceConfig{
			Principal:   "svc-discord-transcriber",
			GRPCPort:    "50051",
			MetricsAddr: ":9090",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Option adjusts Load.
type Option func(*loadOptions)

type loadOptions struct {
	offline bool
}

// Offline drops the bot token requirement, for tools that never connect to Discord.
func Offline() Option {
	return func(o *loadOptions) { o.offline = true }
}

// Load builds the configuration. path is an optional YAML file; an empty path
// skips it. A .env file in the working directory is loaded when present and
// never overrides variables that are already set.
func Load(path string, opts ...Option) (*Configuration, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	cfg := Defaults()

	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	l := &loader{}
	l.apply(&cfg)
	if len(l.errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(l.errs...))
	}

	if err := cfg.validate(o); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(path string, cfg *Configuration) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("%w: parsing config file: %w", ErrInvalid, err)
	}
	return nil
}

func (l *loader) apply(c *Configuration) {
	c.Discord.Token = envOrDefault("BOT_TOKEN", c.Discord.Token)
	c.Discord.GuildID = envOrDefault("DISCORD_GUILD_ID", c.Discord.GuildID)
	c.Discord.CommandPrefix = envOrDefault("COMMAND_PREFIX", c.Discord.CommandPrefix)

	c.Transcribe.Engine = Engine(strings.ToLower(envOrDefault("TRANSCRIBE_ENGINE", string(c.Transcribe.Engine))))
	c.Transcribe.APIKey = envOrDefault("TRANSCRIBE_APIKEY", c.Transcribe.APIKey)
	c.Transcribe.APIProvider = strings.ToLower(envOrDefault("TRANSCRIBE_API_PROVIDER", c.Transcribe.APIProvider))
	c.Transcribe.Language = envOrDefault("TRANSCRIBE_LANGUAGE", c.Transcribe.Language)
	c.Transcribe.Automatically = l.boolean("TRANSCRIBE_AUTOMATICALLY", c.Transcribe.Automatically)
	c.Transcribe.VoiceMessagesOnly = l.boolean("TRANSCRIBE_VMS_ONLY", c.Transcribe.VoiceMessagesOnly)
	c.Transcribe.Workers = l.integer("TRANSCRIBE_WORKERS", c.Transcribe.Workers)

	c.Whisper.Binary = envOrDefault("WHISPER_BIN", c.Whisper.Binary)
	c.Whisper.Model = envOrDefault("WHISPER_MODEL", c.Whisper.Model)
	c.Whisper.Threads = l.integer("WHISPER_THREADS", c.Whisper.Threads)

	c.OpenAI.BaseURL = envOrDefault("OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.OpenAI.Model = envOrDefault("OPENAI_MODEL", c.OpenAI.Model)
	c.Google.LanguageCode = envOrDefault("GOOGLE_LANGUAGE_CODE", c.Google.LanguageCode)

	c.Audio.FFmpegPath = envOrDefault("FFMPEG_PATH", c.Audio.FFmpegPath)
	c.Audio.SampleRateHz = l.integer("AUDIO_SAMPLE_RATE_HZ", c.Audio.SampleRateHz)

	c.Admin.Users = l.ids("ADMIN_USERS", c.Admin.Users)
	c.Admin.Role = l.id("ADMIN_ROLE", c.Admin.Role)

	c.Index.MaxEntries = l.integer("INDEX_MAX_ENTRIES", c.Index.MaxEntries)

	c.Live.Enabled = l.boolean("LIVE_ENABLED", c.Live.Enabled)
	c.Live.SilenceTimeout = l.duration("LIVE_SILENCE_TIMEOUT", c.Live.SilenceTimeout)
	c.Live.MaxDuration = l.duration("LIVE_MAX_DURATION", c.Live.MaxDuration)
	c.Live.MaxAudioBytes = int64(l.integer("LIVE_MAX_AUDIO_BYTES", int(c.Live.MaxAudioBytes)))

	c.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", c.Service.Principal)
	c.Service.GRPCPort = envOrDefault("GRPC_PORT", c.Service.GRPCPort)
	c.Service.MetricsAddr = envOrDefault("METRICS_ADDR", c.Service.MetricsAddr)

	c.Kafka.Enabled = l.boolean("KAFKA_ENABLED", c.Kafka.Enabled)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	c.Kafka.TopicTranscripts = envOrDefault("KAFKA_TOPIC_TRANSCRIPTS", c.Kafka.TopicTranscripts)
	c.Kafka.TopicLive = envOrDefault("KAFKA_TOPIC_LIVE", c.Kafka.TopicLive)
	// Kafka principal falls back to the service principal
	c.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", c.Kafka.Principal)
	if c.Kafka.Principal == "" {
		c.Kafka.Principal = c.Service.Principal
	}

	c.Observability.LogLevel = envOrDefault("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = envOrDefault("LOG_FORMAT", c.Observability.LogFormat)
}

func (c *Configuration) validate(o loadOptions) error {
	var errs []error

	if !o.offline && strings.TrimSpace(c.Discord.Token) == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}

	switch c.Transcribe.Engine {
	case "whisper":
		c.Transcribe.Engine = EngineLocal
	case "api":
		c.Transcribe.Engine = EngineRemote
	case EngineLocal, EngineRemote, EngineMock:
	default:
		errs = append(errs, fmt.Errorf("TRANSCRIBE_ENGINE %q: want local or remote", c.Transcribe.Engine))
	}

	switch c.Transcribe.APIProvider {
	case ProviderOpenAI, ProviderGoogle:
	default:
		errs = append(errs, fmt.Errorf("TRANSCRIBE_API_PROVIDER %q: want openai or google", c.Transcribe.APIProvider))
	}

	if c.Transcribe.Workers < 1 {
		errs = append(errs, fmt.Errorf("TRANSCRIBE_WORKERS must be at least 1, got %d", c.Transcribe.Workers))
	}
	if c.Audio.SampleRateHz <= 0 {
		errs = append(errs, fmt.Errorf("AUDIO_SAMPLE_RATE_HZ must be positive, got %d", c.Audio.SampleRateHz))
	}
	if c.Index.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("INDEX_MAX_ENTRIES must not be negative, got %d", c.Index.MaxEntries))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// loader collects parse errors so every malformed value is reported at once.
type loader struct {
	errs []error
}

func (l *loader) boolean(key string, def bool) bool {
	v, err := envOrDefaultBool(key, def)
	if err != nil {
		l.errs = append(l.errs, err)
	}
	return v
}

func (l *loader) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

func (l *loader) id(key string, def uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %q is not an id", key, v))
		return def
	}
	return n
}

func (l *loader) ids(key string, def []uint64) []uint64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	out := []uint64{}
	for _, part := range splitList(v) {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s: %q is not an id", key, part))
			continue
		}
		out = append(out, n)
	}
	return out
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
