package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "EMA_LIVE_"

type Config struct {
	Session          SessionConfig      `yaml:"session"`
	Audio            AudioConfig        `yaml:"audio"`
	Playback         PlaybackConfig     `yaml:"playback"`
	Interruptions    InterruptionConfig `yaml:"interruptions"`
	Video            VideoConfig        `yaml:"video"`
	Deepgram         DeepgramConfig     `yaml:"deepgram"`
	NATS             NATSConfig         `yaml:"nats"`
	Telemetry        TelemetryConfig    `yaml:"telemetry"`
	ReconnectDelayMS int                `yaml:"reconnect_delay_ms"`
}

type SessionConfig struct {
	// Transport is "gemini" or "relay".
	Transport         string `yaml:"transport"`
	RelayURL          string `yaml:"relay_url"`
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	Voice             string `yaml:"voice"`
	SystemInstruction string `yaml:"system_instruction"`
	Memory            string `yaml:"memory"`
	ControlTools      bool   `yaml:"control_tools"`
}

type AudioConfig struct {
	// Backend is "miniaudio", "portaudio" or "none".
	Backend         string `yaml:"backend"`
	BlockSize       int    `yaml:"block_size"`
	FramesPerBuffer int    `yaml:"frames_per_buffer"`
}

type PlaybackConfig struct {
	LeadMS     int `yaml:"lead_ms"`
	DebounceMS int `yaml:"debounce_ms"`
	QueueSize  int `yaml:"queue_size"`
}

type InterruptionConfig struct {
	Policy   string   `yaml:"policy"`
	Keywords []string `yaml:"keywords"`
}

type VideoConfig struct {
	Enabled    bool     `yaml:"enabled"`
	IntervalMS int      `yaml:"interval_ms"`
	MaxWidth   int      `yaml:"max_width"`
	MaxHeight  int      `yaml:"max_height"`
	Quality    int      `yaml:"quality"`
	Sources    []string `yaml:"sources"`
}

type DeepgramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

type NATSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Servers          []string `yaml:"servers"`
	SubjectPrefix    string   `yaml:"subject_prefix"`
	Token            string   `yaml:"token"`
	ConnectTimeoutMS int      `yaml:"connect_timeout_ms"`
}

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFile        string `yaml:"log_file"`
	TraceFile      string `yaml:"trace_file"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

func Default() Config {
	return Config{
		Session: SessionConfig{
			Transport:         "gemini",
			Model:             "gemini-2.5-flash-native-audio-preview-09-2025",
			Voice:             "Zephyr",
			SystemInstruction: "You are a helpful voice assistant. Keep your answers short and conversational.",
			ControlTools:      true,
		},
		Audio: AudioConfig{
			Backend:         "miniaudio",
			BlockSize:       4096,
			FramesPerBuffer: 480,
		},
		Playback: PlaybackConfig{
			LeadMS:     50,
			DebounceMS: 250,
			QueueSize:  256,
		},
		Interruptions: InterruptionConfig{
			Policy: "keyword_gated",
		},
		Video: VideoConfig{
			IntervalMS: 500,
			MaxWidth:   320,
			MaxHeight:  240,
			Quality:    40,
		},
		Deepgram: DeepgramConfig{
			Model:    "nova-3",
			Language: "en-US",
		},
		NATS: NATSConfig{
			Servers:          []string{"nats://localhost:4222"},
			SubjectPrefix:    "ema.live",
			ConnectTimeoutMS: 2000,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			LogFile:      "emalive.log",
			OTLPInsecure: true,
		},
		ReconnectDelayMS: 500,
	}
}

// Load reads path, if given, over the defaults and then applies EMA_LIVE_*
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMS) * time.Millisecond
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Session.Transport, "SESSION_TRANSPORT")
	overrideString(&cfg.Session.RelayURL, "SESSION_RELAY_URL")
	overrideString(&cfg.Session.APIKey, "SESSION_API_KEY")
	overrideString(&cfg.Session.Model, "SESSION_MODEL")
	overrideString(&cfg.Session.Voice, "SESSION_VOICE")
	overrideString(&cfg.Session.SystemInstruction, "SESSION_SYSTEM_INSTRUCTION")
	overrideString(&cfg.Session.Memory, "SESSION_MEMORY")
	overrideBool(&cfg.Session.ControlTools, "SESSION_CONTROL_TOOLS")
	overrideString(&cfg.Audio.Backend, "AUDIO_BACKEND")
	overrideInt(&cfg.Audio.BlockSize, "AUDIO_BLOCK_SIZE")
	overrideInt(&cfg.Audio.FramesPerBuffer, "AUDIO_FRAMES_PER_BUFFER")
	overrideInt(&cfg.Playback.LeadMS, "PLAYBACK_LEAD_MS")
	overrideInt(&cfg.Playback.DebounceMS, "PLAYBACK_DEBOUNCE_MS")
	overrideInt(&cfg.Playback.QueueSize, "PLAYBACK_QUEUE_SIZE")
	overrideString(&cfg.Interruptions.Policy, "INTERRUPTIONS_POLICY")
	overrideStringSlice(&cfg.Interruptions.Keywords, "INTERRUPTIONS_KEYWORDS")
	overrideBool(&cfg.Video.Enabled, "VIDEO_ENABLED")
	overrideInt(&cfg.Video.IntervalMS, "VIDEO_INTERVAL_MS")
	overrideInt(&cfg.Video.Quality, "VIDEO_QUALITY")
	overrideStringSlice(&cfg.Video.Sources, "VIDEO_SOURCES")
	overrideBool(&cfg.Deepgram.Enabled, "DEEPGRAM_ENABLED")
	overrideString(&cfg.Deepgram.APIKey, "DEEPGRAM_API_KEY")
	overrideString(&cfg.Deepgram.Model, "DEEPGRAM_MODEL")
	overrideString(&cfg.Deepgram.Language, "DEEPGRAM_LANGUAGE")
	overrideBool(&cfg.NATS.Enabled, "NATS_ENABLED")
	overrideStringSlice(&cfg.NATS.Servers, "NATS_SERVERS")
	overrideString(&cfg.NATS.SubjectPrefix, "NATS_SUBJECT_PREFIX")
	overrideString(&cfg.NATS.Token, "NATS_TOKEN")
	overrideInt(&cfg.NATS.ConnectTimeoutMS, "NATS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Telemetry.LogLevel, "TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.LogFile, "TELEMETRY_LOG_FILE")
	overrideString(&cfg.Telemetry.TraceFile, "TELEMETRY_TRACE_FILE")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "TELEMETRY_PROMETHEUS_BIND")
	overrideInt(&cfg.ReconnectDelayMS, "RECONNECT_DELAY_MS")
}

func overrideString(target *string, key string) {
	if value, ok := os.LookupEnv(envPrefix + key); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, key string) {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, key string) {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, key string) {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		var trimmed []string
		for _, part := range strings.Split(value, ",") {
			if s := strings.TrimSpace(part); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	switch cfg.Session.Transport {
	case "gemini":
	case "relay":
		if cfg.Session.RelayURL == "" {
			return errors.New("session.relay_url must be set for the relay transport")
		}
	default:
		return fmt.Errorf("session.transport must be gemini or relay, got %q", cfg.Session.Transport)
	}
	switch cfg.Audio.Backend {
	case "miniaudio", "portaudio", "none":
	default:
		return fmt.Errorf("audio.backend must be miniaudio, portaudio or none, got %q", cfg.Audio.Backend)
	}
	if cfg.Audio.BlockSize <= 0 {
		return errors.New("audio.block_size must be positive")
	}
	if cfg.Playback.LeadMS < 0 || cfg.Playback.DebounceMS < 0 {
		return errors.New("playback.lead_ms and playback.debounce_ms must not be negative")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Interruptions.Policy)) {
	case "", "keyword_gated", "hard_stop":
	default:
		return fmt.Errorf("interruptions.policy must be keyword_gated or hard_stop, got %q", cfg.Interruptions.Policy)
	}
	if cfg.Video.Enabled {
		if cfg.Video.IntervalMS <= 0 {
			return errors.New("video.interval_ms must be positive")
		}
		if cfg.Video.Quality < 1 || cfg.Video.Quality > 100 {
			return errors.New("video.quality must be between 1 and 100")
		}
		if len(cfg.Video.Sources) == 0 {
			return errors.New("video.sources must list at least one image when video is enabled")
		}
	}
	if cfg.NATS.Enabled && len(cfg.NATS.Servers) == 0 {
		return errors.New("nats.servers must not be empty when nats is enabled")
	}
	if cfg.ReconnectDelayMS < 0 {
		return errors.New("reconnect_delay_ms must not be negative")
	}
	return nil
}
