package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type CaptureConfig struct {
	Mode       string `yaml:"mode"` // portaudio, mock
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	BlockSize  int    `yaml:"block_size"`
	AudioPath  string `yaml:"audio_path"`
}

type TranscriberConfig struct {
	Mode          string  `yaml:"mode"` // mock, openai, exec
	Endpoint      string  `yaml:"endpoint"`
	Model         string  `yaml:"model"`
	Language      string  `yaml:"language"`
	Command       string  `yaml:"command"`
	ModelPath     string  `yaml:"model_path"`
	TimeoutS      int     `yaml:"timeout_s"`
	CostPerMinute float64 `yaml:"cost_per_minute"`
	// APIKey is never read from YAML; it is supplied through the
	// environment only (SCRIBED_TRANSCRIBER_API_KEY or OPENAI_API_KEY).
	APIKey string `yaml:"-"`
}

type LedgerConfig struct {
	Dir              string `yaml:"dir"`
	HistoryFile      string `yaml:"history_file"`
	TransactionsFile string `yaml:"transactions_file"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxCycles     int    `yaml:"max_cycles"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type ClipboardConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	RuntimeName string            `yaml:"runtime_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	Capture     CaptureConfig     `yaml:"capture"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	EventStore  EventStoreConfig  `yaml:"event_store"`
	Clipboard   ClipboardConfig   `yaml:"clipboard"`
}

func Default() Config {
	return Config{
		RuntimeName: "scribed",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Capture: CaptureConfig{
			Mode:       "portaudio",
			SampleRate: 44100,
			Channels:   1,
			BlockSize:  1024,
			AudioPath:  "./output.wav",
		},
		Transcriber: TranscriberConfig{
			Mode:          "openai",
			Endpoint:      "https://api.openai.com/v1/audio/transcriptions",
			Model:         "whisper-1",
			TimeoutS:      60,
			CostPerMinute: 0.006,
		},
		Ledger: LedgerConfig{
			Dir:              ".",
			HistoryFile:      "transcription_history.json",
			TransactionsFile: "transactions.json",
		},
		EventStore: EventStoreConfig{
			Path:          "./data/scribed-cycles.db",
			RetentionMode: "persistent",
			RetentionDays: 90,
			MaxCycles:     10000,
		},
		Clipboard: ClipboardConfig{
			Enabled: true,
		},
	}
}

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

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "SCRIBED_RUNTIME_NAME")
	overrideString(&cfg.Environment, "SCRIBED_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "SCRIBED_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "SCRIBED_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "SCRIBED_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "SCRIBED_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "SCRIBED_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Enabled, "SCRIBED_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "SCRIBED_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "SCRIBED_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "SCRIBED_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "SCRIBED_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "SCRIBED_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "SCRIBED_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "SCRIBED_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "SCRIBED_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Capture.Mode, "SCRIBED_CAPTURE_MODE")
	overrideInt(&cfg.Capture.SampleRate, "SCRIBED_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.Channels, "SCRIBED_CAPTURE_CHANNELS")
	overrideInt(&cfg.Capture.BlockSize, "SCRIBED_CAPTURE_BLOCK_SIZE")
	overrideString(&cfg.Capture.AudioPath, "SCRIBED_CAPTURE_AUDIO_PATH")
	overrideString(&cfg.Transcriber.Mode, "SCRIBED_TRANSCRIBER_MODE")
	overrideString(&cfg.Transcriber.Endpoint, "SCRIBED_TRANSCRIBER_ENDPOINT")
	overrideString(&cfg.Transcriber.Model, "SCRIBED_TRANSCRIBER_MODEL")
	overrideString(&cfg.Transcriber.Language, "SCRIBED_TRANSCRIBER_LANGUAGE")
	overrideString(&cfg.Transcriber.Command, "SCRIBED_TRANSCRIBER_COMMAND")
	overrideString(&cfg.Transcriber.ModelPath, "SCRIBED_TRANSCRIBER_MODEL_PATH")
	overrideInt(&cfg.Transcriber.TimeoutS, "SCRIBED_TRANSCRIBER_TIMEOUT_S")
	overrideFloat(&cfg.Transcriber.CostPerMinute, "SCRIBED_TRANSCRIBER_COST_PER_MINUTE")
	overrideString(&cfg.Transcriber.APIKey, "SCRIBED_TRANSCRIBER_API_KEY")
	if cfg.Transcriber.APIKey == "" {
		overrideString(&cfg.Transcriber.APIKey, "OPENAI_API_KEY")
	}
	overrideString(&cfg.Ledger.Dir, "SCRIBED_LEDGER_DIR")
	overrideString(&cfg.Ledger.HistoryFile, "SCRIBED_LEDGER_HISTORY_FILE")
	overrideString(&cfg.Ledger.TransactionsFile, "SCRIBED_LEDGER_TRANSACTIONS_FILE")
	overrideString(&cfg.EventStore.Path, "SCRIBED_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "SCRIBED_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "SCRIBED_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxCycles, "SCRIBED_EVENT_STORE_MAX_CYCLES")
	overrideBool(&cfg.EventStore.VacuumOnStart, "SCRIBED_EVENT_STORE_VACUUM_ON_START")
	overrideBool(&cfg.Clipboard.Enabled, "SCRIBED_CLIPBOARD_ENABLED")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Capture.Mode {
	case "portaudio", "mock":
	default:
		return errors.New("capture.mode must be one of portaudio|mock")
	}
	if cfg.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be positive")
	}
	if cfg.Capture.Channels != 1 {
		return errors.New("capture.channels must be 1 (mono capture only)")
	}
	if cfg.Capture.BlockSize <= 0 {
		return errors.New("capture.block_size must be positive")
	}
	if cfg.Capture.AudioPath == "" {
		return errors.New("capture.audio_path must not be empty")
	}
	switch cfg.Transcriber.Mode {
	case "mock", "openai", "exec":
	default:
		return errors.New("transcriber.mode must be one of mock|openai|exec")
	}
	if cfg.Transcriber.Mode == "openai" {
		if cfg.Transcriber.Endpoint == "" {
			return errors.New("transcriber.endpoint must be set when mode=openai")
		}
		if cfg.Transcriber.APIKey == "" {
			return errors.New("transcriber api key is not set: export SCRIBED_TRANSCRIBER_API_KEY or OPENAI_API_KEY")
		}
	}
	if cfg.Transcriber.Mode == "exec" && cfg.Transcriber.Command == "" {
		return errors.New("transcriber.command must be set when mode=exec")
	}
	if cfg.Transcriber.TimeoutS <= 0 {
		return errors.New("transcriber.timeout_s must be positive")
	}
	if cfg.Transcriber.CostPerMinute < 0 {
		return errors.New("transcriber.cost_per_minute must be >= 0")
	}
	if cfg.Ledger.Dir == "" {
		return errors.New("ledger.dir must not be empty")
	}
	if cfg.Ledger.HistoryFile == "" || cfg.Ledger.TransactionsFile == "" {
		return errors.New("ledger file names must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "persistent":
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|persistent")
	}
	if cfg.EventStore.RetentionMode == "persistent" && cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	return nil
}
