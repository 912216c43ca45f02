package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string  `yaml:"log_level"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint"`
	OTLPInsecure   bool    `yaml:"otlp_insecure"`
	PrometheusBind string  `yaml:"prometheus_bind"`
	TraceSampling  float64 `yaml:"trace_sampling"`
	StdoutTraces   bool    `yaml:"stdout_traces"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	EnvFile     string          `yaml:"env_file"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	LLM         LLMConfig       `yaml:"llm"`
	TTS         TTSConfig       `yaml:"tts"`
	Relay       RelayConfig     `yaml:"relay"`
	Cache       CacheConfig     `yaml:"cache"`
	Catalog     CatalogConfig   `yaml:"catalog"`
	Bus         BusConfig       `yaml:"bus"`
	Sentry      SentryConfig    `yaml:"sentry"`
}

type LLMConfig struct {
	Mode             string   `yaml:"mode"` // mock, gemini, ollama, exec
	APIKey           string   `yaml:"-"`
	Endpoint         string   `yaml:"endpoint"`
	Command          string   `yaml:"command"`
	SummaryModel     string   `yaml:"summary_model"`
	CueModel         string   `yaml:"cue_model"`
	PreferredModels  []string `yaml:"preferred_models"`
	MaxTokens        int      `yaml:"max_tokens"` // 0 leaves the provider limit in place
	Temperature      float64  `yaml:"temperature"`
	CatalogTTLMillis int      `yaml:"catalog_ttl_ms"`
}

type TTSConfig struct {
	Mode          string `yaml:"mode"` // mock, google, exec
	APIKey        string `yaml:"-"`
	Endpoint      string `yaml:"endpoint"`
	Command       string `yaml:"command"`
	LanguageCode  string `yaml:"language_code"`
	VoiceName     string `yaml:"voice_name"`
	AudioEncoding string `yaml:"audio_encoding"`
	SampleRate    int    `yaml:"sample_rate"`
	Channels      int    `yaml:"channels"`
}

type RelayConfig struct {
	RequestTimeoutMS int `yaml:"request_timeout_ms"`
	CueConcurrency   int `yaml:"cue_concurrency"`
	RetryAfterSecs   int `yaml:"retry_after_seconds"`
	MaxBodyBytes     int `yaml:"max_body_bytes"`
}

type CacheConfig struct {
	Enabled    bool `yaml:"enabled"`
	Size       int  `yaml:"size"`
	TTLSeconds int  `yaml:"ttl_seconds"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type SentryConfig struct {
	DSN              string  `yaml:"dsn"`
	Release          string  `yaml:"release"`
	TracesSampleRate float64 `yaml:"traces_sample_rate"`
}

func Default() Config {
	return Config{
		RuntimeName: "musclecoach",
		Environment: "development",
		EnvFile:     ".env",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: "",
			TraceSampling:  1,
		},
		LLM: LLMConfig{
			Mode:             "gemini",
			Endpoint:         "http://localhost:11434",
			SummaryModel:     "gemini-2.5-flash-lite",
			CueModel:         "gemini-2.5-flash-lite",
			PreferredModels:  []string{"gemini-2.5-pro", "gemini-2.5-flash", "gemini-1.5-pro"},
			MaxTokens:        0,
			Temperature:      0.7,
			CatalogTTLMillis: 300000,
		},
		TTS: TTSConfig{
			Mode:          "google",
			Endpoint:      "https://texttospeech.googleapis.com/",
			LanguageCode:  "en-US",
			VoiceName:     "en-US-Wavenet-D",
			AudioEncoding: "MP3",
			SampleRate:    22050,
			Channels:      1,
		},
		Relay: RelayConfig{
			RequestTimeoutMS: 60000,
			CueConcurrency:   4,
			RetryAfterSecs:   45,
			MaxBodyBytes:     1 << 20,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Size:       512,
			TTLSeconds: 3600,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       false,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Sentry: SentryConfig{
			TracesSampleRate: 0.1,
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

	if err := loadEnvFile(cfg.EnvFile); err != nil {
		return cfg, err
	}
	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadEnvFile populates the process environment from a dotenv file without
// overriding variables that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "COACH_RUNTIME_NAME")
	overrideString(&cfg.Environment, "COACH_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "COACH_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "COACH_HTTP_PORT")
	overrideInt(&cfg.HTTP.Port, "PORT")
	overrideString(&cfg.Telemetry.LogLevel, "COACH_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "COACH_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "COACH_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "COACH_TELEMETRY_PROMETHEUS_BIND")
	overrideFloat(&cfg.Telemetry.TraceSampling, "COACH_TELEMETRY_TRACE_SAMPLING")
	overrideBool(&cfg.Telemetry.StdoutTraces, "COACH_TELEMETRY_STDOUT_TRACES")
	overrideString(&cfg.LLM.Mode, "COACH_LLM_MODE")
	overrideString(&cfg.LLM.APIKey, "GEMINI_API_KEY")
	overrideString(&cfg.LLM.APIKey, "GOOGLE_GENERATIVE_AI_API_KEY")
	overrideString(&cfg.LLM.Endpoint, "COACH_LLM_ENDPOINT")
	overrideString(&cfg.LLM.Command, "COACH_LLM_COMMAND")
	overrideString(&cfg.LLM.SummaryModel, "COACH_LLM_SUMMARY_MODEL")
	overrideString(&cfg.LLM.CueModel, "COACH_LLM_CUE_MODEL")
	overrideStringSlice(&cfg.LLM.PreferredModels, "COACH_LLM_PREFERRED_MODELS")
	overrideInt(&cfg.LLM.MaxTokens, "COACH_LLM_MAX_TOKENS")
	overrideFloat(&cfg.LLM.Temperature, "COACH_LLM_TEMPERATURE")
	overrideInt(&cfg.LLM.CatalogTTLMillis, "COACH_LLM_CATALOG_TTL_MS")
	overrideString(&cfg.TTS.Mode, "COACH_TTS_MODE")
	overrideString(&cfg.TTS.APIKey, "GOOGLE_CLOUD_TTS_API_KEY")
	overrideString(&cfg.TTS.Endpoint, "COACH_TTS_ENDPOINT")
	overrideString(&cfg.TTS.Command, "COACH_TTS_COMMAND")
	overrideString(&cfg.TTS.LanguageCode, "COACH_TTS_LANGUAGE_CODE")
	overrideString(&cfg.TTS.VoiceName, "COACH_TTS_VOICE_NAME")
	overrideString(&cfg.TTS.AudioEncoding, "COACH_TTS_AUDIO_ENCODING")
	overrideInt(&cfg.TTS.SampleRate, "COACH_TTS_SAMPLE_RATE")
	overrideInt(&cfg.TTS.Channels, "COACH_TTS_CHANNELS")
	overrideInt(&cfg.Relay.RequestTimeoutMS, "COACH_RELAY_REQUEST_TIMEOUT_MS")
	overrideInt(&cfg.Relay.CueConcurrency, "COACH_RELAY_CUE_CONCURRENCY")
	overrideInt(&cfg.Relay.RetryAfterSecs, "COACH_RELAY_RETRY_AFTER_SECONDS")
	overrideInt(&cfg.Relay.MaxBodyBytes, "COACH_RELAY_MAX_BODY_BYTES")
	overrideBool(&cfg.Cache.Enabled, "COACH_CACHE_ENABLED")
	overrideInt(&cfg.Cache.Size, "COACH_CACHE_SIZE")
	overrideInt(&cfg.Cache.TTLSeconds, "COACH_CACHE_TTL_SECONDS")
	overrideString(&cfg.Catalog.Path, "COACH_CATALOG_PATH")
	overrideBool(&cfg.Bus.Enabled, "COACH_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "COACH_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "COACH_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "COACH_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "COACH_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "COACH_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "COACH_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "COACH_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "COACH_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "COACH_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Sentry.DSN, "SENTRY_DSN")
	overrideString(&cfg.Sentry.Release, "COACH_SENTRY_RELEASE")
	overrideFloat(&cfg.Sentry.TracesSampleRate, "COACH_SENTRY_TRACES_SAMPLE_RATE")
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

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
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
	switch strings.ToLower(cfg.Telemetry.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("telemetry.log_level must be one of debug|info|warn|error")
	}
	if cfg.Telemetry.TraceSampling < 0 || cfg.Telemetry.TraceSampling > 1 {
		return errors.New("telemetry.trace_sampling must be between 0 and 1")
	}
	switch cfg.LLM.Mode {
	case "mock", "gemini", "ollama", "exec":
	default:
		return errors.New("llm.mode must be one of mock|gemini|ollama|exec")
	}
	if cfg.LLM.Mode == "ollama" && cfg.LLM.Endpoint == "" {
		return errors.New("llm.endpoint must be set when mode=ollama")
	}
	if cfg.LLM.Mode == "exec" && cfg.LLM.Command == "" {
		return errors.New("llm.command must be set when mode=exec")
	}
	if cfg.LLM.SummaryModel == "" {
		return errors.New("llm.summary_model must not be empty")
	}
	if cfg.LLM.MaxTokens < 0 {
		return errors.New("llm.max_tokens must be >= 0")
	}
	if cfg.LLM.CatalogTTLMillis < 0 {
		return errors.New("llm.catalog_ttl_ms must be >= 0")
	}
	switch cfg.TTS.Mode {
	case "mock", "google", "exec":
	default:
		return errors.New("tts.mode must be one of mock|google|exec")
	}
	if cfg.TTS.Mode == "google" && cfg.TTS.Endpoint == "" {
		return errors.New("tts.endpoint must be set when mode=google")
	}
	if cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
		return errors.New("tts.command must be set when mode=exec")
	}
	if cfg.TTS.LanguageCode == "" {
		return errors.New("tts.language_code must not be empty")
	}
	if cfg.TTS.SampleRate <= 0 {
		return errors.New("tts.sample_rate must be positive")
	}
	if cfg.TTS.Channels <= 0 {
		return errors.New("tts.channels must be positive")
	}
	if cfg.Relay.RequestTimeoutMS <= 0 {
		return errors.New("relay.request_timeout_ms must be positive")
	}
	if cfg.Relay.CueConcurrency <= 0 {
		return errors.New("relay.cue_concurrency must be >= 1")
	}
	if cfg.Relay.RetryAfterSecs < 0 {
		return errors.New("relay.retry_after_seconds must be >= 0")
	}
	if cfg.Relay.MaxBodyBytes <= 0 {
		return errors.New("relay.max_body_bytes must be positive")
	}
	if cfg.Cache.Enabled {
		if cfg.Cache.Size <= 0 {
			return errors.New("cache.size must be positive when cache is enabled")
		}
		if cfg.Cache.TTLSeconds <= 0 {
			return errors.New("cache.ttl_seconds must be positive when cache is enabled")
		}
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
	if cfg.Sentry.TracesSampleRate < 0 || cfg.Sentry.TracesSampleRate > 1 {
		return errors.New("sentry.traces_sample_rate must be between 0 and 1")
	}
	return nil
}
