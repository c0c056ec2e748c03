package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const deepSeekBaseURL = "https://api.deepseek.com"

type Config struct {
	Port string `yaml:"port"`

	DatabaseDriver string `yaml:"database_driver"` // postgres | sqlite
	DatabaseURL    string `yaml:"database_url"`

	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`

	ClassifierTimeout time.Duration `yaml:"classifier_timeout"`
	GeneratorTimeout  time.Duration `yaml:"generator_timeout"`
	SessionIdleTTL    time.Duration `yaml:"session_idle_ttl"`
	RecentNotesLimit  int           `yaml:"recent_notes_limit"`
	SystemPrompt      string        `yaml:"system_prompt"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json | console
}

func Default() Config {
	return Config{
		Port:              "8080",
		DatabaseDriver:    "postgres",
		ClassifierTimeout: 15 * time.Second,
		GeneratorTimeout:  60 * time.Second,
		SessionIdleTTL:    24 * time.Hour,
		RecentNotesLimit:  10,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// Load reads .env, then the optional YAML file at path, then the process
// environment. Later sources win.
func Load(path string) (Config, error) {
	_ = godotenv.Load()
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("PORT", &cfg.Port)
	str("DATABASE_DRIVER", &cfg.DatabaseDriver)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("OPENAI_API_KEY", &cfg.OpenAIAPIKey)
	str("OPENAI_BASE_URL", &cfg.OpenAIBaseURL)
	str("OPENAI_MODEL", &cfg.OpenAIModel)
	str("SYSTEM_PROMPT", &cfg.SystemPrompt)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)

	// DeepSeek speaks the OpenAI protocol.
	if key, ok := lookup("DEEPSEEK_API_KEY"); ok && key != "" && cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = key
		if cfg.OpenAIBaseURL == "" {
			cfg.OpenAIBaseURL = deepSeekBaseURL
		}
		if cfg.OpenAIModel == "" {
			cfg.OpenAIModel = "deepseek-chat"
		}
	}

	if err := dur("CLASSIFIER_TIMEOUT", &cfg.ClassifierTimeout); err != nil {
		return err
	}
	if err := dur("GENERATOR_TIMEOUT", &cfg.GeneratorTimeout); err != nil {
		return err
	}
	if err := dur("SESSION_IDLE_TTL", &cfg.SessionIdleTTL); err != nil {
		return err
	}

	if v, ok := lookup("RECENT_NOTES_LIMIT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: RECENT_NOTES_LIMIT: %w", err)
		}
		cfg.RecentNotesLimit = n
	}
	return nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER %q: want postgres or sqlite", c.DatabaseDriver))
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("DATABASE_URL is not set"))
	}
	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY (or DEEPSEEK_API_KEY) is not set"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is empty"))
	}
	if c.ClassifierTimeout < 0 || c.GeneratorTimeout < 0 || c.SessionIdleTTL < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.RecentNotesLimit <= 0 {
		errs = append(errs, fmt.Errorf("RECENT_NOTES_LIMIT %d: must be positive", c.RecentNotesLimit))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q: want json or console", c.LogFormat))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
