package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "RECALL_"
	// Delimiter is the key delimiter for nested config.
	Delimiter = "."
)

// Load builds the configuration with the following priority, highest
// last: defaults, YAML file (if path is non-empty), RECALL_ environment
// variables (RECALL_SERVER__PORT=9090 sets server.port; double
// underscore separates nesting levels so snake_case keys survive).
func Load(path string) (*Config, error) {
	k := koanf.New(Delimiter)

	if err := k.Load(confmap.Provider(defaults(), Delimiter), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, Delimiter, envKey), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applySecretDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKey maps RECALL_SERVER__PORT to server.port.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", Delimiter)
}

// applySecretDefaults fills API keys from their conventional variables
// when the config left them empty.
func applySecretDefaults(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.Memory.EmbeddingAPIKey == "" {
		cfg.Memory.EmbeddingAPIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Validate checks the configuration against its struct tags.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			details := make([]string, 0, len(errs))
			for _, fe := range errs {
				details = append(details, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(details, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
