// Package config provides configuration management for the recall
// service: defaults, optional YAML file, RECALL_ environment overrides.
package config

import "time"

// Config is the full service configuration.
type Config struct {
	App    AppConfig    `koanf:"app" validate:"required"`
	Server ServerConfig `koanf:"server" validate:"required"`
	LLM    LLMConfig    `koanf:"llm" validate:"required"`
	Memory MemoryConfig `koanf:"memory" validate:"required"`
}

// AppConfig holds application metadata.
type AppConfig struct {
	// Name is the application name, also the metrics namespace.
	Name string `koanf:"name" validate:"required"`

	// Version is reported by the health endpoint.
	Version string `koanf:"version"`

	// Environment is the runtime environment.
	Environment string `koanf:"environment" validate:"oneof=development staging production"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `koanf:"host"`

	// Port is the HTTP API port.
	Port int `koanf:"port" validate:"required,min=1,max=65535"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// AllowAnyOrigin disables the websocket same-origin check.
	AllowAnyOrigin bool `koanf:"allow_any_origin"`

	// RateRPS is the per-client sustained request rate on /chat.
	// Zero disables rate limiting.
	RateRPS float64 `koanf:"rate_rps" validate:"min=0"`

	// RateBurst is the per-client burst allowance.
	RateBurst int `koanf:"rate_burst" validate:"min=0"`
}

// LLMConfig holds the generation backend configuration.
type LLMConfig struct {
	// APIKey authenticates against the Anthropic API. Defaults to the
	// ANTHROPIC_API_KEY environment variable.
	APIKey string `koanf:"api_key"`

	// Model selects the generation model. Empty uses the SDK default.
	Model string `koanf:"model"`

	// GenTemperature is the response-generation sampling temperature.
	GenTemperature float64 `koanf:"gen_temperature" validate:"min=0,max=2"`

	// SummaryTemperature is the summarization sampling temperature.
	SummaryTemperature float64 `koanf:"summary_temperature" validate:"min=0,max=2"`

	// SummaryMaxTokens caps summary length.
	SummaryMaxTokens int64 `koanf:"summary_max_tokens" validate:"min=1"`

	// CallTimeout bounds each external call made by the pipeline.
	CallTimeout time.Duration `koanf:"call_timeout"`
}

// MemoryConfig holds the vector index and embedding configuration.
type MemoryConfig struct {
	// TopK is how many memories to retrieve per turn.
	TopK int `koanf:"top_k" validate:"min=1"`

	// PersistDir is the on-disk index directory. Empty keeps the index
	// in memory only.
	PersistDir string `koanf:"persist_dir"`

	// Compress gzips persisted collections.
	Compress bool `koanf:"compress"`

	// Embedding selects the embedding backend: "local" (deterministic,
	// offline) or "openai" (via chromem's embedding funcs, requires
	// OPENAI_API_KEY or embedding_api_key).
	Embedding string `koanf:"embedding" validate:"oneof=local openai"`

	// EmbeddingAPIKey authenticates the openai embedding backend.
	// Defaults to the OPENAI_API_KEY environment variable.
	EmbeddingAPIKey string `koanf:"embedding_api_key"`

	// CacheMaxBytes bounds the embedding cache. Zero uses the cache
	// default.
	CacheMaxBytes int64 `koanf:"cache_max_bytes" validate:"min=0"`
}

// defaults returns the built-in configuration.
func defaults() map[string]interface{} {
	return map[string]interface{}{
		"app": map[string]interface{}{
			"name":        "recall",
			"version":     "1.0.0",
			"environment": "development",
		},
		"server": map[string]interface{}{
			"host":             "",
			"port":             8080,
			"shutdown_timeout": "15s",
			"allow_any_origin": false,
			"rate_rps":         10.0,
			"rate_burst":       20,
		},
		"llm": map[string]interface{}{
			"api_key":             "",
			"model":               "",
			"gen_temperature":     0.7,
			"summary_temperature": 0.3,
			"summary_max_tokens":  150,
			"call_timeout":        "30s",
		},
		"memory": map[string]interface{}{
			"top_k":             3,
			"persist_dir":       "data/index",
			"compress":          false,
			"embedding":         "local",
			"embedding_api_key": "",
			"cache_max_bytes":   0,
		},
	}
}
