// Package config provides configuration loading for docqa.
package config

import (
	"fmt"
	"time"
)

// DefaultCollection is the collection used when neither a request override
// nor the COLLECTION_NAME environment variable names one.
const DefaultCollection = "documents"

// Config is the root configuration for the docqa service.
//
// Values are resolved at process start with precedence:
// environment variables > YAML config file > hardcoded defaults.
// Request-time overrides are layered on top via Resolve.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	LLM       LLMConfig       `koanf:"llm"`
	Store     StoreConfig     `koanf:"store"`

	// HubToken is propagated to the Hugging Face token aliases consumed by
	// downstream tokenizer libraries.
	HubToken Secret `koanf:"hub_token"`

	// AdminPassword gates the full-wipe endpoint on the default store.
	AdminPassword Secret `koanf:"admin_password"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// EmbeddingConfig holds the embedding provider settings.
//
// The provider speaks the OpenAI-compatible embeddings API; the default
// base URL points at Mistral's hosted endpoint.
type EmbeddingConfig struct {
	BaseURL    string `koanf:"base_url"`
	Model      string `koanf:"model"`
	APIKey     Secret `koanf:"api_key"`
	VectorSize int    `koanf:"vector_size"`
}

// LLMConfig holds the chat completion provider settings.
type LLMConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// StoreConfig holds the default vector store settings.
//
// URI empty selects the embedded store; a non-empty URI selects the
// external Qdrant store at that address.
type StoreConfig struct {
	URI        string `koanf:"uri"`
	Token      Secret `koanf:"token"`
	Collection string `koanf:"collection"`
}

// NewDefault returns a Config with hardcoded defaults applied.
func NewDefault() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Embedding: EmbeddingConfig{
			BaseURL:    "https://api.mistral.ai/v1",
			Model:      "mistral-embed",
			VectorSize: 1024,
		},
		LLM: LLMConfig{
			BaseURL: "https://text.pollinations.ai/openai",
			Model:   "gpt-5-nano",
			APIKey:  "not-req",
		},
		Store: StoreConfig{
			Collection: DefaultCollection,
		},
	}
}

// Validate checks the configuration for structural problems. Credentials are
// intentionally not validated here: empty values are passed through to the
// store and embedder constructors, which decide whether to accept them.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Embedding.VectorSize <= 0 {
		return fmt.Errorf("invalid embedding vector size: %d", c.Embedding.VectorSize)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q", c.Log.Format)
	}
	return nil
}
