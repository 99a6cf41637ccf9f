package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envKeys maps environment variable names to config keys. The variable names
// are fixed for compatibility with existing deployments; only listed
// variables are consumed.
var envKeys = map[string]string{
	"MISTRAL_API_KEY":    "embedding.api_key",
	"EMBEDDING_BASE_URL": "embedding.base_url",
	"EMBEDDING_MODEL":    "embedding.model",
	"EMBEDDING_DIM":      "embedding.vector_size",
	"ZILLIZ_URI":         "store.uri",
	"ZILLIZ_TOKEN":       "store.token",
	"COLLECTION_NAME":    "store.collection",
	"HF_TOKEN":           "hub_token",
	"PASSWORD":           "admin_password",
	"LLM_BASE_URL":       "llm.base_url",
	"LLM_MODEL":          "llm.model",
	"LLM_API_KEY":        "llm.api_key",
	"SERVER_HOST":        "server.host",
	"SERVER_PORT":        "server.port",
	"SHUTDOWN_TIMEOUT":   "server.shutdown_timeout",
	"LOG_LEVEL":          "log.level",
	"LOG_FORMAT":         "log.format",
}

// hubTokenAliases are the names downstream tokenizer libraries look the
// Hugging Face token up under. Load sets any that are unset.
var hubTokenAliases = []string{
	"HUGGINGFACEHUB_API_TOKEN",
	"HUGGING_FACE_HUB_TOKEN",
	"HUGGINGFACE_HUB_TOKEN",
}

// Load builds the process configuration.
//
// Precedence (highest to lowest):
//  1. Environment variables (MISTRAL_API_KEY, ZILLIZ_URI, ...)
//  2. YAML config file (configPath, skipped when empty or absent)
//  3. Hardcoded defaults
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
		} else if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	// Override with environment variables. The transformer maps known
	// variable names to config keys and drops everything else.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := NewDefault()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	propagateHubToken(cfg.HubToken)

	return cfg, nil
}

// propagateHubToken mirrors the hub token under the alias names expected by
// downstream libraries. Existing values are left alone.
func propagateHubToken(token Secret) {
	if !token.IsSet() {
		return
	}
	for _, alias := range hubTokenAliases {
		if os.Getenv(alias) == "" {
			_ = os.Setenv(alias, token.Value())
		}
	}
}
