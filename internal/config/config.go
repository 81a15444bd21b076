package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	OCR       OCRConfig
	Assistant AssistantConfig
	Ingest    IngestConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type OCRConfig struct {
	BaseURL string
}

type AssistantConfig struct {
	BaseURL       string
	APIKey        string
	AssistantID   string
	VectorStoreID string
	PollInterval  string // duration string, e.g. "2s"
	PollBudget    string // duration string, e.g. "2m"
}

type IngestConfig struct {
	Concurrency int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		OCR: OCRConfig{
			BaseURL: "http://localhost:8800",
		},
		Assistant: AssistantConfig{
			BaseURL:      "https://api.openai.com/v1",
			PollInterval: "2s",
			PollBudget:   "2m",
		},
		Ingest: IngestConfig{
			Concurrency: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON config file backend and applies
// ASKD_* environment variable overrides on top of defaults.
//
// The assistant API key, assistant id, and vector store id have no sane
// defaults and must be provided.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	var missing []string
	if cfg.Assistant.APIKey == "" {
		missing = append(missing, "assistant API key (ASKD_ASSISTANT_API_KEY)")
	}
	if cfg.Assistant.AssistantID == "" {
		missing = append(missing, "assistant id (ASKD_ASSISTANT_ID)")
	}
	if cfg.Assistant.VectorStoreID == "" {
		missing = append(missing, "vector store id (ASKD_VECTOR_STORE_ID)")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}
