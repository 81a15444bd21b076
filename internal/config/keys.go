package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool // secrets never come from the config file, env only
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "ASKD_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ASKD_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "ocr.base_url", typ: kString, env: "ASKD_OCR_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OCR.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OCR.BaseURL },
	},
	{
		key: "assistant.base_url", typ: kString, env: "ASKD_ASSISTANT_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Assistant.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.BaseURL },
	},
	{
		key: "assistant.api_key", typ: kString, env: "ASKD_ASSISTANT_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Assistant.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.APIKey },
	},
	{
		key: "assistant.assistant_id", typ: kString, env: "ASKD_ASSISTANT_ID",
		apply:   func(cfg *Config, v any) { cfg.Assistant.AssistantID = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.AssistantID },
	},
	{
		key: "assistant.vector_store_id", typ: kString, env: "ASKD_VECTOR_STORE_ID",
		apply:   func(cfg *Config, v any) { cfg.Assistant.VectorStoreID = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.VectorStoreID },
	},
	{
		key: "assistant.poll_interval", typ: kString, env: "ASKD_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Assistant.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.PollInterval },
	},
	{
		key: "assistant.poll_budget", typ: kString, env: "ASKD_POLL_BUDGET",
		apply:   func(cfg *Config, v any) { cfg.Assistant.PollBudget = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.PollBudget },
	},
	{
		key: "ingest.concurrency", typ: kInt, env: "ASKD_INGEST_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Ingest.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Ingest.Concurrency },
	},
	{
		key: "log.level", typ: kString, env: "ASKD_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
