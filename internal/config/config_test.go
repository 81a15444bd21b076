package config

import (
	"strings"
	"testing"
)

// memBackend is an in-memory Backend for tests.
type memBackend struct {
	strings map[string]string
	ints    map[string]int
}

func newMemBackend() *memBackend {
	return &memBackend{strings: make(map[string]string), ints: make(map[string]int)}
}

func (b *memBackend) GetString(key string) (string, bool, error) {
	v, ok := b.strings[key]
	return v, ok, nil
}

func (b *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.ints[key]
	return v, ok, nil
}

func (b *memBackend) SetString(key, val string) error {
	b.strings[key] = val
	return nil
}

func (b *memBackend) SetInt(key string, val int) error {
	b.ints[key] = val
	return nil
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ASKD_ASSISTANT_API_KEY", "sk-test")
	t.Setenv("ASKD_ASSISTANT_ID", "asst_test")
	t.Setenv("ASKD_VECTOR_STORE_ID", "vs_test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.OCR.BaseURL != "http://localhost:8800" {
		t.Errorf("OCR.BaseURL = %q", cfg.OCR.BaseURL)
	}
	if cfg.Assistant.PollInterval != "2s" || cfg.Assistant.PollBudget != "2m" {
		t.Errorf("poll config = %q/%q, want 2s/2m", cfg.Assistant.PollInterval, cfg.Assistant.PollBudget)
	}
	if cfg.Ingest.Concurrency != 4 {
		t.Errorf("Ingest.Concurrency = %d, want 4", cfg.Ingest.Concurrency)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestLoad_BackendValues(t *testing.T) {
	setRequired(t)

	b := newMemBackend()
	b.SetInt("server.port", 9000)
	b.SetString("ocr.base_url", "http://ocr.internal:8800")
	b.SetString("assistant.poll_interval", "500ms")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.OCR.BaseURL != "http://ocr.internal:8800" {
		t.Errorf("OCR.BaseURL = %q", cfg.OCR.BaseURL)
	}
	if cfg.Assistant.PollInterval != "500ms" {
		t.Errorf("PollInterval = %q", cfg.Assistant.PollInterval)
	}
}

func TestLoad_EnvOverridesBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("ASKD_PORT", "7777")

	b := newMemBackend()
	b.SetInt("server.port", 9000)

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want env override 7777", cfg.Server.Port)
	}
}

func TestLoad_SecretNeverReadFromBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("ASKD_ASSISTANT_API_KEY", "sk-from-env")

	b := newMemBackend()
	b.SetString("assistant.api_key", "sk-from-file")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Assistant.APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q, want the env value only", cfg.Assistant.APIKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("ASKD_ASSISTANT_API_KEY", "")
	t.Setenv("ASKD_ASSISTANT_ID", "asst_test")
	t.Setenv("ASKD_VECTOR_STORE_ID", "")

	_, err := loadWith(newMemBackend())
	if err == nil {
		t.Fatal("expected error for missing required config")
	}
	if !strings.Contains(err.Error(), "ASKD_ASSISTANT_API_KEY") {
		t.Errorf("error %q does not name the missing API key variable", err)
	}
	if !strings.Contains(err.Error(), "ASKD_VECTOR_STORE_ID") {
		t.Errorf("error %q does not name the missing vector store variable", err)
	}
	if strings.Contains(err.Error(), "ASKD_ASSISTANT_ID") {
		t.Errorf("error %q names a variable that was provided", err)
	}
}

func TestLoad_BadIntEnvFallsBack(t *testing.T) {
	setRequired(t)
	t.Setenv("ASKD_PORT", "not-a-number")

	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want default 4100 after bad env value", cfg.Server.Port)
	}
}
