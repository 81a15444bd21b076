package config

import (
	"strings"
	"testing"
)

func TestShowAll(t *testing.T) {
	cfg := defaults()
	cfg.Assistant.APIKey = "sk-secret"
	cfg.Assistant.AssistantID = "asst_1"

	infos := ShowAll(cfg)
	byKey := make(map[string]KeyInfo, len(infos))
	for _, info := range infos {
		byKey[info.Key] = info
	}

	if _, ok := byKey["assistant.api_key"]; ok {
		t.Error("ShowAll must not expose secrets")
	}
	if got := byKey["server.port"].Value; got != "4100" {
		t.Errorf("server.port = %q, want 4100", got)
	}
	if got := byKey["assistant.assistant_id"].Value; got != "asst_1" {
		t.Errorf("assistant.assistant_id = %q", got)
	}
	if got := byKey["server.port"].EnvVar; got != "ASKD_PORT" {
		t.Errorf("server.port env = %q", got)
	}
}

func TestSetKey(t *testing.T) {
	b := newMemBackend()

	if err := setKeyWith(b, "ocr.base_url", "http://ocr:8800"); err != nil {
		t.Fatalf("setKeyWith(string): %v", err)
	}
	if got := b.strings["ocr.base_url"]; got != "http://ocr:8800" {
		t.Errorf("stored value = %q", got)
	}

	if err := setKeyWith(b, "server.port", "9000"); err != nil {
		t.Fatalf("setKeyWith(int): %v", err)
	}
	if got := b.ints["server.port"]; got != 9000 {
		t.Errorf("stored port = %d", got)
	}
}

func TestSetKey_RejectsBadInteger(t *testing.T) {
	if err := setKeyWith(newMemBackend(), "server.port", "lots"); err == nil {
		t.Fatal("expected error for non-integer port")
	}
}

func TestSetKey_RejectsSecret(t *testing.T) {
	err := setKeyWith(newMemBackend(), "assistant.api_key", "sk-leak")
	if err == nil {
		t.Fatal("expected secret keys to be rejected")
	}
	if !strings.Contains(err.Error(), "ASKD_ASSISTANT_API_KEY") {
		t.Errorf("error %q does not point at the environment variable", err)
	}
}

func TestSetKey_UnknownKey(t *testing.T) {
	if err := setKeyWith(newMemBackend(), "nope.nothing", "x"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()
	if len(keys) == 0 {
		t.Fatal("no valid keys")
	}
	for _, k := range keys {
		if k == "assistant.api_key" {
			t.Error("ValidKeys must not list secrets")
		}
	}
}
