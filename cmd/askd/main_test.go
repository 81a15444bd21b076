package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestColorize(t *testing.T) {
	noColor = false
	if got := colorize(colorGreen, "ok"); got != colorGreen+"ok"+colorReset {
		t.Errorf("colorize = %q", got)
	}

	noColor = true
	defer func() { noColor = false }()
	if got := colorize(colorGreen, "ok"); got != "ok" {
		t.Errorf("colorize with --no-color = %q, want plain text", got)
	}
}

func TestParseDurationOr(t *testing.T) {
	if got := parseDurationOr("3s", time.Minute, "test"); got != 3*time.Second {
		t.Errorf("parseDurationOr(3s) = %v", got)
	}
	if got := parseDurationOr("nonsense", time.Minute, "test"); got != time.Minute {
		t.Errorf("parseDurationOr(nonsense) = %v, want the fallback", got)
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	path := pidFilePath(t.TempDir())

	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("readPIDFile: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}

	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("PID file still readable after removal")
	}
}

func TestPIDFilePath(t *testing.T) {
	got := pidFilePath("/var/lib/askd")
	if got != filepath.Join("/var/lib/askd", "askd.pid") {
		t.Errorf("pidFilePath = %q", got)
	}
}

func TestCommandRegistration(t *testing.T) {
	paths := [][]string{
		{"start"}, {"stop"}, {"status"}, {"version"},
		{"ask"}, {"upload"}, {"unanswered"},
		{"files"}, {"files", "rename"}, {"files", "delete"},
		{"config"}, {"config", "show"}, {"config", "set"},
	}
	for _, path := range paths {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd == rootCmd {
			t.Errorf("command %v not registered: %v", path, err)
		}
	}
}

func withFakeServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	orig := newAPIClient
	newAPIClient = func() (*apiClient, error) {
		return &apiClient{baseURL: srv.URL, httpClient: srv.Client()}, nil
	}
	t.Cleanup(func() { newAPIClient = orig })
	return srv
}

func TestFilesDeleteCommand(t *testing.T) {
	var gotRequest string
	withFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotRequest = r.Method + " " + r.URL.Path
		fmt.Fprint(w, `{"deleted": true, "id": "doc_1"}`)
	})

	filesDeleteCmd.SetContext(context.Background())
	if err := filesDeleteCmd.RunE(filesDeleteCmd, []string{"doc_1"}); err != nil {
		t.Fatalf("files delete: %v", err)
	}
	if gotRequest != "DELETE /files/doc_1" {
		t.Errorf("request = %q", gotRequest)
	}
}

func TestFilesRenameCommand(t *testing.T) {
	var gotName string
	withFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/files/doc_1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Name string `json:"name"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotName = body.Name
		fmt.Fprint(w, `{"id": "doc_1", "name": "renamed"}`)
	})

	filesRenameCmd.SetContext(context.Background())
	if err := filesRenameCmd.RunE(filesRenameCmd, []string{"doc_1", "renamed"}); err != nil {
		t.Fatalf("files rename: %v", err)
	}
	if gotName != "renamed" {
		t.Errorf("sent name = %q", gotName)
	}
}
