package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "awectl.toml")
	var out bytes.Buffer
	app := newApp(strings.NewReader(""), &out)

	if err := app.Run([]string{"awectl", "config", "init", "--path", path, "--profile", "host"}); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template not written: %v", err)
	}

	out.Reset()
	if err := newApp(strings.NewReader(""), &out).Run([]string{"awectl", "config", "validate", path}); err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out.String(), "ok: address=127.0.0.1 port=5467") {
		t.Fatalf("unexpected validate output: %q", out.String())
	}
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte(`port = 99999`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out bytes.Buffer
	err := newApp(strings.NewReader(""), &out).Run([]string{"awectl", "config", "validate", path})
	if err == nil || !strings.Contains(err.Error(), "port out of range") {
		t.Fatalf("expected port error, got %v", err)
	}
}

func TestUnknownLogLevelFails(t *testing.T) {
	var out bytes.Buffer
	err := newApp(strings.NewReader(""), &out).Run([]string{"awectl", "--log-level", "shouty", "config", "validate", "x"})
	if err == nil || !strings.Contains(err.Error(), "unknown log level") {
		t.Fatalf("expected log level error, got %v", err)
	}
}
