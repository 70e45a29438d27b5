package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
)

func TestResolve(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	if got := Resolve(""); got != "" {
		t.Fatalf("expected no default config, got %q", got)
	}
	if got := Resolve("/etc/awectl.toml"); got != "/etc/awectl.toml" {
		t.Fatalf("explicit path changed: %q", got)
	}
	if got := Resolve("~/peer.toml"); got != filepath.Join(home, "peer.toml") {
		t.Fatalf("tilde not expanded: %q", got)
	}

	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("default path: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := WriteTemplate(path, "join", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := Resolve(""); got != path {
		t.Fatalf("expected default config %q, got %q", path, got)
	}
}
