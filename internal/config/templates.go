package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Template returns a starter config for the host or join profile.
func Template(profile string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(profile)) {
	case "host":
		return hostTemplate, nil
	case "join":
		return joinTemplate, nil
	default:
		return "", fmt.Errorf("config: unknown profile: %s", profile)
	}
}

func WriteTemplate(path, profile string, overwrite bool) error {
	template, err := Template(profile)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config: already exists: %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const hostTemplate = `port = 5467
max_frame_bytes = 1048576
keepalive = "15s"
log_level = "info"
# seed = 1234
`

const joinTemplate = `address = "127.0.0.1"
port = 5467
max_frame_bytes = 1048576
keepalive = "15s"
log_level = "info"
`
