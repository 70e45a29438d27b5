package config

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// DefaultPath is where awectl looks for a config when --config is unset.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "awenet", "awectl.toml"), nil
}

// Resolve returns explicit when set, else DefaultPath when that file
// exists, else "".
func Resolve(explicit string) string {
	if explicit != "" {
		if expanded, err := homedir.Expand(explicit); err == nil {
			return expanded
		}
		return explicit
	}
	path, err := DefaultPath()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
