package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/awenet/internal/link"
	"github.com/danmuck/awenet/internal/logging"
	"github.com/danmuck/awenet/internal/wire"
)

const (
	DefaultAddress = "127.0.0.1"
	DefaultPort    = 5467
)

// Config is the runtime configuration of one awectl peer.
type Config struct {
	Address       string
	Port          uint16
	MaxFrameBytes uint64
	// Seed is the GameStart seed; zero picks one at start time.
	Seed      uint32
	Keepalive time.Duration
	LogLevel  string
	// AdminAddr enables the admin HTTP server when set.
	AdminAddr   string
	CORSOrigins []string
}

type fileConfig struct {
	Address       string   `toml:"address"`
	Port          int64    `toml:"port"`
	MaxFrameBytes int64    `toml:"max_frame_bytes"`
	Seed          int64    `toml:"seed"`
	Keepalive     string   `toml:"keepalive"`
	LogLevel      string   `toml:"log_level"`
	AdminAddr     string   `toml:"admin_addr"`
	CORSOrigins   []string `toml:"cors_origins"`
}

func DefaultConfig() Config {
	return Config{
		Address:       DefaultAddress,
		Port:          DefaultPort,
		MaxFrameBytes: wire.DefaultLimits().MaxStringBytes,
		LogLevel:      "info",
	}
}

// Load reads path on top of DefaultConfig. Only keys present in the file
// override defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("port") {
		if raw.Port < 0 || raw.Port > 65535 {
			return Config{}, fmt.Errorf("config: port out of range: %d", raw.Port)
		}
		cfg.Port = uint16(raw.Port)
	}
	if meta.IsDefined("max_frame_bytes") {
		if raw.MaxFrameBytes <= 0 {
			return Config{}, fmt.Errorf("config: max_frame_bytes must be positive: %d", raw.MaxFrameBytes)
		}
		cfg.MaxFrameBytes = uint64(raw.MaxFrameBytes)
	}
	if meta.IsDefined("seed") {
		if raw.Seed < 0 || raw.Seed > int64(^uint32(0)) {
			return Config{}, fmt.Errorf("config: seed out of range: %d", raw.Seed)
		}
		cfg.Seed = uint32(raw.Seed)
	}
	if meta.IsDefined("keepalive") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Keepalive))
		if err != nil {
			return Config{}, fmt.Errorf("config: parse keepalive: %w", err)
		}
		cfg.Keepalive = d
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = normalizeOrigins(raw.CORSOrigins)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return fmt.Errorf("config: address is required")
	}
	if c.MaxFrameBytes == 0 {
		return fmt.Errorf("config: max_frame_bytes is required")
	}
	if c.Keepalive < 0 {
		return fmt.Errorf("config: keepalive must not be negative: %s", c.Keepalive)
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}

// LinkConfig maps the file settings onto a link.Config. Dispatcher and
// logger are left for the caller.
func (c Config) LinkConfig() link.Config {
	cfg := link.DefaultConfig()
	cfg.Limits = wire.Limits{MaxStringBytes: c.MaxFrameBytes}
	cfg.KeepaliveInterval = c.Keepalive
	return cfg
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
