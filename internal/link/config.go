package link

import (
	"time"

	"github.com/danmuck/awenet/internal/dispatch"
	"github.com/danmuck/awenet/internal/wire"
	"github.com/rs/zerolog"
)

// Config defines transport behavior. The zero value is usable.
type Config struct {
	Limits wire.Limits
	// KeepaliveInterval sends a bare kind 0 frame on an idle write side.
	// Zero disables keepalives.
	KeepaliveInterval time.Duration
	// Dispatcher receives decoded frames and errors. A private one is
	// created when nil.
	Dispatcher *dispatch.Dispatcher
	Logger     *zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		Limits: wire.DefaultLimits(),
	}
}

func (c Config) WithDefaults() Config {
	if c.Limits.MaxStringBytes == 0 {
		c.Limits = wire.DefaultLimits()
	}
	if c.KeepaliveInterval < 0 {
		c.KeepaliveInterval = 0
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	if c.Dispatcher == nil {
		c.Dispatcher = dispatch.New(*c.Logger)
	}
	return c
}
