package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/danmuck/awenet/internal/admin"
	"github.com/danmuck/awenet/internal/config"
	"github.com/danmuck/awenet/internal/link"
	"github.com/danmuck/awenet/internal/lobby"
	"github.com/danmuck/awenet/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
)

const configEnv = "AWENET_CONFIG"

func newApp(in io.Reader, out io.Writer) *cli.App {
	g := &globals{}
	return &cli.App{
		Name:      "awectl",
		Usage:     "two-peer lobby chat over a framed TCP link",
		Writer:    out,
		Reader:    in,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to a TOML config file (default ~/.config/awenet/awectl.toml when present)",
				EnvVars:     []string{configEnv},
				Destination: &g.configPath,
			},
			&cli.StringFlag{
				Name:        "admin-addr",
				Usage:       "serve the admin HTTP API and /metrics on this address, e.g. 127.0.0.1:9467",
				EnvVars:     []string{"AWENET_ADMIN_ADDR"},
				Destination: &g.adminAddr,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "trace, debug, info, warn, error or off",
				EnvVars:     []string{logging.EnvLogLevel},
				Destination: &g.logLevel,
			},
		},
		Before: func(c *cli.Context) error {
			logging.ConfigureRuntime()
			if g.logLevel != "" && !logging.SetLevel(g.logLevel) {
				return fmt.Errorf("unknown log level %q", g.logLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			hostCmd(g),
			joinCmd(g),
			configCmd(),
		},
	}
}

func hostCmd(g *globals) *cli.Command {
	var port uint
	return &cli.Command{
		Name:  "host",
		Usage: "wait for one peer to join",
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "port", Aliases: []string{"p"}, Usage: "port to accept on", Destination: &port},
		},
		Action: func(c *cli.Context) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if c.IsSet("port") {
				if cfg.Port, err = portValue(port); err != nil {
					return err
				}
			}
			sh, stop, err := g.session(c, cfg)
			if err != nil {
				return err
			}
			defer stop()
			fmt.Fprintf(c.App.Writer, "* waiting for a peer on port %d (Ctrl-C cancels)\n", cfg.Port)
			return sh.run(c.Context, func() error {
				return sh.lobby.Host(c.Context, cfg.Port)
			})
		},
	}
}

func joinCmd(g *globals) *cli.Command {
	var (
		address string
		port    uint
	)
	return &cli.Command{
		Name:  "join",
		Usage: "connect to a hosting peer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "host to connect to", Destination: &address},
			&cli.UintFlag{Name: "port", Aliases: []string{"p"}, Usage: "port to connect to", Destination: &port},
		},
		Action: func(c *cli.Context) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if c.IsSet("address") {
				cfg.Address = strings.TrimSpace(address)
			}
			if c.IsSet("port") {
				if cfg.Port, err = portValue(port); err != nil {
					return err
				}
			}
			sh, stop, err := g.session(c, cfg)
			if err != nil {
				return err
			}
			defer stop()
			fmt.Fprintf(c.App.Writer, "* connecting to %s:%d (Ctrl-C cancels)\n", cfg.Address, cfg.Port)
			return sh.run(c.Context, func() error {
				return sh.lobby.Join(c.Context, cfg.Address, cfg.Port)
			})
		},
	}
}

func configCmd() *cli.Command {
	var (
		path      string
		profile   string
		overwrite bool
	)
	return &cli.Command{
		Name:  "config",
		Usage: "config file helpers",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "write a starter config",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Value: "awectl.toml", Destination: &path},
					&cli.StringFlag{Name: "profile", Value: "join", Usage: "host or join", Destination: &profile},
					&cli.BoolFlag{Name: "force", Destination: &overwrite},
				},
				Action: func(c *cli.Context) error {
					if err := config.WriteTemplate(path, profile, overwrite); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
					return nil
				},
			},
			{
				Name:      "validate",
				Usage:     "load a config and report problems",
				ArgsUsage: "<path>",
				Action: func(c *cli.Context) error {
					target := c.Args().First()
					if target == "" {
						return fmt.Errorf("config validate: path required")
					}
					cfg, err := config.Load(target)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "ok: address=%s port=%d max_frame_bytes=%d keepalive=%s\n",
						cfg.Address, cfg.Port, cfg.MaxFrameBytes, cfg.Keepalive)
					return nil
				},
			},
		},
	}
}

// globals holds the app-level flags shared by every command.
type globals struct {
	configPath string
	logLevel   string
	adminAddr  string
}

// load reads the config file, falling back to the default path when it
// exists. The file's log_level applies only when neither the flag nor the
// environment set one.
func (g *globals) load() (config.Config, error) {
	cfg := config.DefaultConfig()
	if path := config.Resolve(strings.TrimSpace(g.configPath)); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
		if g.logLevel == "" {
			logging.SetLevel(cfg.LogLevel)
		}
	}
	return cfg, nil
}

// session builds the shell and, when an admin address is configured, the
// admin server over the same lobby. stop tears both down.
func (g *globals) session(c *cli.Context, cfg config.Config) (*shell, func(), error) {
	sh, err := newShell(c.App.Reader, c.App.Writer, cfg)
	if err != nil {
		return nil, nil, err
	}
	addr := g.adminAddr
	if addr == "" {
		addr = cfg.AdminAddr
	}
	if addr == "" {
		return sh, sh.close, nil
	}
	gin.SetMode(gin.ReleaseMode)
	srv := admin.New(sh.lobby, logging.New("admin"), cfg.CORSOrigins)
	if err := srv.Start(addr); err != nil {
		sh.close()
		return nil, nil, err
	}
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		sh.close()
	}
	return sh, stop, nil
}

func portValue(v uint) (uint16, error) {
	if v > 65535 {
		return 0, fmt.Errorf("port out of range: %d", v)
	}
	return uint16(v), nil
}

func newLobby(cfg config.Config) (*lobby.Lobby, error) {
	log := logging.New("awectl")
	lc := cfg.LinkConfig()
	lc.Logger = &log
	return lobby.New(lobby.Config{
		Link:   link.New(lc),
		Logger: &log,
	})
}
