package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/awenet/internal/config"
	"github.com/danmuck/awenet/internal/link"
	"github.com/danmuck/awenet/internal/lobby"
)

var errQuit = errors.New("quit")

const linkPollInterval = 100 * time.Millisecond

type commandKind int

const (
	cmdChat commandKind = iota
	cmdReady
	cmdUnready
	cmdStart
	cmdStop
	cmdStatus
	cmdHelp
	cmdQuit
)

type command struct {
	kind commandKind
	text string
	seed uint32
	// hasSeed is false when /start was given no seed.
	hasSeed bool
}

// parseCommand turns one input line into a command. Lines that do not
// start with a slash are chat.
func parseCommand(line string) (command, error) {
	line = strings.TrimRight(line, "\r\n")
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return command{kind: cmdChat, text: line}, nil
	}
	fields := strings.Fields(trimmed)
	switch strings.ToLower(fields[0]) {
	case "/ready":
		return command{kind: cmdReady}, nil
	case "/unready":
		return command{kind: cmdUnready}, nil
	case "/stop":
		return command{kind: cmdStop}, nil
	case "/status":
		return command{kind: cmdStatus}, nil
	case "/help", "/?":
		return command{kind: cmdHelp}, nil
	case "/quit", "/exit":
		return command{kind: cmdQuit}, nil
	case "/start":
		cmd := command{kind: cmdStart}
		if len(fields) > 1 {
			v, err := strconv.ParseUint(fields[1], 10, 32)
			if err != nil {
				return command{}, fmt.Errorf("invalid seed %q", fields[1])
			}
			cmd.seed = uint32(v)
			cmd.hasSeed = true
		}
		return cmd, nil
	default:
		return command{}, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
}

type shell struct {
	lobby *lobby.Lobby
	in    io.Reader
	cfg   config.Config

	mu      sync.Mutex
	out     io.Writer
	unwatch func()
}

func newShell(in io.Reader, out io.Writer, cfg config.Config) (*shell, error) {
	l, err := newLobby(cfg)
	if err != nil {
		return nil, err
	}
	sh := &shell{lobby: l, in: in, out: out, cfg: cfg}
	sh.unwatch = l.Chat().Watch(sh.printRecord)
	return sh, nil
}

func (s *shell) close() {
	s.unwatch()
	_ = s.lobby.Close()
	_ = s.lobby.Link().Close()
}

// run performs the connect or accept attempt, then feeds input lines to
// the lobby until /quit, end of input, or ctx ends.
func (s *shell) run(ctx context.Context, attempt func() error) error {
	if err := attempt(); err != nil {
		if link.IsCancelled(err) {
			s.println("* cancelled")
			return nil
		}
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		r := bufio.NewReader(s.in)
		for {
			line, err := r.ReadString('\n')
			if line != "" {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	defer s.lobby.Leave(context.Background())
	tick := time.NewTicker(linkPollInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if s.lobby.Link().State() != link.StateEstablished {
				s.println("* link closed")
				return nil
			}
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := s.handle(line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				s.println("! " + err.Error())
			}
			if s.lobby.Link().State() != link.StateEstablished {
				s.println("* link closed")
				return nil
			}
		}
	}
}

func (s *shell) handle(line string) error {
	cmd, err := parseCommand(line)
	if err != nil {
		return err
	}
	switch cmd.kind {
	case cmdChat:
		if strings.TrimSpace(cmd.text) == "" {
			return nil
		}
		return s.lobby.SendChat(cmd.text)
	case cmdReady:
		return s.lobby.SetReady(true)
	case cmdUnready:
		return s.lobby.SetReady(false)
	case cmdStart:
		seed := s.cfg.Seed
		if cmd.hasSeed {
			seed = cmd.seed
		}
		if seed == 0 {
			seed = rand.Uint32()
		}
		return s.lobby.StartGame(seed)
	case cmdStop:
		return s.lobby.StopGame()
	case cmdStatus:
		s.printStatus()
		return nil
	case cmdHelp:
		s.println(helpText)
		return nil
	case cmdQuit:
		return errQuit
	}
	return nil
}

func (s *shell) printRecord(rec lobby.Record) {
	stamp := rec.At.Format("15:04:05")
	switch rec.Kind {
	case lobby.RecordSend:
		s.println(fmt.Sprintf("[%s] you: %s", stamp, rec.Text))
	case lobby.RecordRecv:
		s.println(fmt.Sprintf("[%s] peer: %s", stamp, rec.Text))
	default:
		s.println(fmt.Sprintf("[%s] * %s", stamp, rec.Text))
	}
}

func (s *shell) printStatus() {
	st := s.lobby.Status()
	s.println(fmt.Sprintf("* role=%s state=%s phase=%s seat=%d ready=%v seed=%d",
		st.Role, st.State, st.Phase, st.LocalSeat, st.Ready, st.Seed))
}

func (s *shell) println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, line)
}

const helpText = `commands:
  <text>        send chat
  /ready        mark this seat ready
  /unready      clear this seat's ready flag
  /start [seed] start the game (host, all seats ready)
  /stop         stop the running game
  /status       show link and lobby state
  /quit         leave`
