package lobby

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/danmuck/awenet/internal/dispatch"
	"github.com/danmuck/awenet/internal/link"
	"github.com/danmuck/awenet/internal/protocol"
	"github.com/rs/zerolog"
)

// Seats are fixed: the accepting side plays seat 0, the connecting side 1.
const (
	SeatServer = 0
	SeatClient = 1
	NoSeat     = -1
	SeatCount  = 2
)

var (
	ErrLinkRequired = errors.New("lobby: link required")
	ErrEmptyMessage = errors.New("lobby: empty chat message")
	ErrNoSeat       = errors.New("lobby: not connected to a peer")
	ErrCannotStart  = errors.New("lobby: game cannot start")
	ErrNotStarted   = errors.New("lobby: game not started")
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhasePreparing
	PhaseStarted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreparing:
		return "preparing"
	case PhaseStarted:
		return "started"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

type Config struct {
	Link       *link.Transport
	Logger     *zerolog.Logger
	MaxRecords int
}

// Status is a point-in-time view for rendering.
type Status struct {
	Role      link.Role
	State     link.State
	Phase     Phase
	LocalSeat int
	Ready     [SeatCount]bool
	Seed      uint32
}

// Lobby binds the chat log and ready board to one link. Link callbacks
// run on the receive loop; all lobby state is guarded by mu.
type Lobby struct {
	link *link.Transport
	log  zerolog.Logger
	chat *ChatLog

	mu    sync.Mutex
	phase Phase
	ready [SeatCount]bool
	seed  uint32

	// lost is set by the first failure reported for the current link.
	lost atomic.Bool

	subs []*dispatch.Subscription
}

func New(cfg Config) (*Lobby, error) {
	if cfg.Link == nil {
		return nil, ErrLinkRequired
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	l := &Lobby{
		link: cfg.Link,
		log:  log.With().Str("component", "lobby").Logger(),
		chat: NewChatLog(cfg.MaxRecords),
	}
	d := cfg.Link.Dispatcher()
	l.subs = append(l.subs,
		dispatch.Subscribe(d, l.onChat),
		dispatch.Subscribe(d, l.onPlayerStatus),
		dispatch.Subscribe(d, l.onGameStart),
		dispatch.Subscribe(d, l.onGameStop),
		cfg.Link.OnError(l.onLinkError),
	)
	return l, nil
}

// Close detaches the lobby from the link dispatcher.
func (l *Lobby) Close() error {
	for _, sub := range l.subs {
		_ = sub.Close()
	}
	l.subs = nil
	return nil
}

func (l *Lobby) Chat() *ChatLog {
	return l.chat
}

func (l *Lobby) Link() *link.Transport {
	return l.link
}

// Host accepts one peer on port.
func (l *Lobby) Host(ctx context.Context, port uint16) error {
	l.lost.Store(false)
	err := l.link.Accept(ctx, port)
	if err != nil {
		return l.attemptFailed(err)
	}
	l.enterPreparing()
	l.chat.Add(RecordNotice, fmt.Sprintf("Accepted %s", addrString(l.link.RemoteAddr())))
	return nil
}

// Join connects to a hosting peer.
func (l *Lobby) Join(ctx context.Context, host string, port uint16) error {
	l.lost.Store(false)
	err := l.link.Connect(ctx, host, port)
	if err != nil {
		return l.attemptFailed(err)
	}
	l.enterPreparing()
	l.chat.Add(RecordNotice, fmt.Sprintf("Connected to %s", addrString(l.link.RemoteAddr())))
	return nil
}

// Cancel aborts a pending Host or Join.
func (l *Lobby) Cancel() {
	l.link.CancelPending()
}

// Leave drops the link and clears the board.
func (l *Lobby) Leave(ctx context.Context) {
	was := l.link.State()
	l.link.Reset(ctx)
	l.clear()
	if was != link.StateIdle {
		l.chat.Add(RecordNotice, "Disconnected")
	}
}

func (l *Lobby) attemptFailed(err error) error {
	if link.IsCancelled(err) {
		l.log.Debug().Err(err).Msg("lobby: attempt cancelled")
		return err
	}
	l.chat.Add(RecordNotice, fmt.Sprintf("Connection error: %v", err))
	// A failed attempt leaves the link faulted; the lobby is ready to retry.
	l.link.Reset(context.Background())
	return err
}

// LocalSeat derives this side's seat from the link role.
func (l *Lobby) LocalSeat() int {
	switch l.link.Role() {
	case link.RoleServer:
		return SeatServer
	case link.RoleClient:
		return SeatClient
	default:
		return NoSeat
	}
}

// SendChat sends text to the peer and records it on success.
func (l *Lobby) SendChat(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if err := l.link.Send(protocol.Chat{Text: text}); err != nil {
		l.sendFailed(err)
		return err
	}
	l.chat.Add(RecordSend, text)
	return nil
}

// SetReady announces this seat's ready flag.
func (l *Lobby) SetReady(ready bool) error {
	seat := l.LocalSeat()
	if seat == NoSeat {
		return ErrNoSeat
	}
	if err := l.link.Send(protocol.NewPlayerStatus(int32(seat), ready)); err != nil {
		l.sendFailed(err)
		return err
	}
	l.mu.Lock()
	l.ready[seat] = ready
	l.mu.Unlock()
	return nil
}

// CanStart reports whether this side may start the game: it hosts and
// every seat is ready.
func (l *Lobby) CanStart() bool {
	if l.link.Role() != link.RoleServer {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase != PhasePreparing {
		return false
	}
	for _, r := range l.ready {
		if !r {
			return false
		}
	}
	return true
}

// StartGame sends GameStart with seed and enters PhaseStarted.
func (l *Lobby) StartGame(seed uint32) error {
	if !l.CanStart() {
		return ErrCannotStart
	}
	if err := l.link.Send(protocol.GameStart{Seed: seed}); err != nil {
		l.sendFailed(err)
		return err
	}
	l.mu.Lock()
	l.phase = PhaseStarted
	l.seed = seed
	l.mu.Unlock()
	l.chat.Add(RecordNotice, fmt.Sprintf("Game started (seed %d)", seed))
	return nil
}

// StopGame sends GameStop and returns both sides to preparing.
func (l *Lobby) StopGame() error {
	l.mu.Lock()
	started := l.phase == PhaseStarted
	l.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	if err := l.link.Send(protocol.GameStop{}); err != nil {
		l.sendFailed(err)
		return err
	}
	l.stopped()
	l.chat.Add(RecordNotice, "Game stopped")
	return nil
}

func (l *Lobby) Status() Status {
	st := Status{
		Role:      l.link.Role(),
		State:     l.link.State(),
		LocalSeat: l.LocalSeat(),
	}
	l.mu.Lock()
	st.Phase = l.phase
	st.Ready = l.ready
	st.Seed = l.seed
	l.mu.Unlock()
	return st
}

func (l *Lobby) sendFailed(err error) {
	if errors.Is(err, link.ErrNotConnected) {
		return
	}
	l.link.Dispatcher().ReportError(context.Background(), err)
}

func (l *Lobby) onChat(ctx context.Context, msg protocol.Chat) {
	l.chat.Add(RecordRecv, msg.Text)
}

func (l *Lobby) onPlayerStatus(ctx context.Context, msg protocol.PlayerStatus) {
	l.enterPreparing()
	if msg.PlayerID < 0 || msg.PlayerID >= SeatCount {
		l.log.Warn().Int32("player_id", msg.PlayerID).Msg("lobby: status for unknown seat")
		return
	}
	// Only this side sets its own seat.
	if int(msg.PlayerID) == l.LocalSeat() {
		l.log.Warn().Int32("player_id", msg.PlayerID).Msg("lobby: peer status for local seat ignored")
		return
	}
	l.mu.Lock()
	l.ready[msg.PlayerID] = msg.IsReady()
	l.mu.Unlock()
}

func (l *Lobby) onGameStart(ctx context.Context, msg protocol.GameStart) {
	l.mu.Lock()
	l.phase = PhaseStarted
	l.seed = msg.Seed
	l.mu.Unlock()
	l.chat.Add(RecordNotice, fmt.Sprintf("Game started by host (seed %d)", msg.Seed))
}

func (l *Lobby) onGameStop(ctx context.Context, msg protocol.GameStop) {
	l.stopped()
	l.chat.Add(RecordNotice, "Game stopped by peer")
}

// onLinkError mirrors the link failure into the chat log and resets. A
// failed send and the receive loop can both report the same loss; only the
// first is handled.
func (l *Lobby) onLinkError(ctx context.Context, err error) {
	code := link.Code(err)
	if code == link.CodeCancelled {
		return
	}
	if !l.lost.CompareAndSwap(false, true) {
		l.log.Debug().Err(err).Msg("lobby: link error after loss ignored")
		return
	}
	l.log.Info().Err(err).Str("code", code.String()).Msg("lobby: link error")
	l.chat.Add(RecordNotice, fmt.Sprintf("Error: %v", err))
	l.link.Reset(ctx)
	l.clear()
}

// enterPreparing runs after the receive loop started, so peer updates
// that already arrived are kept.
func (l *Lobby) enterPreparing() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase == PhaseIdle {
		l.phase = PhasePreparing
	}
}

func (l *Lobby) stopped() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase == PhaseStarted {
		l.phase = PhasePreparing
	}
	l.ready = [SeatCount]bool{}
}

func (l *Lobby) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.phase = PhaseIdle
	l.ready = [SeatCount]bool{}
	l.seed = 0
}

func addrString(a interface{ String() string }) string {
	if a == nil {
		return "<unknown>"
	}
	return a.String()
}
