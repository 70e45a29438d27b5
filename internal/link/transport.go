package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/awenet/internal/dispatch"
	"github.com/danmuck/awenet/internal/observability"
	"github.com/danmuck/awenet/internal/protocol"
	"github.com/danmuck/awenet/internal/wire"
	"github.com/rs/zerolog"
)

// Transport owns one TCP connection in either the server or client role.
// All methods are safe for concurrent use.
type Transport struct {
	cfg  Config
	disp *dispatch.Dispatcher
	log  zerolog.Logger

	mu        sync.Mutex
	state     State
	role      Role
	conn      net.Conn
	ln        net.Listener
	gen       uint64
	cancel    context.CancelFunc
	cancelled bool
	loop      *loop
	fault     error

	// wmu serializes writers; reads proceed independently.
	wmu sync.Mutex
}

func New(cfg Config) *Transport {
	cfg = cfg.WithDefaults()
	return &Transport{
		cfg:  cfg,
		disp: cfg.Dispatcher,
		log:  cfg.Logger.With().Str("component", "link").Logger(),
	}
}

func (t *Transport) Dispatcher() *dispatch.Dispatcher {
	return t.disp
}

// OnError subscribes fn to receive-loop failures.
func (t *Transport) OnError(fn dispatch.ErrorHandler) *dispatch.Subscription {
	return t.disp.OnError(fn)
}

func (t *Transport) Role() Role {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.role
}

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Fault returns the error that moved the transport to Faulted, if any.
func (t *Transport) Fault() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fault
}

// RemoteAddr returns the peer address while Established.
func (t *Transport) RemoteAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.RemoteAddr()
}

// ListenAddr returns the bound acceptor address while Accepting.
func (t *Transport) ListenAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}

// Connect dials host:port and blocks until the connection is established,
// fails, or is cancelled via CancelPending, Reset, or ctx.
func (t *Transport) Connect(ctx context.Context, host string, port uint16) (err error) {
	defer recordAttempt(RoleClient, time.Now(), &err)
	host = strings.TrimSpace(host)
	if host == "" {
		return fmt.Errorf("%w: %w", ErrConnectFailed, ErrAddressRequired)
	}
	pctx, gen, err := t.begin(ctx, StateConnecting)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	t.log.Debug().Str("addr", addr).Msg("link: connecting")

	var d net.Dialer
	conn, err := d.DialContext(pctx, "tcp", addr)
	if err != nil {
		return t.fail(pctx, gen, ErrConnectFailed, err)
	}
	return t.establish(conn, RoleClient, gen)
}

// Accept binds the wildcard address on port and blocks until one peer
// connects, the attempt fails, or it is cancelled via CancelPending,
// Reset, or ctx. The acceptor is closed once the peer is accepted.
func (t *Transport) Accept(ctx context.Context, port uint16) (err error) {
	defer recordAttempt(RoleServer, time.Now(), &err)
	pctx, gen, err := t.begin(ctx, StateAccepting)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAcceptFailed, err)
	}
	addr := net.JoinHostPort("", strconv.Itoa(int(port)))

	var lc net.ListenConfig
	ln, err := lc.Listen(pctx, "tcp", addr)
	if err != nil {
		return t.fail(pctx, gen, ErrAcceptFailed, err)
	}
	t.mu.Lock()
	if t.gen == gen {
		t.ln = ln
	}
	t.mu.Unlock()
	t.log.Debug().Str("addr", ln.Addr().String()).Msg("link: accepting")

	// Closing the acceptor is the only way to unblock Accept.
	stop := context.AfterFunc(pctx, func() { _ = ln.Close() })
	conn, err := ln.Accept()
	stop()
	_ = ln.Close()
	t.mu.Lock()
	if t.ln == ln {
		t.ln = nil
	}
	t.mu.Unlock()
	if err != nil {
		return t.fail(pctx, gen, ErrAcceptFailed, err)
	}
	return t.establish(conn, RoleServer, gen)
}

// CancelPending aborts an outstanding Connect or Accept, which then
// returns an ErrCancelled error. It is a no-op when nothing is pending.
func (t *Transport) CancelPending() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.Pending() || t.cancel == nil {
		return
	}
	t.cancelled = true
	t.cancel()
	if t.ln != nil {
		_ = t.ln.Close()
	}
	t.log.Debug().Str("state", t.state.String()).Msg("link: pending attempt cancelled")
}

// Reset stops the receive loop, closes the socket and acceptor, and
// returns the transport to Idle with RoleNone. It waits for the receive
// loop to exit unless ctx was handed to a callback by that same loop, or
// ctx ends first. Reset never fails and repeated calls are no-ops.
func (t *Transport) Reset(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	t.mu.Lock()
	t.gen++
	if t.cancel != nil {
		t.cancelled = true
		t.cancel()
		t.cancel = nil
	}
	lp := t.loop
	t.loop = nil
	if lp != nil {
		lp.stop()
	}
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	if t.ln != nil {
		_ = t.ln.Close()
		t.ln = nil
	}
	prev := t.state
	t.state = StateIdle
	t.role = RoleNone
	t.fault = nil
	t.mu.Unlock()

	if prev != StateIdle {
		t.log.Debug().Str("from", prev.String()).Msg("link: reset")
	}
	if lp == nil || lp.owns(ctx) {
		return
	}
	select {
	case <-lp.done:
	case <-ctx.Done():
	}
}

// Close resets the transport and waits for the receive loop.
func (t *Transport) Close() error {
	t.Reset(context.Background())
	return nil
}

// Send writes msg as one frame under the write lock.
func (t *Transport) Send(msg protocol.Message) error {
	return t.SendAll(msg)
}

// SendAll writes every msg back to back under a single write lock hold.
func (t *Transport) SendAll(msgs ...protocol.Message) error {
	var out []byte
	for _, msg := range msgs {
		if msg == nil {
			return fmt.Errorf("%w: %w", ErrIO, protocol.ErrNilMessage)
		}
		if msg.Kind() == protocol.KindKeepalive {
			return ErrReservedKind
		}
		b, err := protocol.Marshal(msg)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		out = append(out, b...)
	}
	if err := t.write(out); err != nil {
		return err
	}
	for _, msg := range msgs {
		observability.RecordFrame(observability.DirectionSent, msg.Kind().String())
	}
	return nil
}

// SendKeepalive writes a bare kind 0 prefix.
func (t *Transport) SendKeepalive() error {
	if err := t.write(protocol.MarshalKeepalive()); err != nil {
		return err
	}
	observability.RecordFrame(observability.DirectionSent, keepaliveLabel)
	return nil
}

func (t *Transport) write(b []byte) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	t.mu.Lock()
	conn := t.conn
	established := t.state == StateEstablished
	t.mu.Unlock()
	if conn == nil || !established {
		return fmt.Errorf("%w: %w", ErrIO, ErrNotConnected)
	}
	if err := wire.WriteFull(conn, b); err != nil {
		return t.classifyWrite(err)
	}
	observability.RecordSentBytes(len(b))
	return nil
}

const keepaliveLabel = "keepalive"

func recordAttempt(role Role, start time.Time, err *error) {
	result := "ok"
	switch {
	case *err == nil:
	case IsCancelled(*err):
		result = "cancelled"
	default:
		result = "failed"
	}
	observability.RecordAttempt(role.String(), result, time.Since(start))
}

func (t *Transport) classifyWrite(err error) error {
	switch {
	case errors.Is(err, net.ErrClosed):
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	case isPeerGone(err):
		return fmt.Errorf("%w: %w", ErrDisconnected, err)
	default:
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
}

func (t *Transport) begin(ctx context.Context, pending State) (context.Context, uint64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateIdle {
		return nil, 0, fmt.Errorf("%w: state=%s", ErrNotIdle, t.state)
	}
	pctx, cancel := context.WithCancel(ctx)
	t.state = pending
	t.cancel = cancel
	t.cancelled = false
	t.fault = nil
	return pctx, t.gen, nil
}

// fail settles a pending attempt that did not produce a connection.
func (t *Transport) fail(pctx context.Context, gen uint64, class error, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		return fmt.Errorf("%w: %w", ErrCancelled, cause)
	}
	cancelled := t.cancelled || isCallerCancel(pctx)
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.ln != nil {
		_ = t.ln.Close()
		t.ln = nil
	}
	if cancelled {
		t.cancelled = false
		t.state = StateIdle
		t.log.Debug().Err(cause).Msg("link: attempt cancelled")
		return fmt.Errorf("%w: %w", ErrCancelled, cause)
	}
	err := fmt.Errorf("%w: %w", class, cause)
	t.state = StateFaulted
	t.fault = err
	t.log.Debug().Err(err).Msg("link: attempt failed")
	return err
}

func (t *Transport) establish(conn net.Conn, role Role, gen uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen || t.cancelled {
		_ = conn.Close()
		if t.gen == gen {
			t.cancelled = false
			t.state = StateIdle
			if t.cancel != nil {
				t.cancel()
				t.cancel = nil
			}
		}
		return fmt.Errorf("%w: connection dropped after cancel", ErrCancelled)
	}
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.conn = conn
	t.role = role
	t.state = StateEstablished
	t.startLoopLocked(conn)
	t.log.Debug().
		Str("role", role.String()).
		Str("remote", conn.RemoteAddr().String()).
		Msg("link: established")
	return nil
}
