package link

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/danmuck/awenet/internal/observability"
	"github.com/danmuck/awenet/internal/protocol"
	"github.com/danmuck/awenet/internal/wire"
)

type loopKey struct{}

// loop is one receive-loop lifetime bound to one established conn.
type loop struct {
	conn   net.Conn
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (lp *loop) stop() {
	lp.cancel()
	_ = lp.conn.Close()
}

// owns reports whether ctx was derived from this loop's callback context.
func (lp *loop) owns(ctx context.Context) bool {
	v, _ := ctx.Value(loopKey{}).(*loop)
	return v == lp
}

// InReceiveLoop reports whether ctx was handed out by a receive loop.
func InReceiveLoop(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	_, ok := ctx.Value(loopKey{}).(*loop)
	return ok
}

// startLoopLocked starts the single receive loop for conn. t.mu must be
// held. A second start while one is active is a programming error.
func (t *Transport) startLoopLocked(conn net.Conn) {
	if t.loop != nil {
		panic("link: receive loop already running")
	}
	lp := &loop{
		conn: conn,
		done: make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	lp.ctx = context.WithValue(ctx, loopKey{}, lp)
	lp.cancel = cancel
	t.loop = lp
	go t.run(lp)
}

func (t *Transport) run(lp *loop) {
	defer close(lp.done)
	observability.LinkUp()
	defer observability.LinkDown()
	if t.cfg.KeepaliveInterval > 0 {
		kaDone := make(chan struct{})
		go func() {
			defer close(kaDone)
			t.keepalive(lp)
		}()
		defer func() {
			lp.cancel()
			<-kaDone
		}()
	}

	r := wire.NewReader(bufio.NewReader(lp.conn), t.cfg.Limits)
	cause := t.receive(lp, r)
	t.loopExited(lp, cause)
}

// receive runs until the loop is stopped (nil) or the link is lost.
func (t *Transport) receive(lp *loop, r *wire.Reader) error {
	for {
		if lp.ctx.Err() != nil {
			return nil
		}
		kind, err := protocol.ReadKind(r)
		if err != nil {
			if stop, cause := t.readFailed(lp, err, ErrIO); stop {
				return cause
			}
			continue
		}
		if kind == protocol.KindKeepalive {
			observability.RecordFrame(observability.DirectionReceived, keepaliveLabel)
			continue
		}
		msg, err := protocol.Decode(r, kind)
		if err != nil {
			if stop, cause := t.readFailed(lp, err, ErrDecode); stop {
				return cause
			}
			continue
		}
		if lp.ctx.Err() != nil {
			return nil
		}
		observability.RecordFrame(observability.DirectionReceived, kind.String())
		t.disp.Dispatch(lp.ctx, msg)
	}
}

// readFailed classifies a read error. It reports everything except a
// cancellation, and decides whether the loop has to end.
func (t *Transport) readFailed(lp *loop, err error, class error) (bool, error) {
	if lp.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
		return true, nil
	}
	var reported error
	stop := false
	switch {
	case isPeerGone(err):
		reported = fmt.Errorf("%w: %w", ErrDisconnected, err)
		stop = true
	case isDesync(err):
		reported = fmt.Errorf("%w: frame boundary lost: %w", ErrDecode, err)
		stop = true
	default:
		reported = fmt.Errorf("%w: %w", class, err)
	}
	t.log.Debug().Err(reported).Bool("fatal", stop).Msg("link: receive error")
	observability.RecordLinkError(Code(reported).String())
	t.disp.ReportError(lp.ctx, reported)
	if stop {
		return true, reported
	}
	return false, nil
}

// loopExited settles state when a loop ended on its own: Faulted when the
// link was lost, Idle when it was cancelled. A loop stopped by Reset leaves
// state to Reset.
func (t *Transport) loopExited(lp *loop, cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loop != lp {
		return
	}
	t.loop = nil
	_ = lp.conn.Close()
	if t.conn == lp.conn {
		t.conn = nil
	}
	if cause == nil {
		t.state = StateIdle
		t.role = RoleNone
		t.log.Debug().Msg("link: receive loop cancelled")
		return
	}
	t.state = StateFaulted
	t.fault = cause
	t.log.Debug().Err(cause).Msg("link: receive loop exited")
}

func (t *Transport) keepalive(lp *loop) {
	ticker := time.NewTicker(t.cfg.KeepaliveInterval)
	defer ticker.Stop()
	frame := protocol.MarshalKeepalive()
	for {
		select {
		case <-lp.ctx.Done():
			return
		case <-ticker.C:
			t.wmu.Lock()
			err := wire.WriteFull(lp.conn, frame)
			t.wmu.Unlock()
			if err != nil {
				return
			}
			observability.RecordFrame(observability.DirectionSent, keepaliveLabel)
		}
	}
}
