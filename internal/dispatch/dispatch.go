// Package dispatch routes decoded messages to subscribers.
//
// Ownership boundary:
// - per-kind subscriber registry in registration order
// - the error channel, separate from per-kind dispatch
// - isolation of subscriber panics from the caller
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/awenet/internal/protocol"
	"github.com/rs/zerolog"
)

var ErrHandlerPanic = errors.New("dispatch: handler panicked")

// Handler receives one decoded message. It runs on the dispatching
// goroutine and must not block.
type Handler func(ctx context.Context, msg protocol.Message)

// ErrorHandler receives transport and decode failures.
type ErrorHandler func(ctx context.Context, err error)

type entry struct {
	id uint64
	fn Handler
}

type errEntry struct {
	id uint64
	fn ErrorHandler
}

// Dispatcher is safe for concurrent Register/Unregister/Dispatch.
// Callbacks run outside the registry lock, so they may register or
// unregister (including themselves) without deadlocking.
type Dispatcher struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[protocol.Kind][]entry
	errs   []errEntry
	log    zerolog.Logger
}

func New(log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		subs: make(map[protocol.Kind][]entry),
		log:  log,
	}
}

// Subscription is the handle returned by a registration. Closing it
// unregisters exactly that callback; closing twice is a no-op.
type Subscription struct {
	d     *Dispatcher
	id    uint64
	kind  protocol.Kind
	isErr bool
	once  sync.Once
}

func (s *Subscription) Close() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		s.d.remove(s)
	})
	return nil
}

// Kind returns the subscribed kind. It is meaningless for error subscriptions.
func (s *Subscription) Kind() protocol.Kind {
	return s.kind
}

// Register appends fn to the subscribers of kind.
func (d *Dispatcher) Register(kind protocol.Kind, fn Handler) *Subscription {
	if fn == nil {
		panic("dispatch: nil handler")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.subs[kind] = append(d.subs[kind], entry{id: d.nextID, fn: fn})
	return &Subscription{d: d, id: d.nextID, kind: kind}
}

// OnError appends fn to the error subscribers.
func (d *Dispatcher) OnError(fn ErrorHandler) *Subscription {
	if fn == nil {
		panic("dispatch: nil error handler")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.errs = append(d.errs, errEntry{id: d.nextID, fn: fn})
	return &Subscription{d: d, id: d.nextID, isErr: true}
}

// Unregister is equivalent to sub.Close().
func (d *Dispatcher) Unregister(sub *Subscription) {
	if sub == nil || sub.d != d {
		return
	}
	_ = sub.Close()
}

func (d *Dispatcher) remove(s *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.isErr {
		for i, e := range d.errs {
			if e.id == s.id {
				d.errs = append(d.errs[:i:i], d.errs[i+1:]...)
				return
			}
		}
		return
	}
	list := d.subs[s.kind]
	for i, e := range list {
		if e.id == s.id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(d.subs, s.kind)
		return
	}
	d.subs[s.kind] = list
}

// Count returns the number of subscribers for kind.
func (d *Dispatcher) Count(kind protocol.Kind) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[kind])
}

// Dispatch invokes every subscriber of msg.Kind() in registration order
// on the calling goroutine and returns how many were invoked. A panicking
// subscriber is reported on the error channel and the rest still run.
func (d *Dispatcher) Dispatch(ctx context.Context, msg protocol.Message) int {
	if msg == nil {
		return 0
	}
	kind := msg.Kind()
	d.mu.RLock()
	list := append([]entry(nil), d.subs[kind]...)
	d.mu.RUnlock()

	for _, e := range list {
		if err := d.call(ctx, e.fn, msg); err != nil {
			d.ReportError(ctx, err)
		}
	}
	return len(list)
}

// ReportError invokes every error subscriber in registration order.
func (d *Dispatcher) ReportError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	d.mu.RLock()
	list := append([]errEntry(nil), d.errs...)
	d.mu.RUnlock()

	if len(list) == 0 {
		d.log.Debug().Err(err).Msg("dispatch: error with no subscribers")
		return
	}
	for _, e := range list {
		d.callErr(ctx, e.fn, err)
	}
}

func (d *Dispatcher) call(ctx context.Context, fn Handler, msg protocol.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: kind=%s: %v", ErrHandlerPanic, msg.Kind(), r)
			d.log.Warn().Err(err).Msg("dispatch: recovered handler panic")
		}
	}()
	fn(ctx, msg)
	return nil
}

func (d *Dispatcher) callErr(ctx context.Context, fn ErrorHandler, reported error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Warn().
				Str("reported", reported.Error()).
				Interface("panic", r).
				Msg("dispatch: recovered error handler panic")
		}
	}()
	fn(ctx, reported)
}

// Subscribe registers a typed callback for the kind of T. T must be one
// of the value payload types (protocol.Chat, protocol.PlayerStatus, ...).
func Subscribe[T protocol.Message](d *Dispatcher, fn func(ctx context.Context, msg T)) *Subscription {
	var zero T
	return d.Register(zero.Kind(), func(ctx context.Context, msg protocol.Message) {
		if m, ok := msg.(T); ok {
			fn(ctx, m)
		}
	})
}
