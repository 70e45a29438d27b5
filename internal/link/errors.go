package link

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/danmuck/awenet/internal/protocol"
)

var (
	ErrConnectFailed = errors.New("link: connect failed")
	ErrAcceptFailed  = errors.New("link: accept failed")
	ErrCancelled     = errors.New("link: cancelled")
	ErrDisconnected  = errors.New("link: disconnected")
	ErrIO            = errors.New("link: io error")
	ErrDecode        = errors.New("link: decode error")

	ErrNotIdle         = errors.New("link: another connection attempt or link is active")
	ErrNotConnected    = errors.New("link: not connected")
	ErrAddressRequired = errors.New("link: address required")
	ErrReservedKind    = errors.New("link: kind 0 is reserved for keepalive")
)

// ErrorCode categorizes every error a Transport returns or reports.
type ErrorCode int

const (
	CodeNone ErrorCode = iota
	CodeConnectFailed
	CodeAcceptFailed
	CodeCancelled
	CodeDisconnected
	CodeIOError
	CodeDecodeError
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeConnectFailed:
		return "connect_failed"
	case CodeAcceptFailed:
		return "accept_failed"
	case CodeCancelled:
		return "cancelled"
	case CodeDisconnected:
		return "disconnected"
	case CodeIOError:
		return "io_error"
	case CodeDecodeError:
		return "decode_error"
	default:
		return "unknown"
	}
}

// Code classifies err. Cancellation wins over every other category.
func Code(err error) ErrorCode {
	switch {
	case err == nil:
		return CodeNone
	case errors.Is(err, ErrCancelled):
		return CodeCancelled
	case errors.Is(err, ErrDecode):
		return CodeDecodeError
	case errors.Is(err, ErrDisconnected):
		return CodeDisconnected
	case errors.Is(err, ErrConnectFailed):
		return CodeConnectFailed
	case errors.Is(err, ErrAcceptFailed):
		return CodeAcceptFailed
	default:
		return CodeIOError
	}
}

// IsCancelled reports whether err came from a deliberate cancellation.
func IsCancelled(err error) bool {
	return Code(err) == CodeCancelled
}

// isPeerGone reports stream failures that end the connection for good.
func isPeerGone(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && !opErr.Timeout() {
		return true
	}
	return false
}

// isDesync reports decode failures after which the next frame boundary
// cannot be located. An oversized string is skipped by its declared length,
// so only an unknown kind qualifies.
func isDesync(err error) bool {
	return errors.Is(err, protocol.ErrUnknownKind)
}

func isCallerCancel(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}
