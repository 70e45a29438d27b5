package link

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/danmuck/awenet/internal/protocol"
	"github.com/danmuck/awenet/internal/wire"
)

func TestCodeClassification(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorCode
	}{
		{nil, CodeNone},
		{fmt.Errorf("%w: %w", ErrConnectFailed, syscall.ECONNREFUSED), CodeConnectFailed},
		{fmt.Errorf("%w: %w", ErrAcceptFailed, errors.New("bind")), CodeAcceptFailed},
		{fmt.Errorf("%w: %w", ErrCancelled, net.ErrClosed), CodeCancelled},
		{fmt.Errorf("%w: %w", ErrDisconnected, io.EOF), CodeDisconnected},
		{fmt.Errorf("%w: %w", ErrDecode, wire.ErrStringTooLarge), CodeDecodeError},
		{fmt.Errorf("%w: %w", ErrIO, ErrNotConnected), CodeIOError},
		{errors.New("anything else"), CodeIOError},
	}
	for _, tc := range cases {
		if got := Code(tc.err); got != tc.want {
			t.Fatalf("Code(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestPeerGoneClassification(t *testing.T) {
	for _, err := range []error{io.EOF, io.ErrUnexpectedEOF, syscall.ECONNRESET, syscall.EPIPE} {
		if !isPeerGone(fmt.Errorf("wrapped: %w", err)) {
			t.Fatalf("expected %v to end the link", err)
		}
	}
	if isPeerGone(errors.New("transient")) {
		t.Fatalf("plain error must not end the link")
	}
	timeout := &net.OpError{Op: "read", Err: timeoutErr{}}
	if isPeerGone(timeout) {
		t.Fatalf("timeouts must not end the link")
	}
}

func TestDesyncClassification(t *testing.T) {
	if !isDesync(fmt.Errorf("x: %w", protocol.ErrUnknownKind)) {
		t.Fatalf("unknown kind must desync")
	}
	if isDesync(fmt.Errorf("x: %w", wire.ErrStringTooLarge)) {
		t.Fatalf("oversized string is skipped, not a desync")
	}
	if isDesync(io.EOF) {
		t.Fatalf("eof is not a desync")
	}
}

func TestStringers(t *testing.T) {
	if RoleServer.String() != "server" || StateAccepting.String() != "accepting" {
		t.Fatalf("unexpected names")
	}
	if CodeDecodeError.String() != "decode_error" {
		t.Fatalf("unexpected code name: %s", CodeDecodeError)
	}
	if !StateConnecting.Pending() || StateEstablished.Pending() {
		t.Fatalf("Pending mismatch")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
