package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"testing/iotest"
)

// trickleWriter accepts at most one byte per Write call.
type trickleWriter struct {
	buf   bytes.Buffer
	calls int
}

func (w *trickleWriter) Write(p []byte) (int, error) {
	w.calls++
	if len(p) == 0 {
		return 0, nil
	}
	w.buf.WriteByte(p[0])
	return 1, nil
}

type stuckWriter struct{}

func (stuckWriter) Write(p []byte) (int, error) { return 0, nil }

func TestIntegersAreLittleEndian(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteInt32(1); err != nil {
		t.Fatalf("write int32: %v", err)
	}
	if err := w.WriteUint64(0x0102030405060708); err != nil {
		t.Fatalf("write uint64: %v", err)
	}
	want := []byte{1, 0, 0, 0, 8, 7, 6, 5, 4, 3, 2, 1}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("bytes mismatch: got=%v want=%v", buf.Bytes(), want)
	}
}

func TestRoundTripFixedWidth(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteInt8(-3); err != nil {
		t.Fatalf("write int8: %v", err)
	}
	if err := w.WriteUint16(math.MaxUint16); err != nil {
		t.Fatalf("write uint16: %v", err)
	}
	if err := w.WriteInt32(math.MinInt32); err != nil {
		t.Fatalf("write int32: %v", err)
	}
	if err := w.WriteUint32(0xdeadbeef); err != nil {
		t.Fatalf("write uint32: %v", err)
	}
	if err := w.WriteInt64(-42); err != nil {
		t.Fatalf("write int64: %v", err)
	}

	r := NewReader(&buf, DefaultLimits())
	if v, err := r.ReadInt8(); err != nil || v != -3 {
		t.Fatalf("read int8: v=%d err=%v", v, err)
	}
	if v, err := r.ReadUint16(); err != nil || v != math.MaxUint16 {
		t.Fatalf("read uint16: v=%d err=%v", v, err)
	}
	if v, err := r.ReadInt32(); err != nil || v != math.MinInt32 {
		t.Fatalf("read int32: v=%d err=%v", v, err)
	}
	if v, err := r.ReadUint32(); err != nil || v != 0xdeadbeef {
		t.Fatalf("read uint32: v=%x err=%v", v, err)
	}
	if v, err := r.ReadInt64(); err != nil || v != -42 {
		t.Fatalf("read int64: v=%d err=%v", v, err)
	}
}

func TestStringLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteString("hello"); err != nil {
		t.Fatalf("write string: %v", err)
	}
	b := buf.Bytes()
	if len(b) != StringLenSize+5 {
		t.Fatalf("unexpected length: %d", len(b))
	}
	if n := binary.LittleEndian.Uint64(b[:8]); n != 5 {
		t.Fatalf("length prefix: %d", n)
	}
	if string(b[8:]) != "hello" {
		t.Fatalf("body: %q", string(b[8:]))
	}
}

func TestEmptyString(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteString(""); err != nil {
		t.Fatalf("write string: %v", err)
	}
	s, err := NewReader(&buf, DefaultLimits()).ReadString()
	if err != nil {
		t.Fatalf("read string: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string, got %q", s)
	}
}

func TestReadToleratesShortReads(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteUint64(7); err != nil {
		t.Fatalf("write uint64: %v", err)
	}
	if err := w.WriteString("partial reads are fine"); err != nil {
		t.Fatalf("write string: %v", err)
	}

	r := NewReader(iotest.OneByteReader(bytes.NewReader(buf.Bytes())), DefaultLimits())
	v, err := r.ReadUint64()
	if err != nil || v != 7 {
		t.Fatalf("read uint64: v=%d err=%v", v, err)
	}
	s, err := r.ReadString()
	if err != nil {
		t.Fatalf("read string: %v", err)
	}
	if s != "partial reads are fine" {
		t.Fatalf("string mismatch: %q", s)
	}
}

func TestReadToleratesHalfReads(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteString("abcdefgh"); err != nil {
		t.Fatalf("write string: %v", err)
	}
	s, err := NewReader(iotest.HalfReader(&buf), DefaultLimits()).ReadString()
	if err != nil {
		t.Fatalf("read string: %v", err)
	}
	if s != "abcdefgh" {
		t.Fatalf("string mismatch: %q", s)
	}
}

func TestWriteToleratesShortWrites(t *testing.T) {
	tw := &trickleWriter{}
	w := NewWriter(tw)
	if err := w.WriteUint32(0x01020304); err != nil {
		t.Fatalf("write uint32: %v", err)
	}
	if err := w.WriteString("xyz"); err != nil {
		t.Fatalf("write string: %v", err)
	}
	if tw.buf.Len() != 4+8+3 {
		t.Fatalf("unexpected length: %d", tw.buf.Len())
	}
	if tw.calls < tw.buf.Len() {
		t.Fatalf("expected one call per byte, got %d calls", tw.calls)
	}
	r := NewReader(&tw.buf, DefaultLimits())
	if v, err := r.ReadUint32(); err != nil || v != 0x01020304 {
		t.Fatalf("read uint32: v=%x err=%v", v, err)
	}
	if s, err := r.ReadString(); err != nil || s != "xyz" {
		t.Fatalf("read string: s=%q err=%v", s, err)
	}
}

func TestWriteWithoutProgressFails(t *testing.T) {
	err := NewWriter(stuckWriter{}).WriteUint16(1)
	if !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("expected io.ErrShortWrite, got %v", err)
	}
}

func TestOversizedStringRejectedBeforeAllocation(t *testing.T) {
	// Only the length prefix is present, so skipping the body runs out of
	// input; allocating math.MaxUint64 bytes would panic first.
	var prefix [8]byte
	binary.LittleEndian.PutUint64(prefix[:], math.MaxUint64)
	r := NewReader(bytes.NewReader(prefix[:]), Limits{MaxStringBytes: 16})
	_, err := r.ReadString()
	if !errors.Is(err, ErrStringTooLarge) {
		t.Fatalf("expected ErrStringTooLarge, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected truncated body, got %v", err)
	}
}

func TestOversizedStringSkipsBody(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteString(strings.Repeat("x", 32)); err != nil {
		t.Fatalf("write oversized: %v", err)
	}
	if err := w.WriteString("next"); err != nil {
		t.Fatalf("write next: %v", err)
	}
	r := NewReader(&buf, Limits{MaxStringBytes: 16})
	_, err := r.ReadString()
	if !errors.Is(err, ErrStringTooLarge) || errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected bare ErrStringTooLarge, got %v", err)
	}
	s, err := r.ReadString()
	if err != nil {
		t.Fatalf("read after skip: %v", err)
	}
	if s != "next" {
		t.Fatalf("stream misaligned: got %q", s)
	}
}

func TestStringAtLimitAccepted(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteString("0123456789abcdef"); err != nil {
		t.Fatalf("write string: %v", err)
	}
	s, err := NewReader(&buf, Limits{MaxStringBytes: 16}).ReadString()
	if err != nil {
		t.Fatalf("read string: %v", err)
	}
	if len(s) != 16 {
		t.Fatalf("unexpected length: %d", len(s))
	}
}

func TestTruncatedValue(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 2}), DefaultLimits())
	_, err := r.ReadUint32()
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestEmptyStreamIsEOF(t *testing.T) {
	r := NewReader(bytes.NewReader(nil), DefaultLimits())
	_, err := r.ReadInt32()
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestZeroLimitsFallBackToDefault(t *testing.T) {
	r := NewReader(bytes.NewReader(nil), Limits{})
	if r.Limits() != DefaultLimits() {
		t.Fatalf("expected default limits, got %+v", r.Limits())
	}
}
