// Package wire owns the canonical byte encoding shared by every frame.
//
// Ownership boundary:
// - fixed-width little-endian integers
// - u64 length-prefixed strings
// - full-length transfer over short reads/writes
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const StringLenSize = 8

var (
	ErrStringTooLarge = errors.New("wire: string length exceeds limit")
	ErrNilWriter      = errors.New("wire: nil writer")
	ErrNilReader      = errors.New("wire: nil reader")
)

// Limits constrains decode memory use.
type Limits struct {
	MaxStringBytes uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxStringBytes: 1 << 20,
	}
}

// Writer encodes values onto an underlying stream.
type Writer struct {
	w   io.Writer
	buf [8]byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) WriteUint8(v uint8) error {
	w.buf[0] = v
	return w.write(w.buf[:1])
}

func (w *Writer) WriteInt8(v int8) error {
	return w.WriteUint8(uint8(v))
}

func (w *Writer) WriteUint16(v uint16) error {
	binary.LittleEndian.PutUint16(w.buf[:2], v)
	return w.write(w.buf[:2])
}

func (w *Writer) WriteInt16(v int16) error {
	return w.WriteUint16(uint16(v))
}

func (w *Writer) WriteUint32(v uint32) error {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	return w.write(w.buf[:4])
}

func (w *Writer) WriteInt32(v int32) error {
	return w.WriteUint32(uint32(v))
}

func (w *Writer) WriteUint64(v uint64) error {
	binary.LittleEndian.PutUint64(w.buf[:8], v)
	return w.write(w.buf[:8])
}

func (w *Writer) WriteInt64(v int64) error {
	return w.WriteUint64(uint64(v))
}

// WriteString writes an 8-byte length followed by the raw bytes.
func (w *Writer) WriteString(s string) error {
	if err := w.WriteUint64(uint64(len(s))); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}
	return w.write([]byte(s))
}

func (w *Writer) write(p []byte) error {
	if w.w == nil {
		return ErrNilWriter
	}
	return WriteFull(w.w, p)
}

// WriteFull writes all of p, issuing as many underlying writes as needed.
func WriteFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if n < 0 || n > len(p) {
			return fmt.Errorf("wire: invalid write count %d", n)
		}
		p = p[n:]
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	return nil
}

// Reader decodes values from an underlying stream.
type Reader struct {
	r      io.Reader
	limits Limits
	buf    [8]byte
}

func NewReader(r io.Reader, limits Limits) *Reader {
	if limits.MaxStringBytes == 0 {
		limits = DefaultLimits()
	}
	return &Reader{r: r, limits: limits}
}

func (r *Reader) Limits() Limits {
	return r.limits
}

func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.read(r.buf[:1]); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.ReadUint8()
	return int8(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.read(r.buf[:2]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(r.buf[:2]), nil
}

func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.read(r.buf[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.buf[:4]), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.read(r.buf[:8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(r.buf[:8]), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadString reads an 8-byte length, checks it against the limit, then
// reads exactly that many bytes. An over-limit string is discarded without
// allocating, leaving the stream positioned after it.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint64()
	if err != nil {
		return "", err
	}
	if n > r.limits.MaxStringBytes {
		tooLarge := fmt.Errorf("%w: declared=%d max=%d", ErrStringTooLarge, n, r.limits.MaxStringBytes)
		if err := r.discard(n); err != nil {
			return "", fmt.Errorf("%w: %w", tooLarge, err)
		}
		return "", tooLarge
	}
	if n == 0 {
		return "", nil
	}
	out := make([]byte, n)
	if err := r.read(out); err != nil {
		return "", err
	}
	return string(out), nil
}

func (r *Reader) discard(n uint64) error {
	if r.r == nil {
		return ErrNilReader
	}
	if n > math.MaxInt64 {
		n = math.MaxInt64
	}
	if _, err := io.CopyN(io.Discard, r.r, int64(n)); err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

// read fills p completely. A stream that ends after some but not all of
// p yields io.ErrUnexpectedEOF; one that ends before any byte yields io.EOF.
func (r *Reader) read(p []byte) error {
	if r.r == nil {
		return ErrNilReader
	}
	_, err := io.ReadFull(r.r, p)
	return err
}
