package protocol

import (
	"bytes"
	"fmt"
	"io"

	"github.com/danmuck/awenet/internal/wire"
)

// Encode writes msg as one frame: the kind as i32, then each field in
// declared order.
func Encode(w io.Writer, msg Message) error {
	b, err := Marshal(msg)
	if err != nil {
		return err
	}
	return wire.WriteFull(w, b)
}

// Marshal returns the frame bytes for msg.
func Marshal(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	var buf bytes.Buffer
	ww := wire.NewWriter(&buf)
	if err := ww.WriteInt32(int32(msg.Kind())); err != nil {
		return nil, err
	}
	if err := writePayload(ww, msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalKeepalive returns a bare kind 0 prefix with no payload.
func MarshalKeepalive() []byte {
	var buf bytes.Buffer
	_ = wire.NewWriter(&buf).WriteInt32(int32(KindKeepalive))
	return buf.Bytes()
}

func writePayload(w *wire.Writer, msg Message) error {
	switch m := msg.(type) {
	case Sync:
		return w.WriteUint64(m.Frame)
	case *Sync:
		return w.WriteUint64(m.Frame)
	case Chat:
		return w.WriteString(m.Text)
	case *Chat:
		return w.WriteString(m.Text)
	case PlayerStatus:
		return writePlayerStatus(w, m)
	case *PlayerStatus:
		return writePlayerStatus(w, *m)
	case GameStart:
		return w.WriteUint32(m.Seed)
	case *GameStart:
		return w.WriteUint32(m.Seed)
	case GameStop, *GameStop:
		return nil
	default:
		return fmt.Errorf("%w: %s (%T)", ErrUnknownKind, msg.Kind(), msg)
	}
}

func writePlayerStatus(w *wire.Writer, m PlayerStatus) error {
	if err := w.WriteInt32(m.PlayerID); err != nil {
		return err
	}
	return w.WriteInt8(m.Ready)
}
