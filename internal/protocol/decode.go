package protocol

import (
	"fmt"

	"github.com/danmuck/awenet/internal/wire"
)

// ReadKind reads the i32 kind prefix of the next frame. Errors are
// returned unwrapped so callers can classify the underlying stream
// failure.
func ReadKind(r *wire.Reader) (Kind, error) {
	v, err := r.ReadInt32()
	if err != nil {
		return 0, err
	}
	return Kind(v), nil
}

// Decode reads the payload of a frame whose kind was already consumed.
// Field failures wrap both ErrDecode and the underlying error.
//
// An unenumerated kind is not a decode failure: Decode consumes nothing and
// returns ErrUnknownKind, unwrapped by ErrDecode, so the caller decides
// what an unknown kind means for the stream.
func Decode(r *wire.Reader, kind Kind) (Message, error) {
	switch kind {
	case KindSync:
		frame, err := r.ReadUint64()
		if err != nil {
			return nil, decodeErr(kind, "frame", err)
		}
		return Sync{Frame: frame}, nil
	case KindChat:
		text, err := r.ReadString()
		if err != nil {
			return nil, decodeErr(kind, "text", err)
		}
		return Chat{Text: text}, nil
	case KindPlayerStatus:
		id, err := r.ReadInt32()
		if err != nil {
			return nil, decodeErr(kind, "player_id", err)
		}
		ready, err := r.ReadInt8()
		if err != nil {
			return nil, decodeErr(kind, "ready", err)
		}
		return PlayerStatus{PlayerID: id, Ready: ready}, nil
	case KindGameStart:
		seed, err := r.ReadUint32()
		if err != nil {
			return nil, decodeErr(kind, "seed", err)
		}
		return GameStart{Seed: seed}, nil
	case KindGameStop:
		return GameStop{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int32(kind))
	}
}

// ReadMessage reads one complete frame.
func ReadMessage(r *wire.Reader) (Message, error) {
	kind, err := ReadKind(r)
	if err != nil {
		return nil, err
	}
	return Decode(r, kind)
}

func decodeErr(kind Kind, field string, err error) error {
	return fmt.Errorf("%w: %s.%s: %w", ErrDecode, kind, field, err)
}
