package protocol

import "fmt"

// Kind is the i32 tag that prefixes every frame.
type Kind int32

const (
	KindSync         Kind = 0
	KindChat         Kind = 1
	KindPlayerStatus Kind = 2
	KindGameStart    Kind = 3
	KindGameStop     Kind = 4
)

// KindKeepalive shares its value with KindSync. A bare kind 0 on the
// wire carries no payload and is dropped by receivers.
const KindKeepalive = KindSync

var kindNames = map[Kind]string{
	KindSync:         "sync",
	KindChat:         "chat",
	KindPlayerStatus: "player_status",
	KindGameStart:    "game_start",
	KindGameStop:     "game_stop",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int32(k))
}

// Known reports whether k is one of the enumerated kinds.
func (k Kind) Known() bool {
	_, ok := kindNames[k]
	return ok
}

// Kinds returns every enumerated kind in numeric order.
func Kinds() []Kind {
	return []Kind{KindSync, KindChat, KindPlayerStatus, KindGameStart, KindGameStop}
}

// Message is one decoded payload. The concrete type determines the kind.
type Message interface {
	Kind() Kind
}

// Sync carries the sender's simulation frame counter.
type Sync struct {
	Frame uint64
}

// Chat carries one line of chat text. Bytes are not validated as UTF-8.
type Chat struct {
	Text string
}

// PlayerStatus announces whether a seat is ready.
type PlayerStatus struct {
	PlayerID int32
	Ready    int8
}

// GameStart tells the peer to start a game with the given seed.
type GameStart struct {
	Seed uint32
}

// GameStop tells the peer to stop the running game.
type GameStop struct{}

func (Sync) Kind() Kind         { return KindSync }
func (Chat) Kind() Kind         { return KindChat }
func (PlayerStatus) Kind() Kind { return KindPlayerStatus }
func (GameStart) Kind() Kind    { return KindGameStart }
func (GameStop) Kind() Kind     { return KindGameStop }

// IsReady reports the ready flag as a bool.
func (p PlayerStatus) IsReady() bool {
	return p.Ready != 0
}

// NewPlayerStatus builds a PlayerStatus from a bool ready flag.
func NewPlayerStatus(id int32, ready bool) PlayerStatus {
	st := PlayerStatus{PlayerID: id}
	if ready {
		st.Ready = 1
	}
	return st
}
