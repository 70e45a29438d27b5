package link

import "fmt"

// Role is assigned once per connection lifetime.
type Role int

const (
	RoleNone Role = iota
	RoleServer
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAccepting
	StateEstablished
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAccepting:
		return "accepting"
	case StateEstablished:
		return "established"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Pending reports whether a connect or accept is outstanding.
func (s State) Pending() bool {
	return s == StateConnecting || s == StateAccepting
}
