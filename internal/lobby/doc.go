// Package lobby is the application context bound to one link.
//
// Ownership boundary:
// - chat log (sent, received, notices)
// - two-seat ready board and game start/stop phase
// - translating link errors into notices and a link reset
package lobby
