// Package link owns the single peer connection and its lifecycle.
//
// Ownership boundary:
// - socket and acceptor ownership
// - connect/accept/cancel/reset state machine
// - the receive loop feeding package dispatch
// - the write lock serializing outgoing frames
//
// A Transport moves Idle -> Connecting|Accepting -> Established. A
// cancelled attempt returns to Idle; a failed attempt or a lost peer
// leaves it Faulted until Reset. Reset always converges on Idle.
package link
