// Package protocol owns the message contract carried over a link.
//
// Ownership boundary:
// - message kinds and their numeric values
// - the payload shape of each kind
// - frame encode/decode on top of package wire
package protocol
