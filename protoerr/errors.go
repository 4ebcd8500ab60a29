// Package protoerr defines the error kinds from spec §7. Transport-level
// kinds are confined to a single per-target task by callers; they are
// never allowed to abort a whole command (see protocol package).
package protoerr

import "errors"

var (
	// ErrUnreachable means a connect attempt to a remote peer failed outright.
	ErrUnreachable = errors.New("peer unreachable")
	// ErrHandshakeFailed means the transport handshake did not complete.
	ErrHandshakeFailed = errors.New("handshake failed")
	// ErrTimeout means a blocking receive did not complete within its deadline.
	ErrTimeout = errors.New("operation timed out")
	// ErrIO wraps an underlying socket read/write failure.
	ErrIO = errors.New("i/o error")
	// ErrProtocolViolation means a peer replied with something unexpected
	// for the message it was sent.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrNoSpace is the NACK{NOSPACE} business outcome, not a transport error.
	ErrNoSpace = errors.New("peer has no space")
	// ErrDuplicateFile is the NACK{HAVEFILE} business outcome.
	ErrDuplicateFile = errors.New("peer already has file")
	// ErrNotFound means a requested fileId is absent from a peer's stored files.
	ErrNotFound = errors.New("file not found")
	// ErrNotBootstrapped means the ring is solitary or the listener has not
	// started; commands abort immediately rather than attempting routing.
	ErrNotBootstrapped = errors.New("peer is not bootstrapped")
)
