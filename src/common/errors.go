package common

import "fmt"

// ErrKind ...
type ErrKind uint32

const (
	// InvalidArgument rejects malformed input synchronously; never retried.
	InvalidArgument ErrKind = iota
	// PreconditionFailed rejects an operation attempted before its
	// prerequisites are met.
	PreconditionFailed
	// NetworkTimeout means discovery or negotiation exceeded its time
	// budget; retried with the partial peer set.
	NetworkTimeout
	// PeerUnreachable means a specific peer dropped mid-negotiation.
	PeerUnreachable
	// GenesisConflict means two incompatible genesis proposals were
	// observed.
	GenesisConflict
	// ValidationFailure means a peer sent malformed data; the peer is
	// discarded.
	ValidationFailure
	// KeyNotFound ...
	KeyNotFound
	// KeyAlreadyExists ...
	KeyAlreadyExists
	// Empty ...
	Empty
)

var errKinds = map[ErrKind]string{
	InvalidArgument:    "invalid_argument",
	PreconditionFailed: "precondition_failed",
	NetworkTimeout:     "network_timeout",
	PeerUnreachable:    "peer_unreachable",
	GenesisConflict:    "genesis_conflict",
	ValidationFailure:  "validation_failure",
	KeyNotFound:        "key_not_found",
	KeyAlreadyExists:   "key_already_exists",
	Empty:              "empty",
}

// String returns the stable identifier used in logs, events, and API
// payloads.
func (k ErrKind) String() string {
	if s, ok := errKinds[k]; ok {
		return s
	}
	return "unknown"
}

// Error ...
type Error struct {
	kind ErrKind
	op   string
	msg  string
}

// NewError ...
func NewError(kind ErrKind, op string, msg string) Error {
	return Error{
		kind: kind,
		op:   op,
		msg:  msg,
	}
}

// Errorf ...
func Errorf(kind ErrKind, op string, format string, args ...interface{}) Error {
	return NewError(kind, op, fmt.Sprintf(format, args...))
}

// Kind ...
func (e Error) Kind() ErrKind {
	return e.kind
}

// Op ...
func (e Error) Op() string {
	return e.op
}

// Error ...
func (e Error) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("%s: %s", e.op, e.kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.op, e.kind, e.msg)
}

// Is checks that an error is of type Error and that its kind matches the
// provided kind.
func Is(err error, kind ErrKind) bool {
	e, ok := err.(Error)
	return ok && e.kind == kind
}

// Recoverable reports whether the error kind is retried internally rather
// than surfaced as a terminal failure.
func Recoverable(err error) bool {
	return Is(err, NetworkTimeout) || Is(err, PeerUnreachable)
}
