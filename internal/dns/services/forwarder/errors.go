package forwarder

import "errors"

// Errors used to classify dropped or failed work. None of them leaves the
// reactor; they are returned from the Handle methods for logging and tests.
var (
	// ErrUnsupportedOperation means a client query carried an opcode other
	// than QUERY. The client still receives a NOTIMP response.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrUnmatchedReply means a resolver reply carried an identifier with no
	// live correlation entry.
	ErrUnmatchedReply = errors.New("unmatched upstream reply")

	// ErrLateReply is an ErrUnmatchedReply whose identifier was retired
	// recently, typically because its request timed out.
	ErrLateReply = errors.New("late upstream reply")

	// ErrUpstreamTimeout means a request passed its deadline before every
	// question was answered.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrNoFreeIdentifier means all 65536 correlation identifiers are live.
	ErrNoFreeIdentifier = errors.New("no free correlation identifier")
)
