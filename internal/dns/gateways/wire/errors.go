package wire

import "errors"

// Decode and encode failures. Callers match them with errors.Is; the codec
// wraps them with the offset or label that triggered the failure.
var (
	// ErrTruncatedMessage means the buffer ended before a field was complete.
	ErrTruncatedMessage = errors.New("truncated DNS message")

	// ErrMalformedName means a name could not be decoded: a compression pointer
	// that does not point backwards, a pointer chain that is too deep, a
	// reserved label type, a non-ASCII label, a label containing a dot, or a
	// name over 255 bytes.
	ErrMalformedName = errors.New("malformed DNS name")

	// ErrInvalidLabel means a name could not be encoded: an empty interior
	// label, a label over 63 bytes, non-ASCII bytes, or a name over 253 bytes.
	ErrInvalidLabel = errors.New("invalid DNS label")

	// ErrMalformedRecord means a resource record decoded but its rdata does
	// not fit its type.
	ErrMalformedRecord = errors.New("malformed resource record")
)
