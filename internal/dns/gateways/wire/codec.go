package wire

import (
	"github.com/haukened/rr-fwd/internal/dns/domain"
)

// DNSCodec converts whole messages between domain objects and wire bytes.
// The same codec serves both directions of the forwarder: client queries and
// responses, and upstream queries and replies.
type DNSCodec interface {
	// EncodeMessage serializes the header, questions and answers of msg.
	// Section counts are taken from the slices, not from msg.Header.
	EncodeMessage(msg domain.Message) ([]byte, error)

	// DecodeMessage parses the header, QDCOUNT questions and ANCOUNT answers.
	// Authority and additional sections are ignored.
	DecodeMessage(data []byte) (domain.Message, error)
}
