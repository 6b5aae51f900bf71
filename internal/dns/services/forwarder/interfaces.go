package forwarder

import (
	"context"
	"net"

	"github.com/haukened/rr-fwd/internal/dns/domain"
)

// MessageCodec converts client datagrams to messages and responses back.
type MessageCodec interface {
	EncodeMessage(msg domain.Message) ([]byte, error)
	DecodeMessage(data []byte) (domain.Message, error)
}

// Upstream forwards single questions to the resolver and decodes its replies.
type Upstream interface {
	// Forward sends q to the resolver under correlation identifier id.
	// It returns once the query is written and never waits for the reply.
	Forward(ctx context.Context, id uint16, q domain.Question) error
	DecodeReply(data []byte) (domain.Message, error)
}

// Sender writes a datagram to a client.
type Sender interface {
	Send(data []byte, addr net.Addr) error
}

// Slot locates the question a correlation identifier was issued for.
type Slot struct {
	Request uint64 // pending request sequence number
	Index   int    // question position in the client request
}

// Correlator tracks live correlation identifiers.
type Correlator interface {
	Register(id uint16, slot Slot) error
	Take(id uint16) (Slot, bool)
	Release(id uint16)
	Live(id uint16) bool
	Retired(id uint16) bool
	Len() int
}
