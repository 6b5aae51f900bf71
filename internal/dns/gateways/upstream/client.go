// Package upstream talks to the configured recursive resolver. It turns one
// client question into one single-question query, fires it at the resolver
// and decodes whatever comes back. It never waits for a reply: correlation
// and timeouts belong to the forwarder.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/haukened/rr-fwd/internal/dns/common/log"
	"github.com/haukened/rr-fwd/internal/dns/domain"
	"github.com/haukened/rr-fwd/internal/dns/gateways/wire"
	"github.com/haukened/rr-fwd/internal/dns/services/forwarder"
)

// Error message constants for consistent error handling
const (
	errSenderRequired = "upstream sender is required"
	errCodecRequired  = "DNS codec is required"
	errEncodeFailed   = "encode failed: %w"
	errSendFailed     = "send failed: %w"
	errDecodeFailed   = "decode failed: %w"
)

// ErrNotAResponse is returned by DecodeReply for a message with QR=0.
var ErrNotAResponse = errors.New("upstream message is not a response")

// Sender writes a datagram to the resolver. The resolver-facing transport
// is connected, so the address is always nil.
type Sender interface {
	Send(data []byte, addr net.Addr) error
}

// Client forwards single-question queries to one resolver.
type Client struct {
	sender           Sender
	codec            wire.DNSCodec
	recursionDesired bool
	logger           log.Logger
}

// Options defines configuration parameters for the upstream client.
type Options struct {
	// required parameters
	Sender Sender
	Codec  wire.DNSCodec
	// RecursionDesired sets RD on every upstream query.
	RecursionDesired bool
	// optional, defaults to a no-op logger
	Logger log.Logger
}

// NewClient creates a new upstream client with the specified options.
// Returns an error if the sender or the codec is not provided.
func NewClient(opts Options) (*Client, error) {
	if opts.Sender == nil {
		return nil, errors.New(errSenderRequired)
	}
	if opts.Codec == nil {
		return nil, errors.New(errCodecRequired)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Client{
		sender:           opts.Sender,
		codec:            opts.Codec,
		recursionDesired: opts.RecursionDesired,
		logger:           opts.Logger,
	}, nil
}

// BuildQuery returns the upstream query for q: ID set to the correlation id,
// QR=0, opcode QUERY and exactly one question. RD follows the client's options.
func (c *Client) BuildQuery(id uint16, q domain.Question) domain.Message {
	return domain.Message{
		Header: domain.NewHeader(domain.HeaderOptions{
			ID:               id,
			RecursionDesired: c.recursionDesired,
			QuestionCount:    1,
		}),
		Questions: []domain.Question{q},
	}
}

// Forward encodes the query for q under id and sends it. It returns as soon
// as the datagram is written.
func (c *Client) Forward(ctx context.Context, id uint16, q domain.Question) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := c.codec.EncodeMessage(c.BuildQuery(id, q))
	if err != nil {
		return fmt.Errorf(errEncodeFailed, err)
	}
	if err := c.sender.Send(data, nil); err != nil {
		return fmt.Errorf(errSendFailed, err)
	}

	c.logger.Debug(map[string]any{
		"upstream_id": id,
		"question":    q.String(),
		"size":        len(data),
	}, "Forwarded question upstream")
	return nil
}

// DecodeReply decodes a datagram received from the resolver.
func (c *Client) DecodeReply(data []byte) (domain.Message, error) {
	msg, err := c.codec.DecodeMessage(data)
	if err != nil {
		return domain.Message{}, fmt.Errorf(errDecodeFailed, err)
	}
	if !msg.Header.IsResponse() {
		return domain.Message{}, fmt.Errorf("%w: id %d", ErrNotAResponse, msg.Header.ID)
	}
	return msg, nil
}

var _ forwarder.Upstream = (*Client)(nil)
