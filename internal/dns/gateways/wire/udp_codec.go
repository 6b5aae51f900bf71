// Package wire provides encoding and decoding of DNS messages for UDP transport.
// It handles the subset of the RFC 1035 wire format this forwarder speaks:
// header, question and answer sections, with compressed names on input.
package wire

import (
	"fmt"

	"github.com/haukened/rr-fwd/internal/dns/common/log"
	"github.com/haukened/rr-fwd/internal/dns/domain"
)

// maxPreallocated caps slice preallocation driven by header counts, so a tiny
// packet that claims 65535 questions cannot force a large allocation.
const maxPreallocated = 16

// udpCodec implements the DNSCodec interface for standard DNS over UDP messages.
type udpCodec struct {
	logger log.Logger
}

// NewUDPCodec creates and returns a new instance of udpCodec using the provided logger.
// The logger is used for step-by-step debug output.
func NewUDPCodec(logger log.Logger) *udpCodec {
	return &udpCodec{
		logger: logger,
	}
}

// EncodeMessage serializes msg. The header's QDCOUNT and ANCOUNT are overwritten
// with the section lengths and NSCOUNT/ARCOUNT are zeroed, so the counts always
// match what is written.
func (c *udpCodec) EncodeMessage(msg domain.Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	h := msg.Header
	//gosec:disable G115 -- Validate caps both sections at 65535 entries.
	h.QDCount = uint16(len(msg.Questions))
	h.ANCount = uint16(len(msg.Answers))
	h.NSCount = 0
	h.ARCount = 0

	buf := appendHeader(make([]byte, 0, 512), h)

	c.logger.Debug(map[string]any{
		"step":  "header_written",
		"id":    h.ID,
		"qr":    h.QR,
		"rcode": h.RCode.String(),
		"qd":    h.QDCount,
		"an":    h.ANCount,
	}, "Wrote DNS header")

	var err error
	for _, q := range msg.Questions {
		buf, err = appendQuestion(buf, q)
		if err != nil {
			return nil, fmt.Errorf("encode question %q: %w", q.Name, err)
		}
		c.logger.Debug(map[string]any{
			"step":  "question_written",
			"name":  q.Name,
			"type":  q.Type.String(),
			"class": q.Class.String(),
		}, "Wrote question section")
	}

	for _, rr := range msg.Answers {
		buf, err = appendRecord(buf, rr)
		if err != nil {
			return nil, fmt.Errorf("encode answer %q: %w", rr.Name, err)
		}
		c.logger.Debug(map[string]any{
			"step": "answer_written",
			"name": rr.Name,
			"type": rr.Type.String(),
			"ttl":  rr.TTL,
			"dlen": len(rr.Data),
			"data": rr.Text,
		}, "Wrote answer record")
	}

	c.logger.Debug(map[string]any{
		"step": "final_packet",
		"size": len(buf),
		"raw":  fmt.Sprintf("%x", buf),
	}, "Final encoded DNS message")

	return buf, nil
}

// DecodeMessage parses data into a Message. Any failure wraps one of the
// package's sentinel errors.
func (c *udpCodec) DecodeMessage(data []byte) (domain.Message, error) {
	h, offset, err := DecodeHeader(data, 0)
	if err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		Header:    h,
		Questions: make([]domain.Question, 0, min(int(h.QDCount), maxPreallocated)),
		Answers:   make([]domain.ResourceRecord, 0, min(int(h.ANCount), maxPreallocated)),
	}

	for i := 0; i < int(h.QDCount); i++ {
		q, n, err := DecodeQuestion(data, offset)
		if err != nil {
			return domain.Message{}, fmt.Errorf("failed to parse question %d: %w", i, err)
		}
		msg.Questions = append(msg.Questions, q)
		offset += n
	}

	for i := 0; i < int(h.ANCount); i++ {
		rr, n, err := DecodeRecord(data, offset)
		if err != nil {
			return domain.Message{}, fmt.Errorf("failed to parse answer record %d: %w", i, err)
		}
		msg.Answers = append(msg.Answers, rr)
		offset += n
	}

	c.logger.Debug(map[string]any{
		"step":     "message_decoded",
		"id":       h.ID,
		"qr":       h.QR,
		"opcode":   h.Opcode.String(),
		"qd":       h.QDCount,
		"an":       h.ANCount,
		"consumed": offset,
		"size":     len(data),
	}, "Decoded DNS message")

	return msg, nil
}

var _ DNSCodec = &udpCodec{}
