package domain

import "fmt"

// OpCode is the 4-bit kind-of-query field of the message header.
type OpCode uint8

// Operation codes from RFC 1035, RFC 1996 and RFC 2136.
const (
	OpCodeQuery  OpCode = 0
	OpCodeIQuery OpCode = 1
	OpCodeStatus OpCode = 2
	OpCodeNotify OpCode = 4
	OpCodeUpdate OpCode = 5
)

// String returns the textual representation of the OpCode.
func (o OpCode) String() string {
	switch o {
	case OpCodeQuery:
		return "QUERY"
	case OpCodeIQuery:
		return "IQUERY"
	case OpCodeStatus:
		return "STATUS"
	case OpCodeNotify:
		return "NOTIFY"
	case OpCodeUpdate:
		return "UPDATE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(o))
	}
}

// Header is the fixed 12-byte DNS message header (RFC 1035 §4.1.1).
//
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|                      ID                       |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|QR|   Opcode  |AA|TC|RD|RA|   Z    |   RCODE   |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|          QDCOUNT / ANCOUNT / NSCOUNT / ARCOUNT |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//
// Header is a value type; build one with NewHeader and copy it freely.
type Header struct {
	ID      uint16
	QR      bool
	Opcode  OpCode // 4 bits
	AA      bool
	TC      bool
	RD      bool
	RA      bool
	Z       uint8 // 3 bits
	RCode   RCode // 4 bits
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// HeaderOptions configures NewHeader. The zero value yields an all-zero header:
// identifier 0, a query (QR=0), opcode QUERY, no flags, NOERROR and empty sections.
type HeaderOptions struct {
	ID                 uint16
	Response           bool
	Opcode             OpCode
	Authoritative      bool
	Truncated          bool
	RecursionDesired   bool
	RecursionAvailable bool
	Reserved           uint8
	RCode              RCode
	QuestionCount      uint16
	AnswerCount        uint16
	AuthorityCount     uint16
	AdditionalCount    uint16
}

// NewHeader builds a Header from opts. Fields narrower than their Go type
// (opcode, Z and rcode) are masked to their wire width.
func NewHeader(opts HeaderOptions) Header {
	return Header{
		ID:      opts.ID,
		QR:      opts.Response,
		Opcode:  opts.Opcode & 0x0F,
		AA:      opts.Authoritative,
		TC:      opts.Truncated,
		RD:      opts.RecursionDesired,
		RA:      opts.RecursionAvailable,
		Z:       opts.Reserved & 0x07,
		RCode:   opts.RCode & 0x0F,
		QDCount: opts.QuestionCount,
		ANCount: opts.AnswerCount,
		NSCount: opts.AuthorityCount,
		ARCount: opts.AdditionalCount,
	}
}

// IsResponse reports whether the QR bit is set.
func (h Header) IsResponse() bool {
	return h.QR
}

// IsStandardQuery reports whether the header carries opcode QUERY.
func (h Header) IsStandardQuery() bool {
	return h.Opcode == OpCodeQuery
}
