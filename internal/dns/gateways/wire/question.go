package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/haukened/rr-fwd/internal/dns/domain"
)

// EncodeQuestion encodes q as name + QTYPE + QCLASS.
func EncodeQuestion(q domain.Question) ([]byte, error) {
	return appendQuestion(nil, q)
}

func appendQuestion(buf []byte, q domain.Question) ([]byte, error) {
	buf, err := appendName(buf, q.Name)
	if err != nil {
		return nil, err
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(q.Type))
	buf = binary.BigEndian.AppendUint16(buf, uint16(q.Class))
	return buf, nil
}

// DecodeQuestion decodes the question at offset. The byte count is the
// name's wire length plus 4.
func DecodeQuestion(data []byte, offset int) (domain.Question, int, error) {
	name, n, err := DecodeName(data, offset)
	if err != nil {
		return domain.Question{}, 0, fmt.Errorf("question name: %w", err)
	}
	pos := offset + n
	if pos+4 > len(data) {
		return domain.Question{}, 0, fmt.Errorf("%w: question type/class at offset %d", ErrTruncatedMessage, pos)
	}
	q := domain.Question{
		Name:  name,
		Type:  domain.RRType(binary.BigEndian.Uint16(data[pos : pos+2])),
		Class: domain.RRClass(binary.BigEndian.Uint16(data[pos+2 : pos+4])),
	}
	return q, n + 4, nil
}
