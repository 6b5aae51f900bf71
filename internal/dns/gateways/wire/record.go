package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/haukened/rr-fwd/internal/dns/common/rrdata"
	"github.com/haukened/rr-fwd/internal/dns/domain"
)

// recordFixedSize is TYPE + CLASS + TTL + RDLENGTH.
const recordFixedSize = 10

// EncodeRecord encodes rr as name + TYPE + CLASS + TTL + RDLENGTH + RDATA.
// RDLENGTH is always len(rr.Data); an A record must carry exactly 4 bytes.
func EncodeRecord(rr domain.ResourceRecord) ([]byte, error) {
	return appendRecord(nil, rr)
}

func appendRecord(buf []byte, rr domain.ResourceRecord) ([]byte, error) {
	if err := rr.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	buf, err := appendName(buf, rr.Name)
	if err != nil {
		return nil, err
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(rr.Type))
	buf = binary.BigEndian.AppendUint16(buf, uint16(rr.Class))
	buf = binary.BigEndian.AppendUint32(buf, rr.TTL)
	//gosec:disable G115 -- Validate caps rdata at 65535 bytes.
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(rr.Data)))
	buf = append(buf, rr.Data...)
	return buf, nil
}

// DecodeRecord decodes the resource record at offset. The byte count is the
// name's wire length plus 10 plus RDLENGTH. Rdata is copied out of data;
// names inside CNAME, NS, PTR and MX rdata are expanded so the record can be
// re-encoded outside the message it came from.
func DecodeRecord(data []byte, offset int) (domain.ResourceRecord, int, error) {
	name, n, err := DecodeName(data, offset)
	if err != nil {
		return domain.ResourceRecord{}, 0, fmt.Errorf("record name: %w", err)
	}
	pos := offset + n
	if pos+recordFixedSize > len(data) {
		return domain.ResourceRecord{}, 0, fmt.Errorf("%w: record header at offset %d", ErrTruncatedMessage, pos)
	}

	rrtype := domain.RRType(binary.BigEndian.Uint16(data[pos : pos+2]))
	class := domain.RRClass(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
	ttl := binary.BigEndian.Uint32(data[pos+4 : pos+8])
	rdLen := int(binary.BigEndian.Uint16(data[pos+8 : pos+10]))
	pos += recordFixedSize

	if pos+rdLen > len(data) {
		return domain.ResourceRecord{}, 0, fmt.Errorf("%w: rdata of %d bytes at offset %d", ErrTruncatedMessage, rdLen, pos)
	}
	if rrtype == domain.RRTypeA && rdLen != domain.ARecordLength {
		return domain.ResourceRecord{}, 0, fmt.Errorf("%w: A record with rdlength %d", ErrMalformedRecord, rdLen)
	}

	rr := domain.ResourceRecord{
		Name:  name,
		Type:  rrtype,
		Class: class,
		TTL:   ttl,
	}
	if hasNameRData(rrtype) {
		rr.Data, rr.Text, err = expandRData(data, rrtype, pos, rdLen)
		if err != nil {
			return domain.ResourceRecord{}, 0, err
		}
		return rr, n + recordFixedSize + rdLen, nil
	}

	rr.Data = make([]byte, rdLen)
	copy(rr.Data, data[pos:pos+rdLen])
	if text, err := rrdata.Decode(rrtype, rr.Data); err == nil {
		rr.Text = text
	}
	return rr, n + recordFixedSize + rdLen, nil
}
