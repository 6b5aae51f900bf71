package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/haukened/rr-fwd/internal/dns/domain"
)

// HeaderSize is the fixed length of a DNS message header.
const HeaderSize = 12

// Flag bits of header bytes 2 and 3.
const (
	flagQR = 1 << 7 // byte 2
	flagAA = 1 << 2 // byte 2
	flagTC = 1 << 1 // byte 2
	flagRD = 1 << 0 // byte 2
	flagRA = 1 << 7 // byte 3
)

// EncodeHeader packs h into its 12-byte wire form.
func EncodeHeader(h domain.Header) []byte {
	return appendHeader(make([]byte, 0, HeaderSize), h)
}

func appendHeader(buf []byte, h domain.Header) []byte {
	var b2, b3 byte
	if h.QR {
		b2 |= flagQR
	}
	b2 |= byte(h.Opcode&0x0F) << 3
	if h.AA {
		b2 |= flagAA
	}
	if h.TC {
		b2 |= flagTC
	}
	if h.RD {
		b2 |= flagRD
	}
	if h.RA {
		b3 |= flagRA
	}
	b3 |= (h.Z & 0x07) << 4
	b3 |= byte(h.RCode & 0x0F)

	buf = binary.BigEndian.AppendUint16(buf, h.ID)
	buf = append(buf, b2, b3)
	buf = binary.BigEndian.AppendUint16(buf, h.QDCount)
	buf = binary.BigEndian.AppendUint16(buf, h.ANCount)
	buf = binary.BigEndian.AppendUint16(buf, h.NSCount)
	buf = binary.BigEndian.AppendUint16(buf, h.ARCount)
	return buf
}

// DecodeHeader unpacks the header found at offset and reports the bytes consumed,
// which is always HeaderSize on success.
func DecodeHeader(data []byte, offset int) (domain.Header, int, error) {
	if offset < 0 || len(data)-offset < HeaderSize {
		return domain.Header{}, 0, fmt.Errorf("%w: header needs %d bytes at offset %d, message is %d bytes",
			ErrTruncatedMessage, HeaderSize, offset, len(data))
	}
	b := data[offset : offset+HeaderSize]
	h := domain.Header{
		ID:      binary.BigEndian.Uint16(b[0:2]),
		QR:      b[2]&flagQR != 0,
		Opcode:  domain.OpCode((b[2] >> 3) & 0x0F),
		AA:      b[2]&flagAA != 0,
		TC:      b[2]&flagTC != 0,
		RD:      b[2]&flagRD != 0,
		RA:      b[3]&flagRA != 0,
		Z:       (b[3] >> 4) & 0x07,
		RCode:   domain.RCode(b[3] & 0x0F),
		QDCount: binary.BigEndian.Uint16(b[4:6]),
		ANCount: binary.BigEndian.Uint16(b[6:8]),
		NSCount: binary.BigEndian.Uint16(b[8:10]),
		ARCount: binary.BigEndian.Uint16(b[10:12]),
	}
	return h, HeaderSize, nil
}
