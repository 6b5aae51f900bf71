package wire

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/haukened/rr-fwd/internal/dns/domain"
)

const (
	maxLabelLength  = 63
	maxWireNameSize = 255
	// maxPointerHops bounds pointer chains even though every hop must already
	// move strictly backwards through the message.
	maxPointerHops = 64

	pointerMask   = 0xC0
	pointerOffset = 0x3FFF
)

// EncodeName encodes a dotted name as length-prefixed labels terminated by a
// zero byte. A trailing dot is accepted; "" and "." encode the root.
// Names are never compressed on output.
func EncodeName(name string) ([]byte, error) {
	return appendName(nil, name)
}

func appendName(buf []byte, name string) ([]byte, error) {
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return append(buf, 0), nil
	}
	if len(name) > domain.MaxNameLength {
		return nil, fmt.Errorf("%w: name is %d bytes (max %d)", ErrInvalidLabel, len(name), domain.MaxNameLength)
	}
	for _, label := range strings.Split(name, ".") {
		if len(label) == 0 {
			return nil, fmt.Errorf("%w: empty label in %q", ErrInvalidLabel, name)
		}
		if len(label) > maxLabelLength {
			return nil, fmt.Errorf("%w: label too long (%d bytes): %s", ErrInvalidLabel, len(label), label)
		}
		if !isASCII(label) {
			return nil, fmt.Errorf("%w: label is not ASCII: %q", ErrInvalidLabel, label)
		}
		buf = append(buf, byte(len(label)))
		buf = append(buf, label...)
	}
	return append(buf, 0), nil
}

// DecodeName decodes the name at offset, following compression pointers
// (RFC 1035 §4.1.4). The returned byte count covers the name as it sits at
// offset: when the name ends in a pointer, that is everything up to and
// including the two pointer bytes, regardless of how long the target is.
//
// A pointer must target an offset before the start of the label run it
// belongs to. Anything else either points forward or loops back onto the
// same pointer, so such messages fail with ErrMalformedName.
func DecodeName(data []byte, offset int) (string, int, error) {
	d := nameDecoder{data: data}
	consumed, err := d.decode(offset)
	if err != nil {
		return "", 0, err
	}
	return strings.Join(d.labels, "."), consumed, nil
}

// nameDecoder accumulates labels across a pointer chain.
type nameDecoder struct {
	data     []byte
	labels   []string
	wireSize int
	hops     int
}

// decode reads one label run starting at start and returns its length on the wire.
func (d *nameDecoder) decode(start int) (int, error) {
	pos := start
	for {
		if pos < 0 || pos >= len(d.data) {
			return 0, fmt.Errorf("%w: name runs past end of message at offset %d", ErrTruncatedMessage, pos)
		}
		length := d.data[pos]

		switch {
		case length == 0:
			if err := d.grow(1); err != nil {
				return 0, err
			}
			return pos + 1 - start, nil

		case length&pointerMask == pointerMask:
			if pos+1 >= len(d.data) {
				return 0, fmt.Errorf("%w: compression pointer cut off at offset %d", ErrTruncatedMessage, pos)
			}
			target := int(binary.BigEndian.Uint16(d.data[pos:pos+2]) & pointerOffset)
			if target >= start {
				return 0, fmt.Errorf("%w: pointer at offset %d targets %d, which is not before %d",
					ErrMalformedName, pos, target, start)
			}
			d.hops++
			if d.hops > maxPointerHops {
				return 0, fmt.Errorf("%w: more than %d compression pointers", ErrMalformedName, maxPointerHops)
			}
			if _, err := d.decode(target); err != nil {
				return 0, err
			}
			return pos + 2 - start, nil

		case length&pointerMask != 0:
			return 0, fmt.Errorf("%w: reserved label type 0x%02x at offset %d", ErrMalformedName, length&pointerMask, pos)

		default:
			pos++
			end := pos + int(length)
			if end > len(d.data) {
				return 0, fmt.Errorf("%w: label of %d bytes at offset %d runs past end of message",
					ErrTruncatedMessage, length, pos-1)
			}
			label := string(d.data[pos:end])
			if !isASCII(label) {
				return 0, fmt.Errorf("%w: label at offset %d is not ASCII", ErrMalformedName, pos-1)
			}
			if strings.IndexByte(label, '.') >= 0 {
				return 0, fmt.Errorf("%w: label at offset %d contains a dot", ErrMalformedName, pos-1)
			}
			if err := d.grow(int(length) + 1); err != nil {
				return 0, err
			}
			d.labels = append(d.labels, label)
			pos = end
		}
	}
}

func (d *nameDecoder) grow(n int) error {
	d.wireSize += n
	if d.wireSize > maxWireNameSize {
		return fmt.Errorf("%w: name exceeds %d bytes", ErrMalformedName, maxWireNameSize)
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}
