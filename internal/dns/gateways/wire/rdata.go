package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/haukened/rr-fwd/internal/dns/domain"
)

// mxPreferenceSize is the 16-bit preference that precedes an MX exchange name.
const mxPreferenceSize = 2

// hasNameRData reports whether rrtype carries a domain name in its rdata that
// an upstream may have compressed against its own message.
func hasNameRData(rrtype domain.RRType) bool {
	switch rrtype {
	case domain.RRTypeCNAME, domain.RRTypeNS, domain.RRTypePTR, domain.RRTypeMX:
		return true
	}
	return false
}

// expandRData decodes the rdata of length rdLen at pos and returns it with
// every compression pointer resolved, plus the target name as text. The
// embedded name must end exactly at the end of the rdata.
func expandRData(data []byte, rrtype domain.RRType, pos, rdLen int) ([]byte, string, error) {
	prefixLen := 0
	if rrtype == domain.RRTypeMX {
		prefixLen = mxPreferenceSize
	}
	// at least the root name's zero byte
	if rdLen < prefixLen+1 {
		return nil, "", fmt.Errorf("%w: %s rdata of %d bytes", ErrMalformedRecord, rrtype, rdLen)
	}
	prefix := data[pos : pos+prefixLen]
	namePos := pos + len(prefix)

	target, n, err := DecodeName(data, namePos)
	if err != nil {
		return nil, "", fmt.Errorf("%s rdata: %w", rrtype, err)
	}
	if namePos+n != pos+rdLen {
		return nil, "", fmt.Errorf("%w: %s target ends at offset %d, rdata ends at %d",
			ErrMalformedRecord, rrtype, namePos+n, pos+rdLen)
	}

	expanded := make([]byte, 0, len(prefix)+len(target)+2)
	expanded = append(expanded, prefix...)
	expanded, err = appendName(expanded, target)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s target: %v", ErrMalformedRecord, rrtype, err)
	}
	if rrtype == domain.RRTypeMX {
		return expanded, fmt.Sprintf("%d %s", binary.BigEndian.Uint16(prefix), target), nil
	}
	return expanded, target, nil
}
