package rrdata

import (
	"fmt"
	"net/netip"

	"github.com/haukened/rr-fwd/internal/dns/domain"
)

// decodeAData renders the 4 rdata octets of an A record as a dotted quad.
func decodeAData(data []byte) (string, error) {
	if len(data) != domain.ARecordLength {
		return "", fmt.Errorf("invalid A record length: %d", len(data))
	}
	return netip.AddrFrom4([4]byte(data)).String(), nil
}
