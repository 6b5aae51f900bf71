// Package rrdata converts record data between its presentation and wire forms.
// Only the A record is interpreted; every other type is carried as opaque bytes.
package rrdata

import (
	"encoding/hex"
	"fmt"

	"github.com/haukened/rr-fwd/internal/dns/domain"
)

// Decode decodes a record value based on its type, from its binary representation.
// Types without a decoder are rendered in the RFC 3597 generic form.
func Decode(rrType domain.RRType, data []byte) (string, error) {
	switch rrType {
	case domain.RRTypeA: // 1
		return decodeAData(data)
	default:
		return fmt.Sprintf(`\# %d %s`, len(data), hex.EncodeToString(data)), nil
	}
}
