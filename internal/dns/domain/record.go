package domain

import (
	"fmt"
	"net/netip"
)

// ARecordLength is the rdata length of an A record.
const ARecordLength = 4

// ResourceRecord is an entry of the answer section.
// Data holds the raw rdata; its length is written as RDLENGTH on the wire.
type ResourceRecord struct {
	Name  string
	Type  RRType
	Class RRClass
	TTL   uint32
	Data  []byte // Wire-encoded rdata
	Text  string // Human-readable rdata, informational only
}

// NewResourceRecord constructs a ResourceRecord and validates its fields.
func NewResourceRecord(name string, rrtype RRType, class RRClass, ttl uint32, data []byte) (ResourceRecord, error) {
	rr := ResourceRecord{
		Name:  name,
		Type:  rrtype,
		Class: class,
		TTL:   ttl,
		Data:  data,
	}
	if err := rr.Validate(); err != nil {
		return ResourceRecord{}, err
	}
	return rr, nil
}

// NewARecord builds an IN A record for addr, which must be an IPv4 address.
func NewARecord(name string, ttl uint32, addr netip.Addr) (ResourceRecord, error) {
	if !addr.Is4() {
		return ResourceRecord{}, fmt.Errorf("A record requires an IPv4 address, got %s", addr)
	}
	ip := addr.As4()
	rr, err := NewResourceRecord(name, RRTypeA, RRClassIN, ttl, ip[:])
	if err != nil {
		return ResourceRecord{}, err
	}
	rr.Text = addr.String()
	return rr, nil
}

// Validate checks whether the ResourceRecord fields are valid.
func (rr ResourceRecord) Validate() error {
	if len(rr.Name) > MaxNameLength {
		return fmt.Errorf("record name too long: %d bytes", len(rr.Name))
	}
	if !rr.Class.IsValid() {
		return fmt.Errorf("invalid RRClass: %d", rr.Class)
	}
	if len(rr.Data) > 0xFFFF {
		return fmt.Errorf("resource record data too large: %d bytes (max 65535)", len(rr.Data))
	}
	if rr.Type == RRTypeA && len(rr.Data) != ARecordLength {
		return fmt.Errorf("A record data must be %d bytes, got %d", ARecordLength, len(rr.Data))
	}
	return nil
}
