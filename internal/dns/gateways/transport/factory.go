package transport

import (
	"fmt"

	"github.com/haukened/rr-fwd/internal/dns/common/log"
)

// NewTransport creates a new transport instance based on the specified type.
func NewTransport(transportType TransportType, mode Mode, addr string, logger log.Logger) (Transport, error) {
	switch transportType {
	case TransportUDP:
		return NewUDPTransport(addr, mode, logger), nil

	case TransportTCP:
		return nil, fmt.Errorf("DNS over TCP transport not yet implemented")

	case TransportDoH:
		return nil, fmt.Errorf("DNS over HTTPS transport not yet implemented")

	case TransportDoT:
		return nil, fmt.Errorf("DNS over TLS transport not yet implemented")

	default:
		return nil, fmt.Errorf("unsupported transport type: %s", transportType)
	}
}

// GetSupportedTransports returns a list of currently supported transport types.
func GetSupportedTransports() []TransportType {
	return []TransportType{
		TransportUDP,
	}
}

// IsTransportSupported checks if a given transport type is currently supported.
func IsTransportSupported(transportType TransportType) bool {
	for _, t := range GetSupportedTransports() {
		if t == transportType {
			return true
		}
	}
	return false
}
