// Package transport provides the datagram endpoints of the forwarder.
// A transport only moves bytes: it copies each received packet into a
// Datagram and hands it to a sink, and it sends packets it is given. Wire
// decoding and all DNS logic live above it.
package transport

import (
	"context"
	"errors"
	"net"
)

// ErrNotRunning is returned by Send when the transport has not been started
// or has already been stopped.
var ErrNotRunning = errors.New("transport is not running")

// Datagram is one received packet and the address it came from.
// Data is owned by the receiver.
type Datagram struct {
	Data []byte
	Addr net.Addr
}

// DatagramSink receives packets from a transport's receive loop. Deliver is
// called from that loop, so implementations should hand the datagram off
// quickly rather than process it in place.
type DatagramSink interface {
	Deliver(d Datagram)
}

// SinkFunc adapts an ordinary function to DatagramSink.
type SinkFunc func(d Datagram)

// Deliver calls f(d).
func (f SinkFunc) Deliver(d Datagram) {
	f(d)
}

// Transport is a datagram endpoint.
type Transport interface {
	// Start binds or connects the endpoint and begins delivering received
	// packets to sink until Stop is called or ctx is cancelled.
	Start(ctx context.Context, sink DatagramSink) error

	// Send writes one packet. It never waits for a reply.
	Send(data []byte, addr net.Addr) error

	// Stop closes the endpoint and waits for the receive loop to exit.
	Stop() error

	// Address returns the network address the transport is bound or connected to.
	Address() string
}

// Mode selects which side of a conversation a transport serves.
type Mode int

const (
	// ModeListen binds a local address and answers whoever writes to it.
	ModeListen Mode = iota
	// ModeDial connects to a single remote address.
	ModeDial
)

// String returns the textual representation of the Mode.
func (m Mode) String() string {
	switch m {
	case ModeListen:
		return "listen"
	case ModeDial:
		return "dial"
	default:
		return "unknown"
	}
}

// TransportType represents the different types of DNS transport protocols.
type TransportType string

const (
	// TransportUDP represents standard DNS over UDP (RFC 1035)
	TransportUDP TransportType = "udp"

	// TransportTCP represents DNS over TCP (RFC 7766) - not implemented
	TransportTCP TransportType = "tcp"

	// TransportDoH represents DNS over HTTPS (RFC 8484) - not implemented
	TransportDoH TransportType = "doh"

	// TransportDoT represents DNS over TLS (RFC 7858) - not implemented
	TransportDoT TransportType = "dot"
)
