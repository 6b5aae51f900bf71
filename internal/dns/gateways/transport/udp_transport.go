package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/haukened/rr-fwd/internal/dns/common/log"
)

// readBufferSize is larger than the 512-byte classic UDP limit so an
// oversized reply is received whole and fails decoding instead of being
// silently cut.
const readBufferSize = 4096

// UDPTransport implements Transport for DNS over UDP (RFC 1035).
// In ModeListen it binds addr and replies with WriteTo; in ModeDial it
// connects to addr and every Send goes there.
type UDPTransport struct {
	addr   string
	mode   Mode
	conn   *net.UDPConn
	logger log.Logger

	// Synchronization for graceful shutdown
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewUDPTransport creates a new UDP transport instance. Nothing is bound or
// connected until Start.
func NewUDPTransport(addr string, mode Mode, logger log.Logger) *UDPTransport {
	return &UDPTransport{
		addr:   addr,
		mode:   mode,
		logger: logger,
	}
}

// Start opens the socket and starts the receive loop. Cancelling ctx has
// the same effect as calling Stop.
func (t *UDPTransport) Start(ctx context.Context, sink DatagramSink) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("UDP transport already running")
	}

	udpAddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %w", t.addr, err)
	}

	var conn *net.UDPConn
	switch t.mode {
	case ModeListen:
		conn, err = net.ListenUDP("udp", udpAddr)
		if err != nil {
			return fmt.Errorf("failed to bind UDP socket on %s: %w", t.addr, err)
		}
	case ModeDial:
		conn, err = net.DialUDP("udp", nil, udpAddr)
		if err != nil {
			return fmt.Errorf("failed to connect UDP socket to %s: %w", t.addr, err)
		}
	default:
		return fmt.Errorf("unsupported transport mode: %d", t.mode)
	}

	t.conn = conn
	t.running = true
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})

	t.logger.Info(map[string]any{
		"transport": "udp",
		"mode":      t.mode.String(),
		"address":   t.addressLocked(),
	}, "DNS transport started")

	go t.receiveLoop(conn, sink, t.doneCh)
	go t.watch(ctx, t.stopCh)

	return nil
}

// Stop closes the socket and waits for the receive loop to exit.
// Stopping a transport that is not running returns nil once the last
// receive loop has exited, so a Stop racing another one still waits.
// Stop must not be called from the sink.
func (t *UDPTransport) Stop() error {
	t.mu.Lock()
	if !t.running {
		done := t.doneCh
		t.mu.Unlock()
		if done != nil {
			<-done
		}
		return nil
	}
	t.running = false
	close(t.stopCh)

	closeErr := t.conn.Close()
	if closeErr != nil {
		t.logger.Warn(map[string]any{
			"error": closeErr.Error(),
		}, "Error closing UDP connection")
	}
	done := t.doneCh
	t.mu.Unlock()

	<-done

	t.logger.Info(map[string]any{
		"transport": "udp",
		"mode":      t.mode.String(),
		"address":   t.addr,
	}, "DNS transport stopped")

	return closeErr
}

// Send writes data as a single datagram. In ModeListen addr is the
// destination; in ModeDial addr is ignored.
func (t *UDPTransport) Send(data []byte, addr net.Addr) error {
	t.mu.RLock()
	conn, running := t.conn, t.running
	t.mu.RUnlock()

	if !running {
		return ErrNotRunning
	}

	var err error
	switch t.mode {
	case ModeDial:
		_, err = conn.Write(data)
	default:
		if addr == nil {
			return fmt.Errorf("send on listening UDP transport requires a destination address")
		}
		_, err = conn.WriteTo(data, addr)
	}
	if err != nil {
		return fmt.Errorf("failed to send %d byte datagram: %w", len(data), err)
	}

	t.logger.Debug(map[string]any{
		"mode": t.mode.String(),
		"peer": peerString(addr, conn),
		"size": len(data),
	}, "Sent datagram")
	return nil
}

// Address returns the network address the transport is bound to. For a
// running listener this is the actual local address, so ":0" resolves to
// the port the OS picked.
func (t *UDPTransport) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.addressLocked()
}

func (t *UDPTransport) addressLocked() string {
	if t.running && t.mode == ModeListen {
		return t.conn.LocalAddr().String()
	}
	return t.addr
}

func (t *UDPTransport) isRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// watch stops the transport when ctx is cancelled.
func (t *UDPTransport) watch(ctx context.Context, stopCh <-chan struct{}) {
	select {
	case <-ctx.Done():
		t.logger.Debug(nil, "UDP transport stopping due to context cancellation")
		_ = t.Stop()
	case <-stopCh:
	}
}

// receiveLoop copies each packet into a Datagram and delivers it.
func (t *UDPTransport) receiveLoop(conn *net.UDPConn, sink DatagramSink, done chan<- struct{}) {
	defer close(done)
	buffer := make([]byte, readBufferSize)

	for {
		n, peer, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || !t.isRunning() {
				return // Normal shutdown
			}
			// A connected socket reports ICMP port unreachable here.
			t.logger.Warn(map[string]any{
				"mode":  t.mode.String(),
				"error": err.Error(),
			}, "Failed to read UDP packet")
			continue
		}

		packet := make([]byte, n)
		copy(packet, buffer[:n])

		t.logger.Debug(map[string]any{
			"mode": t.mode.String(),
			"peer": peer.String(),
			"size": n,
			"raw":  fmt.Sprintf("%x", packet),
		}, "Received datagram")

		sink.Deliver(Datagram{Data: packet, Addr: peer})
	}
}

func peerString(addr net.Addr, conn *net.UDPConn) string {
	if addr != nil {
		return addr.String()
	}
	if remote := conn.RemoteAddr(); remote != nil {
		return remote.String()
	}
	return ""
}

var _ Transport = &UDPTransport{}
