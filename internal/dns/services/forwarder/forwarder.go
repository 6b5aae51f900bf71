// Package forwarder is the forwarding coordinator. It splits each client
// query into one upstream query per question, matches the resolver's
// replies back by correlation identifier and answers the client once every
// question has been answered or the request's deadline has passed.
package forwarder

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/haukened/rr-fwd/internal/dns/common/clock"
	"github.com/haukened/rr-fwd/internal/dns/common/log"
	"github.com/haukened/rr-fwd/internal/dns/domain"
)

// Error message constants for consistent error handling
const (
	errCodecRequired    = "DNS codec is required"
	errUpstreamRequired = "upstream client is required"
	errSenderRequired   = "client sender is required"
	errTableRequired    = "correlation table is required"
)

const (
	defaultTimeout       = 5 * time.Second
	defaultSweepInterval = time.Second
	defaultQueueSize     = 256
)

// Options configures a Forwarder.
type Options struct {
	// required parameters
	Codec    MessageCodec
	Upstream Upstream
	Client   Sender
	Table    Correlator
	// Timeout is how long a request may wait for its replies. Default 5s.
	Timeout time.Duration
	// SweepInterval is how often Run looks for expired requests. Default 1s.
	SweepInterval time.Duration
	// QueueSize bounds each inbound datagram queue used by Run. Default 256.
	QueueSize int
	// FirstID is the first correlation identifier handed out.
	FirstID uint16
	// options to inject for testing purposes
	Clock  clock.Clock
	Logger log.Logger
}

type inbound struct {
	data []byte
	addr net.Addr
}

// Forwarder coordinates client requests and upstream replies.
// All state is guarded by mu, so the Handle methods and Sweep may be called
// directly as well as from Run.
type Forwarder struct {
	codec         MessageCodec
	upstream      Upstream
	client        Sender
	clock         clock.Clock
	logger        log.Logger
	timeout       time.Duration
	sweepInterval time.Duration

	mu      sync.Mutex
	table   Correlator
	pending map[uint64]*pendingRequest
	nextSeq uint64
	ids     *idAllocator

	queries chan inbound
	replies chan inbound
	stats   Stats
}

// New creates a Forwarder with the specified options.
func New(opts Options) (*Forwarder, error) {
	switch {
	case opts.Codec == nil:
		return nil, errors.New(errCodecRequired)
	case opts.Upstream == nil:
		return nil, errors.New(errUpstreamRequired)
	case opts.Client == nil:
		return nil, errors.New(errSenderRequired)
	case opts.Table == nil:
		return nil, errors.New(errTableRequired)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Forwarder{
		codec:         opts.Codec,
		upstream:      opts.Upstream,
		client:        opts.Client,
		clock:         opts.Clock,
		logger:        opts.Logger,
		timeout:       opts.Timeout,
		sweepInterval: opts.SweepInterval,
		table:         opts.Table,
		pending:       make(map[uint64]*pendingRequest),
		ids:           newIDAllocator(opts.FirstID),
		queries:       make(chan inbound, opts.QueueSize),
		replies:       make(chan inbound, opts.QueueSize),
	}, nil
}

// HandleQuery processes one client datagram. Unsupported opcodes get NOTIMP
// and a query without questions gets an empty NOERROR response; anything
// else is fanned out upstream, one query per question.
func (f *Forwarder) HandleQuery(ctx context.Context, data []byte, client net.Addr) error {
	f.stats.queries.Add(1)

	msg, err := f.codec.DecodeMessage(data)
	if err != nil {
		f.stats.decodeErrors.Add(1)
		f.logger.Warn(map[string]any{
			"client": addrString(client),
			"size":   len(data),
			"error":  err.Error(),
		}, "Failed to decode DNS query")
		return fmt.Errorf("decode query: %w", err)
	}

	if !msg.Header.IsStandardQuery() {
		f.stats.notImplemented.Add(1)
		f.logger.Info(map[string]any{
			"client":   addrString(client),
			"query_id": msg.Header.ID,
			"opcode":   msg.Header.Opcode.String(),
		}, "Rejecting unsupported opcode")
		f.respond(client, domain.Message{Header: responseHeader(msg.Header, domain.RCodeNotImp, 0, 0)})
		return fmt.Errorf("%w: opcode %s", ErrUnsupportedOperation, msg.Header.Opcode)
	}

	if len(msg.Questions) == 0 {
		f.stats.empty.Add(1)
		f.logger.Debug(map[string]any{
			"client":   addrString(client),
			"query_id": msg.Header.ID,
		}, "Answering query without questions")
		f.respond(client, domain.Message{Header: responseHeader(msg.Header, domain.RCodeNoError, 0, 0)})
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextSeq++
	req := newPendingRequest(f.nextSeq, client, msg, f.clock.Now().Add(f.timeout))

	for i, q := range req.questions {
		if err := f.forwardLocked(ctx, req, i, q); err != nil {
			f.abortLocked(req, err)
			return err
		}
	}
	f.pending[req.seq] = req

	f.logger.Debug(map[string]any{
		"client":    addrString(client),
		"query_id":  msg.Header.ID,
		"questions": len(req.questions),
		"upstream":  req.ids,
	}, "Forwarded DNS query")
	return nil
}

// forwardLocked allocates an identifier for question i, registers it and
// sends the upstream query. The entry is registered before the send so a
// fast reply always finds it. The client's own identifier is never reused
// upstream.
func (f *Forwarder) forwardLocked(ctx context.Context, req *pendingRequest, i int, q domain.Question) error {
	id, err := f.ids.allocate(func(id uint16) bool {
		return id == req.header.ID || f.table.Live(id)
	})
	if err != nil {
		return err
	}
	if err := f.table.Register(id, Slot{Request: req.seq, Index: i}); err != nil {
		return fmt.Errorf("register correlation id %d: %w", id, err)
	}
	req.ids = append(req.ids, id)

	if err := f.upstream.Forward(ctx, id, q); err != nil {
		f.stats.sendErrors.Add(1)
		return fmt.Errorf("forward question %d (%s): %w", i, q, err)
	}
	f.stats.forwarded.Add(1)
	return nil
}

// abortLocked frees every identifier issued for req and answers SERVFAIL.
func (f *Forwarder) abortLocked(req *pendingRequest, cause error) {
	f.stats.aborted.Add(1)
	f.releaseLocked(req)
	f.logger.Error(map[string]any{
		"client":   addrString(req.client),
		"query_id": req.header.ID,
		"error":    cause.Error(),
	}, "Failed to forward DNS query")
	f.respond(req.client, req.failure(domain.RCodeServFail))
}

func (f *Forwarder) releaseLocked(req *pendingRequest) {
	for _, id := range req.ids {
		f.table.Release(id)
	}
	delete(f.pending, req.seq)
}

// HandleReply processes one resolver datagram. A reply is matched by its
// identifier; when it fills the last open question of its request, the
// client is answered.
func (f *Forwarder) HandleReply(ctx context.Context, data []byte) error {
	msg, err := f.upstream.DecodeReply(data)
	if err != nil {
		f.stats.decodeErrors.Add(1)
		f.logger.Warn(map[string]any{
			"size":  len(data),
			"error": err.Error(),
		}, "Failed to decode upstream reply")
		return fmt.Errorf("decode reply: %w", err)
	}
	id := msg.Header.ID

	f.mu.Lock()
	defer f.mu.Unlock()

	slot, ok := f.table.Take(id)
	if !ok {
		if f.table.Retired(id) {
			f.stats.late.Add(1)
			f.logger.Debug(map[string]any{"upstream_id": id}, "Dropping late upstream reply")
			return fmt.Errorf("%w: id %d", ErrLateReply, id)
		}
		f.stats.unmatched.Add(1)
		f.logger.Debug(map[string]any{"upstream_id": id}, "Dropping unmatched upstream reply")
		return fmt.Errorf("%w: id %d", ErrUnmatchedReply, id)
	}

	req, ok := f.pending[slot.Request]
	if ok && !req.matches(slot.Index, msg) {
		// The id stays live so the genuine reply can still be matched.
		if err := f.table.Register(id, slot); err != nil {
			return fmt.Errorf("re-register correlation id %d: %w", id, err)
		}
		f.stats.mismatched.Add(1)
		f.logger.Warn(map[string]any{
			"upstream_id": id,
			"expected":    req.questions[slot.Index].String(),
			"received":    msg.Questions[0].String(),
		}, "Upstream reply question does not match")
		return fmt.Errorf("%w: id %d answers %s", ErrUnmatchedReply, id, msg.Questions[0])
	}
	if !ok || !req.record(slot.Index, msg) {
		f.stats.unmatched.Add(1)
		return fmt.Errorf("%w: id %d has no open question", ErrUnmatchedReply, id)
	}
	f.stats.matched.Add(1)

	if req.complete() {
		f.finalizeLocked(req)
	}
	return nil
}

func (f *Forwarder) finalizeLocked(req *pendingRequest) {
	delete(f.pending, req.seq)
	resp := req.response()
	f.stats.completed.Add(1)
	f.logger.Debug(map[string]any{
		"client":   addrString(req.client),
		"query_id": req.header.ID,
		"answers":  len(resp.Answers),
		"rcode":    resp.Header.RCode.String(),
	}, "Answering DNS query")
	f.respond(req.client, resp)
}

// Sweep answers every request whose deadline is before now with SERVFAIL
// and frees its correlation identifiers. It returns the number of expired
// requests.
func (f *Forwarder) Sweep(_ context.Context, now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	expired := 0
	for _, req := range f.pending {
		if !req.expired(now) {
			continue
		}
		expired++
		f.stats.timedOut.Add(1)
		f.releaseLocked(req)
		f.logger.Warn(map[string]any{
			"client":     addrString(req.client),
			"query_id":   req.header.ID,
			"unanswered": req.remaining,
			"error":      ErrUpstreamTimeout.Error(),
		}, "Upstream timeout, answering SERVFAIL")
		f.respond(req.client, req.failure(domain.RCodeServFail))
	}

	if expired > 0 {
		f.logger.Debug(f.stats.Snapshot().Fields(), "Forwarder sweep")
	}
	return expired
}

// Pending returns the number of requests awaiting replies.
func (f *Forwarder) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Stats returns a snapshot of the forwarder's counters.
func (f *Forwarder) Stats() Snapshot {
	return f.stats.Snapshot()
}

// EnqueueQuery hands a client datagram to Run. It never blocks: when the
// queue is full the datagram is dropped and false is returned.
func (f *Forwarder) EnqueueQuery(data []byte, client net.Addr) bool {
	return f.enqueue(f.queries, inbound{data: data, addr: client}, "client")
}

// EnqueueReply hands a resolver datagram to Run. It never blocks.
func (f *Forwarder) EnqueueReply(data []byte) bool {
	return f.enqueue(f.replies, inbound{data: data}, "upstream")
}

func (f *Forwarder) enqueue(ch chan<- inbound, in inbound, source string) bool {
	select {
	case ch <- in:
		return true
	default:
		f.stats.dropped.Add(1)
		f.logger.Warn(map[string]any{
			"source": source,
			"size":   len(in.data),
		}, "Inbound queue full, dropping datagram")
		return false
	}
}

// Run is the reactor: it handles queued datagrams one at a time and sweeps
// expired requests every SweepInterval until ctx is cancelled.
func (f *Forwarder) Run(ctx context.Context) {
	ticker := time.NewTicker(f.sweepInterval)
	defer ticker.Stop()

	f.logger.Info(map[string]any{
		"timeout":        f.timeout.String(),
		"sweep_interval": f.sweepInterval.String(),
	}, "Forwarder started")

	for {
		select {
		case <-ctx.Done():
			f.logger.Info(f.stats.Snapshot().Fields(), "Forwarder stopped")
			return
		case in := <-f.queries:
			_ = f.HandleQuery(ctx, in.data, in.addr)
		case in := <-f.replies:
			_ = f.HandleReply(ctx, in.data)
		case <-ticker.C:
			f.Sweep(ctx, f.clock.Now())
		}
	}
}

// respond encodes msg and sends it to client. Failures are logged and counted.
func (f *Forwarder) respond(client net.Addr, msg domain.Message) {
	data, err := f.codec.EncodeMessage(msg)
	if err != nil {
		f.stats.sendErrors.Add(1)
		f.logger.Error(map[string]any{
			"client":   addrString(client),
			"query_id": msg.Header.ID,
			"error":    err.Error(),
		}, "Failed to encode DNS response")
		return
	}
	if err := f.client.Send(data, client); err != nil {
		f.stats.sendErrors.Add(1)
		f.logger.Error(map[string]any{
			"client":   addrString(client),
			"query_id": msg.Header.ID,
			"error":    err.Error(),
		}, "Failed to send DNS response")
	}
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
