package forwarder

import "sync/atomic"

// Stats counts what the forwarder has done since it started.
type Stats struct {
	queries        atomic.Uint64
	notImplemented atomic.Uint64
	empty          atomic.Uint64
	forwarded      atomic.Uint64
	matched        atomic.Uint64
	unmatched      atomic.Uint64
	mismatched     atomic.Uint64
	late           atomic.Uint64
	completed      atomic.Uint64
	timedOut       atomic.Uint64
	aborted        atomic.Uint64
	decodeErrors   atomic.Uint64
	sendErrors     atomic.Uint64
	dropped        atomic.Uint64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Queries        uint64 // client datagrams handled
	NotImplemented uint64 // NOTIMP responses
	Empty          uint64 // queries without questions
	Forwarded      uint64 // upstream queries sent
	Matched        uint64 // replies matched to a question
	Unmatched      uint64 // replies with an unknown identifier
	Mismatched     uint64 // replies whose question differs from the one sent
	Late           uint64 // replies for a retired identifier
	Completed      uint64 // requests answered after all replies arrived
	TimedOut       uint64 // requests answered with SERVFAIL by the sweep
	Aborted        uint64 // requests answered with SERVFAIL during fan-out
	DecodeErrors   uint64
	SendErrors     uint64
	Dropped        uint64 // datagrams refused by a full queue
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Queries:        s.queries.Load(),
		NotImplemented: s.notImplemented.Load(),
		Empty:          s.empty.Load(),
		Forwarded:      s.forwarded.Load(),
		Matched:        s.matched.Load(),
		Unmatched:      s.unmatched.Load(),
		Mismatched:     s.mismatched.Load(),
		Late:           s.late.Load(),
		Completed:      s.completed.Load(),
		TimedOut:       s.timedOut.Load(),
		Aborted:        s.aborted.Load(),
		DecodeErrors:   s.decodeErrors.Load(),
		SendErrors:     s.sendErrors.Load(),
		Dropped:        s.dropped.Load(),
	}
}

// Fields renders the snapshot as structured log fields.
func (s Snapshot) Fields() map[string]any {
	return map[string]any{
		"queries":         s.Queries,
		"not_implemented": s.NotImplemented,
		"empty":           s.Empty,
		"forwarded":       s.Forwarded,
		"matched":         s.Matched,
		"unmatched":       s.Unmatched,
		"mismatched":      s.Mismatched,
		"late":            s.Late,
		"completed":       s.Completed,
		"timed_out":       s.TimedOut,
		"aborted":         s.Aborted,
		"decode_errors":   s.DecodeErrors,
		"send_errors":     s.SendErrors,
		"dropped":         s.Dropped,
	}
}
