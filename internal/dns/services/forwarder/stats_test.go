package forwarder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStats_Snapshot(t *testing.T) {
	var s Stats
	s.queries.Add(3)
	s.forwarded.Add(5)
	s.timedOut.Add(1)

	snap := s.Snapshot()
	assert.Equal(t, uint64(3), snap.Queries)
	assert.Equal(t, uint64(5), snap.Forwarded)
	assert.Equal(t, uint64(1), snap.TimedOut)
	assert.Zero(t, snap.Completed)

	fields := snap.Fields()
	assert.Len(t, fields, 14)
	assert.Equal(t, uint64(3), fields["queries"])
	assert.Equal(t, uint64(1), fields["timed_out"])
}
