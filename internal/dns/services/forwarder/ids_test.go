package forwarder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noneLive(uint16) bool { return false }

func TestIDAllocator_Sequential(t *testing.T) {
	a := newIDAllocator(10)
	for want := uint16(10); want < 15; want++ {
		got, err := a.allocate(noneLive)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestIDAllocator_WrapsAt65536(t *testing.T) {
	a := newIDAllocator(0xFFFE)
	var got []uint16
	for i := 0; i < 4; i++ {
		id, err := a.allocate(noneLive)
		require.NoError(t, err)
		got = append(got, id)
	}
	assert.Equal(t, []uint16{0xFFFE, 0xFFFF, 0, 1}, got)
}

func TestIDAllocator_SkipsLiveIDs(t *testing.T) {
	live := map[uint16]bool{0xFFFF: true, 0: true, 2: true}
	a := newIDAllocator(0xFFFF)

	first, err := a.allocate(func(id uint16) bool { return live[id] })
	require.NoError(t, err)
	assert.Equal(t, uint16(1), first)

	second, err := a.allocate(func(id uint16) bool { return live[id] })
	require.NoError(t, err)
	assert.Equal(t, uint16(3), second)
}

func TestIDAllocator_Exhausted(t *testing.T) {
	a := newIDAllocator(0)
	calls := 0
	_, err := a.allocate(func(uint16) bool { calls++; return true })

	assert.ErrorIs(t, err, ErrNoFreeIdentifier)
	assert.Equal(t, idSpace, calls, "every identifier is tried exactly once")
}
