package forwarder

import "sync/atomic"

const idSpace = 1 << 16

// idAllocator hands out correlation identifiers from a counter that wraps at
// 65536. Identifiers that are still live are skipped.
type idAllocator struct {
	next atomic.Uint32
}

func newIDAllocator(first uint16) *idAllocator {
	a := &idAllocator{}
	a.next.Store(uint32(first))
	return a
}

// allocate returns the next identifier for which live reports false.
func (a *idAllocator) allocate(live func(uint16) bool) (uint16, error) {
	for range idSpace {
		//gosec:disable G115 -- truncating to 16 bits is the wrap-around.
		id := uint16(a.next.Add(1) - 1)
		if !live(id) {
			return id, nil
		}
	}
	return 0, ErrNoFreeIdentifier
}
