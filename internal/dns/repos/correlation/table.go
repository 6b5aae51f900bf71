// Package correlation maps upstream query identifiers to whatever the caller
// needs to route the reply. Identifiers taken out of the table are remembered
// for a while in an LRU so that late replies can be told apart from replies
// that were never expected.
package correlation

import (
	"errors"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrIDInUse is returned by Register when the identifier already has a live entry.
var ErrIDInUse = errors.New("correlation id already in use")

// Table is a set of live identifier -> entry mappings. It is safe for
// concurrent use.
type Table[T any] struct {
	mu      sync.Mutex
	live    map[uint16]T
	retired *lru.Cache[uint16, struct{}] // nil when retired tracking is disabled

	evictions uint64
}

// New returns an empty Table remembering up to retiredSize retired
// identifiers. If retiredSize <= 0, retired identifiers are not tracked and
// Retired always reports false.
func New[T any](retiredSize int) (*Table[T], error) {
	t := &Table[T]{live: make(map[uint16]T)}
	if retiredSize <= 0 {
		return t, nil
	}
	cache, err := lru.NewWithEvict(retiredSize, func(uint16, struct{}) {
		atomic.AddUint64(&t.evictions, 1)
	})
	if err != nil {
		return nil, err
	}
	t.retired = cache
	return t, nil
}

// Register adds a live entry for id.
func (t *Table[T]) Register(id uint16, entry T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.live[id]; ok {
		return ErrIDInUse
	}
	t.live[id] = entry
	if t.retired != nil {
		t.retired.Remove(id)
	}
	return nil
}

// Take removes the live entry for id and returns it. The id is remembered as
// retired. Looking up and removing in one step means a reply is matched at
// most once.
func (t *Table[T]) Take(id uint16) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.live[id]
	if !ok {
		var zero T
		return zero, false
	}
	delete(t.live, id)
	t.retire(id)
	return entry, true
}

// Release drops the live entry for id, if any, without returning it.
func (t *Table[T]) Release(id uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.live[id]; ok {
		delete(t.live, id)
		t.retire(id)
	}
}

func (t *Table[T]) retire(id uint16) {
	if t.retired != nil {
		t.retired.Add(id, struct{}{})
	}
}

// Live reports whether id currently has an entry.
func (t *Table[T]) Live(id uint16) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.live[id]
	return ok
}

// Retired reports whether id was taken or released recently and has not
// been registered again since.
func (t *Table[T]) Retired(id uint16) bool {
	if t.retired == nil {
		return false
	}
	return t.retired.Contains(id)
}

// Len returns the number of live entries.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// Stats returns the number of retired ids currently remembered and how many
// have left the retired cache, either pushed out by newer ids or cleared by
// a new registration.
func (t *Table[T]) Stats() (retired int, evictions uint64) {
	if t.retired != nil {
		retired = t.retired.Len()
	}
	return retired, atomic.LoadUint64(&t.evictions)
}
