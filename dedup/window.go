// Package dedup collapses at-least-once redelivery of server events into
// exactly-once local acceptance.
package dedup

import "sync"

// DefaultCapacity is the number of recently accepted event ids the window
// remembers before evicting the oldest.
const DefaultCapacity = 100

// Window is a bounded recency set of accepted event ids. Membership test and
// insert happen under one lock, so two concurrent Accept calls for the same id
// can never both return true. Eviction of the oldest id happens inside the
// insert, never as a separate pass.
type Window struct {
	mu    sync.Mutex
	cap   int
	seen  map[string]struct{}
	order []string // insertion order, oldest first
}

// NewWindow creates a window remembering the last capacity ids. A capacity
// of zero or less falls back to DefaultCapacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{
		cap:  capacity,
		seen: make(map[string]struct{}, capacity),
	}
}

// Accept reports whether id is new. It returns true exactly once per distinct
// id; every later call with the same id returns false while the id remains in
// the window. Empty ids are never accepted.
func (w *Window) Accept(id string) bool {
	if id == "" {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, dup := w.seen[id]; dup {
		return false
	}
	w.seen[id] = struct{}{}
	w.order = append(w.order, id)
	if len(w.order) > w.cap {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.seen, oldest)
	}
	return true
}

// Contains reports whether id is currently in the window.
func (w *Window) Contains(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.seen[id]
	return ok
}

// Len returns the number of ids currently remembered.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}
