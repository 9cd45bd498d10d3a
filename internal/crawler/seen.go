package crawler

import "sync"

// SeenRegistry tracks story ids already dispatched, upholding at-most-once
// dispatch per process lifetime. Safe for concurrent use.
type SeenRegistry struct {
	mu  sync.Mutex
	ids map[int]struct{}
}

func NewSeenRegistry() *SeenRegistry {
	return &SeenRegistry{ids: make(map[int]struct{})}
}

// Add marks id as seen and reports whether it was newly added. The
// test-and-set is atomic, so exactly one caller wins for any given id.
func (r *SeenRegistry) Add(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; ok {
		return false
	}
	r.ids[id] = struct{}{}
	return true
}

// Contains reports whether id was dispatched before.
func (r *SeenRegistry) Contains(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok
}

// Seed marks a batch of ids as seen without dispatching them, used to
// resume from a previous run's report.
func (r *SeenRegistry) Seed(ids []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.ids[id] = struct{}{}
	}
}

func (r *SeenRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}
