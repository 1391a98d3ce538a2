package identity

import (
	"sort"
	"sync"
)

// Table is a symmetric mapping between equivalent handles. It is safe for
// concurrent use.
type Table struct {
	mu      sync.RWMutex
	mapping map[string]string
}

// NewTable returns an empty mapping table.
func NewTable() *Table {
	return &Table{mapping: make(map[string]string)}
}

// AddMapping records that canonical and alternative denote the same window.
// Any earlier mapping of either key is replaced, and the stale counterparts
// are unlinked so the table stays symmetric. A handle may be mapped to
// itself. Empty handles are ignored.
func (t *Table) AddMapping(canonical, alternative string) {
	if canonical == "" || alternative == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.linkLocked(canonical, alternative)
}

// AddMappingIfUnmapped behaves like AddMapping unless canonical already has a
// different counterpart, in which case the table is left alone and false is
// returned.
func (t *Table) AddMappingIfUnmapped(canonical, alternative string) bool {
	if canonical == "" || alternative == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.mapping[canonical]; ok {
		return existing == alternative
	}
	t.linkLocked(canonical, alternative)
	return true
}

// Resolve returns the counterpart of handle, if one is registered.
func (t *Table) Resolve(handle string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	other, ok := t.mapping[handle]
	return other, ok
}

// Forget removes handle and its counterpart.
func (t *Table) Forget(handle string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unlinkLocked(handle)
}

// Len returns the number of registered pairs.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for a, b := range t.mapping {
		if a <= b {
			n++
		}
	}
	return n
}

// Pair is one registered equivalence.
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// Snapshot returns every pair once, ordered by the lexically smaller handle.
func (t *Table) Snapshot() []Pair {
	t.mu.RLock()
	pairs := make([]Pair, 0, len(t.mapping)/2)
	for a, b := range t.mapping {
		if a <= b {
			pairs = append(pairs, Pair{A: a, B: b})
		}
	}
	t.mu.RUnlock()

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].A < pairs[j].A })
	return pairs
}

func (t *Table) linkLocked(canonical, alternative string) {
	t.unlinkLocked(canonical)
	t.unlinkLocked(alternative)
	t.mapping[canonical] = alternative
	t.mapping[alternative] = canonical
}

func (t *Table) unlinkLocked(handle string) {
	other, ok := t.mapping[handle]
	if !ok {
		return
	}
	delete(t.mapping, handle)
	if t.mapping[other] == handle {
		delete(t.mapping, other)
	}
}
