package rrdp

// Table is the session table: an ordered collection of sessions keyed by
// the parent-assigned numeric id, supporting insert, lookup, remove, and
// insertion-ordered iteration (spec §2 "Session table").
type Table struct {
	order []uint32
	byID  map[uint32]*Session
}

// NewTable returns an empty session table.
func NewTable() *Table {
	return &Table{byID: make(map[uint32]*Session)}
}

// Insert adds a new session to the table. It returns false, leaving the
// table unchanged, if id is already present — the parent reusing a live
// session id is a protocol invariant violation (spec §4 "Session id
// reuse").
func (t *Table) Insert(s *Session) bool {
	if _, exists := t.byID[s.ID]; exists {
		return false
	}
	t.byID[s.ID] = s
	t.order = append(t.order, s.ID)
	return true
}

// Lookup returns the session for id, or nil if absent.
func (t *Table) Lookup(id uint32) *Session {
	return t.byID[id]
}

// Remove retires a session from the table.
func (t *Table) Remove(id uint32) {
	if _, exists := t.byID[id]; !exists {
		return
	}
	delete(t.byID, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of sessions currently tracked.
func (t *Table) Len() int {
	return len(t.order)
}

// Each calls fn once per session, in insertion order. fn must not mutate
// the table; callers wishing to remove sessions during iteration should
// collect ids first and call Remove afterward.
func (t *Table) Each(fn func(s *Session)) {
	for _, id := range t.order {
		fn(t.byID[id])
	}
}
