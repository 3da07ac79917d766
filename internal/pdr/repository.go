package pdr

import "sync"

// Repository stores PDR records indexed by handle and lets callers
// iterate in next_handle order, filter by type, or remove all records
// belonging to a terminus. Handle 0 is reserved and never assigned or
// returned by lookup.
type Repository struct {
	mu      sync.RWMutex
	records map[uint32]*Record
	order   []uint32 // handles in insertion (== next_handle chain) order
	nextHandle uint32
}

// New constructs an empty repository.
func New() *Repository {
	return &Repository{
		records:    make(map[uint32]*Record),
		nextHandle: 1,
	}
}

// Add appends record, assigning it the next monotonically increasing
// handle and linking the previous tail's NextHandle to it. The
// terminal record's NextHandle is 0 until the next Add extends it.
func (r *Repository) Add(rec *Record) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle := r.nextHandle
	r.nextHandle++

	rec.Handle = handle
	rec.NextHandle = 0

	if len(r.order) > 0 {
		prev := r.records[r.order[len(r.order)-1]]
		prev.NextHandle = handle
	}

	r.records[handle] = rec
	r.order = append(r.order, handle)
	return handle
}

// GetByHandle looks up a record by handle. Handle 0 always misses.
func (r *Repository) GetByHandle(handle uint32) (*Record, bool) {
	if handle == 0 {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[handle]
	return rec, ok
}

// GetFirst returns the first record in traversal order and a cursor
// (its handle) to pass to GetNext. Reports ok=false on an empty
// repository.
func (r *Repository) GetFirst() (handle uint32, rec *Record, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return 0, nil, false
	}
	h := r.order[0]
	return h, r.records[h], true
}

// GetNext returns the record following cursor in traversal order.
// Reports ok=false when cursor is the terminal record or no longer
// exists (it was removed).
func (r *Repository) GetNext(cursor uint32) (handle uint32, rec *Record, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cur, exists := r.records[cursor]
	if !exists || cur.NextHandle == 0 {
		return 0, nil, false
	}
	next, exists := r.records[cur.NextHandle]
	if !exists {
		return 0, nil, false
	}
	return cur.NextHandle, next, true
}

// FilterByType copies every record whose Type equals typ into dst, in
// traversal order. dst's own handle assignment is independent of the
// source repository's.
func (r *Repository) FilterByType(dst *Repository, typ uint8) {
	r.mu.RLock()
	matches := make([]*Record, 0)
	for _, h := range r.order {
		rec := r.records[h]
		if rec.Type == typ {
			matches = append(matches, rec)
		}
	}
	r.mu.RUnlock()

	for _, rec := range matches {
		copyRec := *rec
		dst.Add(&copyRec)
	}
}

// RemoveByTerminusHandle removes every record whose embedded terminus
// handle equals th. Records with no terminus association never match.
// Removed handles are not reused within the session.
func (r *Repository) RemoveByTerminusHandle(th uint16) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	newOrder := make([]uint32, 0, len(r.order))
	var prevKept *Record
	for _, h := range r.order {
		rec := r.records[h]
		if tHandle, ok := terminusHandle(rec); ok && tHandle == th {
			delete(r.records, h)
			removed++
			continue
		}
		if prevKept != nil {
			prevKept.NextHandle = rec.Handle
		}
		rec.NextHandle = 0
		prevKept = rec
		newOrder = append(newOrder, h)
	}
	r.order = newOrder
	return removed
}

// Empty reports whether the repository currently holds no records.
func (r *Repository) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order) == 0
}
