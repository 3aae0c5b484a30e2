package tracker

// IDAllocator hands out identifiers shared by every entity kind.
// Freed ids are never reused.
type IDAllocator struct {
	last int64
}

// Next increments the counter and returns it; the first id is 1.
func (a *IDAllocator) Next() int64 {
	a.last++
	return a.last
}

// Observe advances the counter to id when id is ahead of it, so explicitly
// numbered entities never collide with later allocations.
func (a *IDAllocator) Observe(id int64) {
	if id > a.last {
		a.last = id
	}
}

// Last returns the most recently allocated or observed id.
func (a *IDAllocator) Last() int64 {
	return a.last
}
