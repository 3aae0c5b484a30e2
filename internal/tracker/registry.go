package tracker

import "slices"

// registry stores one entity kind keyed by id and remembers insertion order.
type registry[T any] struct {
	items map[int64]T
	order []int64
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{items: make(map[int64]T)}
}

func (r *registry[T]) get(id int64) (T, bool) {
	item, ok := r.items[id]
	return item, ok
}

// put replaces an existing entry in place or appends a new one.
func (r *registry[T]) put(id int64, item T) {
	if _, ok := r.items[id]; !ok {
		r.order = append(r.order, id)
	}
	r.items[id] = item
}

func (r *registry[T]) remove(id int64) bool {
	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	if index := slices.Index(r.order, id); index >= 0 {
		r.order = slices.Delete(r.order, index, index+1)
	}
	return true
}

func (r *registry[T]) ids() []int64 {
	return slices.Clone(r.order)
}

func (r *registry[T]) values() []T {
	result := make([]T, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.items[id])
	}
	return result
}

func (r *registry[T]) clear() {
	r.items = make(map[int64]T)
	r.order = nil
}

func (r *registry[T]) len() int {
	return len(r.order)
}
