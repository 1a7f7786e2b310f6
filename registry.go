package dieselshare

import (
	"sort"
	"sync"
)

// Ref is a stable reference into a Registry. The zero Ref is never issued.
type Ref uint64

func makeRef(index, gen uint32) Ref {
	return Ref(uint64(gen)<<32 | uint64(index))
}

func (r Ref) index() uint32 { return uint32(r) }
func (r Ref) gen() uint32   { return uint32(r >> 32) }

type slot[T any] struct {
	value     T
	native    uint64
	hasNative bool
	gen       uint32
	seq       uint64
	live      bool
}

// Registry is an arena of values addressed by Ref. Removing a value never
// moves another one, and a removed Ref stays invalid after its slot is
// reused. Values inserted with a native key can also be found by that key.
type Registry[T any] struct {
	mu     sync.Mutex
	slots  []slot[T]
	free   []uint32
	native map[uint64]Ref
	seq    uint64
	count  int
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{native: make(map[uint64]Ref)}
}

func (r *Registry[T]) Insert(v T) Ref {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(v, 0, false)
}

// InsertNative stores v and indexes it under native. A previous entry with
// the same native key loses its index entry but stays in the arena.
func (r *Registry[T]) InsertNative(v T, native uint64) Ref {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref := r.insert(v, native, true)
	r.native[native] = ref
	return ref
}

func (r *Registry[T]) insert(v T, native uint64, hasNative bool) Ref {
	r.seq++
	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot[T]{})
		idx = uint32(len(r.slots) - 1)
	}
	s := &r.slots[idx]
	s.gen++
	s.value = v
	s.native = native
	s.hasNative = hasNative
	s.seq = r.seq
	s.live = true
	r.count++
	return makeRef(idx, s.gen)
}

func (r *Registry[T]) slot(ref Ref) *slot[T] {
	i := ref.index()
	if ref == 0 || int(i) >= len(r.slots) {
		return nil
	}
	s := &r.slots[i]
	if !s.live || s.gen != ref.gen() {
		return nil
	}
	return s
}

func (r *Registry[T]) Get(ref Ref) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.slot(ref); s != nil {
		return s.value, true
	}
	var zero T
	return zero, false
}

// Lookup finds a value by its native key.
func (r *Registry[T]) Lookup(native uint64) (Ref, T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	ref, ok := r.native[native]
	if !ok {
		return 0, zero, false
	}
	s := r.slot(ref)
	if s == nil {
		return 0, zero, false
	}
	return ref, s.value, true
}

func (r *Registry[T]) Remove(ref Ref) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	s := r.slot(ref)
	if s == nil {
		return zero, false
	}
	v := s.value
	if s.hasNative && r.native[s.native] == ref {
		delete(r.native, s.native)
	}
	s.value = zero
	s.live = false
	s.hasNative = false
	r.free = append(r.free, ref.index())
	r.count--
	return v, true
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Refs lists live references in insertion order.
func (r *Registry[T]) Refs() []Ref {
	r.mu.Lock()
	defer r.mu.Unlock()
	type entry struct {
		ref Ref
		seq uint64
	}
	live := make([]entry, 0, r.count)
	for i := range r.slots {
		s := &r.slots[i]
		if s.live {
			live = append(live, entry{makeRef(uint32(i), s.gen), s.seq})
		}
	}
	sort.Slice(live, func(a, b int) bool { return live[a].seq < live[b].seq })
	refs := make([]Ref, len(live))
	for i, e := range live {
		refs[i] = e.ref
	}
	return refs
}
