package channel

import "sync"

type entry[H any] struct {
	key     string
	id      uint64
	handler H
}

// registry keeps handlers keyed by a stable name. Setting an existing key
// replaces the handler in place, so re-registering never duplicates delivery.
type registry[H any] struct {
	mu      sync.Mutex
	entries []entry[H]
	nextID  uint64
}

func (r *registry[H]) set(key string, h H) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID

	replaced := false
	for i := range r.entries {
		if r.entries[i].key == key {
			r.entries[i] = entry[H]{key: key, id: id, handler: h}
			replaced = true
			break
		}
	}
	if !replaced {
		r.entries = append(r.entries, entry[H]{key: key, id: id, handler: h})
	}

	return func() { r.remove(key, id) }
}

// remove drops key only if it still holds the registration identified by id
func (r *registry[H]) remove(key string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		if r.entries[i].key == key && r.entries[i].id == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

func (r *registry[H]) list() []entry[H] {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]entry[H], len(r.entries))
	copy(out, r.entries)
	return out
}
