package pipeline

import "sync"

// HashRegistry remembers the idempotency hashes that have already produced
// posted output, so the webhook path and the sweep path can both consult the
// same dedup gate. Safe for concurrent use.
type HashRegistry struct {
	mu   sync.RWMutex
	seen map[string]bool
}

func NewHashRegistry() *HashRegistry {
	return &HashRegistry{seen: make(map[string]bool)}
}

func (r *HashRegistry) Seen(hash string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seen[hash]
}

func (r *HashRegistry) Record(hash string) {
	if hash == "" {
		return
	}
	r.mu.Lock()
	r.seen[hash] = true
	r.mu.Unlock()
}
