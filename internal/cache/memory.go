package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend is a process-local map. The mutex only protects the map
// itself; it does not serialize producers.
type MemoryBackend struct {
	mu sync.Mutex
	m  map[string]Entry
}

func NewMemory() *MemoryBackend {
	return &MemoryBackend{m: make(map[string]Entry)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) (*Entry, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.m[key]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, e Entry, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[key] = e
	return nil
}

func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.m)
}
