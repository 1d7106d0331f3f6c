package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

type MemoryCache struct {
	c   *ristretto.Cache[string, *Entry]
	ttl time.Duration
}

// NewMemoryCache keeps at most maxEntries rankings in process, each costing 1.
func NewMemoryCache(maxEntries int64, ttl time.Duration) (*MemoryCache, error) {
	if maxEntries <= 0 {
		maxEntries = 10_000
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, *Entry]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return &MemoryCache{c: c, ttl: ttl}, nil
}

func (m *MemoryCache) Name() string { return "memory" }

func (m *MemoryCache) Get(_ context.Context, fp Fingerprint) (*Entry, bool, error) {
	e, ok := m.c.Get(fp.String())
	if !ok || e == nil {
		return nil, false, nil
	}
	return e.clone(), true, nil
}

func (m *MemoryCache) Set(_ context.Context, fp Fingerprint, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("nil entry")
	}
	m.c.SetWithTTL(fp.String(), entry.clone(), 1, m.ttl)
	// make the write visible to the next Get
	m.c.Wait()
	return nil
}

// Close stops ristretto's background goroutines.
func (m *MemoryCache) Close() {
	m.c.Close()
}
