package ingest

import (
	"context"

	"github.com/huangsam/skysched/schema"
)

// KeyCache maps natural keys to stored identities for the duration of one ingestion.
// It is not safe for concurrent use and is discarded when the ingestion ends.
type KeyCache[K comparable] struct {
	ids    map[K]int64
	hits   int
	misses int
}

// NewKeyCache returns an empty cache.
func NewKeyCache[K comparable]() *KeyCache[K] {
	return &KeyCache[K]{ids: make(map[K]int64)}
}

// Put records a known identity, typically while preloading from the store.
func (c *KeyCache[K]) Put(key K, id int64) {
	c.ids[key] = id
}

// Get returns the cached identity of key.
func (c *KeyCache[K]) Get(key K) (int64, bool) {
	id, ok := c.ids[key]
	return id, ok
}

// Len returns the number of cached keys.
func (c *KeyCache[K]) Len() int { return len(c.ids) }

// Each calls fn for every cached key and identity.
func (c *KeyCache[K]) Each(fn func(key K, id int64)) {
	for k, id := range c.ids {
		fn(k, id)
	}
}

// Stats returns the hit and miss counts of GetOrCreate.
func (c *KeyCache[K]) Stats() (hits, misses int) { return c.hits, c.misses }

// GetOrCreate returns the identity of key, calling create only on a miss. The new
// identity is cached immediately so repeated keys reuse it without another round trip.
func (c *KeyCache[K]) GetOrCreate(ctx context.Context, key K, create func(context.Context) (int64, error)) (int64, error) {
	if id, ok := c.ids[key]; ok {
		c.hits++
		return id, nil
	}
	c.misses++
	id, err := create(ctx)
	if err != nil {
		return 0, err
	}
	c.ids[key] = id
	return id, nil
}

// Caches holds one KeyCache per deduplicated entity.
type Caches struct {
	Targets     *KeyCache[schema.TargetKey]
	Altitudes   *KeyCache[schema.AngleKey]
	Azimuths    *KeyCache[schema.AngleKey]
	Constraints *KeyCache[schema.ConstraintKey]
}

// NewCaches returns empty caches for every entity.
func NewCaches() *Caches {
	return &Caches{
		Targets:     NewKeyCache[schema.TargetKey](),
		Altitudes:   NewKeyCache[schema.AngleKey](),
		Azimuths:    NewKeyCache[schema.AngleKey](),
		Constraints: NewKeyCache[schema.ConstraintKey](),
	}
}
