package embedpool

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

// CacheEntry is a single embedding cache record (spec §3 "Embedding Cache
// Entry"), keyed by SHA-256 of the embedding text rather than raw content.
type CacheEntry struct {
	Embedding    []float32
	HitCount     int
	LastAccessed time.Time
	CreatedAt    time.Time
}

// Cache is the embedding pool's shared deduplication cache. It is owned
// exclusively by the pool parent; eviction is guarded by a single-writer
// flag so concurrent eviction calls coalesce into one (spec §4.4, §5).
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*CacheEntry
	maxSize   int
	evicting  bool
	now       func() time.Time
}

// NewCache creates a cache bounded at maxSize entries.
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 50_000
	}
	return &Cache{
		entries: make(map[string]*CacheEntry),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// EmbeddingText computes the text used both as the cache fingerprint input
// and, hashed, as the cache key: symbol name, chunk kind, content, and the
// first three imports joined by space.
func EmbeddingText(symbolName, kind, content string, imports []string) string {
	n := len(imports)
	if n > 3 {
		n = 3
	}
	parts := []string{symbolName, kind, content, strings.Join(imports[:n], " ")}
	return strings.Join(parts, "\n")
}

// Fingerprint returns the cache key for a piece of embedding text.
func Fingerprint(embeddingText string) string {
	sum := sha256.Sum256([]byte(embeddingText))
	return hex.EncodeToString(sum[:])
}

// Get returns a cached embedding and bumps its hit count/access time.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry.HitCount++
	entry.LastAccessed = c.now()
	return entry.Embedding, true
}

// Put inserts or refreshes a cache entry and triggers eviction if the cache
// has grown past 80% of maxSize.
func (c *Cache) Put(key string, embedding []float32) {
	c.mu.Lock()
	now := c.now()
	c.entries[key] = &CacheEntry{
		Embedding:    embedding,
		HitCount:     0,
		LastAccessed: now,
		CreatedAt:    now,
	}
	shouldEvict := len(c.entries) > (c.maxSize*80)/100 && !c.evicting
	if shouldEvict {
		c.evicting = true
	}
	c.mu.Unlock()

	if shouldEvict {
		c.evict()
	}
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry, used on pool shutdown.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*CacheEntry)
}

// evict drops the bottom 20% of entries by LRU score
// (now-last_accessed)/(hit_count+1); a higher score means less valuable.
func (c *Cache) evict() {
	defer func() {
		c.mu.Lock()
		c.evicting = false
		c.mu.Unlock()
	}()

	c.mu.Lock()
	now := c.now()
	type scored struct {
		key   string
		score float64
	}
	scoredEntries := make([]scored, 0, len(c.entries))
	for k, e := range c.entries {
		age := now.Sub(e.LastAccessed).Seconds()
		score := age / float64(e.HitCount+1)
		scoredEntries = append(scoredEntries, scored{k, score})
	}
	c.mu.Unlock()

	sort.Slice(scoredEntries, func(i, j int) bool {
		return scoredEntries[i].score > scoredEntries[j].score
	})

	dropCount := len(scoredEntries) / 5
	if dropCount == 0 {
		return
	}

	c.mu.Lock()
	for _, s := range scoredEntries[:dropCount] {
		delete(c.entries, s.key)
	}
	c.mu.Unlock()
}
