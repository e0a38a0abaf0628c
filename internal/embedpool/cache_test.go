package embedpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutAndGet(t *testing.T) {
	c := NewCache(100)
	key := Fingerprint("hello")
	c.Put(key, []float32{1, 2, 3})

	emb, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, emb)
}

func TestCache_MissReturnsFalse(t *testing.T) {
	c := NewCache(100)
	_, ok := c.Get(Fingerprint("nope"))
	assert.False(t, ok)
}

func TestCache_EvictsBottomTwentyPercentByScore(t *testing.T) {
	c := NewCache(10)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	for i := 0; i < 9; i++ {
		c.Put(Fingerprint(string(rune('a'+i))), []float32{float32(i)})
	}

	// Age every existing entry heavily (zero hits each), so they all score
	// far higher (less valuable) than the fresh trigger entry, which scores 0
	// and must survive eviction.
	c.now = func() time.Time { return base.Add(1000 * time.Hour) }
	c.Put(Fingerprint("trigger"), []float32{99})

	// After crossing 80% of maxSize(10)=8 entries, eviction runs and drops
	// 20% (one entry) each time: 9 -> 8 on the ninth put, 9 -> 8 again on
	// the trigger.
	assert.Equal(t, 8, c.Len())
	_, ok := c.Get(Fingerprint("trigger"))
	assert.True(t, ok)
}

func TestEmbeddingText_UsesFirstThreeImportsOnly(t *testing.T) {
	text := EmbeddingText("Foo", "function", "body", []string{"a", "b", "c", "d"})
	assert.Contains(t, text, "a b c")
	assert.NotContains(t, text, "d")
}

func TestFingerprint_Deterministic(t *testing.T) {
	assert.Equal(t, Fingerprint("same"), Fingerprint("same"))
	assert.NotEqual(t, Fingerprint("a"), Fingerprint("b"))
}
