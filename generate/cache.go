package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// CachedModel remembers each sentence's block for a TTL so repeated
// sentences do not reach the inner model again.
type CachedModel struct {
	inner Model
	name  string
	cache *ttlcache.Cache[string, []string]
}

// NewCachedModel wraps inner. name identifies the model in cache keys.
// A capacity of 0 leaves the cache unbounded.
func NewCachedModel(inner Model, name string, ttl time.Duration, capacity uint64) *CachedModel {
	c := ttlcache.New[string, []string](
		ttlcache.WithTTL[string, []string](ttl),
		ttlcache.WithCapacity[string, []string](capacity),
		ttlcache.WithDisableTouchOnHit[string, []string](),
	)
	go c.Start()
	return &CachedModel{inner: inner, name: name, cache: c}
}

// Close stops the cache expiration loop.
func (m *CachedModel) Close() {
	m.cache.Stop()
}

// Len returns the number of cached blocks.
func (m *CachedModel) Len() int {
	return m.cache.Len()
}

func (m *CachedModel) key(sentence string, n int) string {
	return m.name + "\x00" + strconv.Itoa(n) + "\x00" + sentence
}

// Paraphrase serves cached blocks and sends only the misses to the inner
// model, keeping input order.
func (m *CachedModel) Paraphrase(ctx context.Context, sentences []string, n int) ([][]string, error) {
	blocks := make([][]string, len(sentences))
	var missIdx []int
	var misses []string
	for i, s := range sentences {
		if item := m.cache.Get(m.key(s, n)); item != nil {
			blocks[i] = cloneStrings(item.Value())
			continue
		}
		missIdx = append(missIdx, i)
		misses = append(misses, s)
	}

	slog.Debug("generation cache", "hits", len(sentences)-len(misses), "misses", len(misses))
	if len(misses) == 0 {
		return blocks, nil
	}

	got, err := m.inner.Paraphrase(ctx, misses, n)
	if err != nil {
		return nil, err
	}
	if len(got) == 0 {
		return nil, nil
	}
	if len(got) != len(misses) {
		return nil, fmt.Errorf("%w: %d blocks for %d sentences", ErrResponseInvalid, len(got), len(misses))
	}

	for j, i := range missIdx {
		blocks[i] = got[j]
		if len(got[j]) == n {
			m.cache.Set(m.key(misses[j], n), cloneStrings(got[j]), ttlcache.DefaultTTL)
		}
	}
	return blocks, nil
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
