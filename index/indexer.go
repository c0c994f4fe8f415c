package index

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/hnsw"
)

const indexBatchSize = 32

// KeyIndex holds embeddings of artifact keys for nearest-neighbour lookups.
// It is safe for concurrent use.
type KeyIndex struct {
	embedder *Embedder

	mu    sync.RWMutex
	graph *hnsw.Graph[string] // keyed by sentence hash
	keys  map[string]string   // hash -> sentence
	dims  int
}

// NewKeyIndex creates an empty index. A nil embedder disables it: Build is a
// no-op and Nearest returns no results.
func NewKeyIndex(embedder *Embedder) *KeyIndex {
	return &KeyIndex{
		embedder: embedder,
		graph:    hnsw.NewGraph[string](),
		keys:     make(map[string]string),
	}
}

// EmbeddingModel returns the model name used by the embedder, or empty if disabled.
func (idx *KeyIndex) EmbeddingModel() string {
	if idx.embedder == nil {
		return ""
	}
	return idx.embedder.Model()
}

// Len returns the number of indexed keys.
func (idx *KeyIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.keys)
}

// Build embeds every key not already in the index. A failed batch is logged
// and skipped; the first such error is returned after the remaining batches
// have been tried.
func (idx *KeyIndex) Build(ctx context.Context, keys []string) error {
	if idx.embedder == nil {
		return nil
	}

	idx.mu.RLock()
	var toEmbed []string
	seen := make(map[string]bool)
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		if _, exists := idx.keys[hashKey(k)]; !exists {
			toEmbed = append(toEmbed, k)
		}
	}
	idx.mu.RUnlock()

	if len(toEmbed) == 0 {
		return nil
	}

	var firstErr error
	var nodes []hnsw.Node[string]
	texts := make(map[string]string, len(toEmbed))
	for i := 0; i < len(toEmbed); i += indexBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+indexBatchSize, len(toEmbed))
		batch := toEmbed[i:end]

		vectors, err := idx.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			slog.Error("batch embed error", "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for j, k := range batch {
			hash := hashKey(k)
			nodes = append(nodes, hnsw.MakeNode(hash, vectors[j]))
			texts[hash] = k
		}
	}

	idx.mu.Lock()
	added := idx.addLocked(nodes, texts)
	idx.mu.Unlock()

	slog.Debug("indexed keys", "added", added, "requested", len(keys))
	return firstErr
}

// addLocked inserts nodes whose dimensionality matches the graph. texts maps
// node keys to sentences.
func (idx *KeyIndex) addLocked(nodes []hnsw.Node[string], texts map[string]string) int {
	accepted := make([]hnsw.Node[string], 0, len(nodes))
	for _, n := range nodes {
		if len(n.Value) == 0 {
			continue
		}
		if idx.dims == 0 {
			idx.dims = len(n.Value)
		}
		if len(n.Value) != idx.dims {
			slog.Warn("skipping embedding with mismatched dimensions", "got", len(n.Value), "want", idx.dims)
			continue
		}
		if _, exists := idx.keys[n.Key]; exists {
			continue
		}
		idx.keys[n.Key] = texts[n.Key]
		accepted = append(accepted, n)
	}
	if len(accepted) > 0 {
		idx.graph.Add(accepted...)
	}
	return len(accepted)
}

// Nearest embeds the query and returns up to k indexed keys, closest first.
func (idx *KeyIndex) Nearest(ctx context.Context, query string, k int) ([]string, error) {
	if idx.embedder == nil || k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	empty := len(idx.keys) == 0
	idx.mu.RUnlock()
	if empty {
		return nil, nil
	}

	queryVec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(queryVec) != idx.dims {
		return nil, fmt.Errorf("query embedding has %d dimensions, index has %d", len(queryVec), idx.dims)
	}
	neighbors := idx.graph.Search(queryVec, k)
	out := make([]string, len(neighbors))
	for i, n := range neighbors {
		out[i] = idx.keys[n.Key]
	}
	return out, nil
}

func hashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", h)
}
