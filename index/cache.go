package index

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/coder/hnsw"
	"github.com/google/renameio"
)

type cacheFile struct {
	Model   string       `json:"model"`
	Entries []cacheEntry `json:"entries"`
}

type cacheEntry struct {
	Hash      string    `json:"hash"`
	Key       string    `json:"key"`
	Embedding []float32 `json:"embedding"`
}

// SaveCache writes the indexed keys and their embeddings to path, tagged with
// the embedding model.
func (idx *KeyIndex) SaveCache(path string) error {
	idx.mu.RLock()
	entries := make([]cacheEntry, 0, len(idx.keys))
	for hash, key := range idx.keys {
		vec, ok := idx.graph.Lookup(hash)
		if !ok {
			continue
		}
		entries = append(entries, cacheEntry{Hash: hash, Key: key, Embedding: vec})
	}
	idx.mu.RUnlock()

	data, err := json.Marshal(cacheFile{
		Model:   idx.EmbeddingModel(),
		Entries: entries,
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0644)
}

// LoadCache loads a previously saved index from path. A cache written for a
// different embedding model is skipped silently.
func (idx *KeyIndex) LoadCache(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return err
	}

	if cf.Model != idx.EmbeddingModel() {
		return nil
	}

	nodes := make([]hnsw.Node[string], 0, len(cf.Entries))
	texts := make(map[string]string, len(cf.Entries))
	for _, e := range cf.Entries {
		if e.Hash != hashKey(e.Key) {
			continue
		}
		nodes = append(nodes, hnsw.MakeNode(e.Hash, e.Embedding))
		texts[e.Hash] = e.Key
	}

	idx.mu.Lock()
	idx.addLocked(nodes, texts)
	idx.mu.Unlock()
	return nil
}
