package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

var (
	// ErrEmptyBatch is returned when grouping against zero original sentences.
	ErrEmptyBatch = errors.New("empty sentence batch")
	// ErrBlockMismatch is returned when the flat result is not a positive
	// multiple of the number of original sentences.
	ErrBlockMismatch = errors.New("flat result does not split into equal blocks")
	// ErrNotFound is returned when an artifact does not exist.
	ErrNotFound = errors.New("artifact not found")
	// ErrParse is returned when an artifact is not a JSON object of string arrays.
	ErrParse = errors.New("artifact parse error")
)

const indent = "    "

// Report describes the outcome of grouping a flat result.
type Report struct {
	Keys         int
	VariantCount int
	// Collisions counts blocks whose key sentence was already present and
	// overwrote the earlier block's variants.
	Collisions int
}

// Group splits flat into len(sentences) consecutive blocks. The first entry of
// each block becomes the key and the rest its variants.
func Group(sentences, flat []string) (*Groups, Report, error) {
	if len(sentences) == 0 {
		return nil, Report{}, ErrEmptyBatch
	}
	if len(flat) == 0 || len(flat)%len(sentences) != 0 {
		return nil, Report{}, fmt.Errorf("%w: %d results for %d sentences", ErrBlockMismatch, len(flat), len(sentences))
	}

	n := len(flat) / len(sentences)
	g := NewGroups()
	rep := Report{VariantCount: n}
	for i := 0; i < len(flat); i += n {
		key := flat[i]
		if g.Set(key, flat[i+1:i+n]) {
			rep.Collisions++
			slog.Warn("key sentence collision, earlier variants overwritten", "key", key, "block", i/n)
		}
	}
	rep.Keys = g.Len()
	return g, rep, nil
}

// Save groups flat by sentences and writes the result to path.
func Save(path string, sentences, flat []string) (Report, error) {
	g, rep, err := Group(sentences, flat)
	if err != nil {
		return Report{}, err
	}
	if err := Write(path, g); err != nil {
		return Report{}, err
	}
	slog.Debug("saved paraphrases", "path", path, "keys", rep.Keys, "variant_count", rep.VariantCount)
	return rep, nil
}

// Encode returns the artifact form of g: a JSON object indented by four spaces.
func Encode(g *Groups) ([]byte, error) {
	raw, err := g.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write replaces the artifact at path with g. The parent directory is
// created if needed and the file is swapped in with a rename.
func Write(path string, g *Groups) error {
	data, err := Encode(g)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0644)
}

// Load reads the artifact at path.
func Load(path string) (*Groups, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	g := NewGroups()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}
	return g, nil
}

// LoadFlat reads the artifact at path and flattens it back into the
// generation order: each key followed by its variants.
func LoadFlat(path string) ([]string, error) {
	g, err := Load(path)
	if err != nil {
		return nil, err
	}
	return g.Flatten(), nil
}
