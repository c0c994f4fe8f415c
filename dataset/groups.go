// Package dataset groups flat paraphrase output into key sentence blocks and
// persists them as an indented JSON object.
package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Groups is an ordered mapping from a key sentence to its variants.
// Keys keep their first insertion position; setting an existing key replaces
// its variants in place.
type Groups struct {
	keys     []string
	variants map[string][]string
}

// NewGroups returns an empty mapping.
func NewGroups() *Groups {
	return &Groups{variants: make(map[string][]string)}
}

// Set stores variants under key and reports whether key already existed.
func (g *Groups) Set(key string, variants []string) (replaced bool) {
	if g.variants == nil {
		g.variants = make(map[string][]string)
	}
	_, replaced = g.variants[key]
	if !replaced {
		g.keys = append(g.keys, key)
	}
	cp := make([]string, len(variants))
	copy(cp, variants)
	g.variants[key] = cp
	return replaced
}

// Get returns the variants stored under key.
func (g *Groups) Get(key string) ([]string, bool) {
	v, ok := g.variants[key]
	return v, ok
}

// Keys returns the key sentences in insertion order.
func (g *Groups) Keys() []string {
	out := make([]string, len(g.keys))
	copy(out, g.keys)
	return out
}

// Len returns the number of key sentences.
func (g *Groups) Len() int { return len(g.keys) }

// Flatten emits every key followed by its variants, in key order.
func (g *Groups) Flatten() []string {
	out := make([]string, 0, len(g.keys))
	for _, k := range g.keys {
		out = append(out, k)
		out = append(out, g.variants[k]...)
	}
	return out
}

// MarshalJSON encodes the mapping as a JSON object in key order.
// HTML characters are left unescaped and empty variant lists encode as [].
func (g *Groups) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, k := range g.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(k); err != nil {
			return nil, err
		}
		buf.Truncate(buf.Len() - 1) // Encode appends '\n'
		buf.WriteByte(':')
		vals := g.variants[k]
		if vals == nil {
			vals = []string{}
		}
		if err := enc.Encode(vals); err != nil {
			return nil, err
		}
		buf.Truncate(buf.Len() - 1)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of string arrays, keeping key order.
// A key repeated in the document keeps its first position and its last value.
func (g *Groups) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}

	out := NewGroups()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", tok)
		}
		var vals []string
		if err := dec.Decode(&vals); err != nil {
			return fmt.Errorf("value of %q: %w", key, err)
		}
		if vals == nil {
			return fmt.Errorf("value of %q: expected array, got null", key)
		}
		out.Set(key, vals)
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after object")
	}

	*g = *out
	return nil
}
