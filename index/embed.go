// Package index finds the stored sentences closest in meaning to a query,
// using embeddings from an OpenAI-compatible API and an HNSW graph.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyEmbedding is returned when the API answers without vectors.
var ErrEmptyEmbedding = errors.New("empty embedding response")

// Embedder generates vector embeddings via an OpenAI-compatible /v1/embeddings API.
type Embedder struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewEmbedder creates an embedder for the given API endpoint.
func NewEmbedder(baseURL, apiKey, model string) *Embedder {
	return &Embedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

type embeddingRequest struct {
	Input any    `json:"input"` // string or []string
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []embeddingDataItem `json:"data"`
}

type embeddingDataItem struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// Embed generates an embedding vector for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := e.request(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return result.Data[0].Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts in a single request.
// Vectors are returned in input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result, err := e.request(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("%w: %d vectors for %d inputs", ErrEmptyEmbedding, len(result.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, item := range result.Data {
		pos := item.Index
		if pos < 0 || pos >= len(texts) || vectors[pos] != nil {
			pos = i
		}
		vectors[pos] = item.Embedding
	}
	return vectors, nil
}

func (e *Embedder) request(ctx context.Context, input any) (*embeddingResponse, error) {
	data, err := json.Marshal(embeddingRequest{Input: input, Model: e.model})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("embedding API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result embeddingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w (body: %s)", err, string(body))
	}
	return &result, nil
}
