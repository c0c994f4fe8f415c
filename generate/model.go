package generate

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotConfigured is returned when no model endpoint is configured.
	ErrNotConfigured = errors.New("generation endpoint not configured")
	// ErrInvalidInput is returned when a batch fails validation. The model is
	// not called.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyOutput is returned when the model produced no variants at all.
	ErrEmptyOutput = errors.New("model returned no output")
	// ErrResponseInvalid is returned when the model output does not have the
	// block shape that was asked for.
	ErrResponseInvalid = errors.New("invalid model response")
)

// Model is the external paraphrase model. For each input sentence it returns
// one block of n variants, blocks in input order.
type Model interface {
	Paraphrase(ctx context.Context, sentences []string, n int) ([][]string, error)
}

// Batch is a paraphrase request: the sentences to reword and the number of
// variants per sentence, the first near-identical variant included.
type Batch struct {
	Sentences    []string
	VariantCount int
}

// Validate checks the batch before any model call.
func (b Batch) Validate() error {
	if len(b.Sentences) == 0 {
		return fmt.Errorf("%w: no sentences", ErrInvalidInput)
	}
	for i, s := range b.Sentences {
		if s == "" {
			return fmt.Errorf("%w: sentence %d is empty", ErrInvalidInput, i)
		}
	}
	if b.VariantCount <= 0 {
		return fmt.Errorf("%w: variant count must be positive, got %d", ErrInvalidInput, b.VariantCount)
	}
	return nil
}

// Paraphraser validates batches and flattens the model's per-sentence blocks.
type Paraphraser struct {
	model Model
}

// NewParaphraser creates a paraphraser backed by m.
func NewParaphraser(m Model) *Paraphraser {
	return &Paraphraser{model: m}
}

// Generate returns len(b.Sentences)*b.VariantCount variants laid out as
// consecutive blocks of b.VariantCount, one block per sentence in input order.
// It never returns an empty slice with a nil error.
func (p *Paraphraser) Generate(ctx context.Context, b Batch) ([]string, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	blocks, err := p.model.Paraphrase(ctx, b.Sentences, b.VariantCount)
	if err != nil {
		return nil, fmt.Errorf("paraphrase: %w", err)
	}
	if countVariants(blocks) == 0 {
		return nil, ErrEmptyOutput
	}
	if len(blocks) != len(b.Sentences) {
		return nil, fmt.Errorf("%w: %d blocks for %d sentences", ErrResponseInvalid, len(blocks), len(b.Sentences))
	}

	flat := make([]string, 0, len(b.Sentences)*b.VariantCount)
	for i, block := range blocks {
		if len(block) != b.VariantCount {
			return nil, fmt.Errorf("%w: block %d has %d variants, want %d", ErrResponseInvalid, i, len(block), b.VariantCount)
		}
		flat = append(flat, block...)
	}
	return flat, nil
}

func countVariants(blocks [][]string) int {
	n := 0
	for _, b := range blocks {
		n += len(b)
	}
	return n
}

// LazyModel builds its Model on first use. The build runs at most once; its
// result, including a failure, is kept for the lifetime of the LazyModel.
type LazyModel struct {
	build func() (Model, error)

	once  sync.Once
	model Model
	err   error
}

// NewLazyModel returns a LazyModel that calls build on first use.
func NewLazyModel(build func() (Model, error)) *LazyModel {
	return &LazyModel{build: build}
}

// Get returns the built model.
func (l *LazyModel) Get() (Model, error) {
	l.once.Do(func() {
		l.model, l.err = l.build()
	})
	return l.model, l.err
}

// Paraphrase builds the model if needed and delegates to it.
func (l *LazyModel) Paraphrase(ctx context.Context, sentences []string, n int) ([][]string, error) {
	m, err := l.Get()
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return m.Paraphrase(ctx, sentences, n)
}
