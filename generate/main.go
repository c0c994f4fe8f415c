// Package generate turns sentence batches into paraphrase variants through an
// external model.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	reword "github.com/Paranoid-AF/reword"
	"github.com/Paranoid-AF/reword/dataset"
)

// Engine wires configuration, the model, the generation cache and the
// concurrency limit behind a single request/response call.
type Engine struct {
	config      *reword.Config
	paraphraser *Paraphraser // nil when no model is configured
	cache       *CachedModel
	sem         *semaphore.Weighted
}

// NewEngine creates a new paraphrase engine from the user's config.
func NewEngine() *Engine {
	cfg, err := reword.LoadConfig()
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
		cfg = reword.DefaultConfig()
	}
	return NewEngineWithConfig(cfg)
}

// NewEngineWithConfig creates an engine backed by the configured model endpoint.
func NewEngineWithConfig(cfg *reword.Config) *Engine {
	if !reword.GenerationEnabled(cfg) {
		slog.Warn("generation base_url not configured")
		return NewEngineWithModel(cfg, nil)
	}

	lazy := NewLazyModel(func() (Model, error) {
		gen := NewGenerator(
			reword.ResolveGenerationBaseURL(cfg),
			reword.ResolveGenerationAPIKey(cfg),
			reword.ResolveGenerationModel(cfg),
			cfg.Generation.APIType,
			cfg.Generation.MaxLength,
			cfg.Generation.NumBeams,
			cfg.Generation.Temperature,
			time.Duration(cfg.Generation.TimeoutSeconds)*time.Second,
		)
		if cfg.Generation.APIType == "chat_completions" {
			gen.customPrompt = loadCustomPrompt()
			if err := checkPrompt(gen.customPrompt); err != nil {
				return nil, err
			}
		}
		slog.Info("paraphrase model ready", "model", gen.Model(), "api_type", cfg.Generation.APIType)
		return gen, nil
	})
	return NewEngineWithModel(cfg, lazy)
}

// NewEngineWithModel creates an engine around m. A nil m yields an engine
// that answers every request with a not_configured error.
func NewEngineWithModel(cfg *reword.Config, m Model) *Engine {
	if cfg == nil {
		cfg = reword.DefaultConfig()
	}
	e := &Engine{config: cfg}

	limit := int64(cfg.Generation.MaxConcurrency)
	if limit <= 0 {
		limit = 1
	}
	e.sem = semaphore.NewWeighted(limit)

	if m == nil {
		return e
	}
	if cfg.Cache.TTLMinutes > 0 {
		capacity := uint64(0)
		if cfg.Cache.Capacity > 0 {
			capacity = uint64(cfg.Cache.Capacity)
		}
		e.cache = NewCachedModel(m, reword.ResolveGenerationModel(cfg), time.Duration(cfg.Cache.TTLMinutes)*time.Minute, capacity)
		m = e.cache
	}
	e.paraphraser = NewParaphraser(m)
	return e
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *reword.Config {
	return e.config
}

// Configured reports whether a model is available.
func (e *Engine) Configured() bool {
	return e.paraphraser != nil
}

// Close releases resources held by the engine.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// Generate validates b and returns the flat variant list. At most
// max_concurrency model calls run at once.
func (e *Engine) Generate(ctx context.Context, b Batch) ([]string, error) {
	if e.paraphraser == nil {
		return nil, fmt.Errorf("%w; set REWORD_GENERATION_API_BASE_URL or generation.base_url in %s", ErrNotConfigured, reword.ConfigPath())
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	start := time.Now()
	variants, err := e.paraphraser.Generate(ctx, b)
	if err != nil {
		return nil, err
	}
	slog.Debug("generated variants",
		"sentences", len(b.Sentences),
		"variant_count", b.VariantCount,
		"duration", time.Since(start),
	)
	return variants, nil
}

// Paraphrase processes a request and returns a response. When the request
// names an output path, the grouped artifact is written there.
func (e *Engine) Paraphrase(ctx context.Context, req *reword.Request) *reword.Response {
	batch := Batch{Sentences: req.Sentences, VariantCount: req.VariantCount}
	variants, err := e.Generate(ctx, batch)
	if err != nil {
		code := Classify(err)
		if code != CodeCancelled {
			slog.Error("generation error", "code", code, "error", err)
		}
		return errorResponse(code, err.Error())
	}

	resp := &reword.Response{Variants: variants}
	if req.Output == "" {
		return resp
	}

	path, err := reword.ExpandPath(req.Output)
	if err != nil {
		slog.Error("save error", "output", req.Output, "error", err)
		resp.Error = &reword.Error{Code: CodeSaveError, Message: err.Error()}
		return resp
	}
	rep, err := dataset.Save(path, req.Sentences, variants)
	if err != nil {
		slog.Error("save error", "path", path, "error", err)
		resp.Error = &reword.Error{Code: CodeSaveError, Message: err.Error()}
		return resp
	}
	resp.Report = &reword.Report{
		Path:         path,
		Keys:         rep.Keys,
		VariantCount: rep.VariantCount,
		Collisions:   rep.Collisions,
	}
	return resp
}

func errorResponse(code, msg string) *reword.Response {
	return &reword.Response{
		Variants: []string{},
		Error:    &reword.Error{Code: code, Message: msg},
	}
}
