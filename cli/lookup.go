package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	reword "github.com/Paranoid-AF/reword"
	"github.com/Paranoid-AF/reword/dataset"
	"github.com/Paranoid-AF/reword/index"
)

func newLookupCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "lookup path query",
		Short: "Find the saved key sentences closest in meaning to a query",
		Long: `Embed the key sentences of a saved paraphrase file and print the ones
closest to the query, each with its variants. Embeddings are cached between
runs; the embedding endpoint comes from the embedding section of the config.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if !reword.EmbeddingEnabled(cfg) {
				return fmt.Errorf("embedding is not configured; set embedding.base_url and embedding.api_key in %s", reword.ConfigPath())
			}
			if topK <= 0 {
				topK = cfg.Embedding.TopK
			}

			g, err := dataset.Load(args[0])
			if err != nil {
				return err
			}

			idx := index.NewKeyIndex(index.NewEmbedder(
				reword.ResolveEmbeddingBaseURL(cfg),
				reword.ResolveEmbeddingAPIKey(cfg),
				reword.ResolveEmbeddingModel(cfg),
			))

			cachePath := reword.IndexCachePath()
			if err := idx.LoadCache(cachePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Warn("ignoring unreadable embedding cache", "path", cachePath, "error", err)
			}
			if err := idx.Build(cmd.Context(), g.Keys()); err != nil {
				return fmt.Errorf("index keys: %w", err)
			}
			if err := idx.SaveCache(cachePath); err != nil {
				slog.Warn("failed to save embedding cache", "path", cachePath, "error", err)
			}

			keys, err := idx.Nearest(cmd.Context(), args[1], topK)
			if err != nil {
				return fmt.Errorf("lookup: %w", err)
			}

			type match struct {
				Key      string   `json:"key"`
				Variants []string `json:"variants"`
			}
			matches := make([]match, 0, len(keys))
			for _, k := range keys {
				variants, ok := g.Get(k)
				if !ok {
					continue
				}
				matches = append(matches, match{Key: k, Variants: variants})
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "    ")
			return enc.Encode(matches)
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of matches (default from config)")
	return cmd
}
