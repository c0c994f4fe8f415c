package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	reword "github.com/Paranoid-AF/reword"
	"github.com/Paranoid-AF/reword/dataset"
)

const defaultVariantCount = 5

// exampleSentences are paraphrased by `reword example`.
var exampleSentences = []string{
	"I wish I was a person who I always wanted to be and who could love themselves.",
	"This is the sentence, which could be counted as the second one.",
}

func newGenerateCmd() *cobra.Command {
	var (
		file   string
		count  int
		output string
		noSave bool
	)

	cmd := &cobra.Command{
		Use:   "generate [sentence...]",
		Short: "Paraphrase sentences and save the grouped result",
		Long: `Paraphrase each sentence into --count variants, the first of which stays
close to the original. Sentences come from the arguments and, with --file,
from a file holding one sentence per line.

The grouped result is written to --output, or to the configured output path.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sentences := append([]string(nil), args...)
			if file != "" {
				fromFile, err := readSentences(file)
				if err != nil {
					return err
				}
				sentences = append(sentences, fromFile...)
			}
			if len(sentences) == 0 {
				return fmt.Errorf("no sentences given")
			}

			cfg := loadConfig()
			if !noSave && output == "" {
				path, err := reword.ResolveOutputPath(cfg)
				if err != nil {
					return fmt.Errorf("resolve output path: %w", err)
				}
				output = path
			}
			if noSave {
				output = ""
			}

			_, err := runGenerate(cmd, cfg, sentences, count, output)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read sentences from `path`, one per line")
	cmd.Flags().IntVarP(&count, "count", "n", defaultVariantCount, "variants per sentence")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the grouped result to `path`")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "print variants without writing a file")
	return cmd
}

func newExampleCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "example",
		Short: "Paraphrase two sample sentences, save them and load them back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := runGenerate(cmd, loadConfig(), exampleSentences, defaultVariantCount, output)
			if err != nil {
				return err
			}
			slog.Info("paraphrase results", "variants", resp.Variants)

			path := output
			if resp.Report != nil {
				path = resp.Report.Path
			}
			g, err := dataset.Load(path)
			if err != nil {
				return err
			}
			for _, key := range g.Keys() {
				variants, _ := g.Get(key)
				slog.Info("loaded group", "key", key, "variants", variants)
			}

			flat, err := dataset.LoadFlat(path)
			if err != nil {
				return err
			}
			slog.Info("loaded list of paraphrases", "sentences", flat)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "assets/paraphrased_sentences.json", "write the grouped result to `path`")
	return cmd
}

// runGenerate sends one request through the engine, prints the variants
// grouped by input sentence and reports where the artifact went.
func runGenerate(cmd *cobra.Command, cfg *reword.Config, sentences []string, count int, output string) (*reword.Response, error) {
	engine := newEngine(cfg)
	defer engine.Close()

	resp := engine.Paraphrase(cmd.Context(), &reword.Request{
		RequestID:    1,
		Sentences:    sentences,
		VariantCount: count,
		Output:       output,
	})

	printVariants(cmd.OutOrStdout(), sentences, resp.Variants)

	if resp.Error != nil {
		return resp, fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message)
	}
	if r := resp.Report; r != nil {
		slog.Info("saved paraphrases", "path", r.Path, "keys", r.Keys, "variant_count", r.VariantCount)
		if r.Collisions > 0 {
			slog.Warn("key sentences collided; earlier groups were overwritten", "collisions", r.Collisions)
		}
	}
	return resp, nil
}

func printVariants(w io.Writer, sentences, variants []string) {
	if len(sentences) == 0 || len(variants) == 0 || len(variants)%len(sentences) != 0 {
		return
	}
	n := len(variants) / len(sentences)
	for i, s := range sentences {
		fmt.Fprintf(w, "%s\n", s)
		for _, v := range variants[i*n : (i+1)*n] {
			fmt.Fprintf(w, "  - %s\n", v)
		}
	}
}

// readSentences returns the non-blank lines of path, trimmed.
func readSentences(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}
