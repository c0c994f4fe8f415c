// Command reword paraphrases sentences through the configured model and
// manages the grouped JSON artifacts it produces.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	reword "github.com/Paranoid-AF/reword"
	"github.com/Paranoid-AF/reword/generate"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// paraphraser is the engine surface the commands need.
type paraphraser interface {
	Paraphrase(ctx context.Context, req *reword.Request) *reword.Response
	Close()
}

// newEngine builds the engine used by generate and example.
var newEngine = func(cfg *reword.Config) paraphraser {
	return generate.NewEngineWithConfig(cfg)
}

// loadConfig loads the user config, falling back to defaults with a warning.
func loadConfig() *reword.Config {
	cfg, err := reword.LoadConfig()
	if err != nil {
		slog.Warn("failed to load config, using defaults", "path", reword.ConfigPath(), "error", err)
		return reword.DefaultConfig()
	}
	return cfg
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger.With("run", uuid.NewString()))
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "reword",
		Short:         "Generate and manage sentence paraphrases",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), verbose)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newGenerateCmd(),
		newExampleCmd(),
		newShowCmd(),
		newLookupCmd(),
		newConfigCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
