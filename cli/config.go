package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	reword "github.com/Paranoid-AF/reword"
	defaults "github.com/Paranoid-AF/reword/default"
)

func newConfigCmd() *cobra.Command {
	var (
		showDefaults bool
		showPrompt   bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration and any warnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if showPrompt {
				fmt.Fprint(out, defaults.DefaultPrompt)
				return nil
			}

			var cfg *reword.Config
			if showDefaults {
				cfg = reword.DefaultConfig()
			} else {
				var err error
				cfg, err = reword.LoadConfig()
				if err != nil {
					return fmt.Errorf("load %s: %w", reword.ConfigPath(), err)
				}
			}

			data, err := json.MarshalIndent(redactKeys(cfg), "", "    ")
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\n", data)

			if showDefaults {
				return nil
			}
			fmt.Fprintf(out, "\nconfig: %s\n", reword.ConfigPath())
			for _, w := range reword.ValidateConfig(cfg) {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showDefaults, "defaults", false, "print the built-in defaults")
	cmd.Flags().BoolVar(&showPrompt, "default-prompt", false, "print the built-in chat prompt")
	return cmd
}

// redactKeys returns a copy of cfg with API keys masked.
func redactKeys(cfg *reword.Config) *reword.Config {
	c := *cfg
	if c.Generation.APIKey != "" {
		c.Generation.APIKey = "********"
	}
	if c.Embedding.APIKey != "" {
		c.Embedding.APIKey = "********"
	}
	return &c
}
