package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/Paranoid-AF/reword/dataset"
)

type tomlGroups struct {
	Group []tomlGroup `toml:"group"`
}

type tomlGroup struct {
	Key      string   `toml:"key"`
	Variants []string `toml:"variants"`
}

type tomlFlat struct {
	Sentences []string `toml:"sentences"`
}

func newShowCmd() *cobra.Command {
	var (
		flat   bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "show path",
		Short: "Print a saved paraphrase file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "toml" {
				return fmt.Errorf("unknown format %q (want json or toml)", format)
			}
			g, err := dataset.Load(args[0])
			if err != nil {
				return err
			}
			return renderGroups(cmd.OutOrStdout(), g, flat, format)
		},
	}
	cmd.Flags().BoolVar(&flat, "flat", false, "print the flat list: each key followed by its variants")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or toml")
	return cmd
}

func renderGroups(w io.Writer, g *dataset.Groups, flat bool, format string) error {
	switch {
	case format == "toml" && flat:
		return toml.NewEncoder(w).Encode(tomlFlat{Sentences: g.Flatten()})

	case format == "toml":
		doc := tomlGroups{Group: make([]tomlGroup, 0, g.Len())}
		for _, key := range g.Keys() {
			variants, _ := g.Get(key)
			doc.Group = append(doc.Group, tomlGroup{Key: key, Variants: variants})
		}
		return toml.NewEncoder(w).Encode(doc)

	case flat:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "    ")
		return enc.Encode(g.Flatten())

	default:
		data, err := dataset.Encode(g)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}
}
