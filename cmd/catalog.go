package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/fractiz/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and validate the question bank",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [PATH]",
	Short: "Validate a question bank file against the schema",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolveCatalogPath(cmd)
		if len(args) == 1 {
			path = args[0]
		}
		cat, err := catalog.Load(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d questions across %d knowledge components\n",
			path, cat.Len(), len(cat.KCs()))
		return nil
	},
}

var catalogKCsCmd = &cobra.Command{
	Use:   "kcs",
	Short: "List knowledge components and their difficulty levels",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := catalog.Load(resolveCatalogPath(cmd))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-32s  %9s  %s\n", "Knowledge component", "Questions", "Difficulties")
		fmt.Fprintln(out, strings.Repeat("─", 70))

		for _, kc := range cat.KCs() {
			levels := cat.Difficulties(kc)
			parts := make([]string, len(levels))
			for i, d := range levels {
				parts[i] = fmt.Sprint(d)
			}
			name := kc
			if len(name) > 32 {
				name = name[:29] + "..."
			}
			fmt.Fprintf(out, "%-32s  %9d  %s\n", name, len(cat.ByKC(kc)), strings.Join(parts, ", "))
		}

		fmt.Fprintf(out, "\n%d knowledge components\n", len(cat.KCs()))
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogValidateCmd)
	catalogCmd.AddCommand(catalogKCsCmd)
}
