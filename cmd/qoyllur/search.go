package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSearchCmd(a *app) *cobra.Command {
	var qf queryFlags
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank entities for a query",
		Long: `Rank entities for a query without composing an answer.

Modes:
  lexical   keyword overlap with label and id bonuses
  semantic  cosine similarity against the entity embeddings
  hybrid    weighted fusion of both plus rule-based boosts`,
		Example: `  qoyllur search --mode semantic "guardianes del glaciar"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := a.engine(ctx)
			if err != nil {
				return err
			}
			cands, trace, err := engine.Search(ctx, strings.Join(args, " "), qf.options()...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if qf.json {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(map[string]any{"candidates": cands, "trace": trace})
			}
			if len(cands) == 0 {
				fmt.Fprintln(out, "no results")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tID\tNAME\tSCORE\tSNIPPET")
			for i, c := range cands {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%.3f\t%s\n", i+1, c.ID, c.Name, c.Score, c.Snippet)
			}
			return tw.Flush()
		},
	}
	qf.register(cmd)
	return cmd
}
