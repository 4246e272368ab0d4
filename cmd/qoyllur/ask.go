package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/qoyllur"
)

type queryFlags struct {
	mode  string
	topK  int
	alpha float64
	json  bool
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&q.mode, "mode", "m", "", "Search mode: lexical, semantic or hybrid")
	cmd.Flags().IntVarP(&q.topK, "top-k", "k", 0, "Number of candidates")
	cmd.Flags().Float64Var(&q.alpha, "alpha", -1, "Semantic weight for hybrid fusion")
	cmd.Flags().BoolVar(&q.json, "json", false, "Print JSON")
}

func (q *queryFlags) options() []qoyllur.QueryOption {
	var opts []qoyllur.QueryOption
	if q.mode != "" {
		opts = append(opts, qoyllur.WithMode(q.mode))
	}
	if q.topK > 0 {
		opts = append(opts, qoyllur.WithTopK(q.topK))
	}
	if q.alpha >= 0 {
		opts = append(opts, qoyllur.WithAlpha(q.alpha))
	}
	return opts
}

func newAskCmd(a *app) *cobra.Command {
	var (
		qf    queryFlags
		trace bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question",
		Example: `  qoyllur ask "¿Dónde está Colque Punku?"
  qoyllur ask --mode lexical "¿Qué eventos hay el día 2?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := a.engine(ctx)
			if err != nil {
				return err
			}
			opts := qf.options()
			if trace {
				opts = append(opts, qoyllur.WithTrace())
			}
			ans, err := engine.Answer(ctx, strings.Join(args, " "), opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if qf.json {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(ans)
			}
			a.render(out, ans.Text)
			if trace {
				fmt.Fprintf(out, "\nintent=%s provenance=%s entity=%s confidence=%.2f elapsed=%dms\n",
					ans.Intent, ans.Provenance, ans.EntityID, ans.Confidence, ans.ElapsedMs)
				for i, c := range ans.Candidates {
					fmt.Fprintf(out, "%2d. %-32s %.3f\n", i+1, c.ID, c.Score)
				}
			}
			return nil
		},
	}
	qf.register(cmd)
	cmd.Flags().BoolVar(&trace, "trace", false, "Show intent, provenance and ranked candidates")
	return cmd
}
