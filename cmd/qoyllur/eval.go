package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/qoyllur/eval"
)

func newEvalCmd(a *app) *cobra.Command {
	var (
		datasetPath string
		modes       []string
		outputPath  string
		verbose     bool
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Compare search modes on a question set",
		Long: `Run a question set through each search mode and report latency
(mean, std, min, max), whether the expected entity ranks in the top five,
expected fact coverage and, when the dataset has paraphrase pairs, whether
both phrasings retrieve the same entity semantically.

Without --dataset the built-in sample questions are used. Datasets may be
YAML, JSON or XLSX; reports are JSON or XLSX by extension.`,
		Example: `  qoyllur eval
  qoyllur eval --dataset preguntas.yaml --modes lexical,hybrid --output out/report.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ds := eval.SampleDataset()
			if datasetPath != "" {
				var err error
				if ds, err = eval.LoadDataset(datasetPath); err != nil {
					return err
				}
			}
			engine, err := a.engine(ctx)
			if err != nil {
				return err
			}
			report, err := eval.NewEvaluator(engine).Run(ctx, ds, modes...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printReport(out, report, verbose)
			if outputPath != "" {
				if err := report.Save(outputPath); err != nil {
					return err
				}
				fmt.Fprintf(out, "\nreport written to %s\n", outputPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&datasetPath, "dataset", "d", "", "Question set (YAML, JSON or XLSX)")
	cmd.Flags().StringSliceVar(&modes, "modes", nil, "Modes to compare (default lexical,semantic,hybrid)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the report (.json or .xlsx)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List every question")
	return cmd
}

func printReport(out io.Writer, r *eval.Report, verbose bool) {
	fmt.Fprintf(out, "dataset %s: %d questions, %d entities\n\n", r.Dataset, r.TotalTests, r.Engine.Entities)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODE\tPASS\tTOP-5\tTOP-1\tFACTS\tMEAN ms\tSTD ms\tMIN ms\tMAX ms")
	for _, m := range r.Modes {
		if m.Skipped != "" {
			fmt.Fprintf(tw, "%s\tskipped: %s\n", m.Mode, m.Skipped)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d/%d\t%.0f%%\t%.0f%%\t%.0f%%\t%.2f\t%.2f\t%.2f\t%.2f\n",
			m.Mode, m.Passed, m.Passed+m.Failed,
			m.Metrics.TopKHitRate*100, m.Metrics.TopOneRate*100, m.Metrics.AvgAccuracy*100,
			m.Latency.MeanMs, m.Latency.StdMs, m.Latency.MinMs, m.Latency.MaxMs)
	}
	tw.Flush()

	if c := r.Consistency; c != nil {
		fmt.Fprintf(out, "\nparaphrase consistency: %d/%d (%.0f%%)\n", c.Consistent, c.Pairs, c.Rate*100)
	}
	if ranking := r.Ranking(); len(ranking) > 0 {
		fmt.Fprintf(out, "ranking: %s\n", strings.Join(ranking, " > "))
	}

	if !verbose {
		return
	}
	for _, m := range r.Modes {
		if len(m.Results) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n[%s]\n", m.Mode)
		for _, t := range m.Results {
			status := "FAIL"
			if t.Passed {
				status = "PASS"
			}
			fmt.Fprintf(out, "  %s  %-45s rank=%d top=%s facts=%.2f %.2fms\n",
				status, t.Question, t.EntityRank, t.TopEntity, t.Accuracy, t.ElapsedMs)
		}
	}
}
