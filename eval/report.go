package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// Save writes the report to path. The format follows the extension:
// .xlsx produces a workbook, anything else JSON.
func (r *Report) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return r.WriteXLSX(path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := r.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	return f.Close()
}

var (
	summaryHeader = []any{"mode", "passed", "failed", "mean_ms", "std_ms", "min_ms", "max_ms",
		"avg_accuracy", "top_k_hit_rate", "top_one_rate", "intent_accuracy", "avg_confidence", "skipped"}
	resultsHeader = []any{"mode", "question", "category", "expected_entity", "entity_rank", "top_entity",
		"intent", "intent_correct", "accuracy", "confidence", "provenance", "passed", "elapsed_ms", "answer", "error"}
	consistencyHeader = []any{"a", "b", "top_a", "top_b", "consistent", "error"}
)

// WriteXLSX writes a workbook with a summary sheet, one row per result and,
// when present, the paraphrase check.
func (r *Report) WriteXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return fmt.Errorf("naming summary sheet: %w", err)
	}
	rows := [][]any{summaryHeader}
	for _, m := range r.Modes {
		rows = append(rows, []any{
			m.Mode, m.Passed, m.Failed,
			m.Latency.MeanMs, m.Latency.StdMs, m.Latency.MinMs, m.Latency.MaxMs,
			m.Metrics.AvgAccuracy, m.Metrics.TopKHitRate, m.Metrics.TopOneRate,
			m.Metrics.IntentAccuracy, m.Metrics.AvgConfidence, m.Skipped,
		})
	}
	if err := writeRows(f, summary, rows); err != nil {
		return err
	}

	rows = [][]any{resultsHeader}
	for _, m := range r.Modes {
		for _, t := range m.Results {
			rows = append(rows, []any{
				t.Mode, t.Question, t.Category, t.ExpectedEntity, t.EntityRank, t.TopEntity,
				t.Intent, t.IntentCorrect, t.Accuracy, t.Confidence, t.Provenance, t.Passed,
				t.ElapsedMs, t.Answer, t.Error,
			})
		}
	}
	if err := addSheet(f, "results", rows); err != nil {
		return err
	}

	if r.Consistency != nil {
		rows = [][]any{consistencyHeader}
		for _, p := range r.Consistency.Results {
			rows = append(rows, []any{p.A, p.B, p.TopA, p.TopB, p.Consistent, p.Error})
		}
		if err := addSheet(f, "consistency", rows); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving XLSX report: %w", err)
	}
	return nil
}

func addSheet(f *excelize.File, name string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("creating sheet %s: %w", name, err)
	}
	return writeRows(f, name, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
