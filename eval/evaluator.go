package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/brunobiangulo/qoyllur"
)

// DefaultModes are compared when Run is given no modes.
var DefaultModes = []string{"lexical", "semantic", "hybrid"}

// Evaluator runs evaluation datasets against a Qoyllur engine.
type Evaluator struct {
	engine qoyllur.Engine
	topK   int
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(engine qoyllur.Engine) *Evaluator {
	return &Evaluator{engine: engine, topK: 10}
}

// Report holds the results of an evaluation run.
type Report struct {
	Dataset     string             `json:"dataset"`
	TotalTests  int                `json:"total_tests"`
	Modes       []ModeReport       `json:"modes"`
	Consistency *ConsistencyReport `json:"consistency,omitempty"`
	Engine      qoyllur.Stats      `json:"engine"`
	RunTime     time.Duration      `json:"run_time"`
}

// Mode returns the report for one mode, or nil.
func (r *Report) Mode(name string) *ModeReport {
	for i := range r.Modes {
		if r.Modes[i].Mode == name {
			return &r.Modes[i]
		}
	}
	return nil
}

// ModeReport aggregates one retrieval mode.
type ModeReport struct {
	Mode            string                      `json:"mode"`
	Passed          int                         `json:"passed"`
	Failed          int                         `json:"failed"`
	Skipped         string                      `json:"skipped,omitempty"`
	Latency         LatencyStats                `json:"latency"`
	Metrics         AggregateMetrics            `json:"metrics"`
	CategoryMetrics map[string]AggregateMetrics `json:"category_metrics,omitempty"`
	Results         []TestResult                `json:"results"`
}

// AggregateMetrics holds averaged metrics across tests.
type AggregateMetrics struct {
	AvgAccuracy    float64 `json:"avg_accuracy"`
	TopKHitRate    float64 `json:"top_k_hit_rate"`
	TopOneRate     float64 `json:"top_one_rate"`
	IntentAccuracy float64 `json:"intent_accuracy"`
	AvgConfidence  float64 `json:"avg_confidence"`
}

// TestResult holds the outcome of one question in one mode.
type TestResult struct {
	Question       string   `json:"question"`
	Mode           string   `json:"mode"`
	Category       string   `json:"category,omitempty"`
	ExpectedEntity string   `json:"expected_entity,omitempty"`
	ExpectedFacts  []string `json:"expected_facts,omitempty"`
	Answer         string   `json:"answer"`
	Intent         string   `json:"intent"`
	IntentCorrect  bool     `json:"intent_correct"`
	EntityID       string   `json:"entity_id,omitempty"`
	// EntityRank is the 1-based rank of ExpectedEntity among the
	// candidates, 0 when absent.
	EntityRank int      `json:"entity_rank"`
	TopEntity  string   `json:"top_entity,omitempty"`
	Accuracy   float64  `json:"accuracy"`
	Confidence float64  `json:"confidence"`
	Provenance string   `json:"provenance"`
	Passed     bool     `json:"passed"`
	Error      string   `json:"error,omitempty"`
	ElapsedMs  float64  `json:"elapsed_ms"`
	Candidates []string `json:"candidates,omitempty"`
}

// ConsistencyReport checks that paraphrases retrieve the same top entity
// semantically.
type ConsistencyReport struct {
	Pairs      int          `json:"pairs"`
	Consistent int          `json:"consistent"`
	Rate       float64      `json:"rate"`
	Results    []PairResult `json:"results"`
}

// PairResult is the outcome of one paraphrase pair.
type PairResult struct {
	A          string `json:"a"`
	B          string `json:"b"`
	TopA       string `json:"top_a"`
	TopB       string `json:"top_b"`
	Consistent bool   `json:"consistent"`
	Error      string `json:"error,omitempty"`
}

// Run executes the dataset once per mode, then the paraphrase check.
func (e *Evaluator) Run(ctx context.Context, dataset Dataset, modes ...string) (*Report, error) {
	if len(modes) == 0 {
		modes = DefaultModes
	}
	start := time.Now()
	stats := e.engine.Stats()
	report := &Report{
		Dataset:    dataset.Name,
		TotalTests: len(dataset.Tests),
		Engine:     stats,
	}

	for _, mode := range modes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if mode == "semantic" && !stats.Semantic {
			slog.Warn("eval: skipping mode", "mode", mode, "reason", "no embedder configured")
			report.Modes = append(report.Modes, ModeReport{Mode: mode, Skipped: "no embedder configured"})
			continue
		}
		mr, err := e.runMode(ctx, dataset, mode)
		if err != nil {
			return nil, err
		}
		report.Modes = append(report.Modes, *mr)
	}

	if len(dataset.Paraphrase) > 0 {
		cr, err := e.Consistency(ctx, dataset.Paraphrase)
		switch {
		case errors.Is(err, qoyllur.ErrSemanticDisabled):
			slog.Warn("eval: skipping paraphrase check", "reason", "no embedder configured")
		case err != nil:
			return nil, err
		default:
			report.Consistency = cr
		}
	}

	report.RunTime = time.Since(start)
	slog.Info("eval: run complete",
		"dataset", dataset.Name, "modes", len(report.Modes),
		"tests", report.TotalTests, "elapsed", report.RunTime.Round(time.Millisecond))
	return report, nil
}

func (e *Evaluator) runMode(ctx context.Context, dataset Dataset, mode string) (*ModeReport, error) {
	mr := &ModeReport{Mode: mode, CategoryMetrics: make(map[string]AggregateMetrics)}
	latencies := make([]time.Duration, 0, len(dataset.Tests))
	catCounts := make(map[string]int)
	catSums := make(map[string]AggregateMetrics)
	var sums AggregateMetrics

	for i, test := range dataset.Tests {
		result, elapsed, err := e.runTest(ctx, test, mode)
		if err != nil {
			return nil, err
		}
		latencies = append(latencies, elapsed)
		mr.Results = append(mr.Results, result)

		if result.Passed {
			mr.Passed++
		} else {
			mr.Failed++
		}
		m := resultMetrics(result, test)
		sums = addMetrics(sums, m)
		if test.Category != "" {
			catCounts[test.Category]++
			catSums[test.Category] = addMetrics(catSums[test.Category], m)
		}

		status := "FAIL"
		if result.Passed {
			status = "PASS"
		}
		slog.Info("eval: test complete",
			"progress", fmt.Sprintf("%d/%d", i+1, len(dataset.Tests)),
			"mode", mode, "status", status,
			"rank", result.EntityRank, "accuracy", fmt.Sprintf("%.2f", result.Accuracy),
			"elapsed_ms", fmt.Sprintf("%.2f", result.ElapsedMs))
	}

	if n := len(dataset.Tests); n > 0 {
		mr.Metrics = scaleMetrics(sums, n)
	}
	for cat, n := range catCounts {
		mr.CategoryMetrics[cat] = scaleMetrics(catSums[cat], n)
	}
	mr.Latency = latencyStats(latencies)
	return mr, nil
}

// runTest answers one question. Only an unknown mode or a cancelled
// context is an error; everything else is recorded on the result.
func (e *Evaluator) runTest(ctx context.Context, test TestCase, mode string) (TestResult, time.Duration, error) {
	result := TestResult{
		Question:       test.Question,
		Mode:           mode,
		Category:       test.Category,
		ExpectedEntity: test.ExpectedEntity,
		ExpectedFacts:  test.ExpectedFacts,
	}

	start := time.Now()
	ans, err := e.engine.Answer(ctx, test.Question, qoyllur.WithMode(mode), qoyllur.WithTopK(e.topK))
	elapsed := time.Since(start)
	result.ElapsedMs = float64(elapsed) / float64(time.Millisecond)
	if err != nil {
		if errors.Is(err, qoyllur.ErrUnknownMode) || errors.Is(err, qoyllur.ErrInvalidConfig) || ctx.Err() != nil {
			return result, elapsed, err
		}
		result.Error = err.Error()
		return result, elapsed, nil
	}

	result.Answer = ans.Text
	result.Intent = string(ans.Intent)
	result.IntentCorrect = test.ExpectedIntent == "" || test.ExpectedIntent == string(ans.Intent)
	result.EntityID = ans.EntityID
	result.Confidence = ans.Confidence
	result.Provenance = string(ans.Provenance)
	if len(ans.Candidates) > 0 {
		result.TopEntity = ans.Candidates[0].ID
	}
	for _, c := range head(ans.Candidates, topKHit) {
		result.Candidates = append(result.Candidates, c.ID)
	}
	result.EntityRank = entityRank(ans.Candidates, test.ExpectedEntity)
	result.Accuracy = computeAccuracy(ans.Text, test.ExpectedFacts)
	result.Passed = passed(result, test)
	return result, elapsed, nil
}

// passed requires the expected entity in the top five (or as the answer
// subject) and at least half of the expected facts.
func passed(r TestResult, test TestCase) bool {
	if r.Error != "" {
		return false
	}
	if test.ExpectedEntity != "" {
		inTop := r.EntityRank > 0 && r.EntityRank <= topKHit
		if !inTop && r.EntityID != test.ExpectedEntity {
			return false
		}
	}
	if len(test.ExpectedFacts) > 0 && r.Accuracy < 0.5 {
		return false
	}
	return true
}

// Consistency runs each pair through semantic search and compares the top
// entities.
func (e *Evaluator) Consistency(ctx context.Context, pairs []ParaphrasePair) (*ConsistencyReport, error) {
	cr := &ConsistencyReport{Pairs: len(pairs)}
	top := func(q string) (string, error) {
		res, err := e.engine.SearchSemantic(ctx, q, 1)
		if err != nil || len(res) == 0 {
			return "", err
		}
		return res[0].ID, nil
	}

	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pr := PairResult{A: p.A, B: p.B}
		var errA, errB error
		pr.TopA, errA = top(p.A)
		pr.TopB, errB = top(p.B)
		if err := errors.Join(errA, errB); err != nil {
			if errors.Is(err, qoyllur.ErrSemanticDisabled) {
				return nil, err
			}
			pr.Error = err.Error()
		}
		pr.Consistent = pr.Error == "" && pr.TopA != "" && pr.TopA == pr.TopB
		if pr.Consistent {
			cr.Consistent++
		}
		cr.Results = append(cr.Results, pr)
	}
	if cr.Pairs > 0 {
		cr.Rate = float64(cr.Consistent) / float64(cr.Pairs)
	}
	return cr, nil
}

// Ranking orders mode reports by pass count, then mean latency.
func (r *Report) Ranking() []string {
	modes := make([]ModeReport, 0, len(r.Modes))
	for _, m := range r.Modes {
		if m.Skipped == "" {
			modes = append(modes, m)
		}
	}
	sort.SliceStable(modes, func(i, j int) bool {
		if modes[i].Passed != modes[j].Passed {
			return modes[i].Passed > modes[j].Passed
		}
		return modes[i].Latency.MeanMs < modes[j].Latency.MeanMs
	})
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = m.Mode
	}
	return names
}

func resultMetrics(r TestResult, test TestCase) AggregateMetrics {
	var m AggregateMetrics
	m.AvgAccuracy = r.Accuracy
	if len(test.ExpectedFacts) == 0 && r.Error == "" {
		m.AvgAccuracy = 1
	}
	if test.ExpectedEntity == "" || (r.EntityRank > 0 && r.EntityRank <= topKHit) {
		m.TopKHitRate = 1
	}
	if test.ExpectedEntity == "" || r.EntityRank == 1 {
		m.TopOneRate = 1
	}
	if r.IntentCorrect {
		m.IntentAccuracy = 1
	}
	m.AvgConfidence = r.Confidence
	return m
}

func addMetrics(a, b AggregateMetrics) AggregateMetrics {
	return AggregateMetrics{
		AvgAccuracy:    a.AvgAccuracy + b.AvgAccuracy,
		TopKHitRate:    a.TopKHitRate + b.TopKHitRate,
		TopOneRate:     a.TopOneRate + b.TopOneRate,
		IntentAccuracy: a.IntentAccuracy + b.IntentAccuracy,
		AvgConfidence:  a.AvgConfidence + b.AvgConfidence,
	}
}

func scaleMetrics(m AggregateMetrics, n int) AggregateMetrics {
	f := float64(n)
	return AggregateMetrics{
		AvgAccuracy:    m.AvgAccuracy / f,
		TopKHitRate:    m.TopKHitRate / f,
		TopOneRate:     m.TopOneRate / f,
		IntentAccuracy: m.IntentAccuracy / f,
		AvgConfidence:  m.AvgConfidence / f,
	}
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
