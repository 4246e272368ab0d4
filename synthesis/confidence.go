package synthesis

import (
	"strings"

	"github.com/brunobiangulo/qoyllur/graph"
	"github.com/brunobiangulo/qoyllur/retrieval"
)

// ConfidenceWeights controls the relative importance of confidence factors.
type ConfidenceWeights struct {
	Provenance   float64 // Template beats fallback
	TopScore     float64 // Retrieval score of the answered entity
	Margin       float64 // Lead of the best candidate over the runner-up
	TermCoverage float64 // Query terms that made it into the answer
}

// DefaultConfidenceWeights returns balanced weights.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		Provenance:   0.35,
		TopScore:     0.3,
		Margin:       0.15,
		TermCoverage: 0.2,
	}
}

// ComputeConfidence scores an answer in [0, 1]. A no-match answer always
// scores 0.
func ComputeConfidence(question string, resp Response, candidates []retrieval.Result, weights ConfidenceWeights) float64 {
	if resp.Provenance == ProvenanceNoMatch || len(candidates) == 0 {
		return 0
	}

	confidence := provenanceScore(resp.Provenance)*weights.Provenance +
		clamp01(resp.Score)*weights.TopScore +
		marginScore(candidates)*weights.Margin +
		termCoverageScore(question, resp.Text)*weights.TermCoverage

	return clamp01(confidence)
}

func provenanceScore(p Provenance) float64 {
	switch p {
	case ProvenanceTemplate:
		return 1
	case ProvenanceFallback:
		return 0.5
	default:
		return 0
	}
}

// marginScore is the relative lead of the first candidate over the second.
// A lone candidate counts as a clear winner.
func marginScore(candidates []retrieval.Result) float64 {
	if len(candidates) < 2 {
		return 1
	}
	first, second := candidates[0].Score, candidates[1].Score
	if first <= 0 {
		return 0
	}
	return clamp01((first - second) / first)
}

// termCoverageScore measures what fraction of the question's important
// terms appear in the answer.
func termCoverageScore(question, answer string) float64 {
	terms := retrieval.ImportantTerms(question)
	if len(terms) == 0 {
		return 0.5 // neutral if the question has no content words
	}

	norm := graph.Normalize(answer)
	found := 0
	for _, t := range terms {
		if strings.Contains(norm, t) {
			found++
		}
	}
	return float64(found) / float64(len(terms))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
