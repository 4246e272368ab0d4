package eval

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/brunobiangulo/qoyllur"
	"github.com/brunobiangulo/qoyllur/graph"
)

// topKHit is the rank window an expected entity must reach.
const topKHit = 5

// normalizeText folds case and accents and maps Unicode spaces and hyphens
// to ASCII so substring matching survives typography.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range graph.Fold(s) {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case r == '\u2010' || r == '\u2011' || r == '\u2012' || r == '\u2013' || r == '\u2014':
			b.WriteByte('-')
		case r == '\u200B' || r == '\u200C' || r == '\u200D' || r == '\uFEFF':
			// zero-width
		case r == '*':
			// markdown emphasis
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// computeAccuracy returns the fraction of expected facts found in text.
// Each fact may contain pipe-separated alternatives (e.g. "glaciar|nevado"),
// where matching any alternative counts as a hit for that fact.
func computeAccuracy(text string, expectedFacts []string) float64 {
	if text == "" || len(expectedFacts) == 0 {
		return 0
	}

	normalized := normalizeText(text)
	// Collapsed variant so "Dia 2" matches "Dia2".
	spaceless := strings.ReplaceAll(normalized, " ", "")
	found := 0
	for _, fact := range expectedFacts {
		for _, alt := range strings.Split(fact, "|") {
			alt = strings.TrimSpace(alt)
			if alt == "" {
				continue
			}
			normAlt := normalizeText(alt)
			if strings.Contains(normalized, normAlt) ||
				strings.Contains(spaceless, strings.ReplaceAll(normAlt, " ", "")) {
				found++
				break
			}
		}
	}
	return float64(found) / float64(len(expectedFacts))
}

// entityRank returns the 1-based rank of id among candidates, or 0.
func entityRank(candidates []qoyllur.Candidate, id string) int {
	for i, c := range candidates {
		if c.ID == id {
			return i + 1
		}
	}
	return 0
}

// LatencyStats summarizes per-question latencies in milliseconds.
type LatencyStats struct {
	MeanMs float64 `json:"mean_ms"`
	StdMs  float64 `json:"std_ms"`
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
}

// latencyStats computes the population standard deviation of samples.
func latencyStats(samples []time.Duration) LatencyStats {
	if len(samples) == 0 {
		return LatencyStats{}
	}
	ms := func(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

	st := LatencyStats{MinMs: ms(samples[0]), MaxMs: ms(samples[0])}
	var sum float64
	for _, d := range samples {
		v := ms(d)
		sum += v
		st.MinMs = math.Min(st.MinMs, v)
		st.MaxMs = math.Max(st.MaxMs, v)
	}
	st.MeanMs = sum / float64(len(samples))

	var sq float64
	for _, d := range samples {
		diff := ms(d) - st.MeanMs
		sq += diff * diff
	}
	st.StdMs = math.Sqrt(sq / float64(len(samples)))
	return st
}
