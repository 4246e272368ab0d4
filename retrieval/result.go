package retrieval

import (
	"fmt"
	"sort"
	"strings"
)

// Result is one ranked entity.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Mode selects the ranking strategy.
type Mode string

const (
	ModeHybrid   Mode = "hybrid"
	ModeSemantic Mode = "semantic"
	ModeLexical  Mode = "lexical"
)

// ParseMode accepts the English names and their Spanish spellings
// ("hibrido", "semantico", "lexico").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hybrid", "hibrido", "híbrido":
		return ModeHybrid, nil
	case "semantic", "semantico", "semántico":
		return ModeSemantic, nil
	case "lexical", "lexico", "léxico":
		return ModeLexical, nil
	default:
		return "", fmt.Errorf("unknown search mode: %q", s)
	}
}

// accumulator sums scores per entity and remembers first-seen order so
// ties rank deterministically.
type accumulator struct {
	order  []string
	scores map[string]float64
}

func newAccumulator() *accumulator {
	return &accumulator{scores: make(map[string]float64)}
}

func (a *accumulator) add(id string, delta float64) {
	if _, ok := a.scores[id]; !ok {
		a.order = append(a.order, id)
	}
	a.scores[id] += delta
}

// ranked returns entries sorted by score descending, ties in first-seen
// order, truncated to topK when topK > 0.
func (a *accumulator) ranked(topK int) []Result {
	out := make([]Result, len(a.order))
	for i, id := range a.order {
		out[i] = Result{ID: id, Score: a.scores[id]}
	}
	sortResults(out)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

func sortResults(rs []Result) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Score > rs[j].Score })
}
