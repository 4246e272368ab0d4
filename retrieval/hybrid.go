package retrieval

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/brunobiangulo/qoyllur/graph"
)

const (
	// DefaultAlpha weights semantic similarity in the linear fusion; the
	// lexical side gets 1-alpha.
	DefaultAlpha = 0.6

	overFetch      = 3
	labelTermBoost = 0.5
	idTermBoost    = 0.3
	dayNumberBoost = 0.8
)

// FusedResultInfo records how one candidate's hybrid score was assembled.
type FusedResultInfo struct {
	Methods       []string `json:"methods"`
	SemanticRank  int      `json:"semantic_rank,omitempty"` // 1-based, 0 = not present
	LexicalRank   int      `json:"lexical_rank,omitempty"`  // 1-based, 0 = not present
	SemanticScore float64  `json:"semantic_score"`
	LexicalScore  float64  `json:"lexical_score"`
	Boost         float64  `json:"boost"`
}

// SearchTrace records the breakdown of one search for debugging and the
// evaluation harness.
type SearchTrace struct {
	Mode            Mode                       `json:"mode"`
	Alpha           float64                    `json:"alpha,omitempty"`
	SemanticResults int                        `json:"semantic_results"`
	LexicalResults  int                        `json:"lexical_results"`
	FusedResults    int                        `json:"fused_results"`
	ImportantTerms  []string                   `json:"important_terms,omitempty"`
	Numbers         []string                   `json:"numbers,omitempty"`
	SemanticError   string                     `json:"semantic_error,omitempty"`
	ElapsedMs       int64                      `json:"elapsed_ms"`
	PerResult       map[string]FusedResultInfo `json:"per_result,omitempty"`
}

// Searcher runs the three ranking strategies over one index.
type Searcher struct {
	idx      *graph.Index
	lexical  *Lexical
	semantic *Semantic // nil when no embedder is configured
	// folded labels and lowercased ids, aligned with idx.IDs()
	foldedLabels map[string][]string
	normLabels   map[string][]string
	lowerIDs     map[string]string
}

// NewSearcher wires lexical and (optional) semantic search over idx.
func NewSearcher(idx *graph.Index, semantic *Semantic) *Searcher {
	s := &Searcher{
		idx:          idx,
		lexical:      NewLexical(idx),
		semantic:     semantic,
		foldedLabels: make(map[string][]string, idx.Len()),
		normLabels:   make(map[string][]string, idx.Len()),
		lowerIDs:     make(map[string]string, idx.Len()),
	}
	for _, e := range idx.Entities() {
		for _, l := range e.Labels {
			s.foldedLabels[e.ID] = append(s.foldedLabels[e.ID], graph.Fold(l))
			s.normLabels[e.ID] = append(s.normLabels[e.ID], graph.Normalize(l))
		}
		s.lowerIDs[e.ID] = graph.Fold(e.ID)
	}
	return s
}

// HasSemantic reports whether semantic ranking is available.
func (s *Searcher) HasSemantic() bool { return s.semantic != nil }

// Semantic returns the semantic ranker, or nil.
func (s *Searcher) Semantic() *Semantic { return s.semantic }

// Lexical ranks by term overlap only.
func (s *Searcher) Lexical(query string, topK int) []Result {
	return s.lexical.Search(query, topK)
}

// SemanticSearch ranks by cosine similarity only. Without an embedder it
// returns nil.
func (s *Searcher) SemanticSearch(ctx context.Context, query string, topK int) ([]Result, error) {
	if s.semantic == nil {
		return nil, nil
	}
	return s.semantic.Search(ctx, query, topK)
}

// Search dispatches on mode. Semantic failures degrade to lexical ranking
// and are reported in the trace rather than returned.
func (s *Searcher) Search(ctx context.Context, mode Mode, query string, topK int, alpha float64) ([]Result, *SearchTrace) {
	start := time.Now()
	switch mode {
	case ModeLexical:
		res := s.Lexical(query, topK)
		return res, &SearchTrace{
			Mode: mode, LexicalResults: len(res), FusedResults: len(res),
			ElapsedMs: time.Since(start).Milliseconds(),
		}
	case ModeSemantic:
		trace := &SearchTrace{Mode: mode}
		res, err := s.SemanticSearch(ctx, query, topK)
		if err != nil || s.semantic == nil {
			if err != nil {
				slog.Warn("retrieval: semantic search failed, using lexical", "error", err)
				trace.SemanticError = err.Error()
			}
			res = s.Lexical(query, topK)
			trace.LexicalResults = len(res)
		} else {
			trace.SemanticResults = len(res)
		}
		trace.FusedResults = len(res)
		trace.ElapsedMs = time.Since(start).Milliseconds()
		return res, trace
	default:
		return s.Hybrid(ctx, query, topK, alpha)
	}
}

// Hybrid fuses semantic and lexical scores linearly, then adds keyword and
// day-number boosts. Each side is over-fetched to 3*topK before fusion.
func (s *Searcher) Hybrid(ctx context.Context, query string, topK int, alpha float64) ([]Result, *SearchTrace) {
	start := time.Now()
	trace := &SearchTrace{Mode: ModeHybrid, Alpha: alpha}
	fetch := topK * overFetch
	if topK <= 0 {
		fetch = 0
	}

	type semResult struct {
		results []Result
		err     error
	}
	semCh := make(chan semResult, 1)
	go func() {
		r, err := s.SemanticSearch(ctx, query, fetch)
		semCh <- semResult{r, err}
	}()
	lex := s.Lexical(query, fetch)
	sem := <-semCh

	if sem.err != nil {
		slog.Warn("retrieval: semantic search failed, fusing lexical only", "error", sem.err)
		trace.SemanticError = sem.err.Error()
	}
	trace.SemanticResults = len(sem.results)
	trace.LexicalResults = len(lex)

	acc, info := fuseLinear(sem.results, lex, alpha)

	important := ImportantTerms(query)
	numbers := queryNumbers(query)
	trace.ImportantTerms = important
	trace.Numbers = numbers

	for _, id := range acc.order {
		boost := s.boost(id, important, numbers)
		if boost != 0 {
			acc.add(id, boost)
			in := info[id]
			in.Boost = boost
			info[id] = in
		}
	}

	results := acc.ranked(topK)
	trace.FusedResults = len(results)
	trace.PerResult = make(map[string]FusedResultInfo, len(results))
	for _, r := range results {
		trace.PerResult[r.ID] = info[r.ID]
	}
	trace.ElapsedMs = time.Since(start).Milliseconds()

	slog.Debug("retrieval: hybrid search complete",
		"semantic", trace.SemanticResults, "lexical", trace.LexicalResults,
		"fused", trace.FusedResults, "important_terms", important)
	return results, trace
}

// fuseLinear combines the two rankings as alpha*semantic + (1-alpha)*lexical;
// a candidate missing from one side contributes 0 from it. Semantic hits
// come first in the accumulation order, so ties keep semantic rank order.
func fuseLinear(sem, lex []Result, alpha float64) (*accumulator, map[string]FusedResultInfo) {
	acc := newAccumulator()
	info := make(map[string]FusedResultInfo, len(sem)+len(lex))

	for rank, r := range sem {
		acc.add(r.ID, alpha*r.Score)
		in := info[r.ID]
		in.Methods = append(in.Methods, string(ModeSemantic))
		in.SemanticRank = rank + 1
		in.SemanticScore = r.Score
		info[r.ID] = in
	}
	for rank, r := range lex {
		acc.add(r.ID, (1-alpha)*r.Score)
		in := info[r.ID]
		in.Methods = append(in.Methods, string(ModeLexical))
		in.LexicalRank = rank + 1
		in.LexicalScore = r.Score
		info[r.ID] = in
	}
	return acc, info
}

// boost scores exact keyword evidence the linear fusion under-weights:
// +0.5 per important term inside each normalized label, +0.3 per important
// term inside the id, +0.8 per query number naming this entity's day.
func (s *Searcher) boost(id string, important, numbers []string) float64 {
	var b float64
	for _, lbl := range s.normLabels[id] {
		for _, t := range important {
			if strings.Contains(lbl, t) {
				b += labelTermBoost
			}
		}
	}
	lowerID := s.lowerIDs[id]
	for _, t := range important {
		if strings.Contains(lowerID, t) {
			b += idTermBoost
		}
	}
	for _, n := range numbers {
		if mentionsDay(lowerID, s.foldedLabels[id], n) {
			b += dayNumberBoost
		}
	}
	return b
}
