package retrieval

import (
	"strings"

	"github.com/brunobiangulo/qoyllur/graph"
)

const (
	phraseInLabelBonus = 5.0
	termInLabelBonus   = 2.0
	termInIDBonus      = 3.0
)

// Lexical ranks entities by inverted-index term overlap plus label and id
// bonuses. Scores are normalized so the best hit is 1.0.
type Lexical struct {
	idx *graph.Index
	// per entity, in index order
	lowerLabels [][]string
	normLabels  [][]string
	lowerIDs    []string
}

// NewLexical precomputes the label forms the bonus pass compares against.
func NewLexical(idx *graph.Index) *Lexical {
	ids := idx.IDs()
	l := &Lexical{
		idx:         idx,
		lowerLabels: make([][]string, len(ids)),
		normLabels:  make([][]string, len(ids)),
		lowerIDs:    make([]string, len(ids)),
	}
	for i, id := range ids {
		e, _ := idx.Entity(id)
		for _, lbl := range e.Labels {
			l.lowerLabels[i] = append(l.lowerLabels[i], strings.ToLower(lbl))
			l.normLabels[i] = append(l.normLabels[i], graph.Normalize(lbl))
		}
		l.lowerIDs[i] = strings.ToLower(id)
	}
	return l
}

// Search returns at most topK entities with a positive score, best first.
// A query with no index terms returns nil.
func (l *Lexical) Search(query string, topK int) []Result {
	tokens := graph.Tokens(query)
	if len(tokens) == 0 {
		return nil
	}

	acc := newAccumulator()
	for _, tok := range tokens {
		for _, id := range l.idx.Postings(tok) {
			acc.add(id, 1)
		}
	}

	lowerQuery := strings.ToLower(strings.TrimSpace(query))
	long := longTerms(tokens)
	ids := l.idx.IDs()

	for i, id := range ids {
		for j, lbl := range l.lowerLabels[i] {
			if strings.Contains(lbl, lowerQuery) {
				acc.add(id, phraseInLabelBonus)
			}
			for _, t := range long {
				if strings.Contains(l.normLabels[i][j], t) {
					acc.add(id, termInLabelBonus)
				}
			}
		}
	}

	for _, t := range long {
		for i, id := range ids {
			if strings.Contains(l.lowerIDs[i], t) {
				acc.add(id, termInIDBonus)
			}
		}
	}

	results := acc.ranked(0)
	if len(results) == 0 || results[0].Score <= 0 {
		return nil
	}
	max := results[0].Score
	for i := range results {
		results[i].Score /= max
	}
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
