package qoyllur

import (
	"strings"

	"github.com/brunobiangulo/qoyllur/graph"
)

// snippetMaxLen is the approximate maximum character length for a snippet.
const snippetMaxLen = 300

// entitySnippet returns the sentence of an entity's descriptions and
// comments that best matches the query terms, or "".
func entitySnippet(e *graph.Entity, queryTerms map[string]bool) string {
	prose := make([]string, 0, len(e.Descriptions)+len(e.Comments))
	prose = append(prose, e.Descriptions...)
	prose = append(prose, e.Comments...)
	return extractSnippet(strings.Join(prose, " "), queryTerms)
}

// termSet returns the normalized tokens of text as a set.
func termSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range graph.Tokens(text) {
		if !stopWords[t] {
			set[t] = true
		}
	}
	return set
}

// extractSnippet returns the 1-2 most relevant sentences from content based on
// token overlap with terms. Returns empty string if no sentence overlaps.
func extractSnippet(content string, terms map[string]bool) string {
	if len(terms) == 0 || content == "" {
		return ""
	}

	sentences := snippetSplitSentences(content)
	if len(sentences) == 0 {
		return ""
	}

	type scored struct {
		text  string
		score int
	}
	scoredSentences := make([]scored, len(sentences))
	for i, s := range sentences {
		overlap := 0
		for w := range termSet(s) {
			if terms[w] {
				overlap++
			}
		}
		scoredSentences[i] = scored{text: s, score: overlap}
	}

	bestIdx := 0
	bestScore := scoredSentences[0].score
	for i, s := range scoredSentences {
		if s.score > bestScore {
			bestScore = s.score
			bestIdx = i
		}
	}

	if bestScore == 0 {
		return ""
	}

	result := scoredSentences[bestIdx].text

	// Add the better-scoring adjacent sentence if it fits.
	if len(result) < snippetMaxLen && len(scoredSentences) > 1 {
		candidateIdx := -1
		candidateScore := 0
		for _, delta := range []int{1, -1} {
			adj := bestIdx + delta
			if adj >= 0 && adj < len(scoredSentences) && scoredSentences[adj].score > candidateScore {
				candidateScore = scoredSentences[adj].score
				candidateIdx = adj
			}
		}
		if candidateIdx >= 0 {
			combined := result + " " + scoredSentences[candidateIdx].text
			if candidateIdx < bestIdx {
				combined = scoredSentences[candidateIdx].text + " " + result
			}
			if len(combined) <= snippetMaxLen {
				result = combined
			}
		}
	}

	return result
}

// snippetSplitSentences splits text into sentences at period/question/exclamation
// boundaries followed by whitespace or end of string.
func snippetSplitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '?' || runes[i] == '!' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				s := strings.TrimSpace(cur.String())
				if s != "" {
					sentences = append(sentences, s)
				}
				cur.Reset()
			}
		}
	}
	if cur.Len() > 0 {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// stopWords are normalized Spanish function words that carry no topic.
var stopWords = map[string]bool{
	"los": true, "las": true, "del": true, "que": true, "una": true,
	"con": true, "por": true, "para": true, "como": true, "entre": true,
	"sobre": true, "desde": true, "hasta": true, "hacia": true, "este": true,
	"esta": true, "donde": true, "cuando": true, "quien": true, "cual": true,
	"son": true, "hay": true, "the": true, "and": true, "with": true,
}
