package retrieval

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/brunobiangulo/qoyllur/graph"
)

// questionWords are the normalized interrogatives and fillers ignored when
// picking the terms a query is really about.
var questionWords = map[string]bool{
	"que": true, "quien": true, "donde": true, "cuando": true, "como": true,
	"cual": true, "son": true, "esta": true, "hay": true,
}

func isQuestionWord(w string) bool { return questionWords[w] }

// ImportantTerms returns the normalized query tokens longer than three
// runes that are not question words, in query order.
func ImportantTerms(query string) []string {
	var out []string
	for _, t := range graph.Tokens(query) {
		if utf8.RuneCountInString(t) > 3 && !isQuestionWord(t) {
			out = append(out, t)
		}
	}
	return out
}

var numberPattern = regexp.MustCompile(`\d+`)

// queryNumbers returns the digit runs of the raw query ("día 2" -> ["2"]).
func queryNumbers(query string) []string {
	return numberPattern.FindAllString(query, -1)
}

// longTerms keeps tokens longer than three runes.
func longTerms(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if utf8.RuneCountInString(t) > 3 {
			out = append(out, t)
		}
	}
	return out
}

// mentionsDay reports whether an entity id or one of its folded labels
// names day n: "Dia2_..." / "Day2..." ids, "día 2" / "dia 2" / "day 2" labels.
func mentionsDay(lowerID string, foldedLabels []string, n string) bool {
	if strings.Contains(lowerID, "dia"+n) || strings.Contains(lowerID, "day"+n) {
		return true
	}
	for _, l := range foldedLabels {
		if strings.Contains(l, "dia "+n) || strings.Contains(l, "day "+n) {
			return true
		}
	}
	return false
}
