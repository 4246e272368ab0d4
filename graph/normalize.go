package graph

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stemRules are tried in order; the first matching suffix is rewritten and
// the rest are skipped. Tokens are folded before stemming, so the accented
// rules only fire for callers that stem unfolded words.
var stemRules = []struct{ suffix, repl string }{
	{"es", ""},
	{"s", ""},
	{"ón", "on"},
	{"í", "i"},
}

// Stem applies the light Spanish suffix stripper to a lowercased word.
func Stem(word string) string {
	for _, r := range stemRules {
		if strings.HasSuffix(word, r.suffix) {
			return strings.TrimSuffix(word, r.suffix) + r.repl
		}
	}
	return word
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases text and removes diacritics ("Peregrinación" ->
// "peregrinacion", "ñ" -> "n").
func Fold(text string) string {
	lower := strings.ToLower(text)
	folded, _, err := transform.String(accentFolder, lower)
	if err != nil {
		return lower
	}
	return folded
}

// Tokens normalizes text into index terms: lowercased and accent folded,
// punctuation replaced by spaces, tokens of two runes or fewer dropped,
// then stemmed. A token the stemmer shortens below three runes is dropped
// as well.
func Tokens(text string) []string {
	fields := strings.FieldsFunc(Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) <= 2 {
			continue
		}
		if t := Stem(f); utf8.RuneCountInString(t) > 2 {
			out = append(out, t)
		}
	}
	return out
}

// Normalize is Tokens joined by single spaces.
func Normalize(text string) string {
	return strings.Join(Tokens(text), " ")
}

// IDText turns an entity id into searchable words by splitting on '_' and
// camel-case boundaries: "Dia2_DomingoPartida" -> "Dia2 Domingo Partida".
func IDText(id string) string {
	var b strings.Builder
	prev := rune(0)
	for _, r := range id {
		switch {
		case r == '_' || r == '-':
			b.WriteByte(' ')
		case unicode.IsUpper(r) && prev != 0 && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			b.WriteByte(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
		prev = r
	}
	return b.String()
}
