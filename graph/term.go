package graph

import "strings"

// TermKind distinguishes the three RDF node kinds.
type TermKind int

const (
	TermIRI TermKind = iota
	TermBlank
	TermLiteral
)

// Term is the object position of a triple.
type Term struct {
	Kind     TermKind
	Value    string
	Lang     string // literals only; empty when untagged
	Datatype string // literals only
}

// IsLiteral reports whether the term is a literal value.
func (t Term) IsLiteral() bool { return t.Kind == TermLiteral }

// Triple is one parsed statement. Subject and Predicate are full IRIs (or
// blank node labels for the subject).
type Triple struct {
	Subject   string
	Predicate string
	Object    Term
}

// IRI returns a reference term.
func IRI(v string) Term { return Term{Kind: TermIRI, Value: v} }

// Literal returns a literal term with an optional language tag.
func Literal(v, lang string) Term { return Term{Kind: TermLiteral, Value: v, Lang: lang} }

// LocalName strips the namespace from an IRI: the fragment after '#',
// otherwise the segment after the last '/', otherwise the input.
func LocalName(iri string) string {
	if i := strings.LastIndexByte(iri, '#'); i >= 0 && i < len(iri)-1 {
		return iri[i+1:]
	}
	if i := strings.LastIndexByte(iri, '/'); i >= 0 && i < len(iri)-1 {
		return iri[i+1:]
	}
	return iri
}
