package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/knakk/rdf"

	"github.com/brunobiangulo/qoyllur/graph"
)

// TurtleParser reads Turtle (.ttl) files.
type TurtleParser struct{}

func (p *TurtleParser) SupportedFormats() []string { return []string{"ttl", "turtle"} }

func (p *TurtleParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	return decodeFile(ctx, path, rdf.Turtle, "turtle")
}

// NTriplesParser reads N-Triples (.nt) files.
type NTriplesParser struct{}

func (p *NTriplesParser) SupportedFormats() []string { return []string{"nt", "ntriples"} }

func (p *NTriplesParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	return decodeFile(ctx, path, rdf.NTriples, "ntriples")
}

func decodeFile(ctx context.Context, path string, format rdf.Format, name string) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	triples, err := Decode(ctx, f, format)
	if err != nil {
		return nil, fmt.Errorf("parsing %s %s: %w", name, path, err)
	}
	if len(triples) == 0 {
		return nil, fmt.Errorf("no triples found in %s", path)
	}
	return &ParseResult{Triples: triples, Format: name}, nil
}

// Decode reads every triple from r. A syntax error aborts the whole decode:
// a half-read graph would silently drop entities.
func Decode(ctx context.Context, r io.Reader, format rdf.Format) ([]graph.Triple, error) {
	dec := rdf.NewTripleDecoder(r, format)
	var out []graph.Triple
	for {
		if len(out)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		t, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, convertTriple(t))
	}
}

func convertTriple(t rdf.Triple) graph.Triple {
	return graph.Triple{
		Subject:   t.Subj.String(),
		Predicate: t.Pred.String(),
		Object:    convertTerm(t.Obj),
	}
}

func convertTerm(o rdf.Object) graph.Term {
	switch v := o.(type) {
	case rdf.Literal:
		return graph.Term{
			Kind:     graph.TermLiteral,
			Value:    v.String(),
			Lang:     v.Lang(),
			Datatype: v.DataType.String(),
		}
	case rdf.Blank:
		return graph.Term{Kind: graph.TermBlank, Value: v.String()}
	default:
		return graph.Term{Kind: graph.TermIRI, Value: o.String()}
	}
}
