package parser

import (
	"context"

	"github.com/brunobiangulo/qoyllur/graph"
)

// ParseResult is what a loader produces from a graph file.
type ParseResult struct {
	Triples []graph.Triple
	Format  string // "turtle", "ntriples", "xlsx"
	// Skipped counts input rows the loader could not turn into a triple.
	Skipped int
}

// Parser loads a knowledge-graph file into triples.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}
