package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/qoyllur/graph"
)

// PrefixSheet is the optional sheet mapping prefixes to namespaces. Its
// rows are "prefix | namespace", e.g. "qr | http://example.org/qoyllur#".
const PrefixSheet = "prefixes"

var builtinPrefixes = map[string]string{
	"rdf":  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
	"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
	"xsd":  "http://www.w3.org/2001/XMLSchema#",
	"owl":  "http://www.w3.org/2002/07/owl#",
}

// XLSXParser reads a graph curated in a spreadsheet. Every sheet other
// than PrefixSheet holds triples, one per row:
//
//	subject | predicate | object | lang | kind
//
// lang and kind are optional. kind is "iri" or "literal"; when empty an
// object written as a prefixed name or absolute IRI is a reference and
// anything else is a literal. A first row starting with "subject" is a
// header and skipped.
type XLSXParser struct{}

func (p *XLSXParser) SupportedFormats() []string { return []string{"xlsx"} }

func (p *XLSXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	prefixes := make(map[string]string, len(builtinPrefixes))
	for k, v := range builtinPrefixes {
		prefixes[k] = v
	}

	sheets := f.GetSheetList()
	for _, sheet := range sheets {
		if !strings.EqualFold(sheet, PrefixSheet) {
			continue
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("reading prefix sheet: %w", err)
		}
		for _, row := range rows {
			if len(row) >= 2 && row[0] != "" && row[1] != "" {
				prefixes[strings.TrimSuffix(strings.TrimSpace(row[0]), ":")] = strings.TrimSpace(row[1])
			}
		}
	}

	res := &ParseResult{Format: "xlsx"}
	for _, sheet := range sheets {
		if strings.EqualFold(sheet, PrefixSheet) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			slog.Warn("parser: skipping unreadable sheet", "sheet", sheet, "error", err)
			continue
		}
		for i, row := range rows {
			if i == 0 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "subject") {
				continue
			}
			t, ok := rowTriple(row, prefixes)
			if !ok {
				if !blankRow(row) {
					slog.Debug("parser: skipping incomplete row", "sheet", sheet, "row", i+1)
					res.Skipped++
				}
				continue
			}
			res.Triples = append(res.Triples, t)
		}
	}

	if len(res.Triples) == 0 {
		return nil, fmt.Errorf("no triples found in XLSX")
	}
	return res, nil
}

func rowTriple(row []string, prefixes map[string]string) (graph.Triple, bool) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	subj, pred, obj := cell(0), cell(1), cell(2)
	if subj == "" || pred == "" || obj == "" {
		return graph.Triple{}, false
	}

	subjIRI, ok := expand(subj, prefixes)
	if !ok {
		return graph.Triple{}, false
	}
	predIRI, ok := expand(pred, prefixes)
	if !ok {
		return graph.Triple{}, false
	}

	var object graph.Term
	switch strings.ToLower(cell(4)) {
	case "literal":
		object = graph.Literal(obj, cell(3))
	case "iri":
		iri, ok := expand(obj, prefixes)
		if !ok {
			return graph.Triple{}, false
		}
		object = graph.IRI(iri)
	default:
		if iri, ok := expand(obj, prefixes); ok && cell(3) == "" {
			object = graph.IRI(iri)
		} else {
			object = graph.Literal(obj, cell(3))
		}
	}
	return graph.Triple{Subject: subjIRI, Predicate: predIRI, Object: object}, true
}

// expand resolves "prefix:local", "<iri>" or an absolute http(s) IRI.
func expand(s string, prefixes map[string]string) (string, bool) {
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		return s[1 : len(s)-1], true
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "urn:") {
		return s, true
	}
	if s == "a" {
		return builtinPrefixes["rdf"] + "type", true
	}
	prefix, local, ok := strings.Cut(s, ":")
	if !ok || strings.ContainsAny(local, " \t") {
		return "", false
	}
	ns, known := prefixes[prefix]
	if !known {
		return "", false
	}
	return ns + local, true
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
