package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/knakk/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/qoyllur/graph"
)

const sampleTurtle = `@prefix : <http://example.org/q#> .
@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .

:Santuario a :LugarSagrado ;
    rdfs:label "Santuario"@es ;
    rdfs:label "Sanctuary"@en ;
    :tieneOrden "3" ;
    :estaEn :Sinakara .
`

func typeName(v any) string { return fmt.Sprintf("%T", v) }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTurtleParse(t *testing.T) {
	path := writeFile(t, "g.ttl", sampleTurtle)

	res, err := (&TurtleParser{}).Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "turtle", res.Format)
	require.Len(t, res.Triples, 5)

	byPred := map[string][]graph.Term{}
	for _, tr := range res.Triples {
		assert.Equal(t, "http://example.org/q#Santuario", tr.Subject)
		byPred[graph.LocalName(tr.Predicate)] = append(byPred[graph.LocalName(tr.Predicate)], tr.Object)
	}

	assert.Equal(t, graph.TermIRI, byPred["type"][0].Kind)
	assert.Equal(t, "http://example.org/q#LugarSagrado", byPred["type"][0].Value)

	labels := byPred["label"]
	require.Len(t, labels, 2)
	assert.Equal(t, graph.Term{Kind: graph.TermLiteral, Value: "Santuario", Lang: "es", Datatype: labels[0].Datatype}, labels[0])
	assert.Equal(t, "en", labels[1].Lang)

	assert.Equal(t, graph.TermLiteral, byPred["tieneOrden"][0].Kind)
	assert.Equal(t, "3", byPred["tieneOrden"][0].Value)
	assert.Equal(t, "http://example.org/q#Sinakara", byPred["estaEn"][0].Value)
}

func TestTurtleParseFixtureBuildsIndex(t *testing.T) {
	res, err := (&TurtleParser{}).Parse(context.Background(), filepath.Join("..", "testdata", "qoyllur.ttl"))
	require.NoError(t, err)

	idx := graph.Build(res.Triples, graph.DefaultVocabulary())
	dia, ok := idx.Entity("Dia2_DomingoPartida")
	require.True(t, ok)
	assert.Equal(t, "Día 2 - Domingo de partida", dia.Name())
	assert.Equal(t, "2", dia.Properties["tieneOrden"])
	assert.Len(t, dia.Relations.Get("defineMarcoTemporal"), 3)
}

func TestTurtleParseErrors(t *testing.T) {
	_, err := (&TurtleParser{}).Parse(context.Background(), filepath.Join(t.TempDir(), "missing.ttl"))
	assert.Error(t, err)

	bad := writeFile(t, "bad.ttl", "@prefix : <http://example.org/q#> .\n:a :b \"unterminated .\n")
	_, err = (&TurtleParser{}).Parse(context.Background(), bad)
	assert.Error(t, err)

	empty := writeFile(t, "empty.ttl", "# nothing here\n")
	_, err = (&TurtleParser{}).Parse(context.Background(), empty)
	assert.Error(t, err)
}

func TestNTriplesDecode(t *testing.T) {
	nt := `<http://example.org/q#Lomada> <http://www.w3.org/2000/01/rdf-schema#label> "Lomada"@es .
<http://example.org/q#Lomada> <http://example.org/q#realizadoPor> <http://example.org/q#Paucartambo> .
`
	triples, err := Decode(context.Background(), strings.NewReader(nt), rdf.NTriples)
	require.NoError(t, err)
	require.Len(t, triples, 2)
	assert.Equal(t, "Lomada", triples[0].Object.Value)
	assert.Equal(t, "es", triples[0].Object.Lang)
	assert.Equal(t, graph.TermIRI, triples[1].Object.Kind)
}

func TestDecodeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Decode(ctx, strings.NewReader(sampleTurtle), rdf.Turtle)
	assert.ErrorIs(t, err, context.Canceled)
}
