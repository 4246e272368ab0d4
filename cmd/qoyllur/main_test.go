//go:build cgo

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/qoyllur"
	"github.com/brunobiangulo/qoyllur/intent"
	"github.com/brunobiangulo/qoyllur/retrieval"
	"github.com/brunobiangulo/qoyllur/store"
)

const testGraph = "../../testdata/qoyllur.ttl"

// run executes the CLI with args and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--graph", testGraph, "--plain", "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestAsk(t *testing.T) {
	out, err := run(t, "", "ask", "--mode", "lexical", "¿Dónde", "está", "Colque", "Punku?")
	require.NoError(t, err)
	assert.Contains(t, out, "**Colque Punku**")
	assert.Contains(t, out, "Nevado sagrado")
}

func TestAskJSON(t *testing.T) {
	out, err := run(t, "", "ask", "--json", "--mode", "lexical", "¿Quién realiza la Bajada del Hielo?")
	require.NoError(t, err)

	var ans qoyllur.Answer
	require.NoError(t, json.Unmarshal([]byte(out), &ans))
	assert.Equal(t, intent.Agent, ans.Intent)
	assert.Equal(t, "👥 **Bajada del hielo** es realizado por **Ukukus**.", ans.Text)
	assert.NotEmpty(t, ans.Candidates)
}

func TestAskTrace(t *testing.T) {
	out, err := run(t, "", "ask", "--trace", "--mode", "hybrid", "¿Qué eventos hay el día 2?")
	require.NoError(t, err)
	assert.Contains(t, out, "intent=event_listing")
	assert.Contains(t, out, " 1. ")
}

func TestAskUnknownMode(t *testing.T) {
	_, err := run(t, "", "ask", "--mode", "psychic", "hola")
	assert.ErrorIs(t, err, qoyllur.ErrUnknownMode)
}

func TestAskMissingGraph(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--graph", filepath.Join(t.TempDir(), "none.ttl"), "ask", "hola"})
	assert.ErrorIs(t, cmd.Execute(), qoyllur.ErrGraphLoad)
}

func TestSearch(t *testing.T) {
	out, err := run(t, "", "search", "--mode", "lexical", "Colque Punku")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Contains(t, lines[0], "SNIPPET")
	assert.Contains(t, lines[1], "ColquePunku")
}

func TestSearchJSON(t *testing.T) {
	out, err := run(t, "", "search", "--json", "-k", "3", "--mode", "hybrid", "guardianes del glaciar")
	require.NoError(t, err)
	var payload struct {
		Candidates []qoyllur.Candidate `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.NotEmpty(t, payload.Candidates)
	assert.LessOrEqual(t, len(payload.Candidates), 3)
}

func TestSearchNoResults(t *testing.T) {
	out, err := run(t, "", "search", "--mode", "lexical", "zzzz")
	require.NoError(t, err)
	assert.Equal(t, "no results\n", out)
}

func TestChat(t *testing.T) {
	out, err := run(t, "stats\n\n¿Quién realiza la lomada?\ncache\nsalir\nnunca llega\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "entities:")
	assert.Contains(t, out, "Nación Paucartambo")
	assert.Contains(t, out, "cache: not configured")
	assert.Contains(t, out, "¡Hasta pronto!")
	assert.NotContains(t, out, "nunca llega")
}

func TestChatEOF(t *testing.T) {
	out, err := run(t, "¿Qué es la lomada?", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "Lomada")
}

func TestCacheSaveAndInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "qoyllur.db")

	out, err := run(t, "", "cache", "save", path)
	require.NoError(t, err)
	assert.Contains(t, out, "cached")

	out, err = run(t, "", "cache", "info", "--json", path)
	require.NoError(t, err)
	var info store.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Positive(t, info.EntityCount)
	assert.Equal(t, 384, info.Dim)

	out, err = run(t, "", "--cache", path, "cache", "info")
	require.NoError(t, err)
	assert.Contains(t, out, "entities:")

	out, err = run(t, "", "cache", "search", "--path", path, "--json", "-k", "2", "Colque Punku")
	require.NoError(t, err)
	var payload struct {
		Results []retrieval.Result `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Len(t, payload.Results, 2)

	out, err = run(t, "", "--cache", path, "cache", "search", "glaciar")
	require.NoError(t, err)
	assert.Contains(t, out, "SCORE")
}

func TestCacheNeedsPath(t *testing.T) {
	_, err := run(t, "", "cache", "info")
	assert.ErrorIs(t, err, qoyllur.ErrInvalidConfig)
}

func TestEval(t *testing.T) {
	report := filepath.Join(t.TempDir(), "report.json")
	out, err := run(t, "", "eval", "--modes", "lexical,hybrid", "--output", report, "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "MODE")
	assert.Contains(t, out, "[lexical]")
	assert.Contains(t, out, "paraphrase consistency")
	assert.Contains(t, out, "report written to")

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestEvalDatasetFile(t *testing.T) {
	ds := filepath.Join(t.TempDir(), "ds.yaml")
	require.NoError(t, os.WriteFile(ds, []byte("tests:\n  - question: ¿Dónde está Colque Punku?\n    expected_entity: ColquePunku\n"), 0644))
	out, err := run(t, "", "eval", "--modes", "lexical", "--dataset", ds)
	require.NoError(t, err)
	assert.Contains(t, out, "dataset ds: 1 questions")
}

func TestConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "qoyllur.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("search:\n  mode: lexical\n  top_k: 2\n"), 0644))
	out, err := run(t, "", "--config", cfgPath, "search", "--json", "glaciar")
	require.NoError(t, err)
	var payload struct {
		Candidates []qoyllur.Candidate `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Len(t, payload.Candidates, 2)
}
