//go:build cgo

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/brunobiangulo/qoyllur"
	"github.com/brunobiangulo/qoyllur/graph"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testGraph = "../../testdata/qoyllur.ttl"

func testConfig(graphPath string) qoyllur.Config {
	cfg := qoyllur.DefaultConfig()
	cfg.GraphPath = graphPath
	cfg.Embedding.Dim = 64
	cfg.LogLevel = "error"
	return cfg
}

func newTestBox(t *testing.T, graphPath string) (*engineBox, *metrics) {
	t.Helper()
	e, err := qoyllur.New(context.Background(), testConfig(graphPath))
	require.NoError(t, err)
	m := newMetrics()
	return newEngineBox(e, m), m
}

func serve(h http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newTestRouter(t *testing.T) (http.Handler, *metrics) {
	box, m := newTestBox(t, testGraph)
	return newRouter(box, m, "", ""), m
}

func TestAsk(t *testing.T) {
	h, m := newTestRouter(t)
	rec := serve(h, http.MethodPost, "/ask", `{"question":"¿Dónde está Colque Punku?","mode":"lexical"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	var ans qoyllur.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ans))
	assert.True(t, strings.HasPrefix(ans.Text, "**Colque Punku**"), ans.Text)
	assert.Equal(t, "ColquePunku", ans.EntityID)
	assert.Nil(t, ans.Trace)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.answers.WithLabelValues(string(ans.Intent), string(ans.Provenance))))
}

func TestAskTrace(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := serve(h, http.MethodPost, "/ask", `{"question":"¿Qué eventos hay el día 2?","mode":"hybrid","alpha":0.5,"trace":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var ans qoyllur.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ans))
	require.NotNil(t, ans.Trace)
	assert.Contains(t, ans.Text, "Misa de envío")
}

func TestAskBadRequests(t *testing.T) {
	h, _ := newTestRouter(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"empty question", `{"question":""}`, http.StatusBadRequest},
		{"unknown mode", `{"question":"hola","mode":"psychic"}`, http.StatusBadRequest},
		{"too large", `{"question":"` + strings.Repeat("a", maxQuestionBytes) + `"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, http.MethodPost, "/ask", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}

	rec := serve(h, http.MethodGet, "/ask", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSearch(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := serve(h, http.MethodGet, "/search?q=glaciar&mode=lexical&k=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Query      string              `json:"query"`
		Candidates []qoyllur.Candidate `json:"candidates"`
		Trace      json.RawMessage     `json:"trace"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "glaciar", resp.Query)
	assert.Len(t, resp.Candidates, 2)
	assert.Nil(t, resp.Trace)

	rec = serve(h, http.MethodGet, "/search?q=zzzz&mode=lexical", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"candidates":[]`)
}

func TestSearchBadRequests(t *testing.T) {
	h, _ := newTestRouter(t)
	for _, target := range []string{
		"/search",
		"/search?q=glaciar&k=many",
		"/search?q=glaciar&alpha=2",
		"/search?q=glaciar&mode=psychic",
	} {
		rec := serve(h, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestEntity(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := serve(h, http.MethodGet, "/entities/Sinakara?depth=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		graph.Entity
		Neighbours []graph.Neighbour `json:"neighbours"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Sinakara", resp.ID)
	assert.Equal(t, []string{"Valle de Sinakara"}, resp.Labels)
	ids := make([]string, len(resp.Neighbours))
	for i, n := range resp.Neighbours {
		ids[i] = n.ID
	}
	assert.Contains(t, ids, "Ocongate")

	rec = serve(h, http.MethodGet, "/entities/Sinakara", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "neighbours")

	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/entities/Atlantis", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodGet, "/entities/Sinakara?depth=9", "").Code)
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := serve(h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string        `json:"status"`
		Stats  qoyllur.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Positive(t, resp.Stats.Entities)
	assert.True(t, resp.Stats.Semantic)
}

func TestMetricsEndpoint(t *testing.T) {
	h, m := newTestRouter(t)
	serve(h, http.MethodGet, "/entities/Atlantis", "")
	serve(h, http.MethodGet, "/health", "")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET /entities/{id}", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET /health", "200")))
	assert.Positive(t, testutil.ToFloat64(m.entities))

	rec := serve(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "qoyllur_http_requests_total")
	assert.Contains(t, body, "qoyllur_engine_entities")
	assert.Contains(t, body, "go_goroutines")
}

func TestRequestIDPropagated(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := serve(h, http.MethodGet, "/health", "", requestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))

	rec = serve(h, http.MethodGet, "/health", "", requestIDHeader, strings.Repeat("x", 200))
	assert.Len(t, rec.Header().Get(requestIDHeader), 36, "oversized ids are replaced by a uuid")
}

func TestAuth(t *testing.T) {
	box, m := newTestBox(t, testGraph)
	h := newRouter(box, m, "secret", "")

	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/search?q=glaciar", "").Code)
	assert.Equal(t, http.StatusUnauthorized,
		serve(h, http.MethodGet, "/search?q=glaciar", "", "Authorization", "Bearer wrong").Code)
	assert.Equal(t, http.StatusOK,
		serve(h, http.MethodGet, "/search?q=glaciar", "", "Authorization", "Bearer secret").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/metrics", "").Code)
}

func TestCORS(t *testing.T) {
	box, m := newTestBox(t, testGraph)
	h := newRouter(box, m, "", "https://example.org")

	rec := serve(h, http.MethodOptions, "/ask", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	h := recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := serve(h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

// copyGraph copies the test graph into a temp dir so it can be edited.
func copyGraph(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(testGraph)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "qoyllur.ttl")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestReloadKeepsEngineOnFailure(t *testing.T) {
	path := copyGraph(t)
	box, m := newTestBox(t, path)
	before := box.load()

	require.NoError(t, os.WriteFile(path, []byte("this is not turtle @@@"), 0644))
	err := box.reload(context.Background(), testConfig(path))
	assert.ErrorIs(t, err, qoyllur.ErrGraphLoad)
	assert.Same(t, before, box.load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reloads.WithLabelValues("error")))
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := copyGraph(t)
	box, m := newTestBox(t, path)
	entities := box.load().engine.Stats().Entities

	w, err := newGraphWatcher(box, testConfig(path), 50*time.Millisecond)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go w.run(ctx)
	t.Cleanup(func() {
		cancel()
		w.wait()
	})

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("\n:Paucartambo a :Lugar ;\n    rdfs:label \"Paucartambo\"@es .\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		return box.load().engine.Stats().Entities == entities+1
	}, 5*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.reloads.WithLabelValues("ok")), 1.0)

	h := newRouter(box, m, "", "")
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/entities/Paucartambo", "").Code)
}
