package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/qoyllur/graph"
)

func TestNewEmbedder(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
	}{
		{"ollama", "*llm.ollamaProvider"},
		{"lmstudio", "*llm.lmStudioProvider"},
		{"openrouter", "*llm.openRouterProvider"},
		{"openai", "*llm.openAIProvider"},
		{"gemini", "*llm.geminiProvider"},
		{"custom", "*llm.openAICompatProvider"},
		{"hashing", "*llm.hashingProvider"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewEmbedder(Config{Provider: tt.provider, Model: "test-model"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, fmt.Sprintf("%T", p))
		})
	}
}

func TestNewEmbedderNone(t *testing.T) {
	p, err := NewEmbedder(Config{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestNewEmbedderErrors(t *testing.T) {
	_, err := NewEmbedder(Config{Provider: "doesnotexist"})
	require.EqualError(t, err, "unknown embedding provider: doesnotexist")

	_, err = NewEmbedder(Config{})
	require.EqualError(t, err, "embedding provider not specified")
}

// TestDefaultBaseURLs verifies that when BaseURL is empty in the config,
// each provider constructor sets the correct default.
func TestDefaultBaseURLs(t *testing.T) {
	tests := []struct {
		provider string
		wantURL  string
	}{
		{"ollama", "http://localhost:11434"},
		{"lmstudio", "http://localhost:1234"},
		{"openrouter", "https://openrouter.ai/api"},
		{"openai", "https://api.openai.com"},
		{"gemini", "https://generativelanguage.googleapis.com/v1beta/openai"},
		{"custom", ""},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewEmbedder(Config{Provider: tt.provider, Model: "test-model"})
			require.NoError(t, err)

			// Use reflection to reach base.cfg.BaseURL on the concrete type.
			v := reflect.ValueOf(p).Elem()
			gotURL := v.FieldByName("base").FieldByName("cfg").FieldByName("BaseURL").String()
			assert.Equal(t, tt.wantURL, gotURL)
		})
	}
}

func TestIdentity(t *testing.T) {
	p := NewOllama(Config{Provider: "ollama", Model: "bge-m3"})
	assert.Equal(t, "ollama/bge-m3", p.Identity())

	h := NewHashing(Config{Provider: "hashing", Dim: 64})
	assert.Equal(t, "hashing/word-trigram@64", h.Identity())
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		resp := ollamaEmbedResponse{}
		for i := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float64{float64(i), 1})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewOllama(Config{Provider: "ollama", BaseURL: srv.URL})
	got, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}}, got)
}

func TestOpenAICompatEmbedOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"data":[{"index":1,"embedding":[2,2]},{"index":0,"embedding":[1,1]}]}`)
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{Provider: "custom", BaseURL: srv.URL, APIKey: "secret"})
	got, err := p.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {2, 2}}, got)
}

func TestOpenAICompatEmbedNonRetryableError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{Provider: "custom", BaseURL: srv.URL})
	_, err := p.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding API error 400")
	assert.Equal(t, 1, calls)
}

func TestHashingEmbedder(t *testing.T) {
	p := NewHashing(Config{Provider: "hashing", Dim: 128})
	vecs, err := p.Embed(context.Background(), []string{
		"Peregrinación al Qoyllur Rit'i",
		"peregrinacion al qoyllur riti",
		"danza de los ukukus",
		"",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 4)

	for _, v := range vecs[:3] {
		assert.Len(t, v, 128)
		assert.InDelta(t, 1.0, l2(v), 1e-5)
	}
	assert.Zero(t, l2(vecs[3]), "empty text embeds to the zero vector")

	same := dot(vecs[0], vecs[1])
	other := dot(vecs[0], vecs[2])
	assert.Greater(t, same, other)
	assert.InDelta(t, 1.0, float64(same), 0.25, "accent folding keeps spellings close")
}

func TestHashingWordsMatchIndexFolding(t *testing.T) {
	text := "Peregrinación a Sinakara, Ñaupa Día-2"
	assert.Equal(t, []string{"peregrinacion", "a", "sinakara", "naupa", "dia", "2"}, hashingWords(text))
	assert.Equal(t, strings.Fields(graph.Fold("Peregrinación a Sinakara Ñaupa Día 2")), hashingWords(text))

	vecs, err := NewHashing(Config{Provider: "hashing", Dim: 64}).Embed(context.Background(),
		[]string{"Señor de Qoyllur Rit'i", "senor de qoyllur rit i"})
	require.NoError(t, err)
	assert.Equal(t, vecs[0], vecs[1])
}

func TestHashingEmbedderDeterministic(t *testing.T) {
	a, _ := NewHashing(Config{Provider: "hashing"}).Embed(context.Background(), []string{"Sinakara"})
	b, _ := NewHashing(Config{Provider: "hashing"}).Embed(context.Background(), []string{"Sinakara"})
	assert.Equal(t, a, b)
}

func TestHashingEmbedderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashing(Config{Provider: "hashing"}).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func l2(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
