package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/qoyllur/graph"
	"github.com/brunobiangulo/qoyllur/llm"
)

// SemanticIndex holds one embedded context text per entity. IDs, Texts and
// Vectors are index-aligned.
type SemanticIndex struct {
	Model   string      `json:"model"`
	Dim     int         `json:"dim"`
	IDs     []string    `json:"ids"`
	Texts   []string    `json:"texts"`
	Vectors [][]float32 `json:"-"`
}

// Len returns the number of rows.
func (si *SemanticIndex) Len() int { return len(si.IDs) }

// EmbedOptions tunes index construction.
type EmbedOptions struct {
	BatchSize   int
	Concurrency int
}

const (
	defaultBatchSize   = 32
	defaultConcurrency = 4
	// maxEmbedChars keeps context texts inside typical model windows.
	maxEmbedChars = 8000
)

// BuildSemanticIndex embeds the context text of every entity. Batches run
// concurrently; a failed batch is retried one text at a time, and texts
// that still fail get a zero vector so they never match. It returns an
// error only when nothing could be embedded.
func BuildSemanticIndex(ctx context.Context, idx *graph.Index, embedder llm.Embedder, opts EmbedOptions) (*SemanticIndex, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}

	ids := idx.IDs()
	si := &SemanticIndex{
		Model:   embedder.Identity(),
		IDs:     append([]string(nil), ids...),
		Texts:   make([]string, len(ids)),
		Vectors: make([][]float32, len(ids)),
	}
	for i, id := range ids {
		si.Texts[i] = truncateForEmbed(idx.ContextText(id))
	}

	slog.Info("semantic: embedding entities",
		"entities", len(ids), "model", si.Model,
		"batch_size", opts.BatchSize, "concurrency", opts.Concurrency)
	start := time.Now()

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i := 0; i < len(ids); i += opts.BatchSize {
		lo, hi := i, min(i+opts.BatchSize, len(ids))
		g.Go(func() error {
			n, err := embedBatch(gctx, embedder, si.Texts[lo:hi], si.Vectors[lo:hi])
			failed.Add(int64(n))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embedding entities: %w", err)
	}

	dim := 0
	for _, v := range si.Vectors {
		if len(v) > 0 {
			dim = len(v)
			break
		}
	}
	if len(ids) > 0 && dim == 0 {
		return nil, fmt.Errorf("all %d entity texts failed embedding", len(ids))
	}
	si.Dim = dim
	for i, v := range si.Vectors {
		if len(v) != dim {
			if v != nil {
				slog.Warn("semantic: dimension mismatch, zeroing vector",
					"entity", si.IDs[i], "got", len(v), "want", dim)
				failed.Add(1)
			}
			si.Vectors[i] = make([]float32, dim)
		}
	}

	if n := failed.Load(); n > 0 {
		slog.Warn("semantic: some entities failed embedding", "failed", n, "total", len(ids))
	}
	slog.Info("semantic: embeddings complete",
		"entities", len(ids), "dim", dim,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return si, nil
}

// embedBatch fills out with vectors for texts and returns how many texts
// could not be embedded. Only context cancellation is returned as an error.
func embedBatch(ctx context.Context, embedder llm.Embedder, texts []string, out [][]float32) (int, error) {
	vecs, err := embedder.Embed(ctx, texts)
	if err == nil && len(vecs) == len(texts) {
		copy(out, vecs)
		return 0, nil
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	slog.Warn("semantic: embedding batch failed, falling back to individual",
		"batch", len(texts), "error", err)

	failed := 0
	for i, text := range texts {
		single, serr := embedder.Embed(ctx, []string{text})
		if serr != nil || len(single) != 1 || len(single[0]) == 0 {
			if ctx.Err() != nil {
				return failed, ctx.Err()
			}
			slog.Warn("semantic: embedding single text failed", "error", serr)
			failed++
			continue
		}
		out[i] = single[0]
	}
	return failed, nil
}

// truncateForEmbed cuts text to maxEmbedChars on a word boundary.
func truncateForEmbed(text string) string {
	if len(text) <= maxEmbedChars {
		return text
	}
	cut := strings.LastIndex(text[:maxEmbedChars], " ")
	if cut <= 0 {
		cut = maxEmbedChars
	}
	return text[:cut]
}

// Semantic ranks entities by cosine similarity between the query vector
// and every row of a SemanticIndex.
type Semantic struct {
	index    *SemanticIndex
	embedder llm.Embedder
	norms    []float64
}

// NewSemantic wraps a built or restored index. The embedder must be the
// one the index was built with.
func NewSemantic(si *SemanticIndex, embedder llm.Embedder) *Semantic {
	norms := make([]float64, len(si.Vectors))
	for i, v := range si.Vectors {
		norms[i] = l2norm(v)
	}
	return &Semantic{index: si, embedder: embedder, norms: norms}
}

// Index returns the underlying semantic index.
func (s *Semantic) Index() *SemanticIndex { return s.index }

// Search embeds the query and returns the topK most similar entities by
// full scan. Scores are raw cosine similarities in [-1, 1]. A blank query
// returns nil.
func (s *Semantic) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if strings.TrimSpace(query) == "" || len(s.index.Vectors) == 0 {
		return nil, nil
	}
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors", len(vecs))
	}
	q := vecs[0]
	if len(q) != s.index.Dim {
		return nil, fmt.Errorf("embedding query: dimension %d, index has %d", len(q), s.index.Dim)
	}
	qn := l2norm(q)

	results := make([]Result, len(s.index.Vectors))
	for i, v := range s.index.Vectors {
		results[i] = Result{ID: s.index.IDs[i], Score: cosine(q, v, qn, s.norms[i])}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func l2norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
