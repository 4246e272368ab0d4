// Package qoyllur answers natural-language questions about the Qoyllur
// Rit'i festival from an RDF knowledge graph. Entities are ranked by
// lexical, semantic or hybrid search, the question is classified by
// keyword intent, and the answer is rendered from graph facts by
// templates. No language model generates text.
package qoyllur

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/brunobiangulo/qoyllur/graph"
	"github.com/brunobiangulo/qoyllur/intent"
	"github.com/brunobiangulo/qoyllur/llm"
	"github.com/brunobiangulo/qoyllur/parser"
	"github.com/brunobiangulo/qoyllur/retrieval"
	"github.com/brunobiangulo/qoyllur/synthesis"
)

// Engine is the main entry point. It is immutable after New and safe for
// concurrent use.
type Engine interface {
	// Respond answers a question with plain text. It never fails and never
	// returns an empty string.
	Respond(question string) string

	// Answer runs the full pipeline and reports how the answer was built.
	Answer(ctx context.Context, question string, opts ...QueryOption) (*Answer, error)

	// Search ranks entities for a query using the configured or requested
	// mode.
	Search(ctx context.Context, query string, opts ...QueryOption) ([]Candidate, *retrieval.SearchTrace, error)

	// SearchLexical ranks entities by keyword overlap.
	SearchLexical(query string, topK int) []retrieval.Result

	// SearchSemantic ranks entities by embedding similarity.
	SearchSemantic(ctx context.Context, query string, topK int) ([]retrieval.Result, error)

	// SearchHybrid fuses semantic and lexical scores and applies keyword
	// boosts.
	SearchHybrid(ctx context.Context, query string, topK int, alpha float64) ([]retrieval.Result, *retrieval.SearchTrace)

	// Classify returns the intent of a question.
	Classify(question string) intent.Intent

	// Entity returns one entity record.
	Entity(id string) (*graph.Entity, error)

	// Neighbours returns the entities reachable from id within depth hops.
	Neighbours(id string, depth int) ([]graph.Neighbour, error)

	// Stats describes the loaded graph and semantic index.
	Stats() Stats

	// SaveCache writes the entity table and embeddings to a SQLite cache.
	SaveCache(ctx context.Context, path string) error
}

// Answer is the result of a question.
type Answer struct {
	Text       string                 `json:"text"`
	Provenance synthesis.Provenance   `json:"provenance"`
	Intent     intent.Intent          `json:"intent"`
	EntityID   string                 `json:"entity_id,omitempty"`
	Score      float64                `json:"score"`
	Confidence float64                `json:"confidence"`
	Candidates []Candidate            `json:"candidates"`
	Trace      *retrieval.SearchTrace `json:"trace,omitempty"`
	ElapsedMs  int64                  `json:"elapsed_ms"`
}

// Candidate is a ranked entity with its display name. Search also fills
// Snippet with the entity sentence that best matches the query.
type Candidate struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

// Stats describes a built engine.
type Stats struct {
	graph.Stats
	Semantic    bool   `json:"semantic"`
	Model       string `json:"model,omitempty"`
	Dim         int    `json:"dim,omitempty"`
	GraphHash   string `json:"graph_hash"`
	FromCache   bool   `json:"from_cache"`
	BuildMillis int64  `json:"build_ms"`
}

// QueryOption configures a single query.
type QueryOption func(*queryOptions)

type queryOptions struct {
	mode  string
	topK  int
	alpha float64
	trace bool
}

// WithMode selects hybrid, semantic or lexical ranking for this query.
func WithMode(mode string) QueryOption {
	return func(o *queryOptions) { o.mode = mode }
}

// WithTopK sets how many candidates are retrieved.
func WithTopK(k int) QueryOption {
	return func(o *queryOptions) { o.topK = k }
}

// WithAlpha sets the semantic weight of hybrid fusion. Values outside
// [0, 1] make the query fail with ErrInvalidConfig.
func WithAlpha(alpha float64) QueryOption {
	return func(o *queryOptions) { o.alpha = alpha }
}

// WithTrace attaches the search trace to the Answer.
func WithTrace() QueryOption {
	return func(o *queryOptions) { o.trace = true }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg        Config
	idx        *graph.Index
	embedder   llm.Embedder
	searcher   *retrieval.Searcher
	classifier *intent.Classifier
	responder  *synthesis.Responder
	stats      Stats
}

// New loads the graph, computes or restores the entity embeddings and
// returns a ready engine. A graph that cannot be read or parsed fails
// with ErrGraphLoad.
func New(ctx context.Context, cfg Config) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	vocab := cfg.vocabulary()

	graphHash, err := fileHash(cfg.GraphPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGraphLoad, err)
	}

	embedder, err := llm.NewEmbedder(cfg.Embedding.llmConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	e := &engine{cfg: cfg, embedder: embedder}
	e.stats.GraphHash = graphHash

	var si *retrieval.SemanticIndex
	key := ""
	if embedder != nil {
		key = cacheKey(graphHash, embedder.Identity(), vocab)
	}

	if cfg.Cache.Path != "" && embedder != nil {
		snap, err := loadSnapshot(ctx, cfg.Cache.Path, key)
		switch {
		case err == nil:
			e.idx = graph.Restore(snap.Entities, vocab)
			si = snap.Semantic
			e.stats.FromCache = true
			slog.Info("engine: restored from cache",
				"path", cfg.Cache.Path, "entities", e.idx.Len(), "model", si.Model)
		default:
			slog.Info("engine: cache not used", "path", cfg.Cache.Path, "reason", err)
		}
	}

	if e.idx == nil {
		if e.idx, err = loadGraph(ctx, cfg.GraphPath, vocab); err != nil {
			return nil, err
		}
	}

	if embedder != nil && si == nil {
		si, err = retrieval.BuildSemanticIndex(ctx, e.idx, embedder, retrieval.EmbedOptions{
			BatchSize:   cfg.Embedding.BatchSize,
			Concurrency: cfg.Embedding.Concurrency,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
		}
		if cfg.Cache.Path != "" && cfg.Cache.Write {
			if err := saveSnapshot(ctx, cfg.Cache.Path, key, graphHash, e.idx, si); err != nil {
				slog.Warn("engine: cache write failed (non-fatal)", "path", cfg.Cache.Path, "error", err)
			}
		}
	}

	var sem *retrieval.Semantic
	if si != nil {
		sem = retrieval.NewSemantic(si, embedder)
		e.stats.Semantic = true
		e.stats.Model = si.Model
		e.stats.Dim = si.Dim
	} else {
		slog.Warn("engine: no embedder configured, semantic search disabled")
	}

	var days *intent.DayTable
	if len(cfg.Days) > 0 {
		days = intent.NewDayTable(cfg.Days)
	}
	e.searcher = retrieval.NewSearcher(e.idx, sem)
	e.classifier = intent.NewClassifier(withDefaultRules(cfg.Intents), days)
	e.responder = synthesis.NewResponder(e.idx, e.classifier.Days(), cfg.Search.synthesisOptions())

	e.stats.Stats = e.idx.Stats()
	e.stats.BuildMillis = time.Since(start).Milliseconds()
	slog.Info("engine: ready",
		"entities", e.stats.Entities, "semantic", e.stats.Semantic,
		"from_cache", e.stats.FromCache, "elapsed", time.Since(start).Round(time.Millisecond))
	return e, nil
}

// loadGraph parses the graph file with the loader for its extension.
func loadGraph(ctx context.Context, path string, vocab graph.Vocabulary) (*graph.Index, error) {
	p, err := parser.NewRegistry().ForPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}

	parseStart := time.Now()
	parsed, err := p.Parse(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGraphLoad, err)
	}
	slog.Info("engine: graph parsed",
		"path", path, "format", parsed.Format, "triples", len(parsed.Triples),
		"skipped_rows", parsed.Skipped, "elapsed", time.Since(parseStart).Round(time.Millisecond))

	return graph.Build(parsed.Triples, vocab), nil
}

// Respond answers with text only. Any failure, including a panic inside
// the pipeline, yields the no-match message.
func (e *engine) Respond(question string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("engine: recovered from panic", "question", question, "panic", r)
			text = synthesis.NoMatchText
		}
	}()

	ans, err := e.Answer(context.Background(), question)
	if err != nil || ans.Text == "" {
		return synthesis.NoMatchText
	}
	return ans.Text
}

func (e *engine) options(opts []QueryOption) (queryOptions, retrieval.Mode, error) {
	o := queryOptions{
		mode:  e.cfg.Search.Mode,
		topK:  e.cfg.Search.TopK,
		alpha: e.cfg.Search.Alpha,
	}
	for _, fn := range opts {
		fn(&o)
	}
	mode, err := retrieval.ParseMode(o.mode)
	if err != nil {
		return o, "", fmt.Errorf("%w: %q", ErrUnknownMode, o.mode)
	}
	if o.alpha < 0 || o.alpha > 1 {
		return o, "", fmt.Errorf("%w: alpha must be within [0, 1], got %g", ErrInvalidConfig, o.alpha)
	}
	if o.topK <= 0 {
		o.topK = e.cfg.Search.TopK
	}
	return o, mode, nil
}

// Answer searches, classifies, reselects and renders. It only fails on an
// unknown mode, an alpha outside [0, 1] or a context that is already done.
func (e *engine) Answer(ctx context.Context, question string, opts ...QueryOption) (*Answer, error) {
	o, mode, err := e.options(opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	results, trace := e.searcher.Search(ctx, mode, question, o.topK, o.alpha)
	in := e.classifier.Classify(question)
	resp := e.responder.Compose(question, in, results)

	ans := &Answer{
		Text:       resp.Text,
		Provenance: resp.Provenance,
		Intent:     in,
		EntityID:   resp.EntityID,
		Score:      resp.Score,
		Confidence: synthesis.ComputeConfidence(question, resp, results, synthesis.DefaultConfidenceWeights()),
		Candidates: e.candidates(results),
		ElapsedMs:  time.Since(start).Milliseconds(),
	}
	if o.trace {
		ans.Trace = trace
	}

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		slog.Debug("engine: answered",
			"question", question, "mode", mode, "intent", in,
			"top", e.candidates(head(results, 5)),
			"selected", resp.EntityID, "provenance", resp.Provenance,
			"confidence", ans.Confidence, "elapsed_ms", ans.ElapsedMs)
	}
	return ans, nil
}

// Search ranks entities and returns them with display names.
func (e *engine) Search(ctx context.Context, query string, opts ...QueryOption) ([]Candidate, *retrieval.SearchTrace, error) {
	o, mode, err := e.options(opts)
	if err != nil {
		return nil, nil, err
	}
	results, trace := e.searcher.Search(ctx, mode, query, o.topK, o.alpha)
	cands := e.candidates(results)
	terms := termSet(query)
	for i := range cands {
		if ent, ok := e.idx.Entity(cands[i].ID); ok {
			cands[i].Snippet = entitySnippet(ent, terms)
		}
	}
	return cands, trace, nil
}

func (e *engine) SearchLexical(query string, topK int) []retrieval.Result {
	return e.searcher.Lexical(query, topK)
}

func (e *engine) SearchSemantic(ctx context.Context, query string, topK int) ([]retrieval.Result, error) {
	if !e.searcher.HasSemantic() {
		return nil, ErrSemanticDisabled
	}
	return e.searcher.SemanticSearch(ctx, query, topK)
}

func (e *engine) SearchHybrid(ctx context.Context, query string, topK int, alpha float64) ([]retrieval.Result, *retrieval.SearchTrace) {
	return e.searcher.Hybrid(ctx, query, topK, alpha)
}

func (e *engine) Classify(question string) intent.Intent {
	return e.classifier.Classify(question)
}

func (e *engine) Entity(id string) (*graph.Entity, error) {
	ent, ok := e.idx.Entity(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	return ent, nil
}

func (e *engine) Neighbours(id string, depth int) ([]graph.Neighbour, error) {
	if _, ok := e.idx.Entity(id); !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	return e.idx.Traverse(id, depth), nil
}

func (e *engine) Stats() Stats { return e.stats }

// SaveCache writes a snapshot keyed by the current graph, vocabulary and
// embedder so a later New with the same inputs can skip embedding.
func (e *engine) SaveCache(ctx context.Context, path string) error {
	sem := e.searcher.Semantic()
	if sem == nil || e.embedder == nil {
		return ErrSemanticDisabled
	}
	key := cacheKey(e.stats.GraphHash, e.embedder.Identity(), e.idx.Vocabulary())
	return saveSnapshot(ctx, path, key, e.stats.GraphHash, e.idx, sem.Index())
}

func (e *engine) candidates(results []retrieval.Result) []Candidate {
	out := make([]Candidate, len(results))
	for i, r := range results {
		out[i] = Candidate{ID: r.ID, Name: e.idx.Name(r.ID), Score: r.Score}
	}
	return out
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// fileHash returns the hex sha256 of a file's contents.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
