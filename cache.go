package qoyllur

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/brunobiangulo/qoyllur/graph"
	"github.com/brunobiangulo/qoyllur/llm"
	"github.com/brunobiangulo/qoyllur/retrieval"
	"github.com/brunobiangulo/qoyllur/store"
)

// cacheKey identifies the inputs a snapshot was built from. Any change to
// the graph bytes, the embedder or the vocabulary yields a new key.
func cacheKey(graphHash, embedderIdentity string, vocab graph.Vocabulary) string {
	h := sha256.New()
	h.Write([]byte(graphHash))
	h.Write([]byte{0})
	h.Write([]byte(embedderIdentity))
	h.Write([]byte{0})
	v, _ := json.Marshal(vocab)
	h.Write(v)
	return hex.EncodeToString(h.Sum(nil))
}

// loadSnapshot opens the cache at path and reads the snapshot stored under
// key, mapping store errors to ErrCacheMiss and ErrCacheStale.
func loadSnapshot(ctx context.Context, path, key string) (*store.Snapshot, error) {
	s, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	defer s.Close()

	snap, err := s.Load(ctx, key)
	switch {
	case errors.Is(err, store.ErrNoSnapshot):
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, path)
	case errors.Is(err, store.ErrKeyMismatch):
		return nil, fmt.Errorf("%w: %w", ErrCacheStale, err)
	case err != nil:
		return nil, fmt.Errorf("loading cache: %w", err)
	}
	if snap.Semantic == nil {
		return nil, fmt.Errorf("%w: snapshot has no vectors", ErrCacheStale)
	}
	if snap.Semantic.Len() != len(snap.Entities) {
		return nil, fmt.Errorf("%w: snapshot has %d entities but %d vectors",
			ErrCacheStale, len(snap.Entities), snap.Semantic.Len())
	}
	return snap, nil
}

func saveSnapshot(ctx context.Context, path, key, graphHash string, idx *graph.Index, si *retrieval.SemanticIndex) error {
	s, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer s.Close()

	ents := idx.Entities()
	entities := make([]graph.Entity, len(ents))
	for i, e := range ents {
		entities[i] = *e
	}
	return s.Save(ctx, &store.Snapshot{
		Key:       key,
		GraphHash: graphHash,
		Entities:  entities,
		Semantic:  si,
	})
}

// CacheInfo describes the snapshot stored at path.
func CacheInfo(ctx context.Context, path string) (*store.Info, error) {
	s, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	defer s.Close()

	info, err := s.Info(ctx)
	if errors.Is(err, store.ErrNoSnapshot) {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, path)
	}
	return info, err
}

// SearchCache ranks the entities of the snapshot at path against query
// using the stored vectors only, without loading the graph. The embedder
// configured in emb must be the one the snapshot was built with.
func SearchCache(ctx context.Context, emb EmbeddingConfig, path, query string, topK int) ([]retrieval.Result, error) {
	embedder, err := llm.NewEmbedder(emb.llmConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if embedder == nil {
		return nil, ErrSemanticDisabled
	}

	s, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	defer s.Close()

	info, err := s.Info(ctx)
	if errors.Is(err, store.ErrNoSnapshot) {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, path)
	}
	if err != nil {
		return nil, err
	}
	if info.Model != embedder.Identity() {
		return nil, fmt.Errorf("%w: snapshot built with %s, configured embedder is %s",
			ErrCacheStale, info.Model, embedder.Identity())
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	vecs, err := embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if len(vecs) != 1 || len(vecs[0]) != info.Dim {
		return nil, fmt.Errorf("%w: query vector does not match dimension %d", ErrCacheStale, info.Dim)
	}
	if topK <= 0 {
		topK = DefaultConfig().Search.TopK
	}
	return s.Nearest(ctx, vecs[0], topK)
}
