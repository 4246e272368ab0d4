package qoyllur

import "errors"

var (
	// ErrGraphLoad is returned when the knowledge-graph file cannot be read
	// or parsed.
	ErrGraphLoad = errors.New("qoyllur: graph load failed")

	// ErrUnsupportedFormat is returned for graph files with no loader.
	ErrUnsupportedFormat = errors.New("qoyllur: unsupported graph format")

	// ErrEmbeddingFailed is returned when the entity embeddings cannot be
	// computed at startup.
	ErrEmbeddingFailed = errors.New("qoyllur: embedding generation failed")

	// ErrCacheMiss is returned when an embedding cache holds no snapshot.
	ErrCacheMiss = errors.New("qoyllur: embedding cache miss")

	// ErrCacheStale is returned when an embedding cache was built from a
	// different graph, vocabulary or embedding model.
	ErrCacheStale = errors.New("qoyllur: embedding cache is stale")

	// ErrSemanticDisabled is returned by operations that need an embedder
	// when the engine was built without one.
	ErrSemanticDisabled = errors.New("qoyllur: semantic search disabled")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("qoyllur: invalid configuration")

	// ErrUnknownMode is returned for search modes other than hybrid,
	// semantic and lexical.
	ErrUnknownMode = errors.New("qoyllur: unknown search mode")

	// ErrEntityNotFound is returned when an entity id does not exist.
	ErrEntityNotFound = errors.New("qoyllur: entity not found")
)
