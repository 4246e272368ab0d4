//go:build cgo

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/qoyllur/graph"
	"github.com/brunobiangulo/qoyllur/retrieval"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err, "opening store")
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSnapshot(key string) *Snapshot {
	return &Snapshot{
		Key:       key,
		GraphHash: "graph-abc",
		Entities: []graph.Entity{
			{
				ID:     "Sinakara",
				URI:    "http://example.org/qoyllur#Sinakara",
				Labels: []string{"Santuario de Sinakara"},
				Relations: graph.Relations{
					{Predicate: "estaEn", Targets: []string{"Ocongate"}},
				},
			},
			{ID: "Ocongate", URI: "http://example.org/qoyllur#Ocongate", Labels: []string{"Ocongate"}},
			{
				ID:         "Dia2",
				URI:        "http://example.org/qoyllur#Dia2",
				Labels:     []string{"Día 2 - Domingo"},
				Properties: map[string]string{"tieneOrden": "2"},
			},
		},
		Semantic: &retrieval.SemanticIndex{
			Model: "hashing/test@4",
			Dim:   4,
			IDs:   []string{"Sinakara", "Ocongate", "Dia2"},
			Texts: []string{"Santuario de Sinakara", "Ocongate", "Día 2 - Domingo"},
			Vectors: [][]float32{
				{1, 0, 0, 0},
				{0.8, 0.6, 0, 0},
				{0, 0, 1, 0},
			},
		},
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dir", "cache.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.Path())
}

func TestMigrationsApplied(t *testing.T) {
	s := newTestStore(t)
	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].version, v)
}

func TestMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Migrate(context.Background()))
}

func TestLoadEmpty(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(context.Background(), "k1")
	assert.ErrorIs(t, err, ErrNoSnapshot)

	_, err = s.Info(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := sampleSnapshot("k1")
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx, "k1")
	require.NoError(t, err)

	assert.Equal(t, "k1", got.Key)
	assert.Equal(t, "graph-abc", got.GraphHash)
	assert.False(t, got.CreatedAt.IsZero(), "created_at should be set")
	if diff := cmp.Diff(want.Entities, got.Entities); diff != "" {
		t.Errorf("entities mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Semantic, got.Semantic); diff != "" {
		t.Errorf("semantic index mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadKeyMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleSnapshot("k1")))

	_, err := s.Load(ctx, "k2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyMismatch), "got %v", err)
}

func TestSaveReplacesPrevious(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleSnapshot("k1")))

	// A second snapshot with another dimension recreates the vector table.
	next := sampleSnapshot("k2")
	next.Semantic.Dim = 2
	next.Semantic.Model = "hashing/test@2"
	next.Semantic.Vectors = [][]float32{{1, 0}, {0, 1}, {0.6, 0.8}}
	require.NoError(t, s.Save(ctx, next))

	_, err := s.Load(ctx, "k1")
	assert.ErrorIs(t, err, ErrKeyMismatch)

	got, err := s.Load(ctx, "k2")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Semantic.Dim)
	assert.Len(t, got.Semantic.Vectors, 3)

	info, err := s.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "k2", info.Key)
	assert.Equal(t, "hashing/test@2", info.Model)
	assert.Equal(t, 3, info.EntityCount)
	assert.Positive(t, info.SizeBytes)
}

func TestSaveRejectsMisalignedIndex(t *testing.T) {
	s := newTestStore(t)
	snap := sampleSnapshot("k1")
	snap.Semantic.Texts = snap.Semantic.Texts[:2]
	assert.Error(t, s.Save(context.Background(), snap))

	snap = sampleSnapshot("k1")
	snap.Semantic.Vectors[1] = []float32{1, 2}
	assert.Error(t, s.Save(context.Background(), snap))

	// The failed save left nothing behind.
	_, err := s.Load(context.Background(), "k1")
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSaveRequiresDimension(t *testing.T) {
	s := newTestStore(t)
	snap := sampleSnapshot("k1")
	snap.Semantic = nil
	assert.Error(t, s.Save(context.Background(), snap))
}

func TestNearest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleSnapshot("k1")))

	results, err := s.Nearest(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Sinakara", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.Equal(t, "Ocongate", results[1].ID)
	assert.InDelta(t, 0.8, results[1].Score, 1e-5)
}

func TestSerializeFloat32RoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3e-7}
	out, err := deserializeFloat32(serializeFloat32(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = deserializeFloat32([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestEntityBlobCompression(t *testing.T) {
	entities := sampleSnapshot("k").Entities
	blob, err := encodeEntities(entities)
	require.NoError(t, err)
	got, err := decodeEntities(blob)
	require.NoError(t, err)
	if diff := cmp.Diff(entities, got); diff != "" {
		t.Errorf("entities mismatch (-want +got):\n%s", diff)
	}

	_, err = decodeEntities([]byte("not zstd"))
	assert.Error(t, err)
}
