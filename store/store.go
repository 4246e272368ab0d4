// Package store persists a built engine state (entity table, context
// texts and embedding vectors) in SQLite so later startups can skip
// embedding. Vectors live in a sqlite-vec vec0 table; the entity table is
// stored as zstd-compressed JSON.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"

	"github.com/brunobiangulo/qoyllur/graph"
	"github.com/brunobiangulo/qoyllur/retrieval"
)

func init() {
	sqlite_vec.Auto()
}

var (
	// ErrNoSnapshot is returned by Load when the file holds no snapshot.
	ErrNoSnapshot = errors.New("store: no snapshot")

	// ErrKeyMismatch is returned by Load when the stored snapshot was built
	// from another graph or embedder.
	ErrKeyMismatch = errors.New("store: snapshot key mismatch")
)

// Snapshot is everything needed to rebuild an engine without re-embedding.
type Snapshot struct {
	Key       string
	GraphHash string
	Entities  []graph.Entity
	Semantic  *retrieval.SemanticIndex
	CreatedAt time.Time
}

// Info describes the stored snapshot without loading it.
type Info struct {
	Key         string    `json:"key"`
	GraphHash   string    `json:"graph_hash"`
	Model       string    `json:"model"`
	Dim         int       `json:"dim"`
	EntityCount int       `json:"entity_count"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store wraps the SQLite cache file.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) a cache database at path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL()); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// The cache is written once at startup and read once; one connection
	// keeps vec0 table swaps simple.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Save replaces the stored snapshot.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	si := snap.Semantic
	if si == nil || si.Dim <= 0 {
		return fmt.Errorf("saving snapshot: semantic index has no dimension")
	}
	if len(si.IDs) != len(si.Vectors) || len(si.IDs) != len(si.Texts) {
		return fmt.Errorf("saving snapshot: misaligned semantic index (%d ids, %d texts, %d vectors)",
			len(si.IDs), len(si.Texts), len(si.Vectors))
	}

	blob, err := encodeEntities(snap.Entities)
	if err != nil {
		return fmt.Errorf("encoding entities: %w", err)
	}

	start := time.Now()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, vecTableSQL(si.Dim)); err != nil {
			return fmt.Errorf("creating vector table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot_entities"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO snapshot (id, cache_key, graph_hash, model, dim, entity_count, entities)
			VALUES (1, ?, ?, ?, ?, ?, ?)`,
			snap.Key, snap.GraphHash, si.Model, si.Dim, len(snap.Entities), blob); err != nil {
			return err
		}

		textStmt, err := tx.PrepareContext(ctx, "INSERT INTO snapshot_entities (row_id, entity_id, text) VALUES (?, ?, ?)")
		if err != nil {
			return err
		}
		defer textStmt.Close()
		vecStmt, err := tx.PrepareContext(ctx, "INSERT INTO vec_entities (row_id, embedding) VALUES (?, ?)")
		if err != nil {
			return err
		}
		defer vecStmt.Close()

		for i, id := range si.IDs {
			rowID := int64(i + 1)
			if _, err := textStmt.ExecContext(ctx, rowID, id, si.Texts[i]); err != nil {
				return fmt.Errorf("inserting text for %s: %w", id, err)
			}
			if len(si.Vectors[i]) != si.Dim {
				return fmt.Errorf("vector for %s has dimension %d, want %d", id, len(si.Vectors[i]), si.Dim)
			}
			if _, err := vecStmt.ExecContext(ctx, rowID, serializeFloat32(si.Vectors[i])); err != nil {
				return fmt.Errorf("inserting vector for %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	slog.Info("store: snapshot saved",
		"entities", len(snap.Entities), "vectors", len(si.IDs),
		"dim", si.Dim, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// Load reads the stored snapshot if its key matches.
func (s *Store) Load(ctx context.Context, key string) (*Snapshot, error) {
	var (
		snap      Snapshot
		model     string
		dim       int
		blob      []byte
		createdAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT cache_key, graph_hash, model, dim, entities, created_at FROM snapshot WHERE id = 1`).
		Scan(&snap.Key, &snap.GraphHash, &model, &dim, &blob, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if snap.Key != key {
		return nil, fmt.Errorf("%w: stored %s, want %s", ErrKeyMismatch, short(snap.Key), short(key))
	}
	snap.CreatedAt = createdAt.Time

	if snap.Entities, err = decodeEntities(blob); err != nil {
		return nil, fmt.Errorf("decoding entities: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.entity_id, e.text, v.embedding
		FROM snapshot_entities e
		JOIN vec_entities v ON v.row_id = e.row_id
		ORDER BY e.row_id`)
	if err != nil {
		return nil, fmt.Errorf("reading vectors: %w", err)
	}
	defer rows.Close()

	si := &retrieval.SemanticIndex{Model: model, Dim: dim}
	for rows.Next() {
		var id, text string
		var raw []byte
		if err := rows.Scan(&id, &text, &raw); err != nil {
			return nil, err
		}
		vec, err := deserializeFloat32(raw)
		if err != nil {
			return nil, fmt.Errorf("vector for %s: %w", id, err)
		}
		si.IDs = append(si.IDs, id)
		si.Texts = append(si.Texts, text)
		si.Vectors = append(si.Vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	snap.Semantic = si
	return &snap, nil
}

// Info returns metadata about the stored snapshot, or ErrNoSnapshot.
func (s *Store) Info(ctx context.Context) (*Info, error) {
	var info Info
	var createdAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT cache_key, graph_hash, model, dim, entity_count, length(entities), created_at
		FROM snapshot WHERE id = 1`).
		Scan(&info.Key, &info.GraphHash, &info.Model, &info.Dim, &info.EntityCount, &info.SizeBytes, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	info.CreatedAt = createdAt.Time
	return &info, nil
}

// Nearest runs a KNN query over the stored vectors and returns entity ids
// with cosine similarity scores, best first.
func (s *Store) Nearest(ctx context.Context, query []float32, k int) ([]retrieval.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.entity_id, v.distance
		FROM vec_entities v
		JOIN snapshot_entities e ON e.row_id = v.row_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(query), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []retrieval.Result
	for rows.Next() {
		var r retrieval.Result
		var distance float64
		if err := rows.Scan(&r.ID, &distance); err != nil {
			return nil, err
		}
		// Cosine distance to similarity
		r.Score = 1.0 - distance
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func encodeEntities(entities []graph.Entity) ([]byte, error) {
	raw, err := json.Marshal(entities)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

func decodeEntities(blob []byte) ([]graph.Entity, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, err
	}
	var entities []graph.Entity
	if err := json.Unmarshal(raw, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

func short(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
