package store

import "fmt"

// schemaSQL returns the DDL for the snapshot tables. The vector table is
// created separately by vecTableSQL because its dimension depends on the
// embedder of the snapshot being saved.
func schemaSQL() string {
	return `
-- One cached engine state per file, keyed by graph content and embedder
CREATE TABLE IF NOT EXISTS snapshot (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    cache_key TEXT NOT NULL,
    graph_hash TEXT NOT NULL,
    model TEXT NOT NULL,
    dim INTEGER NOT NULL,
    entity_count INTEGER NOT NULL,
    entities BLOB NOT NULL, -- zstd-compressed JSON entity table
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Embedded context text per entity; row_id matches vec_entities
CREATE TABLE IF NOT EXISTS snapshot_entities (
    row_id INTEGER PRIMARY KEY,
    entity_id TEXT NOT NULL UNIQUE,
    text TEXT NOT NULL
);
`
}

// vecTableSQL (re)creates the vec0 table for vectors of the given dimension.
func vecTableSQL(dim int) string {
	return fmt.Sprintf(`
DROP TABLE IF EXISTS vec_entities;
CREATE VIRTUAL TABLE vec_entities USING vec0(
    row_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);
`, dim)
}
