package manifest

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteIndex is an on-disk accelerant for the DatabaseManifest short-prefix
// index, used in place of the in-memory map when --database-dir holds more
// entries than fit comfortably in memory. Its behavioral contract is
// identical to the in-memory index: IsUpToDate-equivalent lookups key on
// (source_hash_prefix, source_hash, producer_name, producer_version) and
// return the stored dest_hash.
type SQLiteIndex struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenSQLiteIndex opens (creating if absent) a sqlite-backed index file.
func OpenSQLiteIndex(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite index: %w", err)
	}
	idx := &SQLiteIndex{db: db}
	if err := idx.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite index schema: %w", err)
	}
	return idx, nil
}

func (idx *SQLiteIndex) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		source_prefix INTEGER NOT NULL,
		source_hash TEXT NOT NULL,
		producer_name TEXT NOT NULL,
		producer_version TEXT NOT NULL,
		dest_hash TEXT NOT NULL,
		dest TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_source_prefix ON files(source_prefix);
	`
	_, err := idx.db.Exec(schema)
	return err
}

// Put records one (source_hash, producer_name, producer_version) -> dest_hash
// entry, indexed by the source hash's short prefix.
func (idx *SQLiteIndex) Put(sourceHash, producerName, producerVersion, destHash, dest string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	prefix, ok := hashPrefix(sourceHash)
	if !ok {
		return fmt.Errorf("source hash %q too short for prefix index", sourceHash)
	}
	_, err := idx.db.Exec(
		`INSERT INTO files (source_prefix, source_hash, producer_name, producer_version, dest_hash, dest)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		int64(prefix), sourceHash, producerName, producerVersion, destHash, dest,
	)
	if err != nil {
		return fmt.Errorf("insert sqlite index row: %w", err)
	}
	return nil
}

// Lookup finds the dest_hash stored for (sourceHash, producerName, producerVersion).
func (idx *SQLiteIndex) Lookup(sourceHash, producerName, producerVersion string) (destHash, dest string, ok bool, err error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	prefix, validPrefix := hashPrefix(sourceHash)
	if !validPrefix {
		return "", "", false, nil
	}
	row := idx.db.QueryRow(
		`SELECT dest_hash, dest FROM files
		 WHERE source_prefix = ? AND source_hash = ? AND producer_name = ? AND producer_version = ?
		 LIMIT 1`,
		int64(prefix), sourceHash, producerName, producerVersion,
	)
	if scanErr := row.Scan(&destHash, &dest); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return "", "", false, nil
		}
		return "", "", false, fmt.Errorf("query sqlite index: %w", scanErr)
	}
	return destHash, dest, true, nil
}

// Count returns the number of rows currently stored, used to decide whether
// a reopened index file still needs populating from a DatabaseManifest's
// in-memory Results.
func (idx *SQLiteIndex) Count() (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var n int
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sqlite index rows: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (idx *SQLiteIndex) Close() error {
	return idx.db.Close()
}
