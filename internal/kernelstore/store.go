// Package kernelstore persists kernel cache entries in a sqlite database,
// keyed by the canonical geometry string. Spectra are stored as a single
// gob+gzip blob per entry; publication is transactional so a reader never
// observes a partially written row, and concurrent generators of the same
// key resolve to the first writer.
package kernelstore

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/gravity.model/internal/geom"
	"github.com/banshee-data/gravity.model/internal/kernel"
)

// DBFileName is the sqlite file created inside the cache directory.
const DBFileName = "kernels.db"

// ErrCorruptEntry marks a cache row that exists but cannot be trusted: a
// blob that fails to decode or an entry whose shape disagrees with the
// requested geometry. Callers must treat it as a failure, never as a miss.
var ErrCorruptEntry = errors.New("kernelstore: corrupt cache entry")

// DB is a sqlite-backed kernel.Store.
type DB struct {
	*sql.DB
}

// Open creates the cache directory if needed and opens (or initialises) the
// kernel cache database inside it.
func Open(dir string) (*DB, error) {
	if dir == "" {
		return nil, fmt.Errorf("empty cache directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, DBFileName))
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS kernel_cache (
			cache_key          TEXT PRIMARY KEY,
			layers             INTEGER NOT NULL,
			rows               INTEGER NOT NULL,
			cols               INTEGER NOT NULL,
			spectra_blob       BLOB NOT NULL,
			created_unix_nanos INTEGER NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise kernel cache schema: %w", err)
	}

	return &DB{db}, nil
}

// entryBlob is the serialised form of a kernel entry's spectra. The two
// float32 channel slices match the entry's in-memory layout; gob has no
// complex support, which is also why the channels are kept separate on disk.
type entryBlob struct {
	Re [][]float32
	Im [][]float32
}

func serializeSpectra(e *kernel.Entry) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(entryBlob{Re: e.Re, Im: e.Im}); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deserializeSpectra(blob []byte) (*entryBlob, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty spectra blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var eb entryBlob
	dec := gob.NewDecoder(gz)
	if err := dec.Decode(&eb); err != nil {
		return nil, fmt.Errorf("failed to decode spectra: %w", err)
	}
	return &eb, nil
}

// Load implements kernel.Store. It returns (nil, nil) when no row exists for
// the key; a row that fails decoding or validation against g yields
// ErrCorruptEntry.
func (db *DB) Load(key string, g geom.Geometry) (*kernel.Entry, error) {
	var layers, rows, cols int
	var blob []byte
	err := db.QueryRow(
		`SELECT layers, rows, cols, spectra_blob FROM kernel_cache WHERE cache_key = ?`,
		key,
	).Scan(&layers, &rows, &cols, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kernel cache query: %w", err)
	}

	eb, err := deserializeSpectra(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, key, err)
	}

	e := &kernel.Entry{
		Key:    key,
		Layers: layers,
		Rows:   rows,
		Cols:   cols,
		Re:     eb.Re,
		Im:     eb.Im,
	}
	if err := e.Validate(g); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, key, err)
	}
	return e, nil
}

// Save implements kernel.Store. The insert runs in a transaction and uses
// INSERT OR IGNORE, so the first writer of a key wins and later writers of
// the same (deterministic) entry are harmless no-ops.
func (db *DB) Save(key string, e *kernel.Entry) error {
	if e == nil {
		return fmt.Errorf("nil kernel entry")
	}

	blob, err := serializeSpectra(e)
	if err != nil {
		return fmt.Errorf("failed to serialise spectra: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("kernel cache transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT OR IGNORE INTO kernel_cache
			(cache_key, layers, rows, cols, spectra_blob, created_unix_nanos)
		 VALUES (?, ?, ?, ?, ?, strftime('%s','now') * 1000000000)`,
		key, e.Layers, e.Rows, e.Cols, blob,
	)
	if err != nil {
		return fmt.Errorf("kernel cache insert: %w", err)
	}
	return tx.Commit()
}
