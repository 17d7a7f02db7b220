package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS memories (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	text          TEXT NOT NULL,
	metadata_json TEXT,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region sqlite-store
// SQLiteStore keeps memories in a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	closed atomic.Bool
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// #endregion sqlite-store

// #region add
// Add inserts a memory with a fresh id.
func (s *SQLiteStore) Add(ctx context.Context, text string, metadata map[string]any) error {
	if s.closed.Load() {
		return ErrClosed
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (id, text, metadata_json, created_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), text, string(metaJSON), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// #endregion add

// #region query
// Query ranks every stored memory against text by token overlap.
func (s *SQLiteStore) Query(ctx context.Context, text string, k int) ([]Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	all, err := s.scan(ctx, `SELECT id, text, metadata_json, created_at FROM memories ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	return rank(all, text, k), nil
}

// Latest returns the k most recent memories in insertion order.
func (s *SQLiteStore) Latest(ctx context.Context, k int) ([]Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if k <= 0 {
		return nil, nil
	}
	recs, err := s.scan(ctx,
		`SELECT id, text, metadata_json, created_at FROM
		 (SELECT seq, id, text, metadata_json, created_at FROM memories ORDER BY seq DESC LIMIT ?)
		 ORDER BY seq ASC`, k)
	if err != nil {
		return nil, fmt.Errorf("latest memories: %w", err)
	}
	return recs, nil
}

// Count returns the number of stored memories.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}

// #endregion query

// Close closes the database. Further calls return ErrClosed.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) scan(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var metaJSON sql.NullString
		var createdStr string
		if err := rows.Scan(&rec.ID, &rec.Text, &metaJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
			if err := json.Unmarshal([]byte(metaJSON.String), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}
