package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS agent_snapshots (
	version_id     TEXT PRIMARY KEY,
	parent_id      TEXT,
	arousal        REAL NOT NULL,
	valence        REAL NOT NULL,
	regulator_json TEXT NOT NULL,
	tick           INTEGER NOT NULL,
	trigger_type   TEXT,
	created_at     TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES agent_snapshots(version_id)
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id    TEXT,
	tick          INTEGER NOT NULL,
	event         TEXT NOT NULL,
	decision      TEXT NOT NULL,
	reason        TEXT,
	details_json  TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS active_snapshot (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES agent_snapshots(version_id)
);
`

// #endregion schema

// #region store-struct
// Store manages versioned agent snapshots in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (provenance, journal).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #region commit
// Commit stores snap as a new version and makes it active. Missing
// VersionID and CreatedAt are filled in; the parent is the current active
// version, if any.
func (s *Store) Commit(snap Snapshot) (Snapshot, error) {
	if snap.VersionID == "" {
		snap.VersionID = uuid.New().String()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	regJSON, err := json.Marshal(snap.Regulator)
	if err != nil {
		return Snapshot{}, fmt.Errorf("marshal regulator: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if snap.ParentID == "" {
		var active string
		err := tx.QueryRow(`SELECT version_id FROM active_snapshot WHERE id = 1`).Scan(&active)
		if err != nil && err != sql.ErrNoRows {
			return Snapshot{}, fmt.Errorf("get active: %w", err)
		}
		snap.ParentID = active
	}

	var parentPtr any
	if snap.ParentID != "" {
		parentPtr = snap.ParentID
	}

	_, err = tx.Exec(
		`INSERT INTO agent_snapshots (version_id, parent_id, arousal, valence, regulator_json, tick, trigger_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.VersionID, parentPtr, snap.Arousal, snap.Valence, string(regJSON),
		snap.Tick, snap.Trigger, snap.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_snapshot (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		snap.VersionID,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("commit: %w", err)
	}
	return snap, nil
}

// #endregion commit

// #region get-current
// GetCurrent reads the active snapshot. Returns sql.ErrNoRows (wrapped)
// when nothing has been committed yet.
func (s *Store) GetCurrent() (Snapshot, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_snapshot WHERE id = 1`).Scan(&versionID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}

// #endregion get-current

const selectSnapshot = `SELECT version_id, parent_id, arousal, valence, regulator_json, tick, trigger_type, created_at FROM agent_snapshots`

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (Snapshot, error) {
	var snap Snapshot
	var parentID, trigger sql.NullString
	var regJSON, createdStr string
	if err := row.Scan(&snap.VersionID, &parentID, &snap.Arousal, &snap.Valence, &regJSON, &snap.Tick, &trigger, &createdStr); err != nil {
		return Snapshot{}, err
	}
	snap.ParentID = parentID.String
	snap.Trigger = trigger.String
	if err := json.Unmarshal([]byte(regJSON), &snap.Regulator); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal regulator: %w", err)
	}
	snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return snap, nil
}

// #region get-version
// GetVersion retrieves a specific snapshot by ID.
func (s *Store) GetVersion(id string) (Snapshot, error) {
	snap, err := scanSnapshot(s.db.QueryRow(selectSnapshot+` WHERE version_id = ?`, id))
	if err != nil {
		return Snapshot{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return snap, nil
}

// #endregion get-version

// #region rollback
// Rollback sets the active pointer to a previous version.
func (s *Store) Rollback(targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM agent_snapshots WHERE version_id = ?`, targetVersionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s not found", targetVersionID)
	}

	_, err = s.db.Exec(`UPDATE active_snapshot SET version_id = ? WHERE id = 1`, targetVersionID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recent snapshots, newest first.
func (s *Store) ListVersions(limit int) ([]Snapshot, error) {
	rows, err := s.db.Query(selectSnapshot+` ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// #endregion list-versions
