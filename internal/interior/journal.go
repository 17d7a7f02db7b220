package interior

// #region imports
import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// #endregion imports

// #region types

// Entry kinds.
const (
	KindThought = "thought"
	KindLesson  = "lesson"
)

// Entry is one line of the agent's inner life: an internal monologue from a
// conscious cycle or a lesson synthesised during sleep.
type Entry struct {
	TickID    string
	Kind      string
	Text      string
	Arousal   float64
	Valence   float64
	CreatedAt time.Time
}

// #endregion types

// #region journal

// Journal persists interior entries in SQLite.
type Journal struct {
	db *sql.DB
}

// NewJournal creates the interior_journal table if needed and returns a journal.
func NewJournal(db *sql.DB) (*Journal, error) {
	j := &Journal{db: db}
	if err := j.init(); err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}
	return j, nil
}

func (j *Journal) init() error {
	_, err := j.db.Exec(`CREATE TABLE IF NOT EXISTS interior_journal (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		text TEXT NOT NULL,
		arousal REAL NOT NULL,
		valence REAL NOT NULL,
		created_at TEXT NOT NULL
	)`)
	return err
}

// Save appends an entry. Blank text is ignored.
func (j *Journal) Save(e Entry) error {
	if strings.TrimSpace(e.Text) == "" {
		return nil
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := j.db.Exec(
		`INSERT INTO interior_journal (tick_id, kind, text, arousal, valence, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.TickID, e.Kind, e.Text, e.Arousal, e.Valence, e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries of the given kind, newest first.
// An empty kind matches all entries.
func (j *Journal) Recent(kind string, limit int) ([]Entry, error) {
	query := `SELECT tick_id, kind, text, arousal, valence, created_at FROM interior_journal`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent journal entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.TickID, &e.Kind, &e.Text, &e.Arousal, &e.Valence, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Latest returns the most recent entry of the kind, or nil if none exists.
func (j *Journal) Latest(kind string) (*Entry, error) {
	entries, err := j.Recent(kind, 1)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

// #endregion journal

// #region curiosity

// ExtractCuriosity scans a thought for phrases where the agent wants to know
// something. The orchestrator tags experiences with the result.
func ExtractCuriosity(text string) []string {
	lower := strings.ToLower(text)
	triggers := []string{
		"i want to know",
		"i wonder",
		"i'm curious",
		"i am curious",
		"i don't know",
		"i do not know",
		"i want to understand",
	}
	var found []string
	for _, t := range triggers {
		if strings.Contains(lower, t) {
			found = append(found, t)
		}
	}
	return found
}

// #endregion curiosity
