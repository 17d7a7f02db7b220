package logging

import (
	"database/sql"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO provenance_log (version_id, tick, event, decision, reason, details_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.VersionID),
		entry.Tick,
		entry.Event,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.DetailsJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// LogRecord marshals rec into DetailsJSON and writes the entry.
func LogRecord(db *sql.DB, entry ProvenanceEntry, rec DecisionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal decision record: %w", err)
	}
	entry.DetailsJSON = string(data)
	return LogDecision(db, entry)
}

// Recorder binds the provenance writers to one database.
type Recorder struct {
	db *sql.DB
}

// NewRecorder returns a Recorder writing to db. The provenance_log table is
// created by state.NewStore.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record writes entry with rec as its details.
func (r *Recorder) Record(entry ProvenanceEntry, rec DecisionRecord) error {
	return LogRecord(r.db, entry, rec)
}

// #endregion log-decision

// #region list-decisions
// ListDecisions returns the most recent entries, newest first. An empty
// event matches every event.
func ListDecisions(db *sql.DB, event string, limit int) ([]ProvenanceEntry, error) {
	query := `SELECT version_id, tick, event, decision, reason, details_json, created_at FROM provenance_log`
	args := []any{}
	if event != "" {
		query += ` WHERE event = ?`
		args = append(args, event)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var entries []ProvenanceEntry
	for rows.Next() {
		var e ProvenanceEntry
		var versionID, reason, details sql.NullString
		var createdStr string
		if err := rows.Scan(&versionID, &e.Tick, &e.Event, &e.Decision, &reason, &details, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.VersionID = versionID.String
		e.Reason = reason.String
		e.DetailsJSON = details.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ParseRecord decodes an entry's DetailsJSON.
func ParseRecord(e ProvenanceEntry) (DecisionRecord, error) {
	var rec DecisionRecord
	if e.DetailsJSON == "" {
		return rec, nil
	}
	if err := json.Unmarshal([]byte(e.DetailsJSON), &rec); err != nil {
		return rec, fmt.Errorf("unmarshal decision record: %w", err)
	}
	return rec, nil
}

// #endregion list-decisions

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
