package state

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/gurkebaui/sun/internal/regulator"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCommitAndGetCurrent(t *testing.T) {
	s := tempDB(t)

	if _, err := s.GetCurrent(); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows before first commit, got %v", err)
	}

	snap := Snapshot{
		Arousal: -50,
		Valence: 12.5,
		Regulator: regulator.State{
			SleepPressure:        81,
			Sleeping:             true,
			SleepDuration:        3,
			PressureAtSleepStart: 84,
		},
		Tick:    42,
		Trigger: "sleep_entry",
	}
	rec, err := s.Commit(snap)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if rec.VersionID == "" || rec.CreatedAt.IsZero() {
		t.Fatal("expected version id and timestamp filled in")
	}
	if rec.ParentID != "" {
		t.Fatalf("first snapshot should have no parent, got %s", rec.ParentID)
	}

	cur, err := s.GetCurrent()
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if diff := cmp.Diff(rec, cur, cmpopts.EquateApproxTime(0)); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestCommitChainsParentAndRollback(t *testing.T) {
	s := tempDB(t)

	v1, err := s.Commit(Snapshot{Arousal: 10, Tick: 1})
	if err != nil {
		t.Fatalf("Commit v1: %v", err)
	}
	v2, err := s.Commit(Snapshot{Arousal: 20, Tick: 2})
	if err != nil {
		t.Fatalf("Commit v2: %v", err)
	}
	if v2.ParentID != v1.VersionID {
		t.Fatalf("expected parent %s, got %s", v1.VersionID, v2.ParentID)
	}

	cur, _ := s.GetCurrent()
	if cur.Arousal != 20 {
		t.Fatalf("expected active v2, got arousal %.1f", cur.Arousal)
	}

	if err := s.Rollback(v1.VersionID); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	cur, _ = s.GetCurrent()
	if cur.VersionID != v1.VersionID {
		t.Fatalf("expected v1 active after rollback, got %s", cur.VersionID)
	}

	v3, err := s.Commit(Snapshot{Arousal: 30, Tick: 3})
	if err != nil {
		t.Fatalf("Commit v3: %v", err)
	}
	if v3.ParentID != v1.VersionID {
		t.Fatalf("commit after rollback should branch from v1, got parent %s", v3.ParentID)
	}
}

func TestRollbackNonExistent(t *testing.T) {
	s := tempDB(t)
	if err := s.Rollback("nope"); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func TestListVersions(t *testing.T) {
	s := tempDB(t)
	for i := int64(1); i <= 4; i++ {
		if _, err := s.Commit(Snapshot{Tick: i}); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}
	snaps, err := s.ListVersions(3)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	if snaps[0].Tick != 4 || snaps[2].Tick != 2 {
		t.Fatalf("expected newest first, got ticks %d..%d", snaps[0].Tick, snaps[2].Tick)
	}
}

func TestGetVersionNotFound(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetVersion("missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestCommitOnClosedDB(t *testing.T) {
	s := tempDB(t)
	s.Close()
	if _, err := s.Commit(Snapshot{}); err == nil {
		t.Fatal("expected error on closed db")
	}
	if _, err := s.ListVersions(1); err == nil {
		t.Fatal("expected error on closed db")
	}
}

func TestNewStoreInvalidPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(filepath.Join(blocker, "sub", "test.db")); err == nil {
		t.Fatal("expected error for path under a regular file")
	}
}

func TestGetVersion_BadRegulatorJSON(t *testing.T) {
	s := tempDB(t)
	_, err := s.DB().Exec(
		`INSERT INTO agent_snapshots (version_id, arousal, valence, regulator_json, tick, created_at)
		 VALUES ('bad', 0, 0, '{not json', 0, '2026-01-01T00:00:00Z')`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.GetVersion("bad"); err == nil {
		t.Fatal("expected unmarshal error")
	}
}
