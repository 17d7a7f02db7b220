package main

import (
	"flag"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/gurkebaui/sun/internal/interior"
	"github.com/gurkebaui/sun/internal/logging"
	"github.com/gurkebaui/sun/internal/state"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// #region main

func main() {
	dbPath := flag.String("db", "", "path to sun_state.db")
	last := flag.Int("last", 20, "show N most recent rows")
	version := flag.String("version", "", "show single snapshot detail")
	events := flag.Bool("events", false, "list provenance decisions instead of snapshots")
	event := flag.String("event", "", "filter decisions to one event (sleep_entry, wake, alarm, ...)")
	journal := flag.String("journal", "", "list journal entries of a kind (thought, lesson, all)")
	rollback := flag.String("rollback", "", "make a snapshot the active one")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/sun_state.db [--last N] [--version id] [--events [--event name]] [--journal kind] [--rollback id] [--json]")
		os.Exit(2)
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *rollback != "":
		err = store.Rollback(*rollback)
		if err == nil {
			fmt.Printf("active snapshot is now %s\n", *rollback)
		}
	case *version != "":
		err = runDetailMode(store, *version, *jsonOut)
	case *events || *event != "":
		err = runEventsMode(store, *event, *last, *jsonOut)
	case *journal != "":
		err = runJournalMode(store, *journal, *last, *jsonOut)
	default:
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	VersionID string  `json:"version_id"`
	Tick      int64   `json:"tick"`
	Trigger   string  `json:"trigger"`
	Arousal   float64 `json:"arousal"`
	Valence   float64 `json:"valence"`
	Pressure  float64 `json:"sleep_pressure"`
	Sleeping  bool    `json:"is_sleeping"`
	CreatedAt string  `json:"created_at"`
}

func runListMode(store *state.Store, last int, jsonOut bool) error {
	versions, err := store.ListVersions(last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no snapshots found")
		return nil
	}

	// store returns newest first, reverse for chronological
	rows := make([]listRow, len(versions))
	for i, v := range versions {
		rows[len(versions)-1-i] = listRow{
			VersionID: v.VersionID,
			Tick:      v.Tick,
			Trigger:   v.Trigger,
			Arousal:   v.Arousal,
			Valence:   v.Valence,
			Pressure:  v.Regulator.SleepPressure,
			Sleeping:  v.Regulator.Sleeping,
			CreatedAt: v.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-10s  %6s  %-12s  %8s  %8s  %8s  %-6s  %s\n",
		"Version", "Tick", "Trigger", "Arousal", "Valence", "Pressure", "Asleep", "Time")
	fmt.Printf("%-10s+-%6s+-%-12s+-%8s+-%8s+-%8s+-%-6s+-%s\n",
		"----------", "------", "------------", "--------", "--------", "--------", "------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-10s  %6d  %-12s  %8.2f  %8.2f  %8.2f  %-6v  %s\n",
			shortID(r.VersionID), r.Tick, r.Trigger, r.Arousal, r.Valence, r.Pressure, r.Sleeping, r.CreatedAt)
	}

	if cur, err := store.GetCurrent(); err == nil {
		fmt.Printf("\nActive: %s (tick %d, %s)\n", shortID(cur.VersionID), cur.Tick, cur.Trigger)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

func runDetailMode(store *state.Store, versionID string, jsonOut bool) error {
	v, err := store.GetVersion(versionID)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(v)
	}

	fmt.Printf("Version:    %s\n", v.VersionID)
	fmt.Printf("Parent:     %s\n", v.ParentID)
	fmt.Printf("Created:    %s\n", v.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Trigger:    %s\n", v.Trigger)
	fmt.Printf("Tick:       %d\n", v.Tick)
	fmt.Printf("Mood:       arousal %.2f, valence %.2f\n", v.Arousal, v.Valence)

	r := v.Regulator
	fmt.Printf("\nRegulator:\n")
	fmt.Printf("  Pressure:        %.2f\n", r.SleepPressure)
	fmt.Printf("  Sleeping:        %v\n", r.Sleeping)
	fmt.Printf("  Sleep duration:  %d\n", r.SleepDuration)
	fmt.Printf("  Pressure at start: %.2f\n", r.PressureAtSleepStart)
	return nil
}

// #endregion detail-mode

// #region events-mode

type eventRow struct {
	logging.ProvenanceEntry
	Record logging.DecisionRecord `json:"record"`
}

func runEventsMode(store *state.Store, event string, last int, jsonOut bool) error {
	entries, err := logging.ListDecisions(store.DB(), event, last)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no decisions found")
		return nil
	}

	rows := make([]eventRow, len(entries))
	for i, e := range entries {
		rec, err := logging.ParseRecord(e)
		if err != nil {
			return err
		}
		rows[len(entries)-1-i] = eventRow{ProvenanceEntry: e, Record: rec}
	}
	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%6s  %-14s  %-10s  %8s  %8s  %8s  %s\n", "Tick", "Event", "Decision", "Arousal", "Valence", "Pressure", "Reason")
	for _, r := range rows {
		reason := r.Reason
		if r.Record.Error != "" {
			reason += " (" + r.Record.Error + ")"
		}
		fmt.Printf("%6d  %-14s  %-10s  %8.2f  %8.2f  %8.2f  %s\n",
			r.Tick, r.Event, r.Decision, r.Record.Arousal, r.Record.Valence, r.Record.SleepPressure, reason)
	}
	return nil
}

// #endregion events-mode

// #region journal-mode

func runJournalMode(store *state.Store, kind string, last int, jsonOut bool) error {
	j, err := interior.NewJournal(store.DB())
	if err != nil {
		return err
	}
	if kind == "all" {
		kind = ""
	}
	entries, err := j.Recent(kind, last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(entries)
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Printf("[%s] %-7s (%.0f, %.0f) %s\n", e.CreatedAt.Format("15:04:05"), e.Kind, e.Arousal, e.Valence, e.Text)
	}
	return nil
}

// #endregion journal-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
