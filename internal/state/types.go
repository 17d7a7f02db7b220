package state

import (
	"time"

	"github.com/gurkebaui/sun/internal/regulator"
)

// #region snapshot
// Snapshot is a versioned copy of everything the agent needs to resume:
// mood, regulator state and the tick counter.
type Snapshot struct {
	VersionID string
	ParentID  string
	Arousal   float64
	Valence   float64
	Regulator regulator.State
	Tick      int64
	Trigger   string // what caused the snapshot, e.g. "sleep_entry", "shutdown"
	CreatedAt time.Time
}

// #endregion snapshot
