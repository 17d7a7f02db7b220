package affect

import "errors"

// #region bounds
// MinValue and MaxValue bound both mood axes.
const (
	MinValue = -100.0
	MaxValue = 100.0
)

// ErrNonFinite is returned when a mutation carries NaN or an infinity.
var ErrNonFinite = errors.New("affect: non-finite value")

// #endregion bounds

// #region snapshot
// Snapshot is a by-value copy of the mood vector.
type Snapshot struct {
	Arousal float64 `json:"x"`
	Valence float64 `json:"y"`
}

// Metadata renders the snapshot in the shape stored next to memories.
func (s Snapshot) Metadata() map[string]any {
	return map[string]any{"x": s.Arousal, "y": s.Valence}
}

// #endregion snapshot
