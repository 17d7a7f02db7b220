package affect

import (
	"fmt"
	"math"
)

// #region state
// State is the bounded 2-D mood vector: arousal (x) and valence (y).
// It is not safe for concurrent use; the owner serializes access.
type State struct {
	x float64
	y float64
}

// New creates a State with clamped initial values. Non-finite values start at 0.
func New(x, y float64) *State {
	s := &State{}
	if err := s.Set(x, y); err != nil {
		s.x, s.y = 0, 0
	}
	return s
}

// #endregion state

// #region accessors
// Get returns the current arousal and valence.
func (s *State) Get() (x, y float64) {
	return s.x, s.y
}

// Arousal returns x.
func (s *State) Arousal() float64 { return s.x }

// Valence returns y.
func (s *State) Valence() float64 { return s.y }

// Snapshot returns a copy of the current values.
func (s *State) Snapshot() Snapshot {
	return Snapshot{Arousal: s.x, Valence: s.y}
}

// #endregion accessors

// #region mutators
// Update applies relative deltas, clamping each axis after the addition.
func (s *State) Update(deltaX, deltaY float64) error {
	if !finite(deltaX) || !finite(deltaY) {
		return fmt.Errorf("update (%v, %v): %w", deltaX, deltaY, ErrNonFinite)
	}
	s.x = Clamp(s.x + deltaX)
	s.y = Clamp(s.y + deltaY)
	return nil
}

// Set overwrites both axes with clamped absolute values.
func (s *State) Set(x, y float64) error {
	if !finite(x) || !finite(y) {
		return fmt.Errorf("set (%v, %v): %w", x, y, ErrNonFinite)
	}
	s.x = Clamp(x)
	s.y = Clamp(y)
	return nil
}

// #endregion mutators

// #region helpers
// Clamp restricts v to [MinValue, MaxValue].
func Clamp(v float64) float64 {
	return math.Max(MinValue, math.Min(v, MaxValue))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// #endregion helpers
