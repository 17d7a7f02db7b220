package regulator

import (
	"math"

	"github.com/gurkebaui/sun/internal/affect"
)

// #region regulator
// Regulator is the sleep/wake homeostat. Sleep pressure builds while awake
// and drains while asleep. Transitions are explicit commands; arousal passed
// to Update is only ever read as a mood value.
//
// Regulator is not safe for concurrent use; the agent serialises access.
type Regulator struct {
	config Config
	state  State
}

// New returns an awake regulator with zero pressure.
func New(config Config) *Regulator {
	return &Regulator{config: config}
}

// Config returns the active constants.
func (r *Regulator) Config() Config { return r.config }

// SetConfig swaps the constants. Pressure is re-clamped to the new
// MaxPressure; the rest of the state is kept.
func (r *Regulator) SetConfig(c Config) {
	r.config = c
	r.state.SleepPressure = r.clampPressure(r.state.SleepPressure)
}

// State returns a copy of the current state.
func (r *Regulator) State() State { return r.state }

func (r *Regulator) SleepPressure() float64 { return r.state.SleepPressure }
func (r *Regulator) IsSleeping() bool { return r.state.Sleeping }

// Restore replaces the regulator state, e.g. from a persisted snapshot.
// Pressure is clamped into [0, MaxPressure].
func (r *Regulator) Restore(s State) {
	s.SleepPressure = r.clampPressure(sanitize(s.SleepPressure))
	if s.SleepDuration < 0 {
		s.SleepDuration = 0
	}
	r.state = s
}

// WantsSleep reports whether pressure is above the sleep threshold.
func (r *Regulator) WantsSleep() bool {
	return r.state.SleepPressure > r.config.PressureThreshold
}

// #endregion regulator

// #region transitions

// EnterSleep moves the regulator to ASLEEP and captures the pressure the
// wake bonus is measured against. Returns false if already asleep.
func (r *Regulator) EnterSleep() bool {
	if r.state.Sleeping {
		return false
	}
	r.state.Sleeping = true
	r.state.PressureAtSleepStart = r.state.SleepPressure
	r.state.SleepDuration = 0
	return true
}

// ForceWake ends sleep from outside (user command, scheduled wake). The wake
// bonus is computed but no arousal jolt is added; the caller owns arousal.
func (r *Regulator) ForceWake() Result {
	if !r.state.Sleeping {
		return Result{}
	}
	bonus := r.config.WakeBonus(r.state.PressureAtSleepStart, r.state.SleepDuration)
	r.state.Sleeping = false
	return Result{DeltaY: bonus, Woke: true, WakeBonus: bonus}
}

// Interrupt clears the sleeping flag immediately with no bonus. Used by the
// alarm path, which sets the resulting mood itself.
func (r *Regulator) Interrupt() bool {
	if !r.state.Sleeping {
		return false
	}
	r.state.Sleeping = false
	return true
}

// #endregion transitions

// #region update

// Update advances the regulator by one tick given the current arousal.
func (r *Regulator) Update(arousal float64) Result {
	arousal = affect.Clamp(sanitize(arousal))

	var res Result
	if r.state.Sleeping {
		r.state.SleepPressure = math.Max(0, r.state.SleepPressure-r.config.SleepRecoveryRate)
		r.state.SleepDuration++
		res.DeltaY += r.config.SleepReward

		if r.state.SleepPressure <= 0 {
			bonus := r.config.WakeBonus(r.state.PressureAtSleepStart, r.state.SleepDuration)
			r.state.Sleeping = false
			res.Woke = true
			res.WakeBonus = bonus
			res.DeltaY += bonus
			res.DeltaX += math.Abs(arousal)
		}
		return res
	}

	build := r.config.PressureBuildBaseRate * (1 + arousal/100)
	r.state.SleepPressure = r.clampPressure(r.state.SleepPressure + build)
	if r.state.SleepPressure > r.config.PressureThreshold {
		res.DeltaY += r.config.FatiguePenalty
	}
	return res
}

// #endregion update

// #region wake-bonus

// WakeBonus scores a finished sleep episode. Completing part of the needed
// sleep earns a proportional reward; sleeping past the optimum plus a grace
// band is penalised per excess tick without bound.
func (c Config) WakeBonus(pressureAtStart float64, duration int) float64 {
	if pressureAtStart <= 0 || math.IsNaN(pressureAtStart) {
		return 0
	}
	optimal := pressureAtStart * c.OptimalSleepFactor
	if optimal <= 0 {
		return 0
	}
	d := float64(duration)
	if d < optimal {
		return d / optimal * c.WakeRewardFactor
	}
	oversleep := math.Max(0, (d-optimal)-optimal*c.OversleepGrace)
	return oversleep * c.OversleepPenaltyFactor
}

// #endregion wake-bonus

func (r *Regulator) clampPressure(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > r.config.MaxPressure {
		return r.config.MaxPressure
	}
	return p
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
