package regulator

// #region config
// Config holds the homeostatic constants. Every field is tunable through the
// environment and through the hot-reload tuning file.
type Config struct {
	PressureThreshold      float64 `envconfig:"PRESSURE_THRESHOLD" default:"80" json:"pressure_threshold"`
	MaxPressure            float64 `envconfig:"MAX_PRESSURE" default:"150" json:"max_pressure"`
	PressureBuildBaseRate  float64 `envconfig:"PRESSURE_BUILD_BASE_RATE" default:"0.5" json:"pressure_build_base_rate"`
	FatiguePenalty         float64 `envconfig:"FATIGUE_PENALTY" default:"-0.1" json:"fatigue_penalty"`
	SleepRecoveryRate      float64 `envconfig:"SLEEP_RECOVERY_RATE" default:"1.0" json:"sleep_recovery_rate"`
	SleepReward            float64 `envconfig:"SLEEP_REWARD" default:"0.2" json:"sleep_reward"`
	OptimalSleepFactor     float64 `envconfig:"OPTIMAL_SLEEP_FACTOR" default:"0.8" json:"optimal_sleep_factor"`
	WakeRewardFactor       float64 `envconfig:"WAKE_REWARD_FACTOR" default:"10.0" json:"wake_reward_factor"`
	OversleepPenaltyFactor float64 `envconfig:"OVERSLEEP_PENALTY_FACTOR" default:"-15.0" json:"oversleep_penalty_factor"`
	OversleepGrace         float64 `envconfig:"OVERSLEEP_GRACE" default:"0.1" json:"oversleep_grace"` // share of optimal duration
}

// DefaultConfig returns the stock constants.
func DefaultConfig() Config {
	return Config{
		PressureThreshold:      80.0,
		MaxPressure:            150.0,
		PressureBuildBaseRate:  0.5,
		FatiguePenalty:         -0.1,
		SleepRecoveryRate:      1.0,
		SleepReward:            0.2,
		OptimalSleepFactor:     0.8,
		WakeRewardFactor:       10.0,
		OversleepPenaltyFactor: -15.0,
		OversleepGrace:         0.1,
	}
}

// #endregion config

// #region state
// State is the regulator's full mutable state. Exported so the agent can
// snapshot and restore it.
type State struct {
	SleepPressure        float64 `json:"sleep_pressure"`
	Sleeping             bool    `json:"is_sleeping"`
	SleepDuration        int     `json:"current_sleep_duration"`
	PressureAtSleepStart float64 `json:"pressure_at_sleep_start"`
}

// #endregion state

// #region result
// Result carries the mood deltas produced by one regulator step.
type Result struct {
	DeltaX    float64
	DeltaY    float64
	Woke      bool    // a wake transition happened during this step
	WakeBonus float64 // already included in DeltaY when Woke is set
}

// #endregion result
