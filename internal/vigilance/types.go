package vigilance

// #region action
// Action is the outcome of a pre-sleep safety check.
type Action string

const (
	ActionSleep     Action = "sleep"
	ActionStayAwake Action = "stay_awake"
)

// #endregion action

// #region config
// Config holds the two thresholds the gate decides on.
type Config struct {
	SleepArousalThreshold      float64 `envconfig:"PSSC_AROUSAL_THRESHOLD" default:"20" json:"pssc_arousal_threshold"`
	StimulusIntensityThreshold float64 `envconfig:"SVF_INTENSITY_THRESHOLD" default:"80" json:"svf_intensity_threshold"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		SleepArousalThreshold:      20.0,
		StimulusIntensityThreshold: 80.0,
	}
}

// #endregion config

// #region stimulus
// Stimulus is an external event that may arrive at any time, e.g. a loud noise.
// A missing intensity decodes as 0.
type Stimulus struct {
	Type      string  `json:"type"`
	Intensity float64 `json:"intensity"`
}

// #endregion stimulus

// #region decision
// Decision is the gate output for a sleep request.
type Decision struct {
	Action Action
	Reason string
}

// #endregion decision
