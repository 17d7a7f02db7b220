package modulation

// #region constants
const (
	// MinTemperature is the floor for every sampling temperature handed to a backend.
	MinTemperature = 0.01
	// FocusTemperature is the temperature at maximum arousal.
	FocusTemperature = 0.3
	// MaxSkipRate caps the computation-skip rate.
	MaxSkipRate = 0.5

	focusOnset = 50.0 // arousal above which temperature and attention sharpen
	skipOnset  = 90.0 // arousal at which skipping starts
	noiseShare = 0.1  // max noise amplitude as a share of the score range
)

// #endregion constants

// #region rand
// Rand is the random source used by the attention noise branch.
type Rand interface {
	Float64() float64
}

// #endregion rand

// #region params
// Params are the inference hyperparameters derived from a mood.
type Params struct {
	Temperature   float64 `json:"temperature"`
	SkipRate      float64 `json:"skip_rate"`
	AttentionGain float64 `json:"attention_gain"`
}

// #endregion params
