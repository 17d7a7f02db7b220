package vigilance

import (
	"fmt"
	"math"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// #region gate
// Gate is the stateless safety policy: a pre-sleep check on arousal and a
// filter that flags stimuli dangerous enough to wake the agent.
type Gate struct {
	config Config
}

// NewGate creates a gate with the given thresholds.
func NewGate(config Config) *Gate {
	return &Gate{config: config}
}

// Config returns the active thresholds.
func (g *Gate) Config() Config {
	return g.config
}

// #endregion gate

// #region pre-sleep
// IsSafeToSleep reports whether arousal is low enough to fall asleep.
func (g *Gate) IsSafeToSleep(arousal float64) bool {
	if math.IsNaN(arousal) {
		return false
	}
	return arousal <= g.config.SleepArousalThreshold
}

// EvaluateSleep wraps IsSafeToSleep with a loggable reason.
func (g *Gate) EvaluateSleep(arousal float64) Decision {
	if g.IsSafeToSleep(arousal) {
		return Decision{
			Action: ActionSleep,
			Reason: fmt.Sprintf("arousal %.2f <= %.2f", arousal, g.config.SleepArousalThreshold),
		}
	}
	return Decision{
		Action: ActionStayAwake,
		Reason: fmt.Sprintf("arousal %.2f above safe threshold %.2f", arousal, g.config.SleepArousalThreshold),
	}
}

// #endregion pre-sleep

// #region stimulus-filter
// FilterStimulus returns true when the stimulus is dangerous.
func (g *Gate) FilterStimulus(s Stimulus) bool {
	if math.IsNaN(s.Intensity) {
		return false
	}
	return s.Intensity > g.config.StimulusIntensityThreshold
}

// ParseStimulus decodes a JSON stimulus such as {"type":"sound","intensity":95}.
func ParseStimulus(data []byte) (Stimulus, error) {
	var s Stimulus
	if err := json.Unmarshal(data, &s); err != nil {
		return Stimulus{}, fmt.Errorf("parse stimulus: %w", err)
	}
	return s, nil
}

// #endregion stimulus-filter
