package sim

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/gurkebaui/sun/internal/vigilance"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// #region script-types

// Script is the top-level JSON structure for a simulation run.
type Script struct {
	Description string `json:"description"`
	Start       Start  `json:"start"`

	// Partial constant overrides, overlaid on the run options.
	Regulator jsoniter.RawMessage `json:"regulator,omitempty"`
	Vigilance jsoniter.RawMessage `json:"vigilance,omitempty"`

	Steps  []Step  `json:"steps"`
	Expect *Expect `json:"expect,omitempty"`
}

// Start is the agent state before the first step.
type Start struct {
	Arousal       float64 `json:"arousal"`
	Valence       float64 `json:"valence"`
	SleepPressure float64 `json:"sleep_pressure"`
}

// Step applies its actions in field order (remember, nudge, wake, stimulus)
// and then runs Ticks ticks. Say is the override text for the first tick only.
type Step struct {
	Label    string              `json:"label,omitempty"`
	Remember string              `json:"remember,omitempty"`
	Nudge    *Nudge              `json:"nudge,omitempty"`
	Wake     bool                `json:"wake,omitempty"`
	Stimulus *vigilance.Stimulus `json:"stimulus,omitempty"`
	Say      string              `json:"say,omitempty"`
	Ticks    int                 `json:"ticks,omitempty"`
}

// Nudge is a direct mood change.
type Nudge struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// Expect lists summary values a run must reproduce. Nil fields are not checked.
type Expect struct {
	SleepEpisodes *int  `json:"sleep_episodes,omitempty"`
	NaturalWakes  *int  `json:"natural_wakes,omitempty"`
	ForcedWakes   *int  `json:"forced_wakes,omitempty"`
	Alarms        *int  `json:"alarms,omitempty"`
	EndsAsleep    *bool `json:"ends_asleep,omitempty"`
	Memories      *int  `json:"memories,omitempty"`
}

// #endregion script-types

// #region script-loader

// LoadScript reads and parses a JSON script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	return &s, nil
}

// Check compares a summary against the expectations and returns one line per
// mismatch.
func (e *Expect) Check(s Summary) []string {
	if e == nil {
		return nil
	}
	var out []string
	checkInt := func(name string, want *int, got int) {
		if want != nil && *want != got {
			out = append(out, fmt.Sprintf("%s: got %d, want %d", name, got, *want))
		}
	}
	checkInt("sleep_episodes", e.SleepEpisodes, s.SleepEpisodes)
	checkInt("natural_wakes", e.NaturalWakes, s.NaturalWakes)
	checkInt("forced_wakes", e.ForcedWakes, s.ForcedWakes)
	checkInt("alarms", e.Alarms, s.Alarms)
	checkInt("memories", e.Memories, s.Memories)
	if e.EndsAsleep != nil && *e.EndsAsleep != s.EndsAsleep {
		out = append(out, fmt.Sprintf("ends_asleep: got %v, want %v", s.EndsAsleep, *e.EndsAsleep))
	}
	return out
}

// overlay decodes the script's constant overrides onto opts.
func (s *Script) overlay(opts *Options) error {
	if len(s.Regulator) > 0 {
		if err := json.Unmarshal(s.Regulator, &opts.Regulator); err != nil {
			return fmt.Errorf("regulator overrides: %w", err)
		}
	}
	if len(s.Vigilance) > 0 {
		if err := json.Unmarshal(s.Vigilance, &opts.Vigilance); err != nil {
			return fmt.Errorf("vigilance overrides: %w", err)
		}
	}
	return nil
}

// #endregion script-loader
