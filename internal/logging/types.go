package logging

import "time"

// #region events
// Event names written to the provenance log.
const (
	EventSleepEntry    = "sleep_entry"
	EventStayAwake     = "stay_awake"
	EventWake          = "wake"
	EventAlarm         = "alarm"
	EventConsolidation = "consolidation"
	EventCycleError    = "cycle_error"
)

// #endregion events

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	VersionID   string // snapshot committed for this decision, may be empty
	Tick        int64
	Event       string
	Decision    string
	Reason      string
	DetailsJSON string
	CreatedAt   time.Time
}

// #endregion provenance-entry

// #region decision-record
// DecisionRecord captures the inputs to a homeostatic decision. Serialized
// as JSON into provenance_log.details_json so a run can be replayed.
type DecisionRecord struct {
	Arousal       float64 `json:"arousal"`
	Valence       float64 `json:"valence"`
	SleepPressure float64 `json:"sleep_pressure"`
	Sleeping      bool    `json:"is_sleeping"`
	SleepDuration int     `json:"sleep_duration,omitempty"`
	WakeBonus     float64 `json:"wake_bonus,omitempty"`

	// Thresholds active at decision time
	Thresholds DecisionThresholds `json:"thresholds"`

	StimulusType      string  `json:"stimulus_type,omitempty"`
	StimulusIntensity float64 `json:"stimulus_intensity,omitempty"`
	Flushed           int     `json:"flushed,omitempty"` // experiences written to memory
	Lesson            string  `json:"lesson,omitempty"`
	Error             string  `json:"error,omitempty"`
}

// DecisionThresholds mirrors the tunable constants that fed the decision.
type DecisionThresholds struct {
	PressureThreshold          float64 `json:"pressure_threshold"`
	SleepArousalThreshold      float64 `json:"pssc_arousal_threshold"`
	StimulusIntensityThreshold float64 `json:"svf_intensity_threshold"`
}

// #endregion decision-record
