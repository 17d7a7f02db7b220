package perception

import "context"

// #region report
// Report is one sensory snapshot. Any field may be empty.
type Report struct {
	Vision string `json:"vision"`
	Sound  string `json:"sound"`
	Speech string `json:"speech"`
}

// Empty reports whether no channel carries anything.
func (r Report) Empty() bool {
	return r.Vision == "" && r.Sound == "" && r.Speech == ""
}

// #endregion report

// #region source
// Source produces perception reports for the conscious cycle.
type Source interface {
	Perceive(ctx context.Context) (Report, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Report, error)

func (f SourceFunc) Perceive(ctx context.Context) (Report, error) { return f(ctx) }

// #endregion source

// #region focus
// Channel names used in Focus.
const (
	ChannelSpeech = "speech"
	ChannelVision = "vision"
	ChannelSound  = "sound"
)

// Focus is the main situation picked from a report plus the remaining
// channels as auxiliary context.
type Focus struct {
	Channel string
	Main    string
	Aux     []string
}

// #endregion focus
