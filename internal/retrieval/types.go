package retrieval

import "github.com/gurkebaui/sun/internal/memory"

// #region config
// Config limits what the memory lookup may feed into a prompt.
type Config struct {
	TopK         int `envconfig:"MEMORY_TOP_K" default:"3"`
	MaxMemoryLen int `envconfig:"MEMORY_MAX_LEN" default:"2000"` // chars per memory, 0 = unlimited
}

// DefaultConfig returns sensible defaults for memory lookup.
func DefaultConfig() Config {
	return Config{
		TopK:         3,
		MaxMemoryLen: 2000,
	}
}

// #endregion config

// #region result
// Result captures the outcome of one lookup.
type Result struct {
	Queried   int             // records returned by the store
	Retrieved []memory.Record // after consistency filtering
	Reason    string          // human-readable explanation
}

// Texts returns the retrieved memory texts in rank order.
func (r Result) Texts() []string {
	out := make([]string, len(r.Retrieved))
	for i, rec := range r.Retrieved {
		out[i] = rec.Text
	}
	return out
}

// #endregion result
