package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/gurkebaui/sun/internal/memory"
)

// #region retriever
// Retriever looks up memories relevant to the current focus.
type Retriever struct {
	store  memory.Store
	config Config
}

// NewRetriever creates a Retriever over the given store.
func NewRetriever(store memory.Store, config Config) *Retriever {
	return &Retriever{store: store, config: config}
}

// #endregion retriever

// #region retrieve
// Retrieve queries the store for the focus text and filters the results.
// An empty focus is not an error; it simply retrieves nothing.
func (r *Retriever) Retrieve(ctx context.Context, focus string) (Result, error) {
	result := Result{}
	if strings.TrimSpace(focus) == "" {
		result.Reason = "empty focus"
		return result, nil
	}

	records, err := r.store.Query(ctx, focus, r.config.TopK)
	if err != nil {
		return result, fmt.Errorf("retrieval query: %w", err)
	}
	result.Queried = len(records)
	if result.Queried == 0 {
		result.Reason = "no matching memories"
		return result, nil
	}

	result.Retrieved = r.consistencyCheck(records)
	if len(result.Retrieved) == 0 {
		result.Reason = "all memories failed consistency check"
	} else {
		result.Reason = fmt.Sprintf("retrieved %d memories (queried=%d)", len(result.Retrieved), result.Queried)
	}
	return result, nil
}

// #endregion retrieve

// #region consistency-check
// consistencyCheck drops empty and overlong texts, and keeps only the first
// occurrence of each text. Stores may return the same text under several ids.
func (r *Retriever) consistencyCheck(records []memory.Record) []memory.Record {
	seen := make(map[string]bool)
	var valid []memory.Record

	for _, rec := range records {
		key := strings.TrimSpace(rec.Text)
		if key == "" {
			continue
		}
		if r.config.MaxMemoryLen > 0 && len(rec.Text) > r.config.MaxMemoryLen {
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		valid = append(valid, rec)
	}
	return valid
}

// #endregion consistency-check
