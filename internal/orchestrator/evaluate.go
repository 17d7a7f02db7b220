package orchestrator

// #region imports
import (
	"fmt"
	"strings"
)

// #endregion

// #region check-output

// checkOutput rejects generations the conscious cycle cannot use: blank text
// or a model stuck repeating itself. The trimmed text is returned otherwise.
func checkOutput(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrDegenerateOutput)
	}
	if hasRepetition(strings.ToLower(trimmed)) {
		return "", fmt.Errorf("%w: repetition", ErrDegenerateOutput)
	}
	return trimmed, nil
}

// #endregion

// #region repetition-check

func hasRepetition(lower string) bool {
	// Split into sentences, check for 3+ identical sentences
	sentences := strings.FieldsFunc(lower, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	if len(sentences) < 3 {
		return false
	}
	counts := make(map[string]int)
	for _, s := range sentences {
		trimmed := strings.TrimSpace(s)
		if len(trimmed) > 10 {
			counts[trimmed]++
			if counts[trimmed] >= 3 {
				return true
			}
		}
	}
	return false
}

// #endregion
