package orchestrator

import (
	"fmt"
	"strings"

	"github.com/gurkebaui/sun/internal/affect"
	"github.com/gurkebaui/sun/internal/memory"
	"github.com/gurkebaui/sun/internal/perception"
)

// #region mood-words

// describeMood renders the mood vector as words plus numbers so the model
// gets both.
func describeMood(m affect.Snapshot) string {
	var energy, feeling string
	switch {
	case m.Arousal >= 60:
		energy = "tense and highly alert"
	case m.Arousal >= 20:
		energy = "awake and attentive"
	case m.Arousal > -20:
		energy = "calm"
	default:
		energy = "drowsy"
	}
	switch {
	case m.Valence >= 40:
		feeling = "happy"
	case m.Valence >= 10:
		feeling = "content"
	case m.Valence > -10:
		feeling = "neutral"
	case m.Valence > -40:
		feeling = "uneasy"
	default:
		feeling = "distressed"
	}
	return fmt.Sprintf("%s and %s (arousal %.1f, valence %.1f)", energy, feeling, m.Arousal, m.Valence)
}

// #endregion

// #region monologue

func monologuePrompt(mood affect.Snapshot, focus perception.Focus) string {
	var b strings.Builder
	b.WriteString("Think silently to yourself. Nobody will read this.\n")
	fmt.Fprintf(&b, "You feel %s.\n", describeMood(mood))
	if len(focus.Aux) > 0 {
		fmt.Fprintf(&b, "In the background: %s\n", strings.Join(focus.Aux, "; "))
	}
	fmt.Fprintf(&b, "Right now (%s): %s\n", focus.Channel, focus.Main)
	b.WriteString("What do you make of this? Answer in two or three sentences.")
	return b.String()
}

// #endregion

// #region response

func responsePrompt(persona, thought string, memories []memory.Record, focus perception.Focus) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Your private thought: %s\n", thought)
	if len(memories) > 0 {
		b.WriteString("You remember:\n")
		for _, m := range memories {
			fmt.Fprintf(&b, "- %s\n", m.Text)
		}
	}
	fmt.Fprintf(&b, "\nSituation (%s): %s\n", focus.Channel, focus.Main)
	b.WriteString("Respond to the situation.")
	return b.String()
}

// #endregion

// #region lesson

func lessonPrompt(recent []memory.Record) string {
	var b strings.Builder
	b.WriteString("You are falling asleep. These are your most recent memories:\n")
	for _, r := range recent {
		fmt.Fprintf(&b, "- %s\n", r.Text)
	}
	b.WriteString("State the single most useful lesson from them in one sentence.")
	return b.String()
}

func experienceText(focus perception.Focus, thought, answer string) string {
	return fmt.Sprintf("Situation: %s | Thought: %s | Answer: %s", focus.Main, thought, answer)
}

// #endregion
