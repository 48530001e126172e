package indicator

import (
	"fmt"
	"os"
	"strings"

	"github.com/rbright/mindwell/internal/fsm"
	"github.com/rbright/mindwell/internal/screening"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	title        string
	connecting   string
	syncing      string
	listening    string
	speaking     string
	disconnected string
	failed       string
	analyzing    string
	resultTitle  string
	helplines    string
	errorText    string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			title:        "Mindwell",
			connecting:   "Connecting…",
			syncing:      "Getting ready…",
			listening:    "Listening",
			speaking:     "Speaking",
			disconnected: "Session ended",
			failed:       "Connection failed",
			analyzing:    "Analyzing your responses…",
			resultTitle:  "Screening result",
			helplines:    "Helplines",
			errorText:    "Something went wrong",
		}
	}
}

// phaseText returns the status line for a phase; idle has none.
func (m messages) phaseText(phase fsm.Phase) string {
	switch phase {
	case fsm.PhaseConnecting:
		return m.connecting
	case fsm.PhaseSyncing:
		return m.syncing
	case fsm.PhaseListening:
		return m.listening
	case fsm.PhaseSpeaking:
		return m.speaking
	case fsm.PhaseDisconnected:
		return m.disconnected
	case fsm.PhaseFailed:
		return m.failed
	default:
		return ""
	}
}

// resultBody renders score, bar, tier and the clinical validation.
func resultBody(result screening.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %.1f/%.0f (%s risk)", screening.Bar(result.Score, 20), result.Score, float64(screening.MaxScore), screening.Tier(result.Score))
	if v := strings.TrimSpace(result.Validation); v != "" {
		b.WriteString("\n")
		b.WriteString(v)
	}
	return b.String()
}

func helplinesBody(helplines []screening.Helpline) string {
	lines := make([]string, 0, len(helplines))
	for _, h := range helplines {
		line := h.Name + ": " + h.Number
		if h.Description != "" {
			line += " (" + h.Description + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
