// Package screening defines the screening outcome and helpline values shared by
// the session owner, the tool handlers, and the analysis service.
package screening

import (
	"math"
	"strings"
)

const (
	MinScore = 0
	MaxScore = 10

	// DefaultValidation substitutes for a missing validation in a backend reply.
	DefaultValidation = "Analysis pending."
	// ApologyText is spoken when a screening submission cannot be analyzed.
	ApologyText = "I'm sorry, I wasn't able to complete the analysis right now. Your summary was not lost; please try again in a moment."
	// BusyText is spoken when a submission is already being analyzed.
	BusyText = "I'm still analyzing the previous summary. Please give me a moment."
	// HelplinesShownText is spoken after helplines are put on screen.
	HelplinesShownText = "I've put the helpline numbers on your screen. You can reach them at any time."
)

// Result is one analyzed screening. Values are immutable once published.
type Result struct {
	Score      float64 `json:"score"`
	Summary    string  `json:"summary"`
	Validation string  `json:"validation"`
}

// NewResult builds a result with the score clamped to the valid range.
func NewResult(score float64, summary string, validation string) Result {
	return Result{
		Score:      ClampScore(score),
		Summary:    summary,
		Validation: validation,
	}
}

// Helpline is one crisis resource entry.
type Helpline struct {
	Name        string `json:"name"`
	Number      string `json:"number"`
	Description string `json:"description"`
}

// DefaultHelplines returns a fresh copy of the built-in fallback list.
func DefaultHelplines() []Helpline {
	return []Helpline{
		{Name: "Tele-MANAS", Number: "14416", Description: "Govt. of India (24/7)"},
		{Name: "iCALL", Number: "9152987821", Description: "TISS (Mon-Sat)"},
	}
}

// CloneHelplines copies a helpline list so callers never share backing arrays.
func CloneHelplines(in []Helpline) []Helpline {
	if in == nil {
		return nil
	}
	out := make([]Helpline, len(in))
	copy(out, in)
	return out
}

// ClampScore bounds a score to [MinScore, MaxScore]. NaN maps to MinScore.
func ClampScore(score float64) float64 {
	if math.IsNaN(score) || score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// RiskTier buckets a score for display.
type RiskTier string

const (
	TierLow    RiskTier = "low"
	TierMedium RiskTier = "medium"
	TierHigh   RiskTier = "high"
)

// Tier maps a score to its risk tier: >=8 high, >=5 medium, otherwise low.
func Tier(score float64) RiskTier {
	score = ClampScore(score)
	switch {
	case score >= 8:
		return TierHigh
	case score >= 5:
		return TierMedium
	default:
		return TierLow
	}
}

// Progress maps a score to the [0,1] fill fraction of a progress bar.
func Progress(score float64) float64 {
	return ClampScore(score) / MaxScore
}

// Bar renders a fixed-width text progress bar for a score.
func Bar(score float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(math.Round(Progress(score) * float64(width)))
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}
