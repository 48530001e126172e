package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rbright/mindwell/internal/screening"
)

type signal struct {
	phrase string
	weight float64
}

// Crisis phrases pin the score to the top tier on their own.
var crisisSignals = []string{
	"suicid",
	"kill myself",
	"end my life",
	"end it all",
	"want to die",
	"no reason to live",
	"better off dead",
	"self-harm",
	"self harm",
	"hurt myself",
	"cutting myself",
	"overdose",
}

var distressSignals = []signal{
	{phrase: "hopeless", weight: 1.5},
	{phrase: "worthless", weight: 1.5},
	{phrase: "panic", weight: 1},
	{phrase: "anxious", weight: 0.75},
	{phrase: "anxiety", weight: 0.75},
	{phrase: "depress", weight: 1},
	{phrase: "can't sleep", weight: 1},
	{phrase: "cannot sleep", weight: 1},
	{phrase: "insomnia", weight: 1},
	{phrase: "waking up at", weight: 0.75},
	{phrase: "not eating", weight: 1},
	{phrase: "inability to eat", weight: 1},
	{phrase: "fatigue", weight: 0.5},
	{phrase: "exhausted", weight: 0.5},
	{phrase: "isolat", weight: 0.75},
	{phrase: "alone", weight: 0.5},
	{phrase: "crying", weight: 0.5},
	{phrase: "numb", weight: 0.75},
	{phrase: "meaningless", weight: 1},
	{phrase: "drinking", weight: 0.75},
}

// Third-party reports describe someone other than the speaker.
var thirdPartySignals = []string{
	"worried about their",
	"worried about my",
	"caller is worried",
	"reporting on",
}

const (
	keywordBaseline   = 1
	keywordCrisis     = 9
	keywordThirdParty = 0.5
)

// KeywordAnalyzer scores summaries from a fixed phrase list. It needs no
// network and never fails, so it backs up model analyzers.
type KeywordAnalyzer struct{}

// Name identifies the analyzer in records and logs.
func (KeywordAnalyzer) Name() string { return "keyword" }

// Analyze scores report by matching distress and crisis phrases.
func (KeywordAnalyzer) Analyze(_ context.Context, report Report) (Analysis, error) {
	text := strings.ToLower(report.Summary)

	var matched []string
	for _, phrase := range crisisSignals {
		if strings.Contains(text, phrase) {
			matched = append(matched, phrase)
		}
	}
	crisis := len(matched) > 0

	score := float64(keywordBaseline)
	for _, sig := range distressSignals {
		if strings.Contains(text, sig.phrase) {
			score += sig.weight
			matched = append(matched, sig.phrase)
		}
	}

	thirdParty := false
	for _, phrase := range thirdPartySignals {
		if strings.Contains(text, phrase) {
			thirdParty = true
			break
		}
	}

	switch {
	case crisis:
		score = math.Max(score, keywordCrisis)
	case thirdParty:
		score *= keywordThirdParty
	}
	if report.PreliminaryScore != nil && !crisis {
		score = (score + screening.ClampScore(*report.PreliminaryScore)) / 2
	}
	score = math.Round(screening.ClampScore(score)*10) / 10

	return Analysis{
		Score:      score,
		Validation: keywordValidation(screening.Tier(score), thirdParty),
		Reasoning:  keywordReasoning(matched),
	}, nil
}

func keywordValidation(tier screening.RiskTier, thirdParty bool) string {
	switch {
	case tier == screening.TierHigh:
		return "Statements indicate acute risk; immediate clinical follow-up and crisis resources are recommended."
	case thirdParty:
		return "Report concerns a third party; the caller presents as safe but may benefit from support guidance."
	case tier == screening.TierMedium:
		return "Reported symptoms suggest moderate distress that warrants a clinical consultation."
	default:
		return "No significant risk indicators were reported; routine follow-up is sufficient."
	}
}

func keywordReasoning(matched []string) string {
	if len(matched) == 0 {
		return "no risk phrases matched"
	}
	return fmt.Sprintf("matched: %s", strings.Join(matched, ", "))
}
