package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/mindwell/internal/screening"
)

func TestKeywordAnalyzerTiers(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		tier    screening.RiskTier
	}{
		{name: "calm", summary: "Feeling fine, work is busy but manageable.", tier: screening.TierLow},
		{
			name:    "smiling depression",
			summary: "Says they are fantastic, but admits waking up at 3AM, inability to eat for 4 days, constant fatigue, feeling hopeless and worthless.",
			tier:    screening.TierMedium,
		},
		{name: "crisis", summary: "Patient says they want to die and have thought about how.", tier: screening.TierHigh},
		{name: "self harm", summary: "Has been cutting myself again lately.", tier: screening.TierHigh},
		{
			name:    "third party",
			summary: "Caller is worried about their brother who is isolated and depressed and not eating.",
			tier:    screening.TierLow,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := KeywordAnalyzer{}.Analyze(context.Background(), Report{Summary: tc.summary})
			require.NoError(t, err)
			require.Equal(t, tc.tier, screening.Tier(got.Score), "score=%v", got.Score)
			require.NotEmpty(t, got.Validation)
			require.NotEmpty(t, got.Reasoning)
		})
	}
}

func TestKeywordAnalyzerBlendsPreliminaryScore(t *testing.T) {
	preliminary := 7.0
	got, err := KeywordAnalyzer{}.Analyze(context.Background(), Report{Summary: "ok day", PreliminaryScore: &preliminary})
	require.NoError(t, err)
	require.Equal(t, 4.0, got.Score)
}

func TestKeywordAnalyzerCrisisIgnoresLowPreliminary(t *testing.T) {
	preliminary := 1.0
	got, err := KeywordAnalyzer{}.Analyze(context.Background(), Report{Summary: "no reason to live", PreliminaryScore: &preliminary})
	require.NoError(t, err)
	require.Equal(t, 9.0, got.Score)
}
