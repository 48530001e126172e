package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	text   string
	err    error
	model  string
	prompt string
	config *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.text, genai.RoleModel)}},
	}, nil
}

func TestGeminiAnalyzerParsesVerdict(t *testing.T) {
	gen := &fakeGenerator{text: `{"score": 6.5, "validation": "Sleep and appetite loss contradict the stated mood.", "reasoning": "somatic symptoms"}`}
	analyzer := newGeminiAnalyzer(gen, "")

	preliminary := 4.0
	got, err := analyzer.Analyze(context.Background(), Report{Summary: "says fine, not eating", PreliminaryScore: &preliminary})
	require.NoError(t, err)
	require.Equal(t, Analysis{
		Score:      6.5,
		Validation: "Sleep and appetite loss contradict the stated mood.",
		Reasoning:  "somatic symptoms",
	}, got)

	require.Equal(t, DefaultModel, gen.model)
	require.Equal(t, "gemini:"+DefaultModel, analyzer.Name())
	require.Contains(t, gen.prompt, "says fine, not eating")
	require.Contains(t, gen.prompt, "4.0/10")
	require.Equal(t, "application/json", gen.config.ResponseMIMEType)
	require.Len(t, gen.config.SafetySettings, 4)
}

func TestGeminiAnalyzerErrors(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{name: "transport", gen: &fakeGenerator{err: errors.New("quota")}},
		{name: "empty", gen: &fakeGenerator{text: "  "}},
		{name: "not json", gen: &fakeGenerator{text: "The patient seems fine."}},
		{name: "no score", gen: &fakeGenerator{text: `{"validation":"x"}`}},
		{name: "bad score", gen: &fakeGenerator{text: `{"score":"high"}`}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newGeminiAnalyzer(tc.gen, "gemini-test").Analyze(context.Background(), Report{Summary: "s"})
			require.Error(t, err)
		})
	}
}

func TestParseVerdictVariants(t *testing.T) {
	got, err := parseVerdict("```json\n{\"score\": \"8\", \"reasoning\": \"active plan\"}\n```")
	require.NoError(t, err)
	require.Equal(t, Analysis{Score: 8, Validation: "active plan", Reasoning: "active plan"}, got)
}

func TestGeminiConfigConfigured(t *testing.T) {
	require.False(t, GeminiConfig{}.Configured())
	require.False(t, GeminiConfig{Project: "p"}.Configured())
	require.True(t, GeminiConfig{Project: "p", Location: "us-central1"}.Configured())
	require.True(t, GeminiConfig{APIKey: "k"}.Configured())

	_, err := NewGeminiAnalyzer(context.Background(), GeminiConfig{})
	require.ErrorIs(t, err, ErrModelNotConfigured)
}
