package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is used when GeminiConfig.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// ErrModelNotConfigured means neither an API key nor a Vertex project was set.
var ErrModelNotConfigured = errors.New("gemini analyzer needs an api key or a gcp project and location")

// GeminiConfig selects the Gemini backend. APIKey wins over Vertex AI.
type GeminiConfig struct {
	APIKey   string
	Project  string
	Location string
	Model    string
}

// Configured reports whether either backend has enough settings.
func (c GeminiConfig) Configured() bool {
	if strings.TrimSpace(c.APIKey) != "" {
		return true
	}
	return strings.TrimSpace(c.Project) != "" && strings.TrimSpace(c.Location) != ""
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiAnalyzer asks a Gemini model for a JSON score and clinical impression.
type GeminiAnalyzer struct {
	models contentGenerator
	model  string
}

// NewGeminiAnalyzer creates a genai client for cfg.
func NewGeminiAnalyzer(ctx context.Context, cfg GeminiConfig) (*GeminiAnalyzer, error) {
	if !cfg.Configured() {
		return nil, ErrModelNotConfigured
	}

	clientCfg := &genai.ClientConfig{}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		clientCfg.APIKey = key
		clientCfg.Backend = genai.BackendGeminiAPI
	} else {
		clientCfg.Project = strings.TrimSpace(cfg.Project)
		clientCfg.Location = strings.TrimSpace(cfg.Location)
		clientCfg.Backend = genai.BackendVertexAI
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiAnalyzer(client.Models, cfg.Model), nil
}

func newGeminiAnalyzer(models contentGenerator, model string) *GeminiAnalyzer {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &GeminiAnalyzer{models: models, model: model}
}

// Name identifies the analyzer in records and logs.
func (g *GeminiAnalyzer) Name() string { return "gemini:" + g.model }

// Analyze sends report to the model and parses its JSON verdict.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, report Report) (Analysis, error) {
	temperature := float32(0.2)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       &temperature,
		MaxOutputTokens:   1024,
		ResponseMIMEType:  "application/json",
		SafetySettings:    clinicalSafetySettings(),
	}
	contents := []*genai.Content{genai.NewContentFromText(buildPrompt(report), genai.RoleUser)}

	res, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return Analysis{}, fmt.Errorf("gemini generate content: %w", err)
	}
	text := res.Text()
	if strings.TrimSpace(text) == "" {
		return Analysis{}, errors.New("gemini returned empty text")
	}
	return parseVerdict(text)
}

// clinicalSafetySettings turns content blocking off; summaries routinely
// describe self-harm.
func clinicalSafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	out := make([]*genai.SafetySetting, 0, len(categories))
	for _, category := range categories {
		out = append(out, &genai.SafetySetting{
			Category:  category,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return out
}

type verdict struct {
	Score      json.RawMessage `json:"score"`
	Validation string          `json:"validation"`
	Reasoning  string          `json:"reasoning"`
}

// parseVerdict accepts bare JSON or JSON inside a markdown fence.
func parseVerdict(text string) (Analysis, error) {
	text = stripFence(strings.TrimSpace(text))

	var v verdict
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return Analysis{}, fmt.Errorf("decode model verdict: %w", err)
	}
	score, err := parseScore(v.Score)
	if err != nil {
		return Analysis{}, err
	}
	validation := strings.TrimSpace(v.Validation)
	reasoning := strings.TrimSpace(v.Reasoning)
	if validation == "" {
		validation = reasoning
	}
	return Analysis{Score: score, Validation: validation, Reasoning: reasoning}, nil
}

func parseScore(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, errors.New("model verdict has no score")
	}
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if parsed, perr := strconv.ParseFloat(strings.TrimSpace(text), 64); perr == nil {
			return parsed, nil
		}
	}
	return 0, fmt.Errorf("model verdict score %s is not a number", string(raw))
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if newline := strings.IndexByte(text, '\n'); newline >= 0 {
		text = text[newline+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
