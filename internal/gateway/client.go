// Package gateway issues the analysis backend requests used by the tool handlers.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rbright/mindwell/internal/screening"
	"github.com/rbright/mindwell/internal/telemetry"
)

// ErrBackendUnavailable wraps every transport, status, or decode failure.
var ErrBackendUnavailable = errors.New("analysis backend unavailable")

const (
	submitPath    = "/submit_screening_report"
	helplinesPath = "/get_helplines"

	maxBodyBytes = 1 << 20
)

// Analysis is the usable pair returned for one screening submission.
type Analysis struct {
	Score      float64
	Validation string
}

// Client talks to the analysis backend. It keeps no state between calls.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client rooted at baseURL. A nil httpClient uses a client with
// no timeout of its own.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    httpClient,
	}
}

// BaseURL returns the normalized backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitScreeningReport sends summary for analysis. Missing fields in an
// otherwise valid reply are replaced with safe defaults.
func (c *Client) SubmitScreeningReport(ctx context.Context, summary string) (Analysis, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "gateway.submit_screening_report")
	defer span.End()
	span.SetAttributes(attribute.Int("summary.length", len(summary)))

	body, err := json.Marshal(map[string]string{"summary": summary})
	if err != nil {
		return Analysis{}, unavailable(span, fmt.Errorf("encode request: %w", err))
	}

	raw, err := c.do(ctx, http.MethodPost, submitPath, body)
	if err != nil {
		return Analysis{}, unavailable(span, err)
	}

	analysis, err := decodeAnalysis(raw)
	if err != nil {
		return Analysis{}, unavailable(span, err)
	}
	span.SetAttributes(attribute.Float64("analysis.score", analysis.Score))
	return analysis, nil
}

// FetchHelplines returns the backend helpline list in server order.
func (c *Client) FetchHelplines(ctx context.Context) ([]screening.Helpline, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "gateway.get_helplines")
	defer span.End()

	raw, err := c.do(ctx, http.MethodGet, helplinesPath, nil)
	if err != nil {
		return nil, unavailable(span, err)
	}

	helplines, err := decodeHelplines(raw)
	if err != nil {
		return nil, unavailable(span, err)
	}
	span.SetAttributes(attribute.Int("helplines.count", len(helplines)))
	return helplines, nil
}

func (c *Client) do(ctx context.Context, method string, path string, body []byte) ([]byte, error) {
	if c.baseURL == "" {
		return nil, errors.New("analysis base url is empty")
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}
	return raw, nil
}

// decodeAnalysis requires a JSON object and tolerates any shape inside it.
func decodeAnalysis(raw []byte) (Analysis, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Analysis{}, fmt.Errorf("decode response: %w", err)
	}
	if envelope == nil {
		return Analysis{}, errors.New("decode response: not a JSON object")
	}

	out := Analysis{Score: 0, Validation: screening.DefaultValidation}

	var result map[string]json.RawMessage
	if err := json.Unmarshal(envelope["result"], &result); err == nil && result != nil {
		if score, ok := decodeScore(result["score"]); ok {
			out.Score = score
		}
		if validation := decodeText(result["validation"]); strings.TrimSpace(validation) != "" {
			out.Validation = validation
		}
		return out, nil
	}

	// Older deployments answered with a bare ai_validation field.
	if validation := decodeText(envelope["ai_validation"]); strings.TrimSpace(validation) != "" {
		out.Validation = validation
	}
	return out, nil
}

func decodeHelplines(raw []byte) ([]screening.Helpline, error) {
	var payload struct {
		Helplines []struct {
			Name        string `json:"name"`
			Number      string `json:"number"`
			Description string `json:"description"`
			Desc        string `json:"desc"`
		} `json:"helplines"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(payload.Helplines) == 0 {
		return nil, errors.New("decode response: no helplines")
	}

	out := make([]screening.Helpline, 0, len(payload.Helplines))
	for _, entry := range payload.Helplines {
		description := entry.Description
		if description == "" {
			description = entry.Desc
		}
		out = append(out, screening.Helpline{
			Name:        entry.Name,
			Number:      entry.Number,
			Description: description,
		})
	}
	return out, nil
}

// decodeScore accepts JSON numbers and numeric strings.
func decodeScore(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number, true
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if parsed, perr := strconv.ParseFloat(strings.TrimSpace(text), 64); perr == nil {
			return parsed, true
		}
	}
	return 0, false
}

func decodeText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return ""
	}
	return text
}

// unavailable records err on span and wraps it as ErrBackendUnavailable.
func unavailable(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}
