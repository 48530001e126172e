// Package httpapi serves the analysis endpoints called by mindwell clients.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rbright/mindwell/internal/analysis"
	"github.com/rbright/mindwell/internal/screening"
)

const maxRequestBytes = 64 << 10

// Service is the analysis behavior the handlers need.
type Service interface {
	Submit(ctx context.Context, report analysis.Report) (analysis.Analysis, error)
	Helplines() []screening.Helpline
	Ping(ctx context.Context) error
}

// Options configures NewHandler.
type Options struct {
	// CORSOrigin is echoed in Access-Control-Allow-Origin. Empty disables CORS.
	CORSOrigin string
	Logger     *slog.Logger
}

type server struct {
	svc    Service
	logger *slog.Logger
}

// NewHandler routes the analysis API onto svc.
func NewHandler(svc Service, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &server{svc: svc, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /submit_screening_report", s.handleSubmit)
	mux.HandleFunc("GET /get_helplines", s.handleHelplines)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	return chain(mux, withLogging(logger), withCORS(opts.CORSOrigin))
}

type submitRequest struct {
	Summary   string   `json:"summary"`
	RiskScore *float64 `json:"risk_score,omitempty"`
}

type submitResult struct {
	Score      float64 `json:"score"`
	Validation string  `json:"validation"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

type submitResponse struct {
	Status string       `json:"status"`
	Result submitResult `json:"result"`
	// AIValidation mirrors Result.Validation for older clients.
	AIValidation string `json:"ai_validation"`
}

type helplineResponse struct {
	Name        string `json:"name"`
	Number      string `json:"number"`
	Description string `json:"description"`
	// Desc repeats Description for clients that read the older key.
	Desc string `json:"desc"`
}

type helplinesResponse struct {
	Helplines []helplineResponse `json:"helplines"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "no data")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.svc.Submit(r.Context(), analysis.Report{
		Summary:          req.Summary,
		PreliminaryScore: req.RiskScore,
	})
	if err != nil {
		if errors.Is(err, analysis.ErrEmptySummary) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("submit screening failed", "error", err)
		writeError(w, http.StatusBadGateway, "analysis failed")
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{
		Status: "success",
		Result: submitResult{
			Score:      result.Score,
			Validation: result.Validation,
			Reasoning:  result.Reasoning,
		},
		AIValidation: result.Validation,
	})
}

func (s *server) handleHelplines(w http.ResponseWriter, _ *http.Request) {
	helplines := s.svc.Helplines()
	out := helplinesResponse{Helplines: make([]helplineResponse, 0, len(helplines))}
	for _, h := range helplines {
		out.Helplines = append(out.Helplines, helplineResponse{
			Name:        h.Name,
			Number:      h.Number,
			Description: h.Description,
			Desc:        h.Description,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.svc.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
