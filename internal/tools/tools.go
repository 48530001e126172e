// Package tools implements the agent-callable screening tool handlers.
//
// Handlers always return speakable text. Backend failures and panics are
// absorbed here and never reach the voice transport.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rbright/mindwell/internal/gateway"
	"github.com/rbright/mindwell/internal/screening"
)

const (
	NameSubmitScreeningReport = "submit_screening_report"
	NameGetHelplines          = "get_helplines"
)

// Gateway is the backend subset the handlers depend on.
type Gateway interface {
	SubmitScreeningReport(context.Context, string) (gateway.Analysis, error)
	FetchHelplines(context.Context) ([]screening.Helpline, error)
}

// Invocation identifies one in-flight tool call. Epoch is the session epoch
// observed when the call started.
type Invocation struct {
	ID        string
	Tool      string
	Epoch     uint64
	StartedAt time.Time
}

// Sink receives the side effects of tool calls. Publish methods report whether
// the value was accepted; stale invocations are rejected by the sink.
type Sink interface {
	BeginInvocation(tool string) Invocation
	SetProcessing(Invocation, bool)
	PublishResult(Invocation, screening.Result) bool
	PublishHelplines(Invocation, []screening.Helpline) bool
	ShowHelplines(Invocation) bool
}

// Dispatcher serves the two screening tools for one session owner.
type Dispatcher struct {
	gateway Gateway
	sink    Sink
	logger  *slog.Logger

	// submitting holds the epoch+1 of the submission in flight, 0 when idle.
	submitting atomic.Uint64
	fetching   atomic.Bool
}

// NewDispatcher wires handlers to a backend gateway and a state sink.
func NewDispatcher(gw Gateway, sink Sink, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{gateway: gw, sink: sink, logger: logger}
}

// SubmitScreeningReport analyzes summary and returns the validation to speak.
func (d *Dispatcher) SubmitScreeningReport(ctx context.Context, summary string) string {
	inv := d.sink.BeginInvocation(NameSubmitScreeningReport)
	if !d.claimSubmit(inv.Epoch) {
		d.log(slog.LevelWarn, "screening submission rejected; another is in flight",
			"invocation", inv.ID,
			"epoch", inv.Epoch,
		)
		return screening.BusyText
	}
	defer d.submitting.CompareAndSwap(inv.Epoch+1, 0)

	d.sink.SetProcessing(inv, true)
	defer d.sink.SetProcessing(inv, false)

	analysis, err := d.submit(ctx, summary)
	if err != nil {
		d.log(slog.LevelError, "screening submission failed",
			"invocation", inv.ID,
			"duration_ms", time.Since(inv.StartedAt).Milliseconds(),
			"error", err.Error(),
		)
		return screening.ApologyText
	}

	validation := analysis.Validation
	if strings.TrimSpace(validation) == "" {
		validation = screening.DefaultValidation
	}
	result := screening.NewResult(analysis.Score, summary, validation)
	published := d.sink.PublishResult(inv, result)
	d.log(slog.LevelInfo, "screening analyzed",
		"invocation", inv.ID,
		"score", result.Score,
		"tier", screening.Tier(result.Score),
		"published", published,
		"duration_ms", time.Since(inv.StartedAt).Milliseconds(),
	)
	return validation
}

// claimSubmit takes the single-flight slot for epoch. A submission left over
// from an earlier epoch does not hold the slot against a newer one.
func (d *Dispatcher) claimSubmit(epoch uint64) bool {
	mark := epoch + 1
	for {
		held := d.submitting.Load()
		if held >= mark {
			return false
		}
		if d.submitting.CompareAndSwap(held, mark) {
			return true
		}
	}
}

// GetHelplines refreshes the helpline list and always puts helplines on screen.
func (d *Dispatcher) GetHelplines(ctx context.Context) string {
	inv := d.sink.BeginInvocation(NameGetHelplines)
	if !d.fetching.CompareAndSwap(false, true) {
		d.sink.ShowHelplines(inv)
		return screening.HelplinesShownText
	}
	defer d.fetching.Store(false)

	helplines, err := d.fetch(ctx)
	if err != nil {
		d.log(slog.LevelWarn, "helpline fetch failed; keeping current list",
			"invocation", inv.ID,
			"error", err.Error(),
		)
	} else {
		d.sink.PublishHelplines(inv, helplines)
	}
	d.sink.ShowHelplines(inv)
	return screening.HelplinesShownText
}

// submit shields the handler from panics in the gateway.
func (d *Dispatcher) submit(ctx context.Context, summary string) (analysis gateway.Analysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("submit panicked: %v", r)
		}
	}()
	return d.gateway.SubmitScreeningReport(ctx, summary)
}

func (d *Dispatcher) fetch(ctx context.Context) (helplines []screening.Helpline, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch helplines panicked: %v", r)
		}
	}()
	return d.gateway.FetchHelplines(ctx)
}

func (d *Dispatcher) log(level slog.Level, msg string, args ...any) {
	if d.logger == nil {
		return
	}
	d.logger.Log(context.Background(), level, msg, args...)
}
