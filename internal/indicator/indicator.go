// Package indicator surfaces session state as desktop notifications and audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/mindwell/internal/config"
	"github.com/rbright/mindwell/internal/fsm"
	"github.com/rbright/mindwell/internal/screening"
)

const (
	dispatchTimeout  = 400 * time.Millisecond
	cueTimeout       = 5 * time.Second
	defaultErrorMS   = 4000
	persistTimeoutMS = 0
)

// Desktop routes session state to a freedesktop notification server.
//
// Two notifications are kept: a replaceable status line (phase, analyzing,
// errors) and an alert for results and helplines that outlives phase changes.
type Desktop struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	mu        sync.Mutex
	statusID  uint32
	alertID   uint32
	lastPhase fsm.Phase
	soundMu   sync.Mutex
}

// NewDesktop creates an indicator from config.
func NewDesktop(cfg config.IndicatorConfig, logger *slog.Logger) *Desktop {
	return &Desktop{
		cfg:       cfg,
		logger:    logger,
		messages:  indicatorMessagesFromEnv(),
		lastPhase: fsm.PhaseIdle,
	}
}

// ShowPhase updates the status line and plays lifecycle cues.
func (d *Desktop) ShowPhase(ctx context.Context, phase fsm.Phase) {
	d.mu.Lock()
	previous := d.lastPhase
	d.lastPhase = phase
	d.mu.Unlock()
	if previous == phase {
		return
	}

	switch phase {
	case fsm.PhaseSyncing:
		d.playCue(cueConnect)
	case fsm.PhaseDisconnected:
		d.playCue(cueDisconnect)
	case fsm.PhaseFailed:
		d.playCue(cueError)
	}

	if !d.cfg.Enable {
		return
	}
	if phase == fsm.PhaseIdle {
		d.run(ctx, d.dismissStatus)
		return
	}

	n := notification{summary: d.messages.title, body: d.messages.phaseText(phase), urgency: urgencyLow, timeoutMS: persistTimeoutMS}
	if phase.Terminal() {
		n.urgency = urgencyNormal
		n.timeoutMS = d.errorTimeout()
	}
	d.run(ctx, func(ctx context.Context) error { return d.notifyStatus(ctx, n) })
}

// ShowProcessing overlays the analyzing line while a report is scored.
func (d *Desktop) ShowProcessing(ctx context.Context, on bool) {
	if !d.cfg.Enable {
		return
	}
	body := d.messages.analyzing
	if !on {
		d.mu.Lock()
		phase := d.lastPhase
		d.mu.Unlock()
		body = d.messages.phaseText(phase)
		if body == "" {
			d.run(ctx, d.dismissStatus)
			return
		}
	}
	d.run(ctx, func(ctx context.Context) error {
		return d.notifyStatus(ctx, notification{summary: d.messages.title, body: body, urgency: urgencyLow, timeoutMS: persistTimeoutMS})
	})
}

// ShowResult posts the screening outcome as a persistent alert.
func (d *Desktop) ShowResult(ctx context.Context, result screening.Result) {
	d.playCue(cueResult)
	if !d.cfg.Enable {
		return
	}
	n := notification{summary: d.messages.resultTitle, body: resultBody(result), urgency: urgencyNormal, timeoutMS: persistTimeoutMS}
	if screening.Tier(result.Score) == screening.TierHigh {
		n.urgency = urgencyCritical
	}
	d.run(ctx, func(ctx context.Context) error { return d.notifyAlert(ctx, n) })
}

// ShowHelplines posts the helpline list as a critical alert.
func (d *Desktop) ShowHelplines(ctx context.Context, helplines []screening.Helpline) {
	if !d.cfg.Enable || len(helplines) == 0 {
		return
	}
	d.run(ctx, func(ctx context.Context) error {
		return d.notifyAlert(ctx, notification{
			summary:   d.messages.helplines,
			body:      helplinesBody(helplines),
			urgency:   urgencyCritical,
			timeoutMS: persistTimeoutMS,
		})
	})
}

// ShowError replaces the status line with an error message.
func (d *Desktop) ShowError(ctx context.Context, text string) {
	d.playCue(cueError)
	if !d.cfg.Enable {
		return
	}
	if strings.TrimSpace(text) == "" {
		text = d.messages.errorText
	}
	d.run(ctx, func(ctx context.Context) error {
		return d.notifyStatus(ctx, notification{summary: d.messages.title, body: text, urgency: urgencyCritical, timeoutMS: d.errorTimeout()})
	})
}

// Hide dismisses every notification this indicator owns.
func (d *Desktop) Hide(ctx context.Context) {
	if !d.cfg.Enable {
		return
	}
	d.run(ctx, d.dismissStatus)
	d.run(ctx, d.dismissAlert)
}

func (d *Desktop) errorTimeout() int {
	if d.cfg.ErrorTimeoutMS <= 0 {
		return defaultErrorMS
	}
	return d.cfg.ErrorTimeoutMS
}

func (d *Desktop) notifyStatus(ctx context.Context, n notification) error {
	return d.notify(ctx, &d.statusID, n)
}

func (d *Desktop) notifyAlert(ctx context.Context, n notification) error {
	return d.notify(ctx, &d.alertID, n)
}

// notify sends n replacing the notification stored in slot.
func (d *Desktop) notify(ctx context.Context, slot *uint32, n notification) error {
	d.mu.Lock()
	n.replaceID = *slot
	d.mu.Unlock()

	n.appName = strings.TrimSpace(d.cfg.DesktopAppName)
	if n.appName == "" {
		n.appName = "mindwell"
	}

	id, err := desktopNotify(ctx, n)
	if err != nil {
		return err
	}

	d.mu.Lock()
	*slot = id
	d.mu.Unlock()
	return nil
}

func (d *Desktop) dismissStatus(ctx context.Context) error {
	return d.dismiss(ctx, &d.statusID)
}

func (d *Desktop) dismissAlert(ctx context.Context) error {
	return d.dismiss(ctx, &d.alertID)
}

func (d *Desktop) dismiss(ctx context.Context, slot *uint32) error {
	d.mu.Lock()
	id := *slot
	*slot = 0
	d.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (d *Desktop) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	if err := fn(runCtx); err != nil {
		d.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (d *Desktop) playCue(kind cueKind) {
	if !d.cfg.SoundEnable {
		return
	}
	go func() {
		d.soundMu.Lock()
		defer d.soundMu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), cueTimeout)
		defer cancel()
		if err := emitCue(ctx, kind, d.cfg); err != nil {
			d.log("indicator audio cue failed", err)
		}
	}()
}

// log emits debug-only indicator failures to the runtime logger.
func (d *Desktop) log(message string, err error) {
	if d.logger == nil || err == nil {
		return
	}
	d.logger.Debug(message, "error", err.Error())
}
