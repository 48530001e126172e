// Package session owns the voice screening session: its lifecycle phase, the
// published screening result, and the helpline panel.
//
// A process holds exactly one Controller. It is created by the owner at
// startup, shared by reference with the transport (through ToolHandlers and
// Events) and the IPC server, and lives until Run returns.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/mindwell/internal/fsm"
	"github.com/rbright/mindwell/internal/gateway"
	"github.com/rbright/mindwell/internal/ipc"
	"github.com/rbright/mindwell/internal/screening"
	"github.com/rbright/mindwell/internal/tools"
)

// DefaultSettleDelay masks the transport reporting ready before audio flows.
const DefaultSettleDelay = 500 * time.Millisecond

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowPhase(context.Context, fsm.Phase)
	ShowProcessing(context.Context, bool)
	ShowResult(context.Context, screening.Result)
	ShowHelplines(context.Context, []screening.Helpline)
	ShowError(context.Context, string)
	Hide(context.Context)
}

// noopIndicator preserves session flow when no indicator is wired.
type noopIndicator struct{}

func (noopIndicator) ShowPhase(context.Context, fsm.Phase)                {}
func (noopIndicator) ShowProcessing(context.Context, bool)                {}
func (noopIndicator) ShowResult(context.Context, screening.Result)        {}
func (noopIndicator) ShowHelplines(context.Context, []screening.Helpline) {}
func (noopIndicator) ShowError(context.Context, string)                   {}
func (noopIndicator) Hide(context.Context)                                {}

type unavailableGateway struct{}

func (unavailableGateway) SubmitScreeningReport(context.Context, string) (gateway.Analysis, error) {
	return gateway.Analysis{}, gateway.ErrBackendUnavailable
}

func (unavailableGateway) FetchHelplines(context.Context) ([]screening.Helpline, error) {
	return nil, gateway.ErrBackendUnavailable
}

// Config holds the session policy values.
type Config struct {
	AgentID     string
	SettleDelay time.Duration
}

// Dependencies are the collaborators a Controller drives. Nil fields fall back
// to inert implementations.
type Dependencies struct {
	Transport  Transport
	Microphone Microphone
	Gateway    tools.Gateway
	Indicator  Indicator
}

// Snapshot is the read-only presentation state of the session.
type Snapshot struct {
	Phase            fsm.Phase
	Result           *screening.Result
	Helplines        []screening.Helpline
	HelplinesVisible bool
	Processing       bool
	ConversationID   string
}

// Controller orchestrates session state transitions and side effects.
type Controller struct {
	logger    *slog.Logger
	cfg       Config
	transport Transport
	mic       Microphone
	indicator Indicator
	tools     ToolHandlers

	mu               sync.Mutex
	phase            fsm.Phase
	result           *screening.Result
	helplines        []screening.Helpline
	helplinesVisible bool
	processing       bool
	conversationID   string

	// epoch advances on every reset; tool results tagged with an older epoch
	// are dropped.
	epoch uint64
	// generation advances whenever a transport session is started or torn
	// down; callbacks and timers from an older generation are ignored.
	generation    uint64
	connecting    bool
	disconnecting bool
	connectCancel context.CancelFunc
	settle        *time.Timer
	stream        AudioStream

	prewarmOnce sync.Once
	quitOnce    sync.Once
	quit        chan struct{}
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(logger *slog.Logger, cfg Config, deps Dependencies) *Controller {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if deps.Transport == nil {
		deps.Transport = unavailableTransport{}
	}
	if deps.Microphone == nil {
		deps.Microphone = silentMicrophone{}
	}
	if deps.Gateway == nil {
		deps.Gateway = unavailableGateway{}
	}
	if deps.Indicator == nil {
		deps.Indicator = noopIndicator{}
	}

	c := &Controller{
		logger:    logger,
		cfg:       cfg,
		transport: deps.Transport,
		mic:       deps.Microphone,
		indicator: deps.Indicator,
		phase:     fsm.PhaseIdle,
		helplines: screening.DefaultHelplines(),
		quit:      make(chan struct{}),
	}
	c.tools = tools.NewDispatcher(deps.Gateway, c, logger)
	return c
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() fsm.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Snapshot returns a copy of the presentation state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Phase:            c.phase,
		Helplines:        screening.CloneHelplines(c.helplines),
		HelplinesVisible: c.helplinesVisible,
		Processing:       c.processing,
		ConversationID:   c.conversationID,
	}
	if c.result != nil {
		result := *c.result
		snap.Result = &result
	}
	return snap
}

// Tools exposes the handlers the transport is given at session start.
func (c *Controller) Tools() ToolHandlers {
	return c.tools
}

// Run owns the session until ctx is cancelled or a quit command arrives.
func (c *Controller) Run(ctx context.Context) error {
	c.prewarm(ctx)

	select {
	case <-ctx.Done():
	case <-c.quit:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Disconnect(shutdownCtx); err != nil {
		c.log(slog.LevelWarn, "session disconnect on shutdown failed", "error", err.Error())
	}
	c.indicator.Hide(shutdownCtx)
	return nil
}

// prewarm asks for microphone access once so the permission prompt happens
// before the first connect. Failures are logged only.
func (c *Controller) prewarm(ctx context.Context) {
	c.prewarmOnce.Do(func() {
		go func() {
			if err := c.mic.Prewarm(ctx); err != nil {
				c.log(slog.LevelWarn, "microphone prewarm failed", "error", err.Error())
				return
			}
			c.log(slog.LevelDebug, "microphone prewarmed")
		}()
	})
}

// Connect opens the microphone and starts a transport session.
func (c *Controller) Connect(ctx context.Context) error {
	if !agentConfigured(c.cfg.AgentID) {
		return c.reject(ctx, ErrConfiguration)
	}

	c.mu.Lock()
	if c.connecting {
		c.mu.Unlock()
		return c.reject(ctx, ErrConnectInFlight)
	}
	if _, err := fsm.Transition(c.phase, fsm.EventConnect); err != nil {
		c.mu.Unlock()
		return c.reject(ctx, err)
	}
	c.connecting = true
	connectCtx, cancel := context.WithCancel(ctx)
	c.connectCancel = cancel
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.connecting = false
		c.connectCancel = nil
		c.mu.Unlock()
	}()

	stream, err := c.mic.Open(connectCtx)
	if err != nil {
		if connectCtx.Err() != nil && ctx.Err() == nil {
			return errConnectAborted
		}
		return c.reject(ctx, fmt.Errorf("%w: %v", ErrPermissionDenied, err))
	}
	if connectCtx.Err() != nil {
		stream.Close()
		c.log(slog.LevelInfo, "session connect cancelled while opening microphone")
		return errConnectAborted
	}

	c.mu.Lock()
	next, err := fsm.Transition(c.phase, fsm.EventConnect)
	if err != nil {
		c.mu.Unlock()
		stream.Close()
		return c.reject(ctx, err)
	}
	c.phase = next
	c.generation++
	gen := c.generation
	c.stream = stream
	c.conversationID = ""
	c.mu.Unlock()
	c.indicator.ShowPhase(ctx, fsm.PhaseConnecting)
	c.log(slog.LevelInfo, "session connecting")

	startErr := c.transport.StartSession(connectCtx, SessionConfig{
		AgentID: strings.TrimSpace(c.cfg.AgentID),
		Audio:   stream,
		Tools:   c.tools,
		Events:  c.events(gen),
	})

	c.mu.Lock()
	if gen != c.generation || c.phase != fsm.PhaseConnecting {
		c.mu.Unlock()
		if startErr == nil {
			c.endOrphan(gen)
		}
		c.log(slog.LevelInfo, "session connect superseded", "phase", string(c.Phase()))
		return errConnectAborted
	}
	if startErr != nil {
		c.phase, _ = fsm.Transition(c.phase, fsm.EventFail)
		c.generation++
		owned := c.takeStreamLocked()
		c.mu.Unlock()
		if owned != nil {
			owned.Close()
		}
		c.indicator.ShowPhase(ctx, fsm.PhaseFailed)
		return c.reject(ctx, fmt.Errorf("%w: %v", ErrTransport, startErr))
	}
	c.phase, _ = fsm.Transition(c.phase, fsm.EventConnected)
	c.settle = time.AfterFunc(c.cfg.SettleDelay, func() { c.settled(gen) })
	c.mu.Unlock()

	c.indicator.ShowPhase(ctx, fsm.PhaseSyncing)
	c.log(slog.LevelInfo, "session connected", "settle_ms", c.cfg.SettleDelay.Milliseconds())
	return nil
}

// Disconnect ends the transport session. A connect still opening the
// microphone is cancelled instead. Otherwise it is a no-op unless connected.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if !c.phase.Connected() && c.connecting && c.connectCancel != nil {
		c.connectCancel()
		c.mu.Unlock()
		c.log(slog.LevelInfo, "pending connect cancelled")
		return nil
	}
	if !c.phase.Connected() || c.disconnecting {
		c.mu.Unlock()
		return nil
	}
	c.disconnecting = true
	c.generation++
	if c.connectCancel != nil {
		c.connectCancel()
	}
	c.stopSettleLocked()
	stream := c.takeStreamLocked()
	c.mu.Unlock()

	endErr := c.transport.EndSession(ctx)
	if stream != nil {
		stream.Close()
	}

	c.mu.Lock()
	c.disconnecting = false
	event := fsm.EventDisconnect
	if endErr != nil {
		event = fsm.EventFail
	}
	next, err := fsm.Transition(c.phase, event)
	if err == nil {
		c.phase = next
	}
	phase := c.phase
	c.mu.Unlock()

	c.indicator.ShowPhase(ctx, phase)
	if endErr != nil {
		return c.reject(ctx, fmt.Errorf("%w: %v", ErrTransport, endErr))
	}
	c.log(slog.LevelInfo, "session disconnected")
	return nil
}

// Reset starts a new session: clears the result and restores the default
// helplines. It never closes an open transport session.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.phase.Connected() {
		c.mu.Unlock()
		return c.reject(ctx, ErrStillConnected)
	}
	if c.connecting {
		c.mu.Unlock()
		return c.reject(ctx, ErrConnectInFlight)
	}
	next, err := fsm.Transition(c.phase, fsm.EventReset)
	if err != nil {
		c.mu.Unlock()
		return c.reject(ctx, err)
	}
	c.phase = next
	c.result = nil
	c.helplinesVisible = false
	c.helplines = screening.DefaultHelplines()
	c.processing = false
	c.conversationID = ""
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	c.indicator.Hide(ctx)
	c.indicator.ShowPhase(ctx, fsm.PhaseIdle)
	c.log(slog.LevelInfo, "session reset", "epoch", epoch)
	return nil
}

// Toggle connects when idle or failed and disconnects when connected.
func (c *Controller) Toggle(ctx context.Context) error {
	if c.Phase().Connected() {
		return c.Disconnect(ctx)
	}
	return c.Connect(ctx)
}

// Handle serves IPC commands for the active owner session.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return c.respond("status", nil)
	case ipc.CommandSnapshot:
		resp := c.respond("snapshot", nil)
		resp.Snapshot = c.Snapshot().IPC()
		return resp
	case ipc.CommandConnect:
		return c.respond("connected", c.Connect(ctx))
	case ipc.CommandDisconnect:
		return c.respond("disconnected", c.Disconnect(ctx))
	case ipc.CommandToggle:
		return c.respond("toggled", c.Toggle(ctx))
	case ipc.CommandReset:
		return c.respond("reset", c.Reset(ctx))
	case ipc.CommandQuit:
		c.quitOnce.Do(func() { close(c.quit) })
		return c.respond("quitting", nil)
	default:
		return ipc.Failure(string(c.Phase()), fmt.Errorf("unknown command: %s", req.Command))
	}
}

func (c *Controller) respond(message string, err error) ipc.Response {
	if err != nil {
		return ipc.Failure(string(c.Phase()), err)
	}
	return ipc.Response{OK: true, Phase: string(c.Phase()), Message: message}
}

// IPC converts the snapshot to its wire form.
func (s Snapshot) IPC() *ipc.Snapshot {
	return &ipc.Snapshot{
		Phase:            string(s.Phase),
		Result:           s.Result,
		Helplines:        s.Helplines,
		HelplinesVisible: s.HelplinesVisible,
		Processing:       s.Processing,
		ConversationID:   s.ConversationID,
	}
}

// events binds transport callbacks to one connection generation.
func (c *Controller) events(gen uint64) Events {
	return Events{
		OnConnect: func(conversationID string) {
			c.mu.Lock()
			if gen == c.generation {
				c.conversationID = conversationID
			}
			c.mu.Unlock()
			c.log(slog.LevelInfo, "conversation started", "conversation_id", conversationID)
		},
		OnDisconnect: func(err error) {
			c.transportDisconnected(gen, err)
		},
		OnModeChange: func(mode Mode) {
			c.modeChanged(gen, mode)
		},
		OnError: func(err error) {
			if err == nil {
				return
			}
			c.log(slog.LevelError, "voice transport error", "error", err.Error())
			c.indicator.ShowError(context.Background(), noticeText(fmt.Errorf("%w: %v", ErrTransport, err)))
		},
	}
}

func (c *Controller) transportDisconnected(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.generation || c.disconnecting || !c.phase.Connected() {
		c.mu.Unlock()
		return
	}
	c.generation++
	if c.connectCancel != nil {
		c.connectCancel()
	}
	c.stopSettleLocked()
	stream := c.takeStreamLocked()
	c.phase, _ = fsm.Transition(c.phase, fsm.EventDisconnect)
	c.mu.Unlock()

	if stream != nil {
		stream.Close()
	}
	ctx := context.Background()
	c.indicator.ShowPhase(ctx, fsm.PhaseDisconnected)
	if cause != nil {
		c.log(slog.LevelWarn, "voice transport disconnected", "error", cause.Error())
		return
	}
	c.log(slog.LevelInfo, "voice transport disconnected")
}

func (c *Controller) modeChanged(gen uint64, mode Mode) {
	event := fsm.EventAgentListening
	if mode == ModeSpeaking {
		event = fsm.EventAgentSpeaking
	}

	c.mu.Lock()
	if gen != c.generation || (c.phase != fsm.PhaseListening && c.phase != fsm.PhaseSpeaking) {
		c.mu.Unlock()
		return
	}
	next, err := fsm.Transition(c.phase, event)
	if err != nil || next == c.phase {
		c.mu.Unlock()
		return
	}
	c.phase = next
	c.mu.Unlock()
	c.indicator.ShowPhase(context.Background(), next)
}

func (c *Controller) settled(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.phase != fsm.PhaseSyncing {
		c.mu.Unlock()
		return
	}
	c.settle = nil
	c.phase, _ = fsm.Transition(c.phase, fsm.EventSettled)
	c.mu.Unlock()
	c.indicator.ShowPhase(context.Background(), fsm.PhaseListening)
	c.log(slog.LevelDebug, "session settled")
}

// endOrphan ends a transport session that finished starting after the
// controller had already moved on.
func (c *Controller) endOrphan(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.transport.EndSession(ctx); err != nil {
		c.log(slog.LevelWarn, "end superseded session failed", "generation", gen, "error", err.Error())
	}
}

func (c *Controller) stopSettleLocked() {
	if c.settle != nil {
		c.settle.Stop()
		c.settle = nil
	}
}

func (c *Controller) takeStreamLocked() AudioStream {
	stream := c.stream
	c.stream = nil
	return stream
}

// reject surfaces a blocking notice and returns err unchanged.
func (c *Controller) reject(ctx context.Context, err error) error {
	c.log(slog.LevelWarn, "session request rejected", "phase", string(c.Phase()), "error", err.Error())
	c.indicator.ShowError(ctx, noticeText(err))
	return err
}

// noticeText renders a user-facing message for a rejected action.
func noticeText(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "Agent ID missing. Set agent_id in the mindwell config."
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone unavailable. Check input device permissions."
	case errors.Is(err, ErrConnectInFlight):
		return "Already connecting."
	case errors.Is(err, ErrStillConnected):
		return "Disconnect before starting a new session."
	case errors.Is(err, ErrTransport):
		return "Voice connection failed. Try again."
	default:
		return err.Error()
	}
}

func agentConfigured(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && id != placeholderAgentID
}

func (c *Controller) log(level slog.Level, msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Log(context.Background(), level, msg, args...)
}
