// Package pipeline runs one voice conversation: microphone audio up to the
// agent, agent speech out to the speakers, and agent tool calls into the
// session's tool handlers.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/mindwell/internal/audio"
	"github.com/rbright/mindwell/internal/convai"
	"github.com/rbright/mindwell/internal/session"
	"github.com/rbright/mindwell/internal/tools"
)

const (
	modePollInterval = 50 * time.Millisecond
	// speakingHold keeps the agent "speaking" briefly after the last audio
	// frame so gaps between frames do not flap the mode.
	speakingHold = 300 * time.Millisecond
)

var ErrSessionActive = errors.New("conversation already active")

// Link is the live agent connection.
type Link interface {
	Metadata() convai.Metadata
	Events() <-chan convai.Event
	Err() error
	SendAudio([]byte) error
	SendToolResult(callID string, result string, isError bool) error
	Close() error
}

// Speaker plays agent audio.
type Speaker interface {
	Write([]byte)
	Interrupt()
	Pending() time.Duration
	Close()
}

// Options configures the agent endpoint and debug artifacts.
type Options struct {
	URL       string
	APIKey    string
	AudioDump bool
}

// Conversation implements session.Transport over the ConvAI websocket.
type Conversation struct {
	opts   Options
	logger *slog.Logger

	dial        func(context.Context, convai.Config) (Link, error)
	openSpeaker func() (Speaker, error)

	mu     sync.Mutex
	active *run
}

func NewConversation(opts Options, logger *slog.Logger) *Conversation {
	return &Conversation{
		opts:   opts,
		logger: logger,
		dial: func(ctx context.Context, cfg convai.Config) (Link, error) {
			return convai.Dial(ctx, cfg)
		},
		openSpeaker: func() (Speaker, error) {
			return audio.StartPlayer()
		},
	}
}

// run is the state of one started conversation.
type run struct {
	link    Link
	speaker Speaker
	tools   session.ToolHandlers
	events  session.Events
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	ending    bool
	lastAudio time.Time
	speaking  bool
	userPCM   []byte
	agentPCM  []byte
	dump      bool
}

// StartSession dials the agent and starts streaming. It returns once the
// conversation metadata has been received.
func (c *Conversation) StartSession(ctx context.Context, cfg session.SessionConfig) error {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.mu.Unlock()

	link, err := c.dial(ctx, convai.Config{URL: c.opts.URL, AgentID: cfg.AgentID, APIKey: c.opts.APIKey})
	if err != nil {
		return err
	}
	speaker, err := c.openSpeaker()
	if err != nil {
		_ = link.Close()
		return fmt.Errorf("open agent playback: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		link:    link,
		speaker: speaker,
		tools:   cfg.Tools,
		events:  cfg.Events,
		logger:  c.logger,
		cancel:  cancel,
		dump:    c.opts.AudioDump,
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		cancel()
		speaker.Close()
		_ = link.Close()
		return ErrSessionActive
	}
	c.active = r
	c.mu.Unlock()

	r.wg.Add(3)
	go r.pumpMicrophone(runCtx, cfg.Audio)
	go r.watchMode(runCtx)
	go r.consume(func() { c.release(r) })

	meta := link.Metadata()
	c.log(slog.LevelInfo, "conversation started",
		"conversation_id", meta.ConversationID,
		"agent_output_format", meta.AgentOutputFormat,
	)
	if r.events.OnConnect != nil {
		r.events.OnConnect(meta.ConversationID)
	}
	return nil
}

// EndSession closes the active conversation. It is a no-op when none is active.
func (c *Conversation) EndSession(ctx context.Context) error {
	c.mu.Lock()
	r := c.active
	c.active = nil
	c.mu.Unlock()
	if r == nil {
		return nil
	}

	r.mu.Lock()
	r.ending = true
	r.mu.Unlock()

	closeErr := r.link.Close()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("end conversation: %w", ctx.Err())
	}
	r.speaker.Close()
	r.writeDumps()
	return closeErr
}

// release drops r when the remote side ended the conversation.
func (c *Conversation) release(r *run) {
	c.mu.Lock()
	if c.active == r {
		c.active = nil
	}
	c.mu.Unlock()
}

// consume dispatches server events until the link closes.
func (r *run) consume(release func()) {
	defer r.wg.Done()
	for event := range r.link.Events() {
		switch event.Kind {
		case convai.EventAudio:
			r.speaker.Write(event.Audio)
			r.mu.Lock()
			r.lastAudio = time.Now()
			if r.dump {
				r.agentPCM = append(r.agentPCM, event.Audio...)
			}
			r.mu.Unlock()
		case convai.EventInterruption:
			r.speaker.Interrupt()
			r.mu.Lock()
			r.lastAudio = time.Time{}
			r.mu.Unlock()
		case convai.EventAgentResponse:
			r.log(slog.LevelDebug, "agent response", "text", event.Text)
		case convai.EventUserTranscript:
			r.log(slog.LevelDebug, "user transcript", "text", event.Text)
		case convai.EventToolCall:
			// Tool calls are not awaited on teardown; they run to completion.
			go r.dispatch(event.ToolCall)
		}
	}

	r.mu.Lock()
	ending := r.ending
	r.mu.Unlock()
	if ending {
		return
	}

	// The agent side hung up.
	release()
	r.cancel()
	r.speaker.Close()
	r.writeDumps()
	if r.events.OnDisconnect != nil {
		r.events.OnDisconnect(r.link.Err())
	}
}

// dispatch runs one tool call on a context that outlives the conversation.
func (r *run) dispatch(call convai.ToolCall) {
	ctx := context.Background()
	started := time.Now()

	var (
		result  string
		isError bool
	)
	switch {
	case r.tools == nil:
		result, isError = "tools are not available", true
	case call.Name == tools.NameSubmitScreeningReport:
		result = r.tools.SubmitScreeningReport(ctx, stringParam(call.Parameters, "summary"))
	case call.Name == tools.NameGetHelplines:
		result = r.tools.GetHelplines(ctx)
	default:
		result, isError = fmt.Sprintf("unknown tool %q", call.Name), true
	}

	r.log(slog.LevelInfo, "tool call answered",
		"tool", call.Name,
		"tool_call_id", call.ID,
		"is_error", isError,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	if err := r.link.SendToolResult(call.ID, result, isError); err != nil {
		r.log(slog.LevelWarn, "tool result undeliverable", "tool_call_id", call.ID, "error", err.Error())
	}
}

// pumpMicrophone forwards capture chunks to the agent.
func (r *run) pumpMicrophone(ctx context.Context, stream session.AudioStream) {
	defer r.wg.Done()
	if stream == nil {
		return
	}
	chunks := stream.Chunks()
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			if r.dump {
				r.mu.Lock()
				r.userPCM = append(r.userPCM, chunk...)
				r.mu.Unlock()
			}
			if err := r.link.SendAudio(chunk); err != nil {
				if ctx.Err() == nil && r.events.OnError != nil {
					r.events.OnError(fmt.Errorf("send microphone audio: %w", err))
				}
				return
			}
		}
	}
}

// watchMode derives speaking/listening from queued and recently received
// agent audio, reporting changes only.
func (r *run) watchMode(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(modePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.mu.Lock()
			speaking := r.speaker.Pending() > 0 || (!r.lastAudio.IsZero() && now.Sub(r.lastAudio) < speakingHold)
			changed := speaking != r.speaking
			r.speaking = speaking
			r.mu.Unlock()

			if !changed || r.events.OnModeChange == nil {
				continue
			}
			mode := session.ModeListening
			if speaking {
				mode = session.ModeSpeaking
			}
			r.events.OnModeChange(mode)
		}
	}
}

func (r *run) writeDumps() {
	if !r.dump {
		return
	}
	r.mu.Lock()
	user, agent := r.userPCM, r.agentPCM
	r.userPCM, r.agentPCM = nil, nil
	r.mu.Unlock()

	for _, rec := range []struct {
		prefix string
		pcm    []byte
	}{{"user", user}, {"agent", agent}} {
		if len(rec.pcm) == 0 {
			continue
		}
		path, err := dumpWAV(rec.prefix, rec.pcm, audio.SampleRate)
		if err != nil {
			r.log(slog.LevelWarn, "unable to write debug audio dump", "error", err.Error())
			continue
		}
		r.log(slog.LevelDebug, "debug audio dump written", "path", path)
	}
}

// stringParam decodes a string argument; anything else reads as empty.
func stringParam(params map[string]json.RawMessage, name string) string {
	raw, ok := params[name]
	if !ok {
		return ""
	}
	var out string
	if err := json.Unmarshal(raw, &out); err != nil {
		return ""
	}
	return out
}

func (r *run) log(level slog.Level, msg string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Log(context.Background(), level, msg, args...)
}

func (c *Conversation) log(level slog.Level, msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Log(context.Background(), level, msg, args...)
}

var _ session.Transport = (*Conversation)(nil)
