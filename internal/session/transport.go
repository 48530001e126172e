package session

import (
	"context"
	"errors"
)

var (
	// ErrConfiguration indicates no usable agent identifier is configured.
	ErrConfiguration = errors.New("no agent id configured")
	// ErrPermissionDenied indicates the microphone could not be opened.
	ErrPermissionDenied = errors.New("microphone access denied")
	// ErrTransport indicates the voice transport failed to start or end a session.
	ErrTransport = errors.New("voice transport failure")
	// ErrConnectInFlight rejects a connect while another connect is still running.
	ErrConnectInFlight = errors.New("connect already in progress")
	// ErrStillConnected rejects a reset while a transport session is open.
	ErrStillConnected = errors.New("session is still connected; disconnect first")

	errConnectAborted = errors.New("connect aborted by disconnect")
)

// placeholderAgentID is the value shipped in sample configuration files.
const placeholderAgentID = "your_agent_id_here"

// Mode is the agent's conversational mode as reported by the transport.
type Mode string

const (
	ModeSpeaking  Mode = "speaking"
	ModeListening Mode = "listening"
)

// ToolHandlers is the capability the transport is given at session start.
// Both operations always return text to speak.
type ToolHandlers interface {
	SubmitScreeningReport(ctx context.Context, summary string) string
	GetHelplines(ctx context.Context) string
}

// Events are the lifecycle callbacks a transport reports into the session.
// Any field may be nil.
type Events struct {
	OnConnect    func(conversationID string)
	OnDisconnect func(err error)
	OnModeChange func(Mode)
	OnError      func(error)
}

// SessionConfig is everything a transport needs to start one conversation.
type SessionConfig struct {
	AgentID string
	Audio   AudioStream
	Tools   ToolHandlers
	Events  Events
}

// Transport is the voice transport surface the session controls.
type Transport interface {
	StartSession(context.Context, SessionConfig) error
	EndSession(context.Context) error
}

// AudioStream is an open microphone capture.
type AudioStream interface {
	Chunks() <-chan []byte
	Close()
}

// Microphone acquires capture streams.
type Microphone interface {
	Prewarm(context.Context) error
	Open(context.Context) (AudioStream, error)
}

type unavailableTransport struct{}

func (unavailableTransport) StartSession(context.Context, SessionConfig) error {
	return errors.New("voice transport not configured")
}

func (unavailableTransport) EndSession(context.Context) error { return nil }

type silentMicrophone struct{}

func (silentMicrophone) Prewarm(context.Context) error { return nil }

func (silentMicrophone) Open(context.Context) (AudioStream, error) {
	return newSilentStream(), nil
}

type silentStream struct{ ch chan []byte }

func newSilentStream() silentStream {
	ch := make(chan []byte)
	close(ch)
	return silentStream{ch: ch}
}

func (s silentStream) Chunks() <-chan []byte { return s.ch }
func (silentStream) Close()                  {}
