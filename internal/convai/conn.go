// Package convai is a client for the ElevenLabs Conversational AI websocket.
package convai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultURL       = "wss://api.elevenlabs.io/v1/convai/conversation"
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	eventBacklog     = 256
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("convai connection closed")

// Config addresses one agent.
type Config struct {
	URL     string
	AgentID string
	APIKey  string
}

// Metadata is negotiated when the conversation starts.
type Metadata struct {
	ConversationID    string
	AgentOutputFormat string
	UserInputFormat   string
}

type EventKind string

const (
	EventAudio          EventKind = "audio"
	EventAgentResponse  EventKind = "agent_response"
	EventUserTranscript EventKind = "user_transcript"
	EventInterruption   EventKind = "interruption"
	EventToolCall       EventKind = "tool_call"
)

// ToolCall is an agent request to run a client tool. Parameters are untrusted.
type ToolCall struct {
	Name       string
	ID         string
	Parameters map[string]json.RawMessage
}

// Event is one decoded server message.
type Event struct {
	Kind     EventKind
	Audio    []byte
	Text     string
	ToolCall ToolCall
}

// Conn is one live conversation. Pings are answered internally.
type Conn struct {
	ws       *websocket.Conn
	metadata Metadata

	writeMu sync.Mutex
	events  chan Event
	closed  chan struct{}
	once    sync.Once

	errMu sync.Mutex
	err   error
}

// Dial connects, sends the initiation message, and waits for the
// conversation metadata.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	wsURL, err := buildURL(cfg.URL, cfg.AgentID)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		header.Set("xi-api-key", key)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	ws, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial convai: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial convai: %w", err)
	}

	c := &Conn{
		ws:     ws,
		events: make(chan Event, eventBacklog),
		closed: make(chan struct{}),
	}
	if err := c.writeJSON(initiationClientData{Type: typeInitiationClientData}); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("send conversation initiation: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { _ = ws.SetReadDeadline(time.Now()) })
	meta, err := c.awaitMetadata()
	stop()
	if err != nil {
		_ = ws.Close()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("await conversation metadata: %w", ctx.Err())
		}
		return nil, fmt.Errorf("await conversation metadata: %w", err)
	}
	_ = ws.SetReadDeadline(time.Time{})
	c.metadata = meta

	go c.readLoop()
	return c, nil
}

// Metadata returns the negotiated conversation metadata.
func (c *Conn) Metadata() Metadata {
	return c.metadata
}

// Events is closed when the connection ends; Err then reports why.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// Done is closed once Close has been called.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// Err returns the read failure that ended the connection, if any.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// SendAudio streams one chunk of 16 kHz mono s16le microphone audio.
func (c *Conn) SendAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	return c.writeJSON(userAudioChunk{UserAudioChunk: base64.StdEncoding.EncodeToString(pcm)})
}

// SendToolResult answers a client tool call.
func (c *Conn) SendToolResult(callID string, result string, isError bool) error {
	return c.writeJSON(clientToolResult{
		Type:       typeClientToolResult,
		ToolCallID: callID,
		Result:     result,
		IsError:    isError,
	})
}

// Close sends a normal close frame and tears down the socket.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) awaitMetadata() (Metadata, error) {
	for {
		msg, err := c.next()
		if err != nil {
			return Metadata{}, err
		}
		switch msg.Type {
		case typeInitiationMetadata:
			if msg.InitiationMetadata == nil {
				return Metadata{}, errors.New("initiation metadata missing event body")
			}
			return Metadata{
				ConversationID:    msg.InitiationMetadata.ConversationID,
				AgentOutputFormat: msg.InitiationMetadata.AgentOutputFormat,
				UserInputFormat:   msg.InitiationMetadata.UserInputFormat,
			}, nil
		case typePing:
			c.answerPing(msg)
		}
	}
}

func (c *Conn) readLoop() {
	defer close(c.events)
	for {
		msg, err := c.next()
		if err != nil {
			c.setErr(err)
			return
		}

		event, ok := c.decode(msg)
		if !ok {
			continue
		}
		select {
		case c.events <- event:
		case <-c.closed:
			return
		}
	}
}

// decode maps a server message to an Event; pings are answered here.
func (c *Conn) decode(msg serverMessage) (Event, bool) {
	switch msg.Type {
	case typePing:
		c.answerPing(msg)
	case typeAudio:
		if msg.AudioEvent == nil {
			return Event{}, false
		}
		audio, err := base64.StdEncoding.DecodeString(msg.AudioEvent.AudioBase64)
		if err != nil || len(audio) == 0 {
			return Event{}, false
		}
		return Event{Kind: EventAudio, Audio: audio}, true
	case typeAgentResponse:
		if msg.AgentResponseEvent != nil {
			return Event{Kind: EventAgentResponse, Text: msg.AgentResponseEvent.AgentResponse}, true
		}
	case typeUserTranscript:
		if msg.UserTranscriptionEvent != nil {
			return Event{Kind: EventUserTranscript, Text: msg.UserTranscriptionEvent.UserTranscript}, true
		}
	case typeInterruption:
		return Event{Kind: EventInterruption}, true
	case typeClientToolCall:
		if msg.ClientToolCall == nil {
			return Event{}, false
		}
		return Event{Kind: EventToolCall, ToolCall: ToolCall{
			Name:       msg.ClientToolCall.ToolName,
			ID:         msg.ClientToolCall.ToolCallID,
			Parameters: msg.ClientToolCall.Parameters,
		}}, true
	}
	return Event{}, false
}

func (c *Conn) answerPing(msg serverMessage) {
	if msg.PingEvent == nil {
		return
	}
	_ = c.writeJSON(pong{Type: typePong, EventID: msg.PingEvent.EventID})
}

// next returns the next well-formed server message, skipping undecodable frames.
func (c *Conn) next() (serverMessage, error) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return serverMessage{}, err
		}
		var msg serverMessage
		if json.Unmarshal(data, &msg) == nil {
			return msg, nil
		}
	}
}

func (c *Conn) writeJSON(payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(payload)
}

func (c *Conn) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err != nil {
		return
	}
	select {
	case <-c.closed:
		return
	default:
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
		return
	}
	c.err = err
}

func buildURL(base string, agentID string) (string, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return "", errors.New("convai agent id is required")
	}
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid convai url: %w", err)
	}
	switch u.Scheme {
	case "wss", "ws":
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("invalid convai url scheme %q", u.Scheme)
	}
	q := u.Query()
	q.Set("agent_id", agentID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
