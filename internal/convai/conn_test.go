package convai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type serverScript func(conn *websocket.Conn, r *http.Request)

func newServer(t *testing.T, script serverScript) string {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn, r)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/convai/conversation"
}

func readClientMessage(conn *websocket.Conn) (map[string]any, error) {
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	return out, json.Unmarshal(data, &out)
}

func sendMetadata(conn *websocket.Conn, conversationID string) error {
	return conn.WriteJSON(map[string]any{
		"type": "conversation_initiation_metadata",
		"conversation_initiation_metadata_event": map[string]any{
			"conversation_id":           conversationID,
			"agent_output_audio_format": "pcm_16000",
			"user_input_audio_format":   "pcm_16000",
		},
	})
}

func TestDialHandshakeAndEventStream(t *testing.T) {
	type observed struct {
		agentID string
		apiKey  string
		msgs    []map[string]any
	}
	seen := make(chan observed, 1)

	url := newServer(t, func(conn *websocket.Conn, r *http.Request) {
		obs := observed{agentID: r.URL.Query().Get("agent_id"), apiKey: r.Header.Get("xi-api-key")}
		defer func() { seen <- obs }()

		init, err := readClientMessage(conn)
		if err != nil {
			return
		}
		obs.msgs = append(obs.msgs, init)

		_ = conn.WriteJSON(map[string]any{"type": "ping", "ping_event": map[string]any{"event_id": 7, "ping_ms": 12}})
		_ = sendMetadata(conn, "conv_42")

		pong, err := readClientMessage(conn)
		if err != nil {
			return
		}
		obs.msgs = append(obs.msgs, pong)

		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteJSON(map[string]any{"type": "audio", "audio_event": map[string]any{
			"audio_base_64": base64.StdEncoding.EncodeToString([]byte{1, 0, 2, 0}),
			"event_id":      1,
		}})
		_ = conn.WriteJSON(map[string]any{"type": "agent_response", "agent_response_event": map[string]any{"agent_response": "Hello there."}})
		_ = conn.WriteJSON(map[string]any{"type": "user_transcript", "user_transcription_event": map[string]any{"user_transcript": "I feel low"}})
		_ = conn.WriteJSON(map[string]any{"type": "interruption", "interruption_event": map[string]any{"event_id": 2}})
		_ = conn.WriteJSON(map[string]any{"type": "client_tool_call", "client_tool_call": map[string]any{
			"tool_name":    "submit_screening_report",
			"tool_call_id": "call_1",
			"parameters":   map[string]any{"summary": "low mood"},
		}})

		for i := 0; i < 2; i++ {
			msg, err := readClientMessage(conn)
			if err != nil {
				return
			}
			obs.msgs = append(obs.msgs, msg)
		}
		_, _, _ = conn.ReadMessage()
	})

	conn, err := Dial(context.Background(), Config{URL: url, AgentID: "agent_1", APIKey: "xi-test"})
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, Metadata{ConversationID: "conv_42", AgentOutputFormat: "pcm_16000", UserInputFormat: "pcm_16000"}, conn.Metadata())

	var events []Event
	for len(events) < 5 {
		select {
		case ev, ok := <-conn.Events():
			require.True(t, ok)
			events = append(events, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d events", len(events))
		}
	}
	require.Equal(t, Event{Kind: EventAudio, Audio: []byte{1, 0, 2, 0}}, events[0])
	require.Equal(t, Event{Kind: EventAgentResponse, Text: "Hello there."}, events[1])
	require.Equal(t, Event{Kind: EventUserTranscript, Text: "I feel low"}, events[2])
	require.Equal(t, EventInterruption, events[3].Kind)
	require.Equal(t, EventToolCall, events[4].Kind)
	require.Equal(t, "submit_screening_report", events[4].ToolCall.Name)
	require.Equal(t, "call_1", events[4].ToolCall.ID)
	require.JSONEq(t, `"low mood"`, string(events[4].ToolCall.Parameters["summary"]))

	require.NoError(t, conn.SendAudio([]byte{9, 9}))
	require.NoError(t, conn.SendToolResult("call_1", "Noted.", false))
	require.NoError(t, conn.Close())

	obs := <-seen
	require.Equal(t, "agent_1", obs.agentID)
	require.Equal(t, "xi-test", obs.apiKey)
	require.Len(t, obs.msgs, 4)
	require.Equal(t, "conversation_initiation_client_data", obs.msgs[0]["type"])
	require.Equal(t, map[string]any{"type": "pong", "event_id": float64(7)}, obs.msgs[1])
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte{9, 9}), obs.msgs[2]["user_audio_chunk"])
	require.Equal(t, map[string]any{
		"type":         "client_tool_result",
		"tool_call_id": "call_1",
		"result":       "Noted.",
		"is_error":     false,
	}, obs.msgs[3])
}

func TestDialFailsWhenServerClosesBeforeMetadata(t *testing.T) {
	url := newServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_, _ = readClientMessage(conn)
	})

	_, err := Dial(context.Background(), Config{URL: url, AgentID: "agent_1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "await conversation metadata")
}

func TestDialHonorsContextWhileAwaitingMetadata(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	url := newServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_, _ = readClientMessage(conn)
		<-release
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Dial(ctx, Config{URL: url, AgentID: "agent_1"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestEventsCloseWithErrorOnAbnormalClose(t *testing.T) {
	url := newServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_, _ = readClientMessage(conn)
		_ = sendMetadata(conn, "conv_1")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "agent crashed"))
	})

	conn, err := Dial(context.Background(), Config{URL: url, AgentID: "agent_1"})
	require.NoError(t, err)
	defer conn.Close()

	select {
	case _, ok := <-conn.Events():
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed")
	}
	require.Error(t, conn.Err())
	require.Contains(t, conn.Err().Error(), "agent crashed")
}

func TestWritesAfterCloseFail(t *testing.T) {
	url := newServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_, _ = readClientMessage(conn)
		_ = sendMetadata(conn, "conv_1")
		_, _, _ = conn.ReadMessage()
	})

	conn, err := Dial(context.Background(), Config{URL: url, AgentID: "agent_1"})
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	require.ErrorIs(t, conn.SendAudio([]byte{1, 2}), ErrClosed)
	require.NoError(t, conn.SendAudio(nil))
	require.Nil(t, conn.Err())
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		agentID string
		want    string
		wantErr string
	}{
		{name: "default", agentID: "abc", want: DefaultURL + "?agent_id=abc"},
		{name: "https upgraded", base: "https://example.test/convai", agentID: "abc", want: "wss://example.test/convai?agent_id=abc"},
		{name: "http upgraded", base: "http://127.0.0.1:9/x", agentID: "a b", want: "ws://127.0.0.1:9/x?agent_id=a+b"},
		{name: "existing query kept", base: "wss://example.test/c?region=eu", agentID: "abc", want: "wss://example.test/c?agent_id=abc&region=eu"},
		{name: "missing agent", base: DefaultURL, wantErr: "agent id is required"},
		{name: "bad scheme", base: "ftp://example.test", agentID: "abc", wantErr: "invalid convai url scheme"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := buildURL(tc.base, tc.agentID)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
