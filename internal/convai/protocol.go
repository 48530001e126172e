package convai

import "encoding/json"

// Server message types.
const (
	typeInitiationMetadata = "conversation_initiation_metadata"
	typePing               = "ping"
	typeAudio              = "audio"
	typeAgentResponse      = "agent_response"
	typeUserTranscript     = "user_transcript"
	typeInterruption       = "interruption"
	typeClientToolCall     = "client_tool_call"
)

// Client message types.
const (
	typeInitiationClientData = "conversation_initiation_client_data"
	typePong                 = "pong"
	typeClientToolResult     = "client_tool_result"
)

type serverMessage struct {
	Type string `json:"type"`

	InitiationMetadata *struct {
		ConversationID    string `json:"conversation_id"`
		AgentOutputFormat string `json:"agent_output_audio_format"`
		UserInputFormat   string `json:"user_input_audio_format"`
	} `json:"conversation_initiation_metadata_event,omitempty"`

	PingEvent *struct {
		EventID int `json:"event_id"`
		PingMS  int `json:"ping_ms"`
	} `json:"ping_event,omitempty"`

	AudioEvent *struct {
		AudioBase64 string `json:"audio_base_64"`
		EventID     int    `json:"event_id"`
	} `json:"audio_event,omitempty"`

	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event,omitempty"`

	UserTranscriptionEvent *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event,omitempty"`

	InterruptionEvent *struct {
		EventID int `json:"event_id"`
	} `json:"interruption_event,omitempty"`

	ClientToolCall *struct {
		ToolName   string                     `json:"tool_name"`
		ToolCallID string                     `json:"tool_call_id"`
		Parameters map[string]json.RawMessage `json:"parameters"`
	} `json:"client_tool_call,omitempty"`
}

type initiationClientData struct {
	Type string `json:"type"`
}

type pong struct {
	Type    string `json:"type"`
	EventID int    `json:"event_id"`
}

type userAudioChunk struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

type clientToolResult struct {
	Type       string `json:"type"`
	ToolCallID string `json:"tool_call_id"`
	Result     string `json:"result"`
	IsError    bool   `json:"is_error"`
}
