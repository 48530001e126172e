// Package config resolves, parses, validates, and defaults mindwell configuration.
package config

// Config is the fully materialized runtime configuration used by mindwell.
type Config struct {
	AgentID   string
	APIKey    string
	ConvAIURL string
	Analysis  AnalysisConfig
	Session   SessionConfig
	Audio     AudioConfig
	Indicator IndicatorConfig
	Telemetry TelemetryConfig
	Debug     DebugConfig
}

// AnalysisConfig locates the screening analysis backend.
type AnalysisConfig struct {
	BaseURL    string
	HealthGRPC string
}

// SessionConfig tunes the conversation lifecycle.
type SessionConfig struct {
	SettleDelayMS int
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// IndicatorConfig controls desktop notifications and audio cues.
type IndicatorConfig struct {
	Enable              bool
	DesktopAppName      string
	SoundEnable         bool
	SoundConnectFile    string
	SoundDisconnectFile string
	SoundResultFile     string
	SoundErrorFile      string
	ErrorTimeoutMS      int
}

type TelemetryConfig struct {
	Stdout bool
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
