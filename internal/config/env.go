package config

import "strings"

// Environment variables that override file values.
const (
	EnvAgentID           = "MINDWELL_AGENT_ID"
	EnvElevenLabsAgentID = "ELEVENLABS_AGENT_ID"
	EnvAnalysisURL       = "MINDWELL_ANALYSIS_URL"
	EnvAPIKey            = "ELEVENLABS_API_KEY"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// ApplyEnv overlays environment overrides onto cfg.
// MINDWELL_AGENT_ID wins over ELEVENLABS_AGENT_ID.
func ApplyEnv(cfg Config, lookup LookupFunc) Config {
	if lookup == nil {
		return cfg
	}
	if v, ok := firstSet(lookup, EnvAgentID, EnvElevenLabsAgentID); ok {
		cfg.AgentID = v
	}
	if v, ok := firstSet(lookup, EnvAnalysisURL); ok {
		cfg.Analysis.BaseURL = v
	}
	if v, ok := firstSet(lookup, EnvAPIKey); ok {
		cfg.APIKey = v
	}
	return cfg
}

func firstSet(lookup LookupFunc, keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			return v, true
		}
	}
	return "", false
}
