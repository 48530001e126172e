package analysis

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by mindwell-analysis.
const (
	EnvAddr         = "MINDWELL_ADDR"
	EnvHealthAddr   = "MINDWELL_HEALTH_ADDR"
	EnvStorage      = "MINDWELL_STORAGE"
	EnvDatabaseURL  = "MINDWELL_DATABASE_URL"
	EnvGCPProject   = "MINDWELL_GCP_PROJECT"
	EnvGCPLocation  = "MINDWELL_GCP_LOCATION"
	EnvModel        = "MINDWELL_MODEL"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvCORSOrigin   = "MINDWELL_CORS_ORIGIN"
	EnvTraceStdout  = "MINDWELL_TRACE_STDOUT"
	EnvLogLevel     = "MINDWELL_LOG_LEVEL"
	EnvHealthEvery  = "MINDWELL_HEALTH_INTERVAL"
)

// Storage backends.
const (
	StorageMemory    = "memory"
	StorageFirestore = "firestore"
	StoragePostgres  = "postgres"
)

// Settings is the mindwell-analysis runtime configuration.
type Settings struct {
	Addr           string
	HealthAddr     string
	Storage        string
	DatabaseURL    string
	Gemini         GeminiConfig
	CORSOrigin     string
	TraceStdout    bool
	LogLevel       string
	HealthInterval time.Duration
}

// DefaultSettings matches the client's default analysis endpoints.
func DefaultSettings() Settings {
	return Settings{
		Addr:           ":8080",
		HealthAddr:     ":8081",
		Storage:        StorageMemory,
		Gemini:         GeminiConfig{Location: "us-central1", Model: DefaultModel},
		CORSOrigin:     "*",
		LogLevel:       "info",
		HealthInterval: 10 * time.Second,
	}
}

// SettingsFromEnv overlays non-blank environment values on the defaults.
func SettingsFromEnv(lookup func(string) (string, bool)) (Settings, error) {
	s := DefaultSettings()
	get := func(key string) (string, bool) {
		value, ok := lookup(key)
		value = strings.TrimSpace(value)
		return value, ok && value != ""
	}

	if v, ok := get(EnvAddr); ok {
		s.Addr = v
	}
	if v, ok := get(EnvHealthAddr); ok {
		s.HealthAddr = v
	}
	if v, ok := get(EnvStorage); ok {
		s.Storage = strings.ToLower(v)
	}
	if v, ok := get(EnvDatabaseURL); ok {
		s.DatabaseURL = v
	}
	if v, ok := get(EnvGCPProject); ok {
		s.Gemini.Project = v
	}
	if v, ok := get(EnvGCPLocation); ok {
		s.Gemini.Location = v
	}
	if v, ok := get(EnvModel); ok {
		s.Gemini.Model = v
	}
	if v, ok := get(EnvGeminiAPIKey); ok {
		s.Gemini.APIKey = v
	}
	if v, ok := get(EnvCORSOrigin); ok {
		s.CORSOrigin = v
	}
	if v, ok := get(EnvLogLevel); ok {
		s.LogLevel = v
	}
	if v, ok := get(EnvTraceStdout); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", EnvTraceStdout, err)
		}
		s.TraceStdout = enabled
	}
	if v, ok := get(EnvHealthEvery); ok {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", EnvHealthEvery, err)
		}
		s.HealthInterval = interval
	}

	return s, s.Validate()
}

// Validate checks that the selected storage backend has what it needs.
func (s Settings) Validate() error {
	if s.Addr == "" {
		return fmt.Errorf("%s must not be empty", EnvAddr)
	}
	if s.HealthInterval <= 0 {
		return fmt.Errorf("%s must be positive", EnvHealthEvery)
	}
	switch s.Storage {
	case StorageMemory:
	case StorageFirestore:
		if s.Gemini.Project == "" {
			return fmt.Errorf("%s is required for firestore storage", EnvGCPProject)
		}
	case StoragePostgres:
		if s.DatabaseURL == "" {
			return fmt.Errorf("%s is required for postgres storage", EnvDatabaseURL)
		}
	default:
		return fmt.Errorf("%s: unsupported backend %q", EnvStorage, s.Storage)
	}
	return nil
}
