package config

import (
	"fmt"
	"net/url"
	"strings"
)

// PlaceholderAgentID is the sample value shipped in example configs.
const PlaceholderAgentID = "your_agent_id_here"

const maxSettleDelayMS = 10_000

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if err := validateHTTPURL("analysis.base_url", cfg.Analysis.BaseURL); err != nil {
		return nil, err
	}
	if raw := strings.TrimSpace(cfg.ConvAIURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("convai_url: %w", err)
		}
		switch u.Scheme {
		case "ws", "wss", "http", "https":
		default:
			return nil, fmt.Errorf("convai_url must use ws, wss, http or https")
		}
	}
	if cfg.Session.SettleDelayMS < 0 {
		return nil, fmt.Errorf("session.settle_delay_ms must be >= 0")
	}
	if cfg.Session.SettleDelayMS > maxSettleDelayMS {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("session.settle_delay_ms=%d is unusually long", cfg.Session.SettleDelayMS)})
	}
	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}
	if strings.TrimSpace(cfg.Analysis.HealthGRPC) == "" {
		warnings = append(warnings, Warning{Message: "analysis.health_grpc is empty; gRPC health checks are skipped"})
	}

	return warnings, nil
}

// AgentConfigured reports whether cfg carries a usable agent id.
func AgentConfigured(cfg Config) bool {
	id := strings.TrimSpace(cfg.AgentID)
	return id != "" && id != PlaceholderAgentID
}

func validateHTTPURL(key, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%s must not be empty", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", key)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", key)
	}
	return nil
}
