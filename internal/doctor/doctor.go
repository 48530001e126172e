// Package doctor runs runtime readiness diagnostics for config, audio, and the
// analysis backend.
package doctor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/mindwell/internal/audio"
	"github.com/rbright/mindwell/internal/config"
	"github.com/rbright/mindwell/internal/healthcheck"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded), checkAgent(cfg)}

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "session socket directory available", "XDG_RUNTIME_DIR is empty; the session socket cannot be created"))

	if cfg.Indicator.Enable {
		checks = append(checks, checkBinary("busctl", "desktop notifications"))
	}

	checks = append(checks, checkAudioSelection(ctx, cfg))
	checks = append(checks, checkAnalysisHTTP(ctx, cfg))
	checks = append(checks, checkAnalysisGRPC(ctx, cfg))

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", loaded.Path)}
}

func checkAgent(cfg config.Config) Check {
	if !config.AgentConfigured(cfg) {
		return Check{
			Name:    "agent_id",
			Pass:    false,
			Message: fmt.Sprintf("agent id missing; set agent_id or %s", config.EnvAgentID),
		}
	}
	return Check{Name: "agent_id", Pass: true, Message: "configured"}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkAnalysisHTTP probes the analysis backend health endpoint.
func checkAnalysisHTTP(ctx context.Context, cfg config.Config) Check {
	base := strings.TrimSpace(cfg.Analysis.BaseURL)
	if base == "" {
		return Check{Name: "analysis.http", Pass: false, Message: "analysis.base_url is empty"}
	}

	url := strings.TrimRight(base, "/") + "/healthz"
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Check{Name: "analysis.http", Pass: false, Message: fmt.Sprintf("build request: %v", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Check{Name: "analysis.http", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 256))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Check{Name: "analysis.http", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}
	return Check{Name: "analysis.http", Pass: true, Message: fmt.Sprintf("reachable at %s", url)}
}

// checkAnalysisGRPC queries the backend's gRPC health service.
func checkAnalysisGRPC(ctx context.Context, cfg config.Config) Check {
	target := strings.TrimSpace(cfg.Analysis.HealthGRPC)
	if target == "" {
		return Check{Name: "analysis.grpc", Pass: true, Message: "skipped (analysis.health_grpc is empty)"}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	status, err := healthcheck.Probe(ctx, target)
	if err != nil {
		return Check{Name: "analysis.grpc", Pass: false, Message: err.Error()}
	}
	if status != healthpb.HealthCheckResponse_SERVING {
		return Check{Name: "analysis.grpc", Pass: false, Message: fmt.Sprintf("%s reports %s", target, status)}
	}
	return Check{Name: "analysis.grpc", Pass: true, Message: fmt.Sprintf("%s serving", target)}
}
