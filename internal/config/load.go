package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rbright/mindwell/internal/dotenv"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
//
// A .env file next to the config file is applied to the environment first,
// then environment overrides are layered over the parsed values.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}
	if err := dotenv.LoadFile(filepath.Join(filepath.Dir(resolvedPath), ".env")); err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: resolvedPath}
	base := Default()
	content, err := os.ReadFile(resolvedPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Config = base
		loaded.Warnings = []Warning{{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		}}
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	default:
		cfg, warnings, err := Parse(string(content), base)
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
		}
		loaded.Config = cfg
		loaded.Warnings = warnings
		loaded.Exists = true
	}

	loaded.Config = ApplyEnv(loaded.Config, os.LookupEnv)
	if _, err := Validate(loaded.Config); err != nil {
		return Loaded{}, fmt.Errorf("environment overrides: %w", err)
	}
	if !AgentConfigured(loaded.Config) {
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("agent_id is not set (config or %s); connect will be rejected", EnvAgentID),
		})
	}
	return loaded, nil
}
