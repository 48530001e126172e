package audio

import (
	"context"
	"fmt"
	"log/slog"
)

// Microphone opens captures on the configured input with fallback.
type Microphone struct {
	input    string
	fallback string
	logger   *slog.Logger
}

func NewMicrophone(input string, fallback string, logger *slog.Logger) *Microphone {
	return &Microphone{input: input, fallback: fallback, logger: logger}
}

// Prewarm opens the selected source once and releases it immediately so
// access is negotiated before the first conversation.
func (m *Microphone) Prewarm(ctx context.Context) error {
	capture, err := m.Open(ctx)
	if err != nil {
		return err
	}
	capture.Close()
	return nil
}

// Open selects a device and starts capturing. The capture outlives ctx and
// must be closed by the caller.
func (m *Microphone) Open(ctx context.Context) (*Capture, error) {
	selection, err := SelectDevice(ctx, m.input, m.fallback)
	if err != nil {
		return nil, fmt.Errorf("select audio input: %w", err)
	}
	if selection.Warning != "" && m.logger != nil {
		m.logger.Warn("audio input fallback", "warning", selection.Warning)
	}

	capture, err := StartCapture(context.WithoutCancel(ctx), selection.Device)
	if err != nil {
		return nil, fmt.Errorf("open audio input %q: %w", selection.Device.ID, err)
	}
	if m.logger != nil {
		m.logger.Debug("audio input opened", "device", selection.Device.ID)
	}
	return capture, nil
}
