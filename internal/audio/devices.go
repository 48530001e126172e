// Package audio handles PulseAudio input selection, microphone capture, and
// playback of agent speech.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const clientName = "mindwell"

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Selection is the resolved capture source plus an optional fallback warning.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(clientName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns Pulse input sources with default and availability flags.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices, nil
}

// SelectDevice resolves audio.input/audio.fallback against live devices.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	input = normalizeTerm(input)
	fallback = normalizeTerm(fallback)

	var defaultDevice, byInput, byFallback *Device
	for i := range devices {
		dev := &devices[i]
		if dev.Default && defaultDevice == nil {
			defaultDevice = dev
		}
		if byInput == nil && deviceMatches(*dev, input) {
			byInput = dev
		}
		if byFallback == nil && deviceMatches(*dev, fallback) {
			byFallback = dev
		}
	}

	primary := defaultDevice
	switch {
	case input != "":
		if byInput == nil {
			return Selection{}, fmt.Errorf("audio.input %q did not match any device", input)
		}
		primary = byInput
	case primary == nil:
		return Selection{}, errors.New("default audio source is unavailable")
	}

	if usable(*primary) {
		return Selection{Device: *primary}, nil
	}

	reason := "unavailable"
	if primary.Muted {
		reason = "muted"
	}

	var alternate *Device
	switch {
	case fallback != "":
		if byFallback == nil {
			return Selection{}, fmt.Errorf("primary input %q is %s and fallback %q not found", primary.ID, reason, fallback)
		}
		alternate = byFallback
	case defaultDevice != nil:
		alternate = defaultDevice
	default:
		return Selection{}, fmt.Errorf("primary input %q is %s and no usable fallback", primary.ID, reason)
	}

	if !alternate.Available {
		return Selection{}, fmt.Errorf("audio fallback device %q is not available", alternate.ID)
	}
	if alternate.Muted {
		return Selection{}, fmt.Errorf("audio fallback device %q is muted", alternate.ID)
	}

	return Selection{
		Device:   *alternate,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, reason, alternate.ID),
		Fallback: primary.ID != alternate.ID,
	}, nil
}

// normalizeTerm lowercases a selector; "default" and blank select the default source.
func normalizeTerm(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "default" {
		return ""
	}
	return raw
}

func usable(dev Device) bool {
	return dev.Available && !dev.Muted
}

func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse port availability (unknown=0, no=1, yes=2).
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	for _, port := range source.Ports {
		if port.Name == source.ActivePortName {
			return port.Available != 1
		}
	}
	return true
}
