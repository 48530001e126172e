// Package fsm defines the voice session phases and their legal transitions.
package fsm

import "fmt"

type Phase string

type Event string

const (
	PhaseIdle         Phase = "idle"
	PhaseConnecting   Phase = "connecting"
	PhaseSyncing      Phase = "syncing"
	PhaseListening    Phase = "listening"
	PhaseSpeaking     Phase = "speaking"
	PhaseDisconnected Phase = "disconnected"
	PhaseFailed       Phase = "failed"
)

const (
	EventConnect        Event = "connect"
	EventConnected      Event = "connected"
	EventSettled        Event = "settled"
	EventAgentSpeaking  Event = "agent_speaking"
	EventAgentListening Event = "agent_listening"
	EventDisconnect     Event = "disconnect"
	EventFail           Event = "fail"
	EventReset          Event = "reset"
)

// Connected reports whether a phase holds (or is acquiring) a transport session.
func (p Phase) Connected() bool {
	switch p {
	case PhaseConnecting, PhaseSyncing, PhaseListening, PhaseSpeaking:
		return true
	default:
		return false
	}
}

// Terminal reports whether a phase can only be left through reset or retry.
func (p Phase) Terminal() bool {
	return p == PhaseDisconnected || p == PhaseFailed
}

func Transition(current Phase, event Event) (Phase, error) {
	switch current {
	case PhaseIdle:
		switch event {
		case EventConnect:
			return PhaseConnecting, nil
		case EventReset:
			return PhaseIdle, nil
		}
	case PhaseConnecting:
		switch event {
		case EventConnected:
			return PhaseSyncing, nil
		case EventFail:
			return PhaseFailed, nil
		case EventDisconnect:
			return PhaseDisconnected, nil
		}
	case PhaseSyncing:
		switch event {
		case EventSettled:
			return PhaseListening, nil
		case EventDisconnect:
			return PhaseDisconnected, nil
		case EventFail:
			return PhaseFailed, nil
		}
	case PhaseListening:
		switch event {
		case EventAgentSpeaking:
			return PhaseSpeaking, nil
		case EventAgentListening:
			return PhaseListening, nil
		case EventDisconnect:
			return PhaseDisconnected, nil
		case EventFail:
			return PhaseFailed, nil
		}
	case PhaseSpeaking:
		switch event {
		case EventAgentListening:
			return PhaseListening, nil
		case EventAgentSpeaking:
			return PhaseSpeaking, nil
		case EventDisconnect:
			return PhaseDisconnected, nil
		case EventFail:
			return PhaseFailed, nil
		}
	case PhaseDisconnected:
		switch event {
		case EventReset:
			return PhaseIdle, nil
		}
	case PhaseFailed:
		switch event {
		case EventConnect:
			return PhaseConnecting, nil
		case EventReset:
			return PhaseIdle, nil
		}
	default:
		return current, fmt.Errorf("unknown phase %q", current)
	}
	return current, invalidTransition(current, event)
}

func invalidTransition(phase Phase, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", phase, event)
}
