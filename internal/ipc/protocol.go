// Package ipc carries owner commands over a newline-delimited JSON unix socket.
package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rbright/mindwell/internal/screening"
)

// Commands understood by the session owner.
const (
	CommandStatus     = "status"
	CommandSnapshot   = "snapshot"
	CommandConnect    = "connect"
	CommandDisconnect = "disconnect"
	CommandToggle     = "toggle"
	CommandReset      = "reset"
	CommandQuit       = "quit"
)

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK       bool      `json:"ok"`
	Phase    string    `json:"phase,omitempty"`
	Message  string    `json:"message,omitempty"`
	Error    string    `json:"error,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}

// Snapshot is the read-only presentation state of the owner session.
type Snapshot struct {
	Phase            string               `json:"phase"`
	Result           *screening.Result    `json:"result,omitempty"`
	Helplines        []screening.Helpline `json:"helplines"`
	HelplinesVisible bool                 `json:"helplines_visible"`
	Processing       bool                 `json:"processing"`
	ConversationID   string               `json:"conversation_id,omitempty"`
}

// maxLineBytes caps one framed message in either direction.
const maxLineBytes = 256 << 10

// Failure builds an error response, keeping phase for context.
func Failure(phase string, err error) Response {
	return Response{OK: false, Phase: phase, Error: err.Error()}
}

// writeLine frames v as one JSON line.
func writeLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// readLine reads one JSON line into v. stage names the step in errors.
func readLine(r io.Reader, v any, stage string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	if !scanner.Scan() {
		err := scanner.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("read %s: %w", stage, err)
	}
	if err := json.Unmarshal(scanner.Bytes(), v); err != nil {
		return fmt.Errorf("decode %s: %w", stage, err)
	}
	return nil
}
