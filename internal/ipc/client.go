package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"time"
)

// Send delivers req to the owner on path and waits for its reply. The
// exchange is bounded by timeout or ctx, whichever ends first.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if err := conn.SetDeadline(deadline); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}
	if err := writeLine(conn, req); err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	var resp Response
	if err := readLine(conn, &resp, "response"); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// Probe reports whether an owner answers a status request on path.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, Request{Command: CommandStatus}, timeout)
	switch {
	case err == nil:
		return true, nil
	case NoOwner(err):
		return false, nil
	default:
		return false, fmt.Errorf("probe socket: %w", err)
	}
}

// NoOwner reports dial failures meaning nobody listens on the socket: the file
// is missing or the listener is gone.
func NoOwner(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		strings.Contains(err.Error(), "no such file or directory")
}
