package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const socketName = "mindwell.sock"

var ErrAlreadyRunning = errors.New("mindwell session owner already running")

// RuntimeSocketPath resolves the owner socket under XDG_RUNTIME_DIR.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, socketName), nil
}

// Acquire binds the owner socket. A socket file whose owner no longer answers
// is removed and the bind retried, calling rescue after each removal. A live
// owner yields ErrAlreadyRunning.
func Acquire(
	ctx context.Context,
	path string,
	probeTimeout time.Duration,
	retries int,
	rescue func(context.Context) error,
) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; ; attempt++ {
		listener, err := listenOwner(path)
		if err == nil || !isAddrInUse(err) {
			return listener, err
		}
		if err := reclaimStale(ctx, path, probeTimeout); err != nil {
			return nil, err
		}
		if rescue != nil {
			_ = rescue(ctx)
		}
		if attempt >= retries {
			return nil, fmt.Errorf("acquire socket %s: gave up after %d retries", path, retries)
		}

		backoff := time.Duration(25*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// listenOwner binds path with owner-only permissions.
func listenOwner(path string) (net.Listener, error) {
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen unix %s: %w", path, err)
	}
	_ = os.Chmod(path, 0o600)
	return listener, nil
}

// reclaimStale removes path unless an owner still answers on it.
func reclaimStale(ctx context.Context, path string, probeTimeout time.Duration) error {
	alive, err := Probe(ctx, path, probeTimeout)
	if alive {
		return ErrAlreadyRunning
	}
	if err != nil {
		return fmt.Errorf("probe existing socket %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	return nil
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE) || strings.Contains(err.Error(), "address already in use")
}
