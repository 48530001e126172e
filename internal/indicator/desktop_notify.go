package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type urgency uint8

const (
	urgencyLow urgency = iota
	urgencyNormal
	urgencyCritical
)

// notification is one freedesktop Notify call.
type notification struct {
	appName   string
	replaceID uint32
	summary   string
	body      string
	urgency   urgency
	timeoutMS int
}

// notifyArgs renders busctl arguments for org.freedesktop.Notifications.Notify.
func notifyArgs(n notification) []string {
	return []string{
		"--user",
		"call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		"Notify",
		"susssasa{sv}i",
		n.appName,
		strconv.FormatUint(uint64(n.replaceID), 10),
		"",
		n.summary,
		n.body,
		"0", // actions
		"1", "urgency", "y", strconv.Itoa(int(n.urgency)),
		strconv.Itoa(n.timeoutMS),
	}
}

// desktopNotify sends a notification over DBus via busctl and returns the
// id assigned by the notification server.
func desktopNotify(ctx context.Context, n notification) (uint32, error) {
	out, err := exec.CommandContext(ctx, "busctl", notifyArgs(n)...).CombinedOutput()
	if err != nil {
		return 0, busctlError("desktop notify", err, out)
	}

	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", strings.TrimSpace(string(out)))
	}

	value, parseErr := strconv.ParseUint(fields[1], 10, 32)
	if parseErr != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], parseErr)
	}
	return uint32(value), nil
}

// desktopDismiss closes a notification by id.
func desktopDismiss(ctx context.Context, id uint32) error {
	args := []string{
		"--user",
		"call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		"CloseNotification",
		"u",
		strconv.FormatUint(uint64(id), 10),
	}

	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	if err != nil {
		return busctlError("desktop dismiss", err, out)
	}
	return nil
}

func busctlError(op string, err error, out []byte) error {
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	return fmt.Errorf("%s failed: %w (%s)", op, err, trimmed)
}
