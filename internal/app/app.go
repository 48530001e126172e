// Package app wires the mindwell CLI to the session owner and its collaborators.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rbright/mindwell/internal/audio"
	"github.com/rbright/mindwell/internal/cli"
	"github.com/rbright/mindwell/internal/config"
	"github.com/rbright/mindwell/internal/doctor"
	"github.com/rbright/mindwell/internal/gateway"
	"github.com/rbright/mindwell/internal/indicator"
	"github.com/rbright/mindwell/internal/ipc"
	"github.com/rbright/mindwell/internal/logging"
	"github.com/rbright/mindwell/internal/pipeline"
	"github.com/rbright/mindwell/internal/screening"
	"github.com/rbright/mindwell/internal/session"
	"github.com/rbright/mindwell/internal/telemetry"
	"github.com/rbright/mindwell/internal/version"
)

const (
	forwardTimeout = 220 * time.Millisecond
	// connect and snapshot round trips wait on the owner's transport.
	longForwardTimeout = 15 * time.Second
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("mindwell"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("mindwell"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandServe:
		return r.runOwner(ctx, cfgLoaded.Config, logger, false)
	case cli.CommandToggle, cli.CommandConnect:
		return r.commandStart(ctx, parsed.Command, cfgLoaded.Config, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandResult:
		return r.commandResult(ctx)
	case cli.CommandHelplines:
		return r.commandHelplines(ctx)
	case cli.CommandDisconnect, cli.CommandReset, cli.CommandQuit:
		verb, _ := parsed.Command.IPC()
		return r.forwardOrFail(ctx, verb)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus, forwardTimeout)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.Phase == "" {
			resp.Phase = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.Phase)
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) commandResult(ctx context.Context) int {
	snapshot, code := r.fetchSnapshot(ctx)
	if snapshot == nil {
		return code
	}
	fmt.Fprintln(r.Stdout, formatResult(snapshot))
	return 0
}

// commandHelplines prints the owner's helplines, or the built-in list when no
// owner is running.
func (r Runner) commandHelplines(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, formatHelplines(screening.DefaultHelplines()))
		return 0
	}
	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandSnapshot, longForwardTimeout)
	if !handled {
		fmt.Fprintln(r.Stdout, formatHelplines(screening.DefaultHelplines()))
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Snapshot == nil {
		fmt.Fprintln(r.Stderr, "error: owner returned no snapshot")
		return 1
	}
	fmt.Fprintln(r.Stdout, formatHelplines(resp.Snapshot.Helplines))
	return 0
}

func (r Runner) fetchSnapshot(ctx context.Context) (*ipc.Snapshot, int) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return nil, 1
	}
	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandSnapshot, longForwardTimeout)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no active mindwell session")
		return nil, 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return nil, 1
	}
	if resp.Snapshot == nil {
		fmt.Fprintln(r.Stderr, "error: owner returned no snapshot")
		return nil, 1
	}
	return resp.Snapshot, 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command, longForwardTimeout)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active mindwell session\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// commandStart forwards toggle/connect to a running owner, or becomes the
// owner and connects.
func (r Runner) commandStart(ctx context.Context, cmd cli.Command, cfg config.Config, logger *slog.Logger) int {
	verb, _ := cmd.IPC()
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, verb, longForwardTimeout)
	if handled {
		return r.printForwarded(resp, err)
	}
	return r.runOwner(ctx, cfg, logger, true)
}

func (r Runner) printForwarded(resp ipc.Response, err error) int {
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// runOwner binds the session socket and owns the session until ctx is
// cancelled or a quit command arrives.
func (r Runner) runOwner(ctx context.Context, cfg config.Config, logger *slog.Logger, connect bool) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) && connect {
			resp, _, forwardErr := tryForward(ctx, socketPath, ipc.CommandConnect, longForwardTimeout)
			return r.printForwarded(resp, forwardErr)
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName: "mindwell",
		Stdout:      cfg.Telemetry.Stdout,
		Writer:      r.Stderr,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup tracing: %v\n", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	controller := newController(cfg, logger)

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(runCtx, listener, controller)
	}()
	runDone := make(chan error, 1)
	go func() {
		runDone <- controller.Run(runCtx)
	}()

	exitCode := 0
	if connect {
		if err := controller.Connect(runCtx); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			logger.Error("owner connect failed", "error", err.Error())
			exitCode = 1
			stopRun()
		} else {
			fmt.Fprintln(r.Stdout, "connected")
		}
	}

	<-runDone
	stopRun()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logSessionSnapshot(logger, controller.Snapshot())
	if exitCode == 0 {
		if snap := controller.Snapshot(); snap.Result != nil {
			fmt.Fprintln(r.Stdout, formatResult(snap.IPC()))
		}
	}
	return exitCode
}

func newController(cfg config.Config, logger *slog.Logger) *session.Controller {
	transport := pipeline.NewConversation(pipeline.Options{
		URL:       cfg.ConvAIURL,
		APIKey:    cfg.APIKey,
		AudioDump: cfg.Debug.EnableAudioDump,
	}, logger)

	return session.NewController(logger, session.Config{
		AgentID:     cfg.AgentID,
		SettleDelay: time.Duration(cfg.Session.SettleDelayMS) * time.Millisecond,
	}, session.Dependencies{
		Transport:  transport,
		Microphone: microphone{audio.NewMicrophone(cfg.Audio.Input, cfg.Audio.Fallback, logger)},
		Gateway:    gateway.New(cfg.Analysis.BaseURL, nil),
		Indicator:  indicator.NewDesktop(cfg.Indicator, logger),
	})
}

// microphone adapts the pulse microphone to the session contract.
type microphone struct {
	mic *audio.Microphone
}

func (m microphone) Prewarm(ctx context.Context) error {
	return m.mic.Prewarm(ctx)
}

func (m microphone) Open(ctx context.Context) (session.AudioStream, error) {
	capture, err := m.mic.Open(ctx)
	if err != nil {
		return nil, err
	}
	return capture, nil
}

func logSessionSnapshot(logger *slog.Logger, snap session.Snapshot) {
	if logger == nil {
		return
	}
	fields := []any{
		"phase", snap.Phase,
		"conversation_id", snap.ConversationID,
		"helplines_visible", snap.HelplinesVisible,
		"has_result", snap.Result != nil,
	}
	if snap.Result != nil {
		fields = append(fields,
			"score", snap.Result.Score,
			"tier", screening.Tier(snap.Result.Score),
		)
	}
	logger.Info("session owner exit", fields...)
}

func tryForward(ctx context.Context, socketPath string, command string, timeout time.Duration) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, timeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if ipc.NoOwner(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
