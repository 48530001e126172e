// Package main runs the mindwell analysis HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rbright/mindwell/internal/analysis"
	"github.com/rbright/mindwell/internal/analysis/httpapi"
	firestorestore "github.com/rbright/mindwell/internal/analysis/storage/firestore"
	memstore "github.com/rbright/mindwell/internal/analysis/storage/memory"
	pgstore "github.com/rbright/mindwell/internal/analysis/storage/postgres"
	"github.com/rbright/mindwell/internal/dotenv"
	"github.com/rbright/mindwell/internal/healthcheck"
	"github.com/rbright/mindwell/internal/logging"
	"github.com/rbright/mindwell/internal/telemetry"
	"github.com/rbright/mindwell/internal/version"
)

const (
	program         = "mindwell-analysis"
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) int {
	for _, arg := range args {
		switch arg {
		case "--version", "version":
			fmt.Fprintln(stdout, version.For(program))
			return 0
		case "-h", "--help", "help":
			fmt.Fprint(stdout, helpText)
			return 0
		default:
			fmt.Fprintf(stderr, "error: unknown argument %q\n", arg)
			return 2
		}
	}

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	settings, err := analysis.SettingsFromEnv(os.LookupEnv)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	logger := logging.NewWriter(stdout, logging.ParseLevel(settings.LogLevel)).With("program", program)
	if err := serve(ctx, settings, logger, stderr); err != nil {
		logger.Error("service stopped", "error", err)
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, settings analysis.Settings, logger *slog.Logger, traceOut io.Writer) error {
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName: program,
		Stdout:      settings.TraceStdout,
		Writer:      traceOut,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	store, err := openStore(ctx, settings)
	if err != nil {
		return err
	}
	defer store.Close()

	analyzer := newAnalyzer(ctx, settings, logger)
	svc := analysis.NewService(analyzer, store, analysis.Options{Logger: logger})

	lis, err := net.Listen("tcp", settings.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", settings.Addr, err)
	}
	httpServer := &http.Server{
		Handler:           httpapi.NewHandler(svc, httpapi.Options{CORSOrigin: settings.CORSOrigin, Logger: logger}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 2)

	if settings.HealthAddr != "" {
		healthLis, err := net.Listen("tcp", settings.HealthAddr)
		if err != nil {
			_ = lis.Close()
			return fmt.Errorf("listen %s: %w", settings.HealthAddr, err)
		}
		health := healthcheck.NewServer()
		go svc.Watch(runCtx, settings.HealthInterval, health.SetServing)
		go func() { errCh <- health.Serve(runCtx, healthLis) }()
		logger.Info("grpc health listening", "addr", healthLis.Addr().String())
	}

	go func() {
		if err := httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serve http: %w", err)
			return
		}
		errCh <- nil
	}()
	logger.Info("analysis service listening",
		"addr", lis.Addr().String(),
		"storage", settings.Storage,
		"analyzer", analyzer.Name(),
	)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("shutdown http: %w", err)
	}
	logger.Info("analysis service stopped")
	return serveErr
}

func openStore(ctx context.Context, settings analysis.Settings) (analysis.Store, error) {
	switch settings.Storage {
	case analysis.StorageFirestore:
		return firestorestore.NewStore(ctx, settings.Gemini.Project)
	case analysis.StoragePostgres:
		return pgstore.Open(ctx, settings.DatabaseURL)
	default:
		return memstore.NewStore(), nil
	}
}

// newAnalyzer prefers Gemini and drops to keyword scoring when it is not
// configured or cannot start.
func newAnalyzer(ctx context.Context, settings analysis.Settings, logger *slog.Logger) analysis.Analyzer {
	if !settings.Gemini.Configured() {
		logger.Warn("gemini not configured; using keyword analyzer")
		return analysis.KeywordAnalyzer{}
	}
	gemini, err := analysis.NewGeminiAnalyzer(ctx, settings.Gemini)
	if err != nil {
		logger.Error("gemini analyzer unavailable; using keyword analyzer", "error", err)
		return analysis.KeywordAnalyzer{}
	}
	return gemini
}

const helpText = `mindwell-analysis scores screening summaries for mindwell clients.

Usage:
  mindwell-analysis [--version | --help]

Environment (a .env file in the working directory is loaded first):
  MINDWELL_ADDR            HTTP listen address (default :8080)
  MINDWELL_HEALTH_ADDR     gRPC health listen address (default :8081)
  MINDWELL_STORAGE         memory | firestore | postgres (default memory)
  MINDWELL_DATABASE_URL    postgres connection string
  MINDWELL_GCP_PROJECT     GCP project for Vertex AI and Firestore
  MINDWELL_GCP_LOCATION    Vertex AI location (default us-central1)
  MINDWELL_MODEL           Gemini model (default gemini-2.5-flash)
  GEMINI_API_KEY           Gemini API key; preferred over Vertex AI
  MINDWELL_CORS_ORIGIN     Access-Control-Allow-Origin value (default *)
  MINDWELL_TRACE_STDOUT    export spans to stderr when true
  MINDWELL_LOG_LEVEL       debug | info | warn | error
  MINDWELL_HEALTH_INTERVAL store health poll interval (default 10s)
`
