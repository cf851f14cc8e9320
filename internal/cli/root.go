// Package cli wires configuration, the scraping pipeline and storage into
// the history command.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahmethakanbesel/yahoo-history/internal/browser"
	"github.com/ahmethakanbesel/yahoo-history/internal/config"
	"github.com/ahmethakanbesel/yahoo-history/internal/telemetry"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	version    string
	configPath string
	logLevel   string
	cfg        *config.Config
	telemetry  *telemetry.Telemetry

	out      io.Writer
	errOut   io.Writer
	launcher browser.Launcher
	tracer   trace.TracerProvider
}

type Option func(*app)

// WithLauncher replaces the Chrome launcher, e.g. with a fake in tests.
func WithLauncher(l browser.Launcher) Option {
	return func(a *app) { a.launcher = l }
}

// WithTracerProvider sends pipeline spans to tp instead of the configured
// OTLP exporter.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *app) { a.tracer = tp }
}

// WithOutput redirects command output and logs.
func WithOutput(out, errOut io.Writer) Option {
	return func(a *app) { a.out, a.errOut = out, errOut }
}

func NewRootCommand(version string, opts ...Option) *cobra.Command {
	root, _ := newRoot(version, opts...)
	return root
}

func newRoot(version string, opts ...Option) (*cobra.Command, *app) {
	a := &app{version: version, out: os.Stdout, errOut: os.Stderr}
	for _, o := range opts {
		o(a)
	}

	root := &cobra.Command{
		Use:           "history",
		Short:         "history downloads daily price history tables from Yahoo Finance.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.shutdownTelemetry(cmd.Context())
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "history.yaml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level (debug|info|warn|error)")

	root.AddCommand(
		newDownloadCommand(a),
		newScheduleCommand(a),
		newJobsCommand(a),
		newShowCommand(a),
		newServeCommand(a),
		newVersionCommand(a),
	)
	return root, a
}

// Execute runs the root command and exits non-zero on failure.
func Execute(ctx context.Context, version string) {
	root, a := newRoot(version)
	err := root.ExecuteContext(ctx)
	// PersistentPostRunE is skipped when a command fails.
	if serr := a.shutdownTelemetry(ctx); serr != nil {
		slog.Warn("telemetry shutdown failed", "error", serr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) load(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg
	slog.SetDefault(newLogger(a.errOut, cfg.LogLevel))

	if a.tracer == nil {
		tel, err := telemetry.Setup(ctx, cfg.Telemetry)
		if err != nil {
			return err
		}
		a.telemetry = tel
	}
	return nil
}

// tracerProvider is the provider pipeline spans go to: the injected one,
// the configured exporter, or the global no-op.
func (a *app) tracerProvider() trace.TracerProvider {
	if a.tracer != nil {
		return a.tracer
	}
	if a.telemetry != nil && a.telemetry.TracerProvider != nil {
		return a.telemetry.TracerProvider
	}
	return otel.GetTracerProvider()
}

// shutdownTelemetry flushes spans once; later calls are no-ops.
func (a *app) shutdownTelemetry(ctx context.Context) error {
	tel := a.telemetry
	a.telemetry = nil
	if tel == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return tel.Shutdown(ctx)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the build version.",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), a.version)
		},
	}
}
