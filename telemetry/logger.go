// Package telemetry wires logging, tracing, and metrics for kartta.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry.
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// SetupLogging configures the global logger: console to stderr plus a
// per-run log file under logDir (kept outside the report tree). The
// returned closer flushes the file; the returned path is the log file.
func SetupLogging(level string, logDir string) (closer io.Closer, path string, err error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, "", fmt.Errorf("parse log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return nil, "", fmt.Errorf("create log dir: %w", err)
	}

	path = filepath.Join(logDir, fmt.Sprintf("kartta_%s.log", time.Now().Format("20060102_150405")))
	file, err := os.Create(path) // #nosec G304 -- path is derived from config
	if err != nil {
		return nil, "", fmt.Errorf("create log file: %w", err)
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, file)).
		With().
		Timestamp().
		Str("service", "kartta").
		Logger().
		Hook(OTELHook{})

	return file, path, nil
}

// Ctx returns the global logger bound to ctx so the OTEL hook can pick
// up the active span.
func Ctx(ctx context.Context) *zerolog.Logger {
	logger := log.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// LogPhase logs a completed pipeline phase and records its duration on
// the phase histogram. Tolerates an uninitialized histogram so callers
// work without InitOTEL.
func LogPhase(ctx context.Context, phase string, start time.Time, err error) {
	elapsed := time.Since(start)
	if PhaseDuration != nil {
		PhaseDuration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(attribute.String("phase", phase)))
	}
	if err != nil {
		Ctx(ctx).Error().
			Err(err).
			Str("phase", phase).
			Dur("elapsed", elapsed).
			Msg("phase failed")
		return
	}
	Ctx(ctx).Debug().
		Str("phase", phase).
		Dur("elapsed", elapsed).
		Msg("phase completed")
}
