// Package logging holds the process-wide zerolog logger and the request
// scoped loggers derived from it.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/0xReLogic/handview/internal/config"
)

const (
	defaultRequestHeader = "X-Request-ID"
	defaultTraceHeader   = "X-Trace-ID"

	formatJSON = "json"
	formatText = "text"
)

// scope is what RequestContextMiddleware attaches to a request.
type scope struct {
	requestID string
	traceID   string
	logger    *zerolog.Logger
}

type scopeKey struct{}

var base atomic.Pointer[zerolog.Logger]

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond
	setBaseLogger(newLogger(os.Stdout, zerolog.InfoLevel, formatText, false))
}

// Init replaces the process logger according to cfg, writing to stdout.
// Debug mode raises the level to debug whatever logging.level says.
func Init(cfg *config.Config) {
	InitWriter(os.Stdout, cfg)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, cfg *config.Config) {
	setBaseLogger(newLogger(w, levelOf(cfg.EffectiveLogLevel()), strings.ToLower(cfg.Logging.Format), cfg.Logging.IncludeCaller))
}

// levelOf maps a configured level name to a zerolog level; unknown or empty
// names mean info.
func levelOf(name string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func newLogger(w io.Writer, level zerolog.Level, format string, withCaller bool) zerolog.Logger {
	out := w
	if format != formatJSON {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339Nano, NoColor: true}
	}

	lc := zerolog.New(out).Level(level).With().Timestamp()
	if withCaller {
		lc = lc.CallerWithSkipFrameCount(1)
	}
	return lc.Logger()
}

func setBaseLogger(l zerolog.Logger) {
	base.Store(&l)
}

// L returns the process logger.
func L() *zerolog.Logger {
	return base.Load()
}

// WithContext returns the logger attached to ctx by RequestContextMiddleware,
// or the process logger when there is none.
func WithContext(ctx context.Context) *zerolog.Logger {
	if s := scopeFrom(ctx); s != nil && s.logger != nil {
		return s.logger
	}
	return L()
}

// RequestIDFromContext returns the request id of ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if s := scopeFrom(ctx); s != nil {
		return s.requestID
	}
	return ""
}

// TraceIDFromContext returns the trace id of ctx, or "".
func TraceIDFromContext(ctx context.Context) string {
	if s := scopeFrom(ctx); s != nil {
		return s.traceID
	}
	return ""
}

func scopeFrom(ctx context.Context) *scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{}).(*scope)
	return s
}

// RequestHeaderName is the header carrying request ids.
func RequestHeaderName(cfg config.LoggingConfig) string {
	return headerOr(cfg.RequestID.Header, defaultRequestHeader)
}

// TraceHeaderName is the header carrying trace ids.
func TraceHeaderName(cfg config.LoggingConfig) string {
	return headerOr(cfg.Trace.Header, defaultTraceHeader)
}

func headerOr(h, def string) string {
	if h = strings.TrimSpace(h); h != "" {
		return h
	}
	return def
}
