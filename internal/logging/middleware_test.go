package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/0xReLogic/handview/internal/config"
)

// captureLogs points the process logger at a JSON buffer for the duration of
// the test.
func captureLogs(t *testing.T, level zerolog.Level) *bytes.Buffer {
	t.Helper()
	previous := *L()
	t.Cleanup(func() { setBaseLogger(previous) })

	var buf bytes.Buffer
	setBaseLogger(newLogger(&buf, level, formatJSON, false))
	return &buf
}

func decodeFirstLine(t *testing.T, b []byte) map[string]interface{} {
	t.Helper()
	line, _, _ := bytes.Cut(b, []byte("\n"))
	if len(line) == 0 {
		t.Fatal("expected log output")
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(line, &payload); err != nil {
		t.Fatalf("failed to parse log line %q: %v", line, err)
	}
	return payload
}

func TestRequestContextMiddleware_GeneratesIDs(t *testing.T) {
	buf := captureLogs(t, zerolog.InfoLevel)
	cfg := config.LoggingConfig{
		RequestID: config.RequestIDConfig{Enabled: true},
		Trace:     config.TraceConfig{Enabled: true},
	}

	var reqID, traceID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID = RequestIDFromContext(r.Context())
		traceID = TraceIDFromContext(r.Context())
		WithContext(r.Context()).Info().Msg("page rendered")
	})

	rr := httptest.NewRecorder()
	RequestContextMiddleware(cfg)(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.HasPrefix(reqID, "req_") {
		t.Fatalf("expected generated request id, got %q", reqID)
	}
	if !strings.HasPrefix(traceID, "trace_") {
		t.Fatalf("expected generated trace id, got %q", traceID)
	}
	if got := rr.Header().Get("X-Request-ID"); got != reqID {
		t.Fatalf("response request id = %q, want %q", got, reqID)
	}
	if got := rr.Header().Get("X-Trace-ID"); got != traceID {
		t.Fatalf("response trace id = %q, want %q", got, traceID)
	}

	payload := decodeFirstLine(t, buf.Bytes())
	for key, want := range map[string]string{
		"request_id": reqID,
		"trace_id":   traceID,
		"method":     http.MethodGet,
		"path":       "/",
		"message":    "page rendered",
	} {
		if payload[key] != want {
			t.Errorf("log field %s = %v, want %q", key, payload[key], want)
		}
	}
}

func TestRequestContextMiddleware_KeepsClientIDs(t *testing.T) {
	cfg := config.LoggingConfig{
		RequestID: config.RequestIDConfig{Enabled: true, Header: "X-Correlation"},
		Trace:     config.TraceConfig{Enabled: true, Header: " X-B3-Trace "},
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := RequestIDFromContext(r.Context()); got != "abc" {
			t.Errorf("request id = %q, want abc", got)
		}
		if got := TraceIDFromContext(r.Context()); got != "def" {
			t.Errorf("trace id = %q, want def", got)
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation", "abc")
	req.Header.Set("X-B3-Trace", "def")
	rr := httptest.NewRecorder()
	RequestContextMiddleware(cfg)(handler).ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Correlation"); got != "abc" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
	if got := rr.Header().Get("X-B3-Trace"); got != "def" {
		t.Fatalf("expected echoed trace id, got %q", got)
	}
}

func TestRequestContextMiddleware_Disabled(t *testing.T) {
	buf := captureLogs(t, zerolog.InfoLevel)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := RequestIDFromContext(r.Context()); got != "" {
			t.Errorf("expected no request id, got %s", got)
		}
		WithContext(r.Context()).Info().Msg("hit")
	})

	rr := httptest.NewRecorder()
	RequestContextMiddleware(config.LoggingConfig{})(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

	if got := rr.Header().Get(defaultRequestHeader); got != "" {
		t.Fatalf("expected no request id header, got %s", got)
	}
	payload := decodeFirstLine(t, buf.Bytes())
	if _, ok := payload["request_id"]; ok {
		t.Errorf("unexpected request_id field: %v", payload)
	}
	if payload["path"] != "/x" {
		t.Errorf("path = %v, want /x", payload["path"])
	}
}

func TestWithContext_FallsBackToProcessLogger(t *testing.T) {
	if WithContext(nil) != L() {
		t.Fatal("nil context should yield the process logger")
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if WithContext(req.Context()) != L() {
		t.Fatal("plain context should yield the process logger")
	}
	if RequestIDFromContext(req.Context()) != "" || TraceIDFromContext(nil) != "" {
		t.Fatal("expected empty ids without middleware")
	}
}

func TestInitWriter_DebugForcesLevel(t *testing.T) {
	captureLogs(t, zerolog.InfoLevel)

	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.Logging.Format = "json"
	cfg.Server.Debug = true

	var buf bytes.Buffer
	InitWriter(&buf, cfg)
	L().Debug().Msg("visible in debug mode")

	if !bytes.Contains(buf.Bytes(), []byte("visible in debug mode")) {
		t.Fatalf("expected debug line in output, got %q", buf.String())
	}
}

func TestLevelOf(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":       zerolog.InfoLevel,
		"bogus":  zerolog.InfoLevel,
		"DEBUG":  zerolog.DebugLevel,
		" warn ": zerolog.WarnLevel,
		"error":  zerolog.ErrorLevel,
		"trace":  zerolog.TraceLevel,
		"info":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := levelOf(in); got != want {
			t.Errorf("levelOf(%q) = %v, want %v", in, got, want)
		}
	}
}
