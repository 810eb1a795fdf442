package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/0xReLogic/handview/internal/config"
)

// RequestContextMiddleware attaches a request scoped logger to every request,
// tagged with method and path and, when enabled, request and trace ids.
// Ids sent by the client are kept and echoed; missing ones are generated.
func RequestContextMiddleware(cfg config.LoggingConfig) func(http.Handler) http.Handler {
	reqHeader := RequestHeaderName(cfg)
	traceHeader := TraceHeaderName(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := &scope{}
			if cfg.RequestID.Enabled {
				s.requestID = propagateID(w, r, reqHeader, "req")
			}
			if cfg.Trace.Enabled {
				s.traceID = propagateID(w, r, traceHeader, "trace")
			}

			lc := L().With().Str("method", r.Method).Str("path", r.URL.Path)
			if s.requestID != "" {
				lc = lc.Str("request_id", s.requestID)
			}
			if s.traceID != "" {
				lc = lc.Str("trace_id", s.traceID)
			}
			logger := lc.Logger()
			s.logger = &logger

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), scopeKey{}, s)))
		})
	}
}

// propagateID returns the id carried in header, generating one when the
// client sent none, and mirrors it on the response.
func propagateID(w http.ResponseWriter, r *http.Request, header, prefix string) string {
	id := strings.TrimSpace(r.Header.Get(header))
	if id == "" {
		id = newID(prefix)
		r.Header.Set(header, id)
	}
	w.Header().Set(header, id)
	return id
}

func newID(prefix string) string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return prefix + "_" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return prefix + "_" + hex.EncodeToString(b[:])
}
