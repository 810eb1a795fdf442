package plugins

import (
	"net/http"
	"strings"
	"time"

	"github.com/0xReLogic/handview/internal/logging"
	"github.com/0xReLogic/handview/internal/utils"
)

// Config example:
//
//	- name: logging
//	  config:
//	    skip_static: true
func init() {
	RegisterBuiltin("logging", func(name string, cfg map[string]interface{}) (Middleware, func(), error) {
		skipStatic, _ := cfg["skip_static"].(bool)
		staticPrefix, _ := cfg["static_prefix"].(string)
		if staticPrefix == "" {
			staticPrefix = "/static/"
		}

		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				start := time.Now()
				rec := utils.NewStatusRecorder(w)
				next.ServeHTTP(rec, r)

				if skipStatic && strings.HasPrefix(r.URL.Path, staticPrefix) {
					return
				}

				latencyMs := float64(time.Since(start)) / float64(time.Millisecond)
				logger := logging.WithContext(r.Context())
				logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("client_ip", utils.ClientIP(r)).
					Int("status", rec.Status()).
					Int64("bytes", rec.BytesWritten()).
					Float64("latency_ms", latencyMs).
					Msg("request")
			})
		}, nil, nil
	})
}
