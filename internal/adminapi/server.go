package adminapi

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/0xReLogic/handview/internal/config"
	"github.com/0xReLogic/handview/internal/frontcontroller"
	"github.com/0xReLogic/handview/internal/logging"
	"github.com/0xReLogic/handview/internal/metrics"
)

// RouteLister exposes the front controller's route table
type RouteLister interface {
	Routes() []frontcontroller.Route
}

// RouteInfo is the JSON form of a route
type RouteInfo struct {
	Method  string `json:"method"`
	Pattern string `json:"pattern"`
	Prefix  bool   `json:"prefix"`
}

// NewMux creates an HTTP handler for the Admin API
func NewMux(routes RouteLister, cfg config.AdminAPIConfig, mc *metrics.MetricsCollector) (http.Handler, error) {
	mux := http.NewServeMux()
	token := cfg.AuthToken

	auth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			authz := r.Header.Get("Authorization")
			presented := strings.TrimPrefix(authz, "Bearer ")
			if !strings.HasPrefix(authz, "Bearer ") || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	getOnly := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				w.Header().Set("Allow", "GET, HEAD")
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	// Health endpoint (no auth)
	mux.Handle("/v1/health", getOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})))

	mux.Handle("/v1/metrics", getOnly(auth(mc.MetricsHandler())))

	mux.Handle("/v1/routes", getOnly(auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		table := routes.Routes()
		out := make([]RouteInfo, 0, len(table))
		for _, rt := range table {
			out = append(out, RouteInfo{Method: rt.Method, Pattern: rt.Pattern, Prefix: rt.Prefix})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}))))

	var handler http.Handler = mux
	if len(cfg.AllowIPs) > 0 || len(cfg.DenyIPs) > 0 {
		filter, err := NewIPFilter(cfg.AllowIPs, cfg.DenyIPs)
		if err != nil {
			return nil, err
		}
		handler = filter.Middleware(handler)
	}

	logger := logging.L()
	logger.Debug().Msg("admin api mux initialized")
	return handler, nil
}
