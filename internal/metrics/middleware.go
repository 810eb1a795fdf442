package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/0xReLogic/handview/internal/utils"
)

// UnmatchedRoute labels requests no route claimed.
const UnmatchedRoute = "unmatched"

type routeLabelKey struct{}

type routeLabel struct {
	name string
}

// SetRoute labels the in-flight request with the route that served it.
// It is a no-op when the request did not pass through Middleware.
func SetRoute(ctx context.Context, route string) {
	if l, ok := ctx.Value(routeLabelKey{}).(*routeLabel); ok {
		l.name = route
	}
}

// Middleware records request counts, status codes and latency.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		mc.RecordRequest()

		label := &routeLabel{name: UnmatchedRoute}
		rec := utils.NewStatusRecorder(w)
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), routeLabelKey{}, label)))

		dur := time.Since(start)
		mc.RecordResponse(rec.Status(), dur)
		mc.RecordRoute(label.name, rec.Status(), dur)
	})
}
