package frontcontroller

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/0xReLogic/handview/internal/metrics"
)

var errDuplicateRoute = errors.New("duplicate route")

// Route maps an HTTP method and path pattern to a handler.
// Exact routes match the path verbatim. Prefix routes match any path that
// starts with Pattern, which must end in "/".
type Route struct {
	Method  string
	Pattern string
	Prefix  bool
	Handler http.Handler
}

func (r Route) String() string {
	if r.Prefix {
		return r.Method + " " + r.Pattern + "*"
	}
	return r.Method + " " + r.Pattern
}

type prefixEntry struct {
	pattern string
	methods map[string]Route
}

// Router dispatches requests through a route table that is fixed at
// construction. It is safe for concurrent use.
type Router struct {
	routes []Route
	exact  map[string]map[string]Route
	prefix []prefixEntry
}

// NewRouter builds a Router from routes. Duplicate (method, pattern) pairs,
// empty patterns and root prefix routes are rejected.
func NewRouter(routes ...Route) (*Router, error) {
	rt := &Router{
		exact: make(map[string]map[string]Route),
	}
	prefixes := make(map[string]map[string]Route)

	for _, route := range routes {
		if route.Handler == nil {
			return nil, fmt.Errorf("route %s: nil handler", route)
		}
		if route.Method == "" {
			return nil, fmt.Errorf("route %s: empty method", route)
		}
		if !strings.HasPrefix(route.Pattern, "/") {
			return nil, fmt.Errorf("route %s: pattern must start with '/'", route)
		}

		table := rt.exact
		if route.Prefix {
			if route.Pattern == "/" || !strings.HasSuffix(route.Pattern, "/") {
				return nil, fmt.Errorf("route %s: prefix pattern must end with '/' and not be the root", route)
			}
			table = prefixes
		}

		methods, ok := table[route.Pattern]
		if !ok {
			methods = make(map[string]Route)
			table[route.Pattern] = methods
		}
		if _, dup := methods[route.Method]; dup {
			return nil, fmt.Errorf("route %s: %w", route, errDuplicateRoute)
		}
		methods[route.Method] = route
		rt.routes = append(rt.routes, route)
	}

	for pattern, methods := range prefixes {
		rt.prefix = append(rt.prefix, prefixEntry{pattern: pattern, methods: methods})
	}
	// longest prefix wins
	sort.Slice(rt.prefix, func(i, j int) bool {
		return len(rt.prefix[i].pattern) > len(rt.prefix[j].pattern)
	})

	return rt, nil
}

// Routes returns the route table in registration order.
func (rt *Router) Routes() []Route {
	out := make([]Route, len(rt.routes))
	copy(out, rt.routes)
	return out
}

func (rt *Router) match(path string) map[string]Route {
	if methods, ok := rt.exact[path]; ok {
		return methods
	}
	for _, p := range rt.prefix {
		if strings.HasPrefix(path, p.pattern) {
			return p.methods
		}
	}
	return nil
}

// ServeHTTP dispatches the request. HEAD falls back to the GET handler,
// OPTIONS answers with the allowed methods, a known path with an unsupported
// method gets 405 and anything else gets 404.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	methods := rt.match(r.URL.Path)
	if methods == nil {
		writeError(w, http.StatusNotFound)
		return
	}

	route, ok := methods[r.Method]
	if !ok && r.Method == http.MethodHead {
		route, ok = methods[http.MethodGet]
	}
	if !ok {
		w.Header().Set("Allow", allowHeader(methods))
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		writeError(w, http.StatusMethodNotAllowed)
		return
	}

	metrics.SetRoute(r.Context(), route.String())
	route.Handler.ServeHTTP(w, r)
}

func allowHeader(methods map[string]Route) string {
	allowed := make([]string, 0, len(methods)+2)
	for m := range methods {
		allowed = append(allowed, m)
	}
	if _, ok := methods[http.MethodGet]; ok {
		if _, ok := methods[http.MethodHead]; !ok {
			allowed = append(allowed, http.MethodHead)
		}
	}
	if _, ok := methods[http.MethodOptions]; !ok {
		allowed = append(allowed, http.MethodOptions)
	}
	sort.Strings(allowed)
	return strings.Join(allowed, ", ")
}

func writeError(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}
