package frontcontroller

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/0xReLogic/handview/internal/config"
	"github.com/0xReLogic/handview/internal/logging"
	"github.com/0xReLogic/handview/internal/metrics"
	"github.com/0xReLogic/handview/internal/render"
)

// TemplateRenderer renders a named template into markup.
type TemplateRenderer interface {
	Render(name string) ([]byte, error)
}

// IndexHandler renders the named template on every request and writes it
// with status 200. Render failures become a 500.
func IndexHandler(renderer TemplateRenderer, name string, mc *metrics.MetricsCollector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := renderer.Render(name)
		if mc != nil {
			mc.RecordTemplateRender(err == nil)
		}
		if err != nil {
			logger := logging.WithContext(r.Context())
			evt := logger.Error()
			if errors.Is(err, render.ErrTemplateNotFound) {
				evt = evt.Str("reason", "not_found")
			} else {
				evt = evt.Str("reason", "invalid")
			}
			evt.Err(err).Str("template", name).Msg("template render failed")
			writeError(w, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", render.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	})
}

// StaticHandler serves files under dir at urlPrefix. Directories are never
// listed; they answer 404 like missing files.
func StaticHandler(dir, urlPrefix string) http.Handler {
	return http.StripPrefix(urlPrefix, http.FileServer(filesOnly{http.Dir(dir)}))
}

type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}

// DefaultRoutes returns the route table of the front controller:
// the index page at "/" and, when enabled, the static asset tree.
func DefaultRoutes(cfg *config.Config, renderer TemplateRenderer, mc *metrics.MetricsCollector) []Route {
	routes := []Route{
		{Method: http.MethodGet, Pattern: "/", Handler: IndexHandler(renderer, cfg.Templates.Index, mc)},
	}
	if cfg.Static.IsEnabled() {
		routes = append(routes, Route{
			Method:  http.MethodGet,
			Pattern: cfg.Static.URLPrefix,
			Prefix:  true,
			Handler: StaticHandler(cfg.Static.Dir, cfg.Static.URLPrefix),
		})
	}
	return routes
}

// New builds the front controller for cfg.
func New(cfg *config.Config, mc *metrics.MetricsCollector) (*Router, error) {
	renderer := render.New(cfg.Templates.Dir)
	if err := renderer.Check(cfg.Templates.Index); err != nil {
		// Not fatal: the template only has to exist when "/" is requested.
		logger := logging.L()
		logger.Warn().Err(err).Str("dir", cfg.Templates.Dir).Msg("index template not available yet")
	}
	if err := checkStaticDir(cfg.Static); err != nil {
		logger := logging.L()
		logger.Warn().Err(err).Str("dir", cfg.Static.Dir).Msg("static assets not available, the page scripts will 404")
	}
	return NewRouter(DefaultRoutes(cfg, renderer, mc)...)
}

// checkStaticDir reports why an enabled static tree cannot be served.
func checkStaticDir(sc config.StaticConfig) error {
	if !sc.IsEnabled() {
		return nil
	}
	info, err := os.Stat(sc.Dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", sc.Dir)
	}
	return nil
}
