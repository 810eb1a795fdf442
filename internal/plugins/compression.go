package plugins

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/0xReLogic/handview/internal/logging"
)

var defaultGzipContentTypes = []string{"text/html", "text/css", "text/javascript", "application/javascript", "application/json"}

// gzipResponseWriter buffers the body so the compress decision can be made
// once the size and content type are known.
type gzipResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	wroteHeader  bool
	minSize      int
	level        int
	contentTypes []string

	buf bytes.Buffer
}

func (g *gzipResponseWriter) WriteHeader(code int) {
	if g.wroteHeader {
		return
	}
	g.statusCode = code
	g.wroteHeader = true
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) {
	if !g.wroteHeader {
		g.WriteHeader(http.StatusOK)
	}
	return g.buf.Write(b)
}

func (g *gzipResponseWriter) passthrough(body []byte) error {
	g.ResponseWriter.WriteHeader(g.statusCode)
	_, err := g.ResponseWriter.Write(body)
	return err
}

// Finish decides whether to compress and flushes the buffered response.
func (g *gzipResponseWriter) Finish() error {
	if !g.wroteHeader {
		g.WriteHeader(http.StatusOK)
	}

	body := g.buf.Bytes()
	h := g.Header()
	h.Add("Vary", "Accept-Encoding")

	if g.statusCode < http.StatusOK || g.statusCode == http.StatusNoContent || g.statusCode == http.StatusNotModified {
		return g.passthrough(body)
	}
	// Range offsets refer to the identity body; compressing would corrupt them.
	if g.statusCode == http.StatusPartialContent || h.Get("Content-Range") != "" {
		return g.passthrough(body)
	}
	if h.Get("Content-Encoding") != "" {
		return g.passthrough(body)
	}
	if cl := h.Get("Content-Length"); cl != "" {
		if n, err := strconv.Atoi(cl); err == nil && n < g.minSize {
			return g.passthrough(body)
		}
	}
	if len(body) < g.minSize {
		return g.passthrough(body)
	}
	if !matchesContentType(h.Get("Content-Type"), g.contentTypes) {
		return g.passthrough(body)
	}

	h.Set("Content-Encoding", "gzip")
	h.Del("Content-Length")
	g.ResponseWriter.WriteHeader(g.statusCode)

	gz, err := gzip.NewWriterLevel(g.ResponseWriter, g.level)
	if err != nil {
		return err
	}
	if _, err := gz.Write(body); err != nil {
		_ = gz.Close()
		return err
	}
	return gz.Close()
}

func matchesContentType(ct string, allowed []string) bool {
	for _, a := range allowed {
		if strings.HasPrefix(ct, a) {
			return true
		}
	}
	return false
}

func parseGzipConfig(cfg map[string]interface{}) (int, int, []string, error) {
	level, err := intOption(cfg, "level", gzip.DefaultCompression)
	if err != nil {
		return 0, 0, nil, err
	}
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return 0, 0, nil, fmt.Errorf("compression level must be between -2 and 9, got %d", level)
	}

	minSize, err := intOption(cfg, "min_size", 1024)
	if err != nil {
		return 0, 0, nil, err
	}
	if minSize < 0 {
		return 0, 0, nil, fmt.Errorf("min_size must not be negative, got %d", minSize)
	}

	contentTypes, err := stringList(cfg, "content_types")
	if err != nil {
		return 0, 0, nil, err
	}
	if len(contentTypes) == 0 {
		contentTypes = defaultGzipContentTypes
	}
	return level, minSize, contentTypes, nil
}

// Config example:
//
//	- name: gzip
//	  config:
//	    level: 6
//	    min_size: 1024
//	    content_types:
//	      - "text/html"
//	      - "text/javascript"
func init() {
	RegisterBuiltin("gzip", func(name string, cfg map[string]interface{}) (Middleware, func(), error) {
		level, minSize, contentTypes, err := parseGzipConfig(cfg)
		if err != nil {
			return nil, nil, err
		}
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodHead || r.Header.Get("Range") != "" || !acceptsGzip(r.Header.Get("Accept-Encoding")) {
					next.ServeHTTP(w, r)
					return
				}

				grw := &gzipResponseWriter{
					ResponseWriter: w,
					level:          level,
					minSize:        minSize,
					contentTypes:   contentTypes,
				}
				next.ServeHTTP(grw, r)

				if err := grw.Finish(); err != nil {
					logger := logging.WithContext(r.Context())
					logger.Error().Err(err).Msg("gzip: failed to write compressed response")
				}
			})
		}, nil, nil
	})
}

func acceptsGzip(acceptEncoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.TrimSpace(coding) != "gzip" {
			continue
		}
		return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
	}
	return false
}
