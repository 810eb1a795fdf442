// Package server wires the front controller, middleware and auxiliary
// endpoints into HTTP servers and runs them until the context is cancelled.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/0xReLogic/handview/internal/adminapi"
	"github.com/0xReLogic/handview/internal/config"
	"github.com/0xReLogic/handview/internal/frontcontroller"
	"github.com/0xReLogic/handview/internal/logging"
	"github.com/0xReLogic/handview/internal/metrics"
	"github.com/0xReLogic/handview/internal/plugins"
	"github.com/0xReLogic/handview/internal/utils"
)

// ErrBind is returned when the listening socket cannot be bound.
var ErrBind = errors.New("bind failed")

// Server is the handview HTTP server.
type Server struct {
	cfg      *config.Config
	router   *frontcontroller.Router
	metrics  *metrics.MetricsCollector
	plugins  *plugins.Chain
	http     *http.Server
	listener net.Listener
	aux      []*auxServer
}

// auxServer is a metrics or admin server bound alongside the main one.
type auxServer struct {
	srv *http.Server
	ln  net.Listener
}

// New builds the server for cfg. cfg must not be modified afterwards.
func New(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mc := metrics.NewMetricsCollector()
	router, err := frontcontroller.New(cfg, mc)
	if err != nil {
		return nil, fmt.Errorf("failed to build routes: %w", err)
	}

	trust, err := utils.NewTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, err
	}

	chain, err := buildChain(cfg, router)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		router:  router,
		metrics: mc,
		plugins: chain,
		http:    createHTTPServer(cfg, wrapHandler(cfg, chain, mc, trust)),
	}

	if cfg.Metrics.Enabled {
		s.aux = append(s.aux, &auxServer{srv: metricsServer(cfg, mc)})
	}
	if cfg.AdminAPI.Enabled {
		admin, err := adminServer(cfg, router, mc, trust)
		if err != nil {
			chain.Close()
			return nil, err
		}
		s.aux = append(s.aux, &auxServer{srv: admin})
	}

	return s, nil
}

// Handler returns the fully wrapped request handler.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Router returns the front controller.
func (s *Server) Router() *frontcontroller.Router {
	return s.router
}

// Metrics returns the server's metrics collector.
func (s *Server) Metrics() *metrics.MetricsCollector {
	return s.metrics
}

// buildChain wraps the front controller in the configured plugin chain.
func buildChain(cfg *config.Config, router http.Handler) (*plugins.Chain, error) {
	logger := logging.L()

	chain, err := plugins.BuildChain(cfg.Plugins, router)
	if err != nil {
		return nil, fmt.Errorf("failed to build plugin chain: %w", err)
	}
	if cfg.Plugins.Enabled && len(cfg.Plugins.Chain) > 0 {
		names := make([]string, 0, len(cfg.Plugins.Chain))
		for _, p := range cfg.Plugins.Chain {
			names = append(names, p.Name)
		}
		logger.Info().Strs("plugins", names).Msg("plugins enabled")
	} else {
		logger.Debug().Msg("plugins disabled")
	}
	return chain, nil
}

// wrapHandler constructs the handler stack: client IP resolution, request
// context, metrics, plugin chain (outermost first).
func wrapHandler(cfg *config.Config, chain http.Handler, mc *metrics.MetricsCollector, trust *utils.TrustedProxies) http.Handler {
	handler := mc.Middleware(chain)
	handler = logging.RequestContextMiddleware(cfg.Logging)(handler)
	return trust.Middleware(handler)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// createHTTPServer creates and configures the main HTTP server
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  seconds(cfg.Server.Timeouts.Read),
		WriteTimeout: seconds(cfg.Server.Timeouts.Write),
		IdleTimeout:  seconds(cfg.Server.Timeouts.Idle),
	}

	if cfg.Server.TLS.Enabled {
		server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}
	return server
}

func metricsServer(cfg *config.Config, mc *metrics.MetricsCollector) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Metrics.Path, mc.MetricsHandler())
	mux.HandleFunc("/health", mc.HealthHandler())

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func adminServer(cfg *config.Config, router *frontcontroller.Router, mc *metrics.MetricsCollector, trust *utils.TrustedProxies) (*http.Server, error) {
	handler, err := adminapi.NewMux(router, cfg.AdminAPI, mc)
	if err != nil {
		return nil, fmt.Errorf("failed to build admin api: %w", err)
	}
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.AdminAPI.Port),
		Handler:      trust.Middleware(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, nil
}

// validateTLSFiles checks if TLS certificate and key files exist
func validateTLSFiles(cfg *config.Config) error {
	if !cfg.Server.TLS.Enabled {
		return nil
	}
	if _, err := os.Stat(cfg.Server.TLS.CertFile); err != nil {
		return fmt.Errorf("tls certificate file not found: %s", cfg.Server.TLS.CertFile)
	}
	if _, err := os.Stat(cfg.Server.TLS.KeyFile); err != nil {
		return fmt.Errorf("tls key file not found: %s", cfg.Server.TLS.KeyFile)
	}
	return nil
}

// Listen binds the main listening socket, then the metrics and admin ones.
// A port already in use yields an error wrapping ErrBind and leaves nothing
// bound.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	if err := validateTLSFiles(s.cfg); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBind, s.http.Addr, err)
	}
	s.listener = ln

	for _, aux := range s.aux {
		ln, err := net.Listen("tcp", aux.srv.Addr)
		if err != nil {
			s.closeListeners()
			return fmt.Errorf("%w: %s: %v", ErrBind, aux.srv.Addr, err)
		}
		aux.ln = ln
	}
	return nil
}

func (s *Server) closeListeners() error {
	var errs []error
	if s.listener != nil {
		errs = append(errs, s.listener.Close())
		s.listener = nil
	}
	for _, aux := range s.aux {
		if aux.ln != nil {
			errs = append(errs, aux.ln.Close())
			aux.ln = nil
		}
	}
	return errors.Join(errs...)
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close releases listeners that were bound but never served, and the
// resources held by the plugin chain.
func (s *Server) Close() error {
	s.plugins.Close()
	return s.closeListeners()
}

// Run binds and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve serves on the bound listener until ctx is cancelled, then shuts down
// gracefully. It returns a non-nil error only if serving fails.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server: Serve called before Listen")
	}
	logStartupInfo(s.cfg, s.listener.Addr())
	defer s.release()

	for _, aux := range s.aux {
		startAuxServer(aux)
	}

	serverErrors := make(chan error, 1)
	go func() {
		if s.cfg.Server.TLS.Enabled {
			serverErrors <- s.http.ServeTLS(s.listener, s.cfg.Server.TLS.CertFile, s.cfg.Server.TLS.KeyFile)
			return
		}
		serverErrors <- s.http.Serve(s.listener)
	}()

	select {
	case err := <-serverErrors:
		s.shutdownAux()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.shutdownGracefully(seconds(s.cfg.Server.Timeouts.Shutdown))
		<-serverErrors
		return nil
	}
}

func startAuxServer(aux *auxServer) {
	go func() {
		logger := logging.L()
		logger.Info().Str("addr", aux.ln.Addr().String()).Msg("auxiliary server starting")
		if err := aux.srv.Serve(aux.ln); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Str("addr", aux.srv.Addr).Msg("auxiliary server error")
		}
	}()
}

// release drops the listeners closed by shutdown and stops plugin goroutines.
func (s *Server) release() {
	s.listener = nil
	for _, aux := range s.aux {
		aux.ln = nil
	}
	s.plugins.Close()
}

// logStartupInfo logs server startup information
func logStartupInfo(cfg *config.Config, addr net.Addr) {
	logger := logging.L()

	scheme := "http"
	if cfg.Server.TLS.Enabled {
		scheme = "https"
	}
	logger.Info().
		Str("addr", addr.String()).
		Str("scheme", scheme).
		Str("templates", cfg.Templates.Dir).
		Str("index", cfg.Templates.Index).
		Msg("handview starting")
	if cfg.Static.IsEnabled() {
		logger.Info().Str("dir", cfg.Static.Dir).Str("prefix", cfg.Static.URLPrefix).Msg("serving static assets")
	}
	logger.Info().
		Dur("read_timeout", seconds(cfg.Server.Timeouts.Read)).
		Dur("write_timeout", seconds(cfg.Server.Timeouts.Write)).
		Dur("idle_timeout", seconds(cfg.Server.Timeouts.Idle)).
		Msg("server timeouts configured")
	if cfg.Server.Debug {
		logger.Warn().Msg("debug mode: verbose logging enabled, do not use in production")
	}
}

func (s *Server) shutdownAux() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, aux := range s.aux {
		_ = aux.srv.Shutdown(ctx)
	}
}

// shutdownGracefully drains in-flight requests, then closes the server
func (s *Server) shutdownGracefully(timeout time.Duration) {
	logger := logging.L()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info().Dur("timeout", timeout).Msg("shutting down server gracefully")

	if err := s.http.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
		if closeErr := s.http.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("error closing server")
		}
	}
	for _, aux := range s.aux {
		if err := aux.srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Str("addr", aux.srv.Addr).Msg("error shutting down auxiliary server")
		}
	}

	logger.Info().Msg("server shutdown complete")
}
