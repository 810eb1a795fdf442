package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/0xReLogic/handview/internal/utils"
)

const (
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 5000
	DefaultTemplatesDir  = "templates"
	DefaultIndexTemplate = "index_websocket.html"
	DefaultStaticDir     = "static"
	DefaultStaticPrefix  = "/static/"
)

// Config represents the main configuration structure for handview.
// It is built once at startup and must not be mutated afterwards.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Templates TemplatesConfig `yaml:"templates"`
	Static    StaticConfig    `yaml:"static"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	AdminAPI  AdminAPIConfig  `yaml:"admin_api"`
	Plugins   PluginsConfig   `yaml:"plugins"`
}

// ServerConfig holds the listener configuration
type ServerConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
	// TrustedProxies lists the peers whose X-Forwarded-For / X-Real-IP
	// headers are believed. Empty means the peer address is the client.
	TrustedProxies []string       `yaml:"trusted_proxies"`
	TLS            TLSConfig      `yaml:"tls"`
	Timeouts       TimeoutsConfig `yaml:"timeouts"`
}

// TLSConfig holds the TLS configuration
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// TimeoutsConfig holds server timeouts in seconds
type TimeoutsConfig struct {
	Read     int `yaml:"read"`
	Write    int `yaml:"write"`
	Idle     int `yaml:"idle"`
	Shutdown int `yaml:"shutdown"`
}

// TemplatesConfig names the template directory and the page served at "/".
type TemplatesConfig struct {
	Dir   string `yaml:"dir"`
	Index string `yaml:"index"`
}

// StaticConfig controls the static asset route.
type StaticConfig struct {
	Enabled   *bool  `yaml:"enabled"`
	Dir       string `yaml:"dir"`
	URLPrefix string `yaml:"url_prefix"`
}

// IsEnabled reports whether static assets are served. Unset means enabled.
func (s StaticConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level         string          `yaml:"level"`
	Format        string          `yaml:"format"`
	IncludeCaller bool            `yaml:"include_caller"`
	RequestID     RequestIDConfig `yaml:"request_id"`
	Trace         TraceConfig     `yaml:"trace"`
}

// RequestIDConfig configures request id propagation
type RequestIDConfig struct {
	Enabled bool   `yaml:"enabled"`
	Header  string `yaml:"header"`
}

// TraceConfig configures trace id propagation
type TraceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Header  string `yaml:"header"`
}

// MetricsConfig holds the metrics server configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// AdminAPIConfig holds the admin API configuration
type AdminAPIConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Port      int      `yaml:"port"`
	AuthToken string   `yaml:"auth_token"`
	AllowIPs  []string `yaml:"allow_ips"`
	DenyIPs   []string `yaml:"deny_ips"`
}

// PluginsConfig holds the middleware chain configuration
type PluginsConfig struct {
	Enabled bool           `yaml:"enabled"`
	Chain   []PluginConfig `yaml:"chain"`
}

// PluginConfig is a single entry of the plugin chain
type PluginConfig struct {
	Name   string                 `yaml:"name"`
	Config map[string]interface{} `yaml:"config"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filePath, err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Server.Host) == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Timeouts.Read == 0 {
		c.Server.Timeouts.Read = 15
	}
	if c.Server.Timeouts.Write == 0 {
		c.Server.Timeouts.Write = 15
	}
	if c.Server.Timeouts.Idle == 0 {
		c.Server.Timeouts.Idle = 60
	}
	if c.Server.Timeouts.Shutdown == 0 {
		c.Server.Timeouts.Shutdown = 10
	}

	if strings.TrimSpace(c.Templates.Dir) == "" {
		c.Templates.Dir = DefaultTemplatesDir
	}
	if strings.TrimSpace(c.Templates.Index) == "" {
		c.Templates.Index = DefaultIndexTemplate
	}

	if strings.TrimSpace(c.Static.Dir) == "" {
		c.Static.Dir = DefaultStaticDir
	}
	if strings.TrimSpace(c.Static.URLPrefix) == "" {
		c.Static.URLPrefix = DefaultStaticPrefix
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.AdminAPI.Port == 0 {
		c.AdminAPI.Port = 9091
	}
}

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("tls enabled but certificate or key not configured")
	}
	if _, err := utils.ParsePrefixes(c.Server.TrustedProxies); err != nil {
		return fmt.Errorf("server.trusted_proxies: %w", err)
	}
	if strings.TrimSpace(c.Templates.Index) == "" {
		return fmt.Errorf("templates.index must not be empty")
	}
	if err := validateMetricsPath(c.Metrics.Path); err != nil {
		return err
	}
	if c.Static.IsEnabled() {
		p := c.Static.URLPrefix
		if p == "/" || !strings.HasPrefix(p, "/") || !strings.HasSuffix(p, "/") {
			return fmt.Errorf("static.url_prefix must start and end with '/' and not be the root, got %q", p)
		}
	}
	return nil
}

// validateMetricsPath rejects paths the metrics mux cannot register next to
// its fixed /health route.
func validateMetricsPath(p string) error {
	switch {
	case !strings.HasPrefix(p, "/"):
		return fmt.Errorf("metrics.path must start with '/', got %q", p)
	case p == "/health":
		return fmt.Errorf("metrics.path must not be /health, it is served by the metrics server already")
	case strings.ContainsAny(p, " \t{}"):
		return fmt.Errorf("metrics.path must not contain spaces or braces, got %q", p)
	}
	return nil
}

// EffectiveLogLevel returns the configured log level, raised to debug in debug mode.
func (c *Config) EffectiveLogLevel() string {
	if c.Server.Debug {
		return "debug"
	}
	return c.Logging.Level
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
