package config

import (
	"os"
	"testing"
)

func writeTempConfig(t *testing.T, pattern, content string) string {
	t.Helper()
	tempFile, err := os.CreateTemp(t.TempDir(), pattern)
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	if _, err := tempFile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	if err := tempFile.Close(); err != nil {
		t.Fatalf("Failed to close temp file: %v", err)
	}
	return tempFile.Name()
}

func TestLoadConfig(t *testing.T) {
	configContent := `
server:
  host: "127.0.0.1"
  port: 8080
  debug: true
  timeouts:
    read: 5

templates:
  dir: "web/templates"
  index: "home.html"

static:
  dir: "web/assets"
  url_prefix: "/assets/"

logging:
  level: "warn"
  format: "json"
  request_id:
    enabled: true

plugins:
  enabled: true
  chain:
    - name: headers
      config:
        set:
          X-App: handview
`
	path := writeTempConfig(t, "handview-config-*.yaml", configContent)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Addr() != "127.0.0.1:8080" {
		t.Errorf("Expected addr 127.0.0.1:8080, got %s", cfg.Addr())
	}
	if cfg.Server.Timeouts.Read != 5 {
		t.Errorf("Expected read timeout 5, got %d", cfg.Server.Timeouts.Read)
	}
	if cfg.Server.Timeouts.Write != 15 {
		t.Errorf("Expected default write timeout 15, got %d", cfg.Server.Timeouts.Write)
	}
	if cfg.Templates.Dir != "web/templates" || cfg.Templates.Index != "home.html" {
		t.Errorf("Unexpected templates config: %+v", cfg.Templates)
	}
	if cfg.Static.URLPrefix != "/assets/" || !cfg.Static.IsEnabled() {
		t.Errorf("Unexpected static config: %+v", cfg.Static)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected json format, got %s", cfg.Logging.Format)
	}
	if got := cfg.EffectiveLogLevel(); got != "debug" {
		t.Errorf("Expected debug mode to force debug level, got %s", got)
	}
	if !cfg.Plugins.Enabled || len(cfg.Plugins.Chain) != 1 || cfg.Plugins.Chain[0].Name != "headers" {
		t.Errorf("Unexpected plugins config: %+v", cfg.Plugins)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, "handview-config-minimal-*.yaml", "server: {}\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Expected default port %d, got %d", DefaultPort, cfg.Server.Port)
	}
	if cfg.Addr() != "127.0.0.1:5000" {
		t.Errorf("Expected addr 127.0.0.1:5000, got %s", cfg.Addr())
	}
	if cfg.Templates.Index != DefaultIndexTemplate {
		t.Errorf("Expected index template %s, got %s", DefaultIndexTemplate, cfg.Templates.Index)
	}
	if cfg.Templates.Dir != DefaultTemplatesDir {
		t.Errorf("Expected templates dir %s, got %s", DefaultTemplatesDir, cfg.Templates.Dir)
	}
	if cfg.Static.URLPrefix != DefaultStaticPrefix {
		t.Errorf("Expected static prefix %s, got %s", DefaultStaticPrefix, cfg.Static.URLPrefix)
	}
	if cfg.Server.Debug {
		t.Error("Expected debug to be off by default")
	}
	if cfg.EffectiveLogLevel() != "info" {
		t.Errorf("Expected info level, got %s", cfg.EffectiveLogLevel())
	}

	def := Default()
	if got := def.Addr(); got != "127.0.0.1:5000" {
		t.Errorf("Expected Default() to listen on the loopback interface, got %s", got)
	}
	if def.Server.Port != cfg.Server.Port || def.Templates != cfg.Templates {
		t.Errorf("Default() differs from loaded defaults: %+v vs %+v", def.Server, cfg.Server)
	}
}

func TestLoadConfigError(t *testing.T) {
	if _, err := LoadConfig("non-existent-file.yaml"); err == nil {
		t.Error("Expected error when loading non-existent file, got nil")
	}

	path := writeTempConfig(t, "handview-config-invalid-*.yaml", "invalid: yaml: content:")
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error when loading invalid YAML, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "port too large", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "negative port", mutate: func(c *Config) { c.Server.Port = -1 }, wantErr: true},
		{name: "tls without files", mutate: func(c *Config) { c.Server.TLS.Enabled = true }, wantErr: true},
		{name: "root static prefix", mutate: func(c *Config) { c.Static.URLPrefix = "/" }, wantErr: true},
		{name: "static prefix without slash", mutate: func(c *Config) { c.Static.URLPrefix = "static" }, wantErr: true},
		{name: "root prefix allowed when static disabled", mutate: func(c *Config) {
			off := false
			c.Static.Enabled = &off
			c.Static.URLPrefix = "/"
		}},
		{name: "blank index", mutate: func(c *Config) { c.Templates.Index = "  " }, wantErr: true},
		{name: "metrics path clashes with health", mutate: func(c *Config) { c.Metrics.Path = "/health" }, wantErr: true},
		{name: "metrics path without slash", mutate: func(c *Config) { c.Metrics.Path = "metrics" }, wantErr: true},
		{name: "metrics path with method", mutate: func(c *Config) { c.Metrics.Path = "/x GET" }, wantErr: true},
		{name: "metrics path wildcard", mutate: func(c *Config) { c.Metrics.Path = "/{name}" }, wantErr: true},
		{name: "custom metrics path", mutate: func(c *Config) { c.Metrics.Path = "/internal/stats" }},
		{name: "trusted proxies", mutate: func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/8", "::1"} }},
		{name: "bad trusted proxy", mutate: func(c *Config) { c.Server.TrustedProxies = []string{"proxy.local"} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestHostOverride(t *testing.T) {
	path := writeTempConfig(t, "handview-config-host-*.yaml", "server:\n  host: 0.0.0.0\n  port: 8000\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:8000" {
		t.Errorf("Expected explicit host to be kept, got %s", cfg.Addr())
	}
}
