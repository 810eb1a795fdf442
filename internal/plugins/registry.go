package plugins

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/0xReLogic/handview/internal/config"
)

// Middleware represents an HTTP middleware that wraps a handler.
// The returned handler should call the next handler to continue the chain.
type Middleware func(next http.Handler) http.Handler

// factory constructs a middleware from a plugin name and its config payload.
// The returned release func, if non-nil, frees whatever the middleware started.
type factory func(name string, cfg map[string]interface{}) (Middleware, func(), error)

// builtins holds registered built-in plugin factories by name
var builtins = map[string]factory{}

// RegisterBuiltin registers a built-in plugin factory
func RegisterBuiltin(name string, f factory) {
	if name == "" || f == nil {
		return
	}
	builtins[name] = f
}

// Chain is a built plugin chain. Close releases the resources held by its
// plugins and must be called once the handler is no longer served.
type Chain struct {
	http.Handler

	once     sync.Once
	releases []func()
}

// Close runs the plugins' release funcs, innermost first. It is idempotent.
func (c *Chain) Close() {
	c.once.Do(func() {
		for _, release := range c.releases {
			release()
		}
		c.releases = nil
	})
}

// BuildChain builds the middleware chain from configuration and applies it to base.
// Plugins are applied in the order listed; the first plugin wraps the entire chain.
func BuildChain(pc config.PluginsConfig, base http.Handler) (*Chain, error) {
	if base == nil {
		return nil, errors.New("base handler is nil")
	}
	chain := &Chain{Handler: base}
	if !pc.Enabled || len(pc.Chain) == 0 {
		return chain, nil
	}

	for i := len(pc.Chain) - 1; i >= 0; i-- {
		p := pc.Chain[i]
		f, ok := builtins[p.Name]
		if !ok {
			chain.Close()
			return nil, fmt.Errorf("unknown plugin: %s", p.Name)
		}
		cfg := p.Config
		if cfg == nil {
			cfg = map[string]interface{}{}
		}
		mw, release, err := f(p.Name, cfg)
		if err != nil {
			chain.Close()
			return nil, fmt.Errorf("plugin %s init failed: %w", p.Name, err)
		}
		if release != nil {
			chain.releases = append(chain.releases, release)
		}
		chain.Handler = mw(chain.Handler)
	}
	return chain, nil
}

// List returns the names of available built-in plugins, sorted.
func List() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Plugin config arrives from YAML (int) or JSON (float64); accept both.
func intOption(cfg map[string]interface{}, key string, def int) (int, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}

func stringList(cfg map[string]interface{}, key string) ([]string, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected %s to be a list of strings", key)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("all %s entries must be strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

// toStringMap converts a generic map to map[string]string if possible
func toStringMap(v interface{}) (map[string]string, error) {
	res := map[string]string{}
	if v == nil {
		return res, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected object for headers config")
	}
	for k, val := range m {
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("header %s must be a string", k)
		}
		res[k] = s
	}
	return res, nil
}
