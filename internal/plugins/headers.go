package plugins

import (
	"net/http"
	"strconv"
)

// secureDefaults are applied when the headers plugin runs with secure: true.
var secureDefaults = map[string]string{
	"X-Frame-Options":        "DENY",
	"X-Content-Type-Options": "nosniff",
	"X-XSS-Protection":       "1; mode=block",
	"Referrer-Policy":        "strict-origin-when-cross-origin",
}

// Config example:
//
//	- name: headers
//	  config:
//	    secure: true
//	    hsts_seconds: 31536000
//	    set:
//	      Cache-Control: no-cache
//	    request_set:
//	      X-Forwarded-Proto: https
//
// Entries under set override the secure defaults.
func init() {
	RegisterBuiltin("headers", func(name string, cfg map[string]interface{}) (Middleware, func(), error) {
		set, err := toStringMap(cfg["set"])
		if err != nil {
			return nil, nil, err
		}
		reqSet, err := toStringMap(cfg["request_set"])
		if err != nil {
			return nil, nil, err
		}
		hsts, err := intOption(cfg, "hsts_seconds", 0)
		if err != nil {
			return nil, nil, err
		}

		resp := http.Header{}
		if secure, _ := cfg["secure"].(bool); secure {
			for k, v := range secureDefaults {
				resp.Set(k, v)
			}
		}
		if hsts > 0 {
			resp.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(hsts)+"; includeSubDomains")
		}
		for k, v := range set {
			resp.Set(k, v)
		}

		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range reqSet {
					r.Header.Set(k, v)
				}
				h := w.Header()
				for k, v := range resp {
					h[k] = append([]string(nil), v...)
				}
				next.ServeHTTP(w, r)
			})
		}, nil, nil
	})
}
