package middleware

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CORSConfig splits cross-origin access to the run API into reads (run
// history, the event stream) and writes (triggering and cancelling runs).
type CORSConfig struct {
	// ReadOrigins may call GET and HEAD routes. "*" allows any origin.
	ReadOrigins []string `yaml:"read_origins" mapstructure:"read_origins"`
	// WriteOrigins may also call POST and DELETE routes. Empty means no
	// cross-origin writes; requests without an Origin header are unaffected.
	WriteOrigins   []string      `yaml:"write_origins" mapstructure:"write_origins"`
	AllowedHeaders []string      `yaml:"allowed_headers" mapstructure:"allowed_headers"`
	MaxAge         time.Duration `yaml:"max_age" mapstructure:"max_age"`
}

var (
	readMethods  = []string{http.MethodGet, http.MethodHead}
	writeMethods = []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodDelete}
)

// methodsFor returns what origin may call, or nil.
func (c *CORSConfig) methodsFor(origin string) []string {
	switch {
	case originAllowed(origin, c.WriteOrigins):
		return writeMethods
	case originAllowed(origin, c.ReadOrigins):
		return readMethods
	}
	return nil
}

// CORS answers preflights and sets CORS headers. A cross-origin POST or
// DELETE from an origin outside WriteOrigins is refused with 403 before it
// reaches a handler, so a read-only origin can never trigger or cancel a run.
func CORS(cfg *CORSConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Add("Vary", "Origin")
			methods := cfg.methodsFor(origin)

			if r.Method == http.MethodOptions {
				requested := r.Header.Get("Access-Control-Request-Method")
				if methods != nil && slices.Contains(methods, requested) {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
					if len(cfg.AllowedHeaders) > 0 {
						h.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ", "))
					}
					if cfg.MaxAge > 0 {
						h.Set("Access-Control-Max-Age", strconv.Itoa(int(cfg.MaxAge.Seconds())))
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if !slices.Contains(methods, r.Method) {
				if slices.Contains(readMethods, r.Method) {
					// The browser hides the response without the allow header.
					next.ServeHTTP(w, r)
					return
				}
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "origin may not " + r.Method + " " + r.URL.Path})
				return
			}
			h.Set("Access-Control-Allow-Origin", origin)
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if origin == a || a == "*" {
			return true
		}
	}
	return false
}
