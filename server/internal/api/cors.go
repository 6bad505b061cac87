package api

import (
	"net/http"
	"slices"
	"strings"
	"sync"
)

// CORS applies cross-origin headers to every response. Origins can be
// replaced at runtime after a config reload.
type CORS struct {
	mu      sync.RWMutex
	origins []string
}

// NewCORS allows the given origins; "*" allows any.
func NewCORS(origins []string) *CORS {
	return &CORS{origins: origins}
}

// SetOrigins replaces the allowed origins.
func (c *CORS) SetOrigins(origins []string) {
	c.mu.Lock()
	c.origins = origins
	c.mu.Unlock()
}

func (c *CORS) allow(origin string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if slices.Contains(c.origins, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(c.origins, origin) {
		return origin
	}
	return ""
}

// Allowed reports whether a browser page from origin may use the API. A
// request without an Origin header is not from a browser and is allowed.
func (c *CORS) Allowed(origin string) bool {
	return origin == "" || c.allow(origin) != ""
}

// Wrap returns next with CORS headers applied. Preflight requests are
// answered with 204 and never reach next.
func (c *CORS) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowed := c.allow(r.Header.Get("Origin")); allowed != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			h.Set("Access-Control-Allow-Methods", strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", "))
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Api-Key, Authorization")
			if allowed != "*" {
				h.Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
