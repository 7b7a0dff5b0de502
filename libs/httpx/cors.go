package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy controls which browser origins may call the public API.
type CORSPolicy struct {
	// AllowedOrigins holds exact origins or "*". Empty disables CORS handling.
	AllowedOrigins []string
	// AllowedMethods defaults to GET, POST and OPTIONS.
	AllowedMethods []string
	AllowedHeaders []string
	// ExposedHeaders are readable by browser scripts on the response.
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

func WithCORS(p CORSPolicy) Middleware {
	origins := map[string]bool{}
	wildcard := false
	for _, o := range p.AllowedOrigins {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			wildcard = true
		default:
			origins[strings.ToLower(o)] = true
		}
	}
	if !wildcard && len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	methods := p.AllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	preflight := http.Header{}
	preflight.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
	if len(p.AllowedHeaders) > 0 {
		preflight.Set("Access-Control-Allow-Headers", strings.Join(p.AllowedHeaders, ", "))
	}
	if secs := int(p.MaxAge / time.Second); secs > 0 {
		preflight.Set("Access-Control-Max-Age", strconv.Itoa(secs))
	}
	exposed := strings.Join(p.ExposedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Add("Vary", "Origin")
			if !wildcard && !origins[strings.ToLower(origin)] {
				next.ServeHTTP(w, r)
				return
			}

			// Credentialed requests may not use "*".
			if wildcard && !p.AllowCredentials {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
			}
			if p.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if exposed != "" {
				h.Set("Access-Control-Expose-Headers", exposed)
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				for k, v := range preflight {
					h[k] = v
				}
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
