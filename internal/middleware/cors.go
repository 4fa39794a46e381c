package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSOptions controls which browser origins may call the admin API.
type CORSOptions struct {
	// AllowedOrigins lists exact origins; "*" admits any origin. Empty admits none.
	AllowedOrigins []string
	// MaxAge lets browsers cache a preflight answer.
	MaxAge time.Duration
}

func (o CORSOptions) allows(origin string) bool {
	for _, allowed := range o.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// EnableCORS answers preflights and tags responses for admitted origins.
// Admitted origins are echoed back (never "*") because the dashboard sends
// its bearer token with credentials.
func EnableCORS(opts CORSOptions) func(http.Handler) http.Handler {
	maxAge := strconv.Itoa(int(opts.MaxAge / time.Second))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				w.Header().Add("Vary", "Origin")
			}
			allowed := origin != "" && opts.allows(origin)
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			// Handle preflight
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Encoding, Authorization")
				if opts.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", maxAge)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
