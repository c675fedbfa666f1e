package gateway

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/sori-ai/sori/internal/security"
)

// AuthConfig protects the conversation endpoints. /health and /metrics
// stay public. With no credential set, no auth is applied.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured reports whether any credential is set.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}

// method returns which credential r carries validly, or "".
func (a AuthConfig) method(r *http.Request) string {
	if a.BearerToken != "" {
		if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && secretEqual(token, a.BearerToken) {
			return "bearer"
		}
	}
	if a.BasicUser != "" && a.BasicPass != "" {
		if user, pass, ok := r.BasicAuth(); ok && secretEqual(user, a.BasicUser) && secretEqual(pass, a.BasicPass) {
			return "basic"
		}
	}
	return ""
}

// requireAuth rejects requests without valid credentials. Attempts count
// against limiter per remote host, successful or not.
func requireAuth(cfg AuthConfig, limiter *security.RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := remoteHost(r)
			if err := limiter.Allow("auth:" + host); err != nil {
				logger.Warn("auth rate limited", "remote", host)
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			if m := cfg.method(r); m != "" {
				logger.Debug("authenticated", "remote", host, "method", m)
				next.ServeHTTP(w, r)
				return
			}
			logger.Info("auth failure", "remote", host, "path", r.URL.Path, "header_present", r.Header.Get("Authorization") != "")
			w.Header().Set("WWW-Authenticate", `Bearer realm="sori"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

func remoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// secretEqual compares digests so that neither content nor length leaks
// through timing.
func secretEqual(got, want string) bool {
	g, w := sha256.Sum256([]byte(got)), sha256.Sum256([]byte(want))
	return subtle.ConstantTimeCompare(g[:], w[:]) == 1
}
