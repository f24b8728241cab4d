// Package middleware holds the HTTP middleware mounted by api.NewRouter.
package middleware

import (
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/matiasleandrokruk/ifcglb/internal/api/ctxkeys"
	pkgauth "github.com/matiasleandrokruk/ifcglb/pkg/auth"
)

// APIKeyHeader carries a plaintext API key checked against bcrypt hashes.
const APIKeyHeader = "X-API-Key"

// Auth method values stored under ctxkeys.AuthMethod.
const (
	MethodNone   = "none"
	MethodJWT    = "jwt"
	MethodAPIKey = "api-key"
)

// AuthConfig lists the accepted credentials. With neither a secret nor any
// key hash configured, authentication is disabled.
type AuthConfig struct {
	JWTSecret    []byte
	APIKeyHashes []string
}

// Enabled reports whether any credential is configured.
func (c AuthConfig) Enabled() bool {
	return len(c.JWTSecret) > 0 || len(c.APIKeyHashes) > 0
}

// Auth accepts either "Authorization: Bearer <token>" or an X-API-Key header
// and injects the caller into the request context.
//
// Flow:
//  1. Auth disabled → pass through as MethodNone
//  2. X-API-Key present → bcrypt match against the configured hashes, else 401
//  3. Bearer token present → HS256 JWT validation, else 401
//  4. Neither → 401
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	keys := &apiKeyCache{hashes: cfg.APIKeyHashes}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !cfg.Enabled() {
				ctx = ctxkeys.WithValue(ctx, ctxkeys.AuthMethod, MethodNone)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
				if !keys.match(key) {
					writeUnauthorized(w, "invalid api key")
					return
				}
				ctx = ctxkeys.WithValue(ctx, ctxkeys.Subject, MethodAPIKey)
				ctx = ctxkeys.WithValue(ctx, ctxkeys.AuthMethod, MethodAPIKey)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			tokenString := extractBearerToken(r)
			if tokenString == "" || len(cfg.JWTSecret) == 0 {
				writeUnauthorized(w, "missing or invalid credentials")
				return
			}
			claims, err := pkgauth.ParseJWT(tokenString, cfg.JWTSecret)
			if err != nil {
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			ctx = ctxkeys.WithValue(ctx, ctxkeys.Subject, claims.Subject)
			ctx = ctxkeys.WithValue(ctx, ctxkeys.AuthMethod, MethodJWT)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// apiKeyCache remembers keys that already passed bcrypt so repeat requests
// skip the hash cost. Only digests of accepted keys are stored.
type apiKeyCache struct {
	hashes   []string
	accepted sync.Map // [32]byte -> struct{}
}

func (c *apiKeyCache) match(key string) bool {
	digest := sha256.Sum256([]byte(key))
	if _, ok := c.accepted.Load(digest); ok {
		return true
	}
	if !pkgauth.MatchAPIKey(c.hashes, key) {
		return false
	}
	c.accepted.Store(digest, struct{}{})
	return true
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
// Returns empty string if header is missing, wrong scheme, or token is empty.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// writeUnauthorized writes a 401 in the handlers' error format.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "message": message}) //nolint:errcheck
}
