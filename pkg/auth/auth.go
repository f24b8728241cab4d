// Package auth holds API credential primitives: bcrypt-hashed API keys and
// HS256 bearer tokens. It is a leaf package used by the HTTP middleware and the CLI.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ===== CONSTANTS =====

// BCryptCost is the work factor for API key hashes.
const BCryptCost = 12

// DefaultTokenTTL is used when GenerateJWT is given a non-positive ttl.
const DefaultTokenTTL = 24 * time.Hour

// Issuer is written to and required in every token.
const Issuer = "ifcglb"

// apiKeyBytes is the entropy of generated API keys.
const apiKeyBytes = 24

var (
	ErrEmptySecret = errors.New("auth: empty signing secret")
	ErrEmptyToken  = errors.New("auth: token is empty")
)

// ===== API KEYS =====

// GenerateAPIKey returns a random hex API key.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashAPIKey hashes a plaintext API key with bcrypt.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), BCryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return string(hash), nil
}

// VerifyAPIKey reports whether key matches hash. Malformed hashes never match.
func VerifyAPIKey(hash, key string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// MatchAPIKey reports whether key matches any of hashes.
func MatchAPIKey(hashes []string, key string) bool {
	if key == "" {
		return false
	}
	for _, h := range hashes {
		if VerifyAPIKey(h, key) {
			return true
		}
	}
	return false
}

// ===== JWT =====

// Claims are the bearer token claims. Subject names the caller.
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateJWT signs an HS256 token for subject valid for ttl.
func GenerateJWT(subject string, secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

// ParseJWT validates tokenString against secret and returns its claims.
func ParseJWT(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// HMAC only: rejects alg substitution
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(Issuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid JWT claims or signature")
	}
	return claims, nil
}
