// internal/app/system/auth/auth.go
//
// Package auth authenticates machine-to-machine callers with HS256 bearer
// tokens signed by a shared secret.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/lessonsync/internal/app/system/ratelimit"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	// ErrNoToken means the request carried no bearer token.
	ErrNoToken = errors.New("auth: missing bearer token")
	// ErrInvalidToken means the token failed verification.
	ErrInvalidToken = errors.New("auth: invalid token")
)

type ctxKey struct{}

// Caller is the authenticated principal of a request.
type Caller struct {
	Subject string
}

// CallerFrom returns the caller stored by RequireBearer.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ctxKey{}).(Caller)
	return c, ok
}

// WithCaller stores c in ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// Verify parses and verifies a raw token.
func Verify(secret []byte, raw string) (Caller, error) {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return Caller{}, errors.Join(ErrInvalidToken, err)
	}
	return Caller{Subject: claims.Subject}, nil
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrNoToken
	}
	return strings.TrimSpace(token), nil
}

// RequireBearer rejects requests without a valid token with 401. When
// failures is non-nil, a client IP that used up its failure budget gets 429
// until its window expires.
func RequireBearer(secret string, failures *ratelimit.Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ratelimit.ClientIP(r)
			if failures != nil && failures.Exceeded(ip) {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}

			raw, err := BearerToken(r)
			if err == nil {
				var c Caller
				c, err = Verify(key, raw)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), c)))
					return
				}
			}
			if failures != nil {
				failures.Hit(ip)
			}
			logger.Info("request rejected",
				zap.String("path", r.URL.Path),
				zap.String("ip", ip),
				zap.Error(err))
			w.Header().Set("WWW-Authenticate", `Bearer realm="lessonsync"`)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		})
	}
}
