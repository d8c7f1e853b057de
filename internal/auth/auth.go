// Package auth is the session layer: it turns a bearer token into the
// organization id every mutating operation trusts as already authenticated.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type ctxKey int

const orgIDKey ctxKey = iota

const tokenTTL = 24 * time.Hour

// IssueToken signs an HS256 token carrying the organization id in the org
// claim.
func IssueToken(secret, orgID string) (string, error) {
	claims := jwt.MapClaims{
		"org": orgID,
		"exp": time.Now().Add(tokenTTL).Unix(),
		"iat": time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Middleware verifies the Authorization header and stores the caller org id
// in the request context.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID, err := orgFromHeader(r.Header.Get("Authorization"), secret)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), orgIDKey, orgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OrgID returns the authenticated organization id placed by Middleware.
func OrgID(ctx context.Context) string {
	orgID, _ := ctx.Value(orgIDKey).(string)
	return orgID
}

// WithOrgID is for tests that bypass the middleware.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgIDKey, orgID)
}

func orgFromHeader(authz, secret string) (string, error) {
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("malformed authorization header")
	}
	raw := strings.TrimSpace(parts[1])
	if raw == "" {
		return "", errors.New("empty token")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	orgID, ok := claims["org"].(string)
	if !ok || orgID == "" {
		return "", errors.New("missing org claim")
	}
	return orgID, nil
}
