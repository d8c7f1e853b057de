package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"medmarket/internal/auth"
)

const secret = "test-secret"

func echoOrgHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(auth.OrgID(r.Context())))
	})
}

func TestMiddlewareRoundTrip(t *testing.T) {
	token, err := auth.IssueToken(secret, "org-42")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	auth.Middleware(secret)(echoOrgHandler()).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "org-42", w.Body.String())
}

func TestMiddlewareMissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	auth.Middleware(secret)(echoOrgHandler()).ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareWrongSecret(t *testing.T) {
	token, err := auth.IssueToken("other-secret", "org-42")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	auth.Middleware(secret)(echoOrgHandler()).ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareNotBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()

	auth.Middleware(secret)(echoOrgHandler()).ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
