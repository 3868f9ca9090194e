package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "gymbrain.test"}

func TestIssueAndParseRoundTrip(t *testing.T) {
	token, err := Issue(testConfig, "user-1", []string{ScopeWorkoutsWrite, ScopeWorkoutsRead}, time.Hour)
	require.NoError(t, err)

	claims, err := Parse(token, testConfig)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Owner())
	require.True(t, claims.HasScope(ScopeWorkoutsWrite))
	require.True(t, claims.HasScope(ScopeWorkoutsRead))
	require.False(t, claims.HasScope("admin"))
}

func TestParseRejectsWrongIssuerAndSecret(t *testing.T) {
	token, err := Issue(Config{Secret: "other", Issuer: testConfig.Issuer}, "user-1", nil, time.Hour)
	require.NoError(t, err)
	_, err = Parse(token, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	token, err = Issue(Config{Secret: testConfig.Secret, Issuer: "elsewhere"}, "user-1", nil, time.Hour)
	require.NoError(t, err)
	_, err = Parse(token, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = Parse("  ", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestMiddlewareAttachesClaims(t *testing.T) {
	token, err := Issue(testConfig, "user-7", []string{ScopeWorkoutsRead}, time.Hour)
	require.NoError(t, err)

	var owner string
	handler := NewMiddleware(testConfig).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		require.True(t, ok)
		owner = claims.Owner()
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/drafts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "user-7", owner)
}

func TestMiddlewareRejectsMissingTokenButSkipsHealth(t *testing.T) {
	handler := NewMiddleware(testConfig).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/drafts", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}
