// Package clienttest runs the sync API in-process for client tests.
package clienttest

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/api"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/auth"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/persistence/memory"
)

// Auth is the token configuration shared by the server and Token.
var Auth = auth.Config{Secret: "client-test-secret", Issuer: "gymbrain.test"}

// Server is an API server backed by the in-memory store.
type Server struct {
	*httptest.Server
	Store   *memory.Store
	Service *domain.Service

	down     atomic.Bool
	requests atomic.Int64
}

// NewServer starts a server that is closed with the test.
func NewServer(t *testing.T) *Server {
	t.Helper()
	store := memory.NewStore(nil)
	quiet := log.New(io.Discard, "", 0)
	svc := domain.NewService(store, store, store, domain.WithLogger(quiet))

	mux := http.NewServeMux()
	api.NewHandler(svc, api.WithLogger(quiet)).RegisterRoutes(mux)
	handler := auth.NewMiddleware(Auth).Wrap(mux)

	s := &Server{Store: store, Service: svc}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		if s.down.Load() {
			http.Error(w, `{"type":"server_error","detail":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// SetDown makes every request fail with 503 until called with false.
func (s *Server) SetDown(down bool) { s.down.Store(down) }

// Requests returns how many requests reached the server.
func (s *Server) Requests() int64 { return s.requests.Load() }

// Token mints a read/write token for owner.
func Token(t *testing.T, owner string) string {
	t.Helper()
	token, err := auth.Issue(Auth, owner, []string{auth.ScopeWorkoutsRead, auth.ScopeWorkoutsWrite}, time.Hour)
	require.NoError(t, err)
	return token
}
