package outbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureSchemaRegistersMissingSubject(t *testing.T) {
	var registered string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/subjects/workout_events-value/versions/latest":
			http.NotFound(w, r)
		case r.Method == http.MethodPost && r.URL.Path == "/subjects/workout_events-value/versions":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			registered = body["schema"]
			_, _ = w.Write([]byte(`{"id": 12}`))
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL + "/")
	id, err := client.EnsureSchema(context.Background(), "workout_events-value", workoutCompletedSchema)
	require.NoError(t, err)
	require.Equal(t, 12, id)
	require.Equal(t, workoutCompletedSchema, registered)
}

func TestEnsureSchemaSurfacesRegistryErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "registry down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "draft_events-value", draftDiscardedSchema)
	require.ErrorContains(t, err, "503")
}
