package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/clienttest"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New(), "", nil)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080", cfg.ServerURL)
	require.Equal(t, 8, cfg.MaxRetries)
	require.Equal(t, 30*time.Second, cfg.AutosaveInterval)
	require.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gymsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"server_url: http://file:8080",
		"token: from-file",
		"max_retries: 3",
		"probe_interval: 1m",
	}, "\n")), 0o600))
	t.Setenv("GYMSYNC_TOKEN", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("server", "", "")
	flags.String("token", "", "")
	flags.String("db", "", "")
	require.NoError(t, flags.Parse([]string{"--server", "http://flag:8080"}))

	cfg, err := LoadConfig(viper.New(), path, flags)
	require.NoError(t, err)
	require.Equal(t, "http://flag:8080", cfg.ServerURL)
	require.Equal(t, "from-env", cfg.Token)
	require.Equal(t, 3, cfg.MaxRetries)
	require.Equal(t, time.Minute, cfg.ProbeInterval)
	require.Equal(t, "gymsync.db", cfg.DBPath)
}

func TestLoadConfigRejectsZeroRetries(t *testing.T) {
	t.Setenv("GYMSYNC_MAX_RETRIES", "0")
	_, err := LoadConfig(viper.New(), "", nil)
	require.Error(t, err)
}

type harness struct {
	t     *testing.T
	flags []string
}

func newHarness(t *testing.T) (*harness, *clienttest.Server) {
	srv := clienttest.NewServer(t)
	return &harness{t: t, flags: []string{
		"--server", srv.URL,
		"--token", clienttest.Token(t, "owner-cli"),
		"--db", filepath.Join(t.TempDir(), "gymsync.db"),
	}}, srv
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, h.flags...))
	err := cmd.Execute()
	return out.String(), err
}

func TestWorkoutCommandsEndToEnd(t *testing.T) {
	h, srv := newHarness(t)

	out, err := h.run("catalog", "refresh")
	require.NoError(t, err)
	require.Contains(t, out, "cached 7 exercises")

	out, err = h.run("start", "--name", "Bench Night")
	require.NoError(t, err)
	require.Contains(t, out, "Bench Night")
	require.Contains(t, out, "saved on server")

	_, err = h.run("add-exercise", "--exercise", "barbell-bench-press")
	require.NoError(t, err)

	_, err = h.run("log-set", "--exercise-index", "0")
	require.Error(t, err)

	out, err = h.run("log-set", "--exercise-index", "0", "--weight", "80", "--reps", "8")
	require.NoError(t, err)
	require.Contains(t, out, "80 x 8")

	out, err = h.run("finish")
	require.NoError(t, err)
	require.Contains(t, out, "synced 1")

	workouts, _, err := srv.Service.ListWorkouts(t.Context(), "owner-cli", nil, 10)
	require.NoError(t, err)
	require.Len(t, workouts, 1)
	require.Equal(t, 640.0, workouts[0].TotalVolume)

	out, err = h.run("status", "--format", "json")
	require.NoError(t, err)
	var status struct {
		Online  bool
		Active  *json.RawMessage
		Pending []json.RawMessage
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	require.True(t, status.Online)
	require.Nil(t, status.Active)
	require.Empty(t, status.Pending)
}

func TestOfflineQueueCommands(t *testing.T) {
	h, srv := newHarness(t)
	srv.SetDown(true)

	_, err := h.run("start", "--name", "Hotel Gym")
	require.NoError(t, err)
	_, err = h.run("add-exercise", "--exercise", "plank")
	require.NoError(t, err)
	_, err = h.run("log-set", "--duration", "60")
	require.NoError(t, err)

	out, err := h.run("finish")
	require.NoError(t, err)
	require.Contains(t, out, "workout queued as #1")

	out, err = h.run("status")
	require.NoError(t, err)
	require.Contains(t, out, "server: unreachable")
	require.Contains(t, out, "queued: 1")

	_, err = h.run("retry", "1")
	require.Error(t, err)
	_, err = h.run("drop", "nope")
	require.Error(t, err)

	srv.SetDown(false)
	out, err = h.run("sync")
	require.NoError(t, err)
	require.Contains(t, out, "synced 1")
}

func TestDevTokenIsAccepted(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"dev-token", "--subject", "owner-x", "--secret", clienttest.Auth.Secret, "--issuer", clienttest.Auth.Issuer})
	require.NoError(t, cmd.Execute())

	token := strings.TrimSpace(out.String())
	require.NotEmpty(t, token)

	srv := clienttest.NewServer(t)
	h := &harness{t: t, flags: []string{"--server", srv.URL, "--token", token, "--db", filepath.Join(t.TempDir(), "x.db")}}
	out2, err := h.run("catalog", "refresh")
	require.NoError(t, err)
	require.Contains(t, out2, "cached")
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"status", "--format", "xml"})
	require.ErrorContains(t, cmd.Execute(), "invalid format")
}
