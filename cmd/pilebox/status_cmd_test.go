package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatusCommand_FlagsAndDefaults(t *testing.T) {
	cmd := newStatusCmd()

	watch := cmd.Flags().Lookup("watch")
	require.NotNil(t, watch)
	require.Equal(t, "false", watch.DefValue)

	interval := cmd.Flags().Lookup("interval")
	require.NotNil(t, interval)
	require.Equal(t, (1 * time.Second).String(), interval.DefValue)

	raw := cmd.Flags().Lookup("raw")
	require.NotNil(t, raw)
	require.Equal(t, "false", raw.DefValue)
}

func TestStatusCommand_FetchesDaemonStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/status" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","piles":[]}`))
	}))
	defer srv.Close()

	t.Setenv("PILEBOX_CONTROL_ADDR", strings.TrimPrefix(srv.URL, "http://"))
	t.Setenv("PILEBOX_CONFIG_PATH", filepath.Join(t.TempDir(), "config.json"))

	root := newTestRoot()
	root.AddCommand(newStatusCmd())
	root.SetArgs([]string{"status", "--raw"})

	require.NoError(t, root.Execute())
}

func TestStatusCommand_ErrorsWhenDaemonUnreachable(t *testing.T) {
	t.Setenv("PILEBOX_CONTROL_ADDR", "localhost:1")
	t.Setenv("PILEBOX_CONFIG_PATH", filepath.Join(t.TempDir(), "config.json"))

	root := newTestRoot()
	root.AddCommand(newStatusCmd())
	root.SetArgs([]string{"status"})

	err := root.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "not reachable")
}
