package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateCmd_PrintsSnapshot(t *testing.T) {
	var gotKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		require.Equal(t, "/api/state", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"cursor":42,"last_activity":"2026-05-05T10:00:00Z","highest_level":2,"port_alarms_today":1,"port_alarm_limit":5}`))
	}))
	defer ts.Close()

	cmd := stateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--api", ts.URL, "--key", "pub_test"})
	require.NoError(t, cmd.Execute())

	require.Equal(t, "pub_test", gotKey)
	text := out.String()
	require.Contains(t, text, "42")
	require.Contains(t, text, "L2")
	require.Contains(t, text, "1/5")
	require.Contains(t, text, "never")
}

func TestTriggerCmd_SurfacesAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.True(t, strings.HasSuffix(r.URL.Path, "/ports/run"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"task already running"}`))
	}))
	defer ts.Close()

	cmd := triggerCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"ports", "--api", ts.URL})
	err := cmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "task already running")
}

func TestOnceCmd_RejectsMissingCheck(t *testing.T) {
	cmd := onceCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	require.Error(t, cmd.Execute())
}
