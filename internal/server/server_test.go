package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aevon-lab/cruncher/internal/metrics"
	"github.com/stretchr/testify/require"
)

func get(s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, req)
	return resp
}

func TestHealth_AllChecksPass(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	s := New(":0", "release")
	s.AddCheck("database", PingFunc(db.PingContext))
	s.AddCheck("dimensions", PingFunc(func(context.Context) error { return nil }))

	resp := get(s, "/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, "healthy", body.Status)
	require.Equal(t, map[string]string{"database": "ok", "dimensions": "ok"}, body.Checks)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealth_FailingCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	s := New(":0", "release")
	s.AddCheck("database", PingFunc(db.PingContext))

	resp := get(s, "/health")
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	require.Contains(t, resp.Body.String(), `"status":"unhealthy"`)
	require.Contains(t, resp.Body.String(), "connection refused")
}

func TestHealth_NoChecks(t *testing.T) {
	resp := get(New(":0", "release"), "/health")
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.MessagesMalformed.Inc()

	resp := get(New(":0", "release"), "/metrics")
	require.Equal(t, http.StatusOK, resp.Code)
	require.True(t, strings.Contains(resp.Body.String(), "cruncher_messages_malformed_total"))
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := New("127.0.0.1:0", "release")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
