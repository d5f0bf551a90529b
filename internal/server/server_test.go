package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"testudot/internal/components/telemetry"
	"testudot/internal/monitor"
	"testudot/internal/subscriptions"

	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	started chan struct{}
	release chan struct{}
	results []monitor.CycleResult
	err     error
}

func (f *fakeRunner) RunWatched(ctx context.Context) ([]monitor.CycleResult, error) {
	if f.started != nil {
		close(f.started)
		<-f.release
	}
	return f.results, f.err
}

func (f *fakeRunner) TermID() string {
	return "202608"
}

func setup(t *testing.T, runner Runner, apiKey string) (*httptest.Server, subscriptions.Directory) {
	tel := telemetry.NewRecordingAPI()
	dir := subscriptions.NewFileDirectory(filepath.Join(t.TempDir(), "user-course-map.json"), tel)
	server := httptest.NewServer(NewServer(runner, dir, apiKey, tel).Handler())
	t.Cleanup(server.Close)
	return server, dir
}

func request(t *testing.T, method, url, apiKey, body string) *http.Response {
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set(apiKeyHeader, apiKey)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestHealthNeedsNoKey(t *testing.T) {
	server, _ := setup(t, &fakeRunner{}, "secret")
	res := request(t, http.MethodGet, server.URL+"/api/health", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

func TestApiKey(t *testing.T) {
	server, _ := setup(t, &fakeRunner{}, "secret")
	require.Equal(t, http.StatusForbidden, request(t, http.MethodGet, server.URL+"/api/mappings", "", "").StatusCode)
	require.Equal(t, http.StatusForbidden, request(t, http.MethodGet, server.URL+"/api/mappings", "wrong", "").StatusCode)
	require.Equal(t, http.StatusOK, request(t, http.MethodGet, server.URL+"/api/mappings", "secret", "").StatusCode)

	open, _ := setup(t, &fakeRunner{}, "")
	require.Equal(t, http.StatusOK, request(t, http.MethodGet, open.URL+"/api/mappings", "", "").StatusCode)
}

func TestMappingRoutes(t *testing.T) {
	server, dir := setup(t, &fakeRunner{}, "")

	res := request(t, http.MethodPost, server.URL+"/api/mappings", "", `{"email": "alice@umd.edu", "courses": ["CMSC351"]}`)
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	res = request(t, http.MethodPost, server.URL+"/api/mappings", "", `{"email": "alice@umd.edu", "courses": []}`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	res = request(t, http.MethodPost, server.URL+"/api/mappings", "", `{nope`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = request(t, http.MethodGet, server.URL+"/api/mappings", "", "")
	var mapping subscriptions.Mapping
	require.NoError(t, json.NewDecoder(res.Body).Decode(&mapping))
	require.Equal(t, subscriptions.Mapping{"alice@umd.edu": {"CMSC351"}}, mapping)

	res = request(t, http.MethodDelete, server.URL+"/api/mappings/alice@umd.edu", "", "")
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	res = request(t, http.MethodDelete, server.URL+"/api/mappings/alice@umd.edu", "", "")
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	stored, err := dir.ListAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, stored)
}

func TestMonitorRoute(t *testing.T) {
	runner := &fakeRunner{results: []monitor.CycleResult{
		{CourseID: "CMSC351", Status: monitor.StatusOk, EventsEmitted: 2, Recipients: []string{"alice@umd.edu"}},
		{CourseID: "MATH140", Status: monitor.StatusFetchFailed, Err: errors.New("connection refused")},
	}}
	server, _ := setup(t, runner, "")

	res := request(t, http.MethodPost, server.URL+"/api/monitor", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body monitorResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Equal(t, "success", body.Status)
	require.Equal(t, "202608", body.TermID)
	require.Equal(t, []cycleResponse{
		{CourseID: "CMSC351", Status: "ok", Events: 2, Recipients: []string{"alice@umd.edu"}},
		{CourseID: "MATH140", Status: "fetch_failed", Recipients: []string{}, Error: "connection refused"},
	}, body.Results)
}

func TestMonitorRouteRejectsOverlap(t *testing.T) {
	runner := &fakeRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	server, _ := setup(t, runner, "")

	done := make(chan int)
	go func() {
		res, err := http.Post(server.URL+"/api/monitor", "application/json", nil)
		if err != nil {
			done <- 0
			return
		}
		res.Body.Close()
		done <- res.StatusCode
	}()

	<-runner.started
	res := request(t, http.MethodPost, server.URL+"/api/monitor", "", "")
	require.Equal(t, http.StatusConflict, res.StatusCode)

	close(runner.release)
	require.Equal(t, http.StatusOK, <-done)
}

func TestMonitorRouteDirectoryFailure(t *testing.T) {
	server, _ := setup(t, &fakeRunner{err: errors.New("disk on fire")}, "")
	res := request(t, http.MethodPost, server.URL+"/api/monitor", "", "")
	require.Equal(t, http.StatusInternalServerError, res.StatusCode)
}
