package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainstate/internal/blob"
	"chainstate/internal/metrics"
	"chainstate/internal/uisink"
	"chainstate/internal/workspace"
)

type env struct {
	ws  *workspace.Workspace
	srv *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ws, err := workspace.New(workspace.Options{Store: blob.NewMemory(), DisableAutosave: true})
	require.NoError(t, err)
	t.Cleanup(ws.Close)
	hub := uisink.NewHub(nil)
	t.Cleanup(hub.Close)
	srv := httptest.NewServer(NewRouter(ws, Options{UI: hub, Metrics: metrics.NewPrometheus("api_test").Handler()}))
	t.Cleanup(srv.Close)
	return &env{ws: ws, srv: srv}
}

func (e *env) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestChainLifecycle(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodPost, "/api/chains", map[string]string{"displayName": "Local", "kind": "local"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := body["chain"].(map[string]any)["id"].(string)

	resp, body = e.do(t, http.MethodPost, "/api/chains", map[string]string{"displayName": "Sepolia", "kind": "remote"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	second := body["chain"].(map[string]any)["id"].(string)

	resp, body = e.do(t, http.MethodGet, "/api/chains", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, first, body["current"])
	assert.Len(t, body["chains"], 2)

	resp, _ = e.do(t, http.MethodPost, "/api/chains/"+second+"/select", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, second, e.ws.Registry().Current().Get())

	resp, body = e.do(t, http.MethodPost, "/api/chains/"+second+"/save", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["saved"])

	resp, body = e.do(t, http.MethodGet, "/api/chains/"+second+"/snapshot", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["fingerprint"], 64)

	resp, _ = e.do(t, http.MethodDelete, "/api/chains/"+first, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = e.do(t, http.MethodDelete, "/api/chains/"+second, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "LAST_CHAIN", body["error"].(map[string]any)["code"])
}

func TestErrorsMapToStatus(t *testing.T) {
	e := newEnv(t)
	resp, body := e.do(t, http.MethodGet, "/api/chains/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])

	resp, _ = e.do(t, http.MethodPost, "/api/chains", map[string]string{"displayName": "X", "kind": "mainframe"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = e.do(t, http.MethodPost, "/api/chains", map[string]any{"unknown": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "BAD_JSON", body["error"].(map[string]any)["code"])
}

func TestAvailabilityEndpoints(t *testing.T) {
	e := newEnv(t)
	p, err := e.ws.CreateChain(context.Background(), "Local", "local")
	require.NoError(t, err)
	require.True(t, p.Connected().Get())

	resp, _ := e.do(t, http.MethodPut, "/api/backend", map[string]bool{"available": false})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, p.Connected().Get())

	resp, _ = e.do(t, http.MethodPut, "/api/compiler", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	e.ws.Compilation().Complete(nil, nil)
	require.False(t, e.ws.Compilation().Snapshot().Dirty)
	resp, _ = e.do(t, http.MethodPut, "/api/compiler", map[string]bool{"available": false})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, e.ws.Compilation().Snapshot().Dirty)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)
	resp, err := e.srv.Client().Get(e.srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = e.srv.Client().Get(e.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
