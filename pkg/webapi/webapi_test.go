package webapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ledgerkit/nodenet/client"
)

func newTestServer(t *testing.T) (*WebServer, *client.NetworkManager) {
	m, err := client.ForAddresses(map[string]client.NodeID{
		"10.0.0.3:50211": client.NewNodeID(3),
		"10.0.0.4:50211": client.NewNodeID(4),
	}, &client.NetworkOptions{
		DisableRefresh:  true,
		MirrorAddresses: []string{"mirror.example.com:443"},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.Close()
	})

	logLevel := zap.NewAtomicLevel()
	return newWebServer(WebServerOptions{
		Logger:   zap.NewNop(),
		LogLevel: &logLevel,
		Nodes:    m,
	}), m
}

func TestNodesEndpoint(t *testing.T) {
	w, m := newTestServer(t)

	_, err := m.MarkNodeUnhealthy(client.NewNodeID(4))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	w.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nodes", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp nodesJson
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, []string{"mirror.example.com:443"}, resp.Mirrors)
	require.Len(t, resp.Nodes, 2)

	assert.Equal(t, "0.0.3", resp.Nodes[0].ID)
	assert.Equal(t, []string{"10.0.0.3:50211"}, resp.Nodes[0].Addresses)
	assert.True(t, resp.Nodes[0].Healthy)
	assert.Nil(t, resp.Nodes[0].UnhealthyUntil)

	assert.Equal(t, "0.0.4", resp.Nodes[1].ID)
	assert.False(t, resp.Nodes[1].Healthy)
	assert.NotNil(t, resp.Nodes[1].UnhealthyUntil)
}

func TestLogLevelEndpoint(t *testing.T) {
	w, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/log-level", strings.NewReader(`{"level":"debug"}`))
	req.Header.Set("Content-Type", "application/json")
	w.router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, zap.DebugLevel, w.logLevel.Level())
}

func TestMetricsEndpoint(t *testing.T) {
	w, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	w.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
