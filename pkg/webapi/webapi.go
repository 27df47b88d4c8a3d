// This file is to handle things such as metrics/health/node tables, etc

package webapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ledgerkit/nodenet/client"
)

// NodeSource provides the node table served by /nodes.
type NodeSource interface {
	Topology() *client.Topology
	MirrorAddresses() []string
}

type WebServerOptions struct {
	Logger        *zap.Logger
	LogLevel      *zap.AtomicLevel
	ListenAddress string
	Nodes         NodeSource
}

type WebServer struct {
	logger        *zap.Logger
	logLevel      *zap.AtomicLevel
	listenAddress string
	nodes         NodeSource
	httpServer    *http.Server
}

func newWebServer(opts WebServerOptions) *WebServer {
	return &WebServer{
		logger:        opts.Logger,
		logLevel:      opts.LogLevel,
		listenAddress: opts.ListenAddress,
		nodes:         opts.Nodes,
	}
}

func (w *WebServer) handleRoot(rw http.ResponseWriter, r *http.Request) {
	rw.WriteHeader(200)
	_, err := rw.Write([]byte("Welcome to the netctl internal webapi"))
	if err != nil {
		w.logger.Debug("failed to write generic root response", zap.Error(err))
	}
}

type nodeJson struct {
	ID             string     `json:"id"`
	Addresses      []string   `json:"addresses"`
	Healthy        bool       `json:"healthy"`
	UnhealthyUntil *time.Time `json:"unhealthyUntil,omitempty"`
	LastUsed       *time.Time `json:"lastUsed,omitempty"`
}

type nodesJson struct {
	Nodes   []nodeJson `json:"nodes"`
	Mirrors []string   `json:"mirrors"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (w *WebServer) handleNodes(rw http.ResponseWriter, r *http.Request) {
	if w.nodes == nil {
		rw.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	now := time.Now()
	topology := w.nodes.Topology()

	resp := nodesJson{
		Nodes:   make([]nodeJson, 0, topology.Len()),
		Mirrors: w.nodes.MirrorAddresses(),
	}

	for _, nodeID := range topology.NodeIDs() {
		health, _ := topology.Health(nodeID)
		conn, _ := topology.Connection(nodeID)

		node := nodeJson{
			ID:             nodeID.String(),
			Healthy:        health.IsHealthy(now),
			UnhealthyUntil: timePtr(health.UnhealthyUntil()),
			LastUsed:       timePtr(health.LastUsed()),
		}
		for _, address := range conn.Addresses() {
			node.Addresses = append(node.Addresses, address.String())
		}

		resp.Nodes = append(resp.Nodes, node)
	}

	rw.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(rw).Encode(resp)
	if err != nil {
		w.logger.Debug("failed to write nodes response", zap.Error(err))
	}
}

func (w *WebServer) handleLogLevel(rw http.ResponseWriter, r *http.Request) {
	if w.logLevel == nil {
		rw.WriteHeader(http.StatusNotFound)
		return
	}

	w.logLevel.ServeHTTP(rw, r)
}

func (w *WebServer) router() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/nodes", w.handleNodes).Methods(http.MethodGet)
	r.HandleFunc("/log-level", w.handleLogLevel).Methods(http.MethodGet, http.MethodPut)
	r.HandleFunc("/", w.handleRoot)

	return r
}

func (w *WebServer) ListenAndServe() error {
	w.httpServer = &http.Server{
		Handler:      w.router(),
		Addr:         w.listenAddress,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return w.httpServer.ListenAndServe()
}

var globalWebLock sync.Mutex
var globalWebServer *WebServer = nil

func InitializeWebServer(opts WebServerOptions) {
	globalWebLock.Lock()
	if globalWebServer != nil {
		globalWebLock.Unlock()
		return
	}

	globalWebServer = newWebServer(opts)
	globalWebLock.Unlock()
	go func() {
		err := globalWebServer.ListenAndServe()
		if err != nil {
			opts.Logger.Error("Failed to listen and serve web server", zap.Error(err))
		}
	}()
}
