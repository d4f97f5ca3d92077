// HTTP endpoint for Prometheus scraping
//
// The handler can be mounted on the API server's mux or served on its own
// address through MetricsServer.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Handler returns an http.Handler serving pm in Prometheus text format.
func Handler(pm *PlotterMetrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		output := pm.Gather()
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(output)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte(output))
	})
}

// MetricsServer serves metrics on a dedicated listener.
type MetricsServer struct {
	server *http.Server
	mux    *http.ServeMux

	mu        sync.RWMutex
	running   bool
	addr      string
	startTime time.Time
}

// NewMetricsServer creates a server for pm listening on addr.
func NewMetricsServer(pm *PlotterMetrics, addr string) *MetricsServer {
	mux := http.NewServeMux()
	ms := &MetricsServer{addr: addr, mux: mux}
	mux.Handle("/metrics", Handler(pm))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("OK\n"))
	})
	mux.HandleFunc("/ready", ms.handleReady)

	ms.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return ms
}

// Start listens and serves until Shutdown. The bound address is available
// from Address once Start has begun listening.
func (ms *MetricsServer) Start() error {
	ln, err := net.Listen("tcp", ms.addr)
	if err != nil {
		return fmt.Errorf("metrics server listen: %w", err)
	}
	ms.mu.Lock()
	ms.running = true
	ms.addr = ln.Addr().String()
	ms.startTime = time.Now()
	ms.mu.Unlock()

	if err := ms.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	ms.mu.Lock()
	ms.running = false
	ms.mu.Unlock()
	return ms.server.Shutdown(ctx)
}

// IsRunning returns whether the server is running
func (ms *MetricsServer) IsRunning() bool {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.running
}

// Address returns the listen address.
func (ms *MetricsServer) Address() string {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.addr
}

func (ms *MetricsServer) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !ms.IsRunning() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Not Ready\n"))
		return
	}
	_, _ = w.Write([]byte("Ready\n"))
}

// GetStatus returns server status for diagnostics
func (ms *MetricsServer) GetStatus() map[string]any {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	status := map[string]any{
		"address": ms.addr,
		"running": ms.running,
	}
	if ms.running {
		status["uptime"] = time.Since(ms.startTime).Seconds()
	}
	return status
}
