// Package api exposes the kinematics solver over JSON-RPC 2.0 (HTTP POST
// and websocket) with REST mirrors of every method.
//
// Failing to find a pose is a normal result carrying "found": false and an
// outcome name. Only malformed requests and rejected configurations are
// JSON-RPC errors.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"bentcrank-plotter/pkg/errors"
	"bentcrank-plotter/pkg/kinematics"
	"bentcrank-plotter/pkg/log"
	"bentcrank-plotter/pkg/metrics"
	"bentcrank-plotter/pkg/servolink"
)

// APIVersion is reported by server.info.
const APIVersion = "1.0.0"

// maxBodyBytes limits request bodies on every endpoint.
const maxBodyBytes = 8 << 20

// Config holds server configuration.
type Config struct {
	// Addr is the address to listen on, e.g. ":7150".
	Addr string

	// Solver answers kinematics requests. Nil uses a solver with the
	// default geometry.
	Solver *kinematics.Solver

	// Metrics, when set, is served on /metrics and counts requests.
	Metrics *metrics.PlotterMetrics

	// Link, when set, lets kinematics.path stream results to the servos.
	Link *servolink.Link

	// SaveConfig persists the active geometry for kinematics.config.save.
	SaveConfig func(kinematics.Config) error

	// ConfigFile is reported by server.info.
	ConfigFile string

	// Workers bounds the batch worker pool. Zero uses GOMAXPROCS.
	Workers int
}

// Server is the plotter API server.
type Server struct {
	solver     *kinematics.Solver
	metrics    *metrics.PlotterMetrics
	link       *servolink.Link
	save       func(kinematics.Config) error
	configFile string
	workers    int
	history    *History
	methods    map[string]methodFunc
	handler    http.Handler
	logger     *log.Logger

	mu         sync.Mutex
	addr       string
	httpServer *http.Server

	wsUpgrader websocket.Upgrader
	wsClients  map[int64]*wsClient
	wsClientMu sync.RWMutex
	nextWSID   atomic.Int64

	running   atomic.Bool
	startTime time.Time
}

// methodFunc implements one JSON-RPC method. client is nil for HTTP calls.
type methodFunc func(ctx context.Context, params json.RawMessage, client *wsClient) (any, error)

// New creates a server and subscribes it to the solver's configuration
// changes.
func New(cfg Config) *Server {
	solver := cfg.Solver
	if solver == nil {
		solver = &kinematics.Solver{}
	}
	s := &Server{
		solver:     solver,
		metrics:    cfg.Metrics,
		link:       cfg.Link,
		save:       cfg.SaveConfig,
		configFile: cfg.ConfigFile,
		workers:    cfg.Workers,
		history:    NewHistory(),
		logger:     log.GetLogger("api"),
		addr:       cfg.Addr,
		wsClients:  make(map[int64]*wsClient),
		startTime:  time.Now(),
	}
	s.wsUpgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	s.methods = s.methodTable()
	s.handler = s.routes()
	solver.OnConfigChange(s.broadcastConfigChanged)
	return s
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// History returns the path job history.
func (s *Server) History() *History {
	return s.history
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/jsonrpc", s.handleJSONRPC)
	mux.HandleFunc("/websocket", s.handleWebSocket)

	mux.HandleFunc("/server/info", s.rest(route{get: "server.info"}))
	mux.HandleFunc("/server/history/list", s.rest(route{get: "server.history.list"}))
	mux.HandleFunc("/server/history/job", s.rest(route{get: "server.history.get_job"}))
	mux.HandleFunc("/server/history/totals", s.rest(route{get: "server.history.totals"}))

	mux.HandleFunc("/kinematics/status", s.rest(route{get: "kinematics.status"}))
	mux.HandleFunc("/kinematics/forward", s.rest(route{get: "kinematics.forward", post: "kinematics.forward"}))
	mux.HandleFunc("/kinematics/inverse", s.rest(route{get: "kinematics.inverse", post: "kinematics.inverse"}))
	mux.HandleFunc("/kinematics/path", s.rest(route{post: "kinematics.path"}))
	mux.HandleFunc("/kinematics/forward_path", s.rest(route{post: "kinematics.forward_path"}))
	mux.HandleFunc("/kinematics/config", s.rest(route{get: "kinematics.config.get", post: "kinematics.config.set"}))
	mux.HandleFunc("/kinematics/config/save", s.rest(route{post: "kinematics.config.save"}))
	mux.HandleFunc("/kinematics/workspace", s.rest(route{get: "kinematics.workspace"}))

	if s.metrics != nil {
		mux.Handle("/metrics", metrics.Handler(s.metrics))
	}
	return corsMiddleware(mux)
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return errors.Wrap(err, errors.ErrRuntimeInit, "api listen: "+err.Error())
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.httpServer = srv
	s.mu.Unlock()

	s.running.Store(true)
	s.logger.WithField("address", ln.Addr().String()).Info("API server listening")

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, errors.ErrRuntime, "api serve: "+err.Error())
	}
	return nil
}

// Addr returns the listen address, resolved once the server is serving.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Shutdown closes websocket clients and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	s.wsClientMu.Lock()
	clients := s.wsClients
	s.wsClients = make(map[int64]*wsClient)
	s.wsClientMu.Unlock()
	for _, c := range clients {
		c.Close()
	}

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// JSON-RPC 2.0 structures

type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id,omitempty"`
}

type jsonRPCNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return e.Message }

func invalidParams(msg string) *rpcError {
	return &rpcError{Code: codeInvalidParams, Message: msg}
}

// toRPCError maps err onto a JSON-RPC error. Configuration and request
// problems are invalid params, everything else is a server error.
func toRPCError(err error) *rpcError {
	var re *rpcError
	if stderrors.As(err, &re) {
		return re
	}
	code := codeServerError
	if errors.IsKinematics(err) || errors.IsConfig(err) || errors.Is(err, errors.ErrAPIRequest) {
		code = codeInvalidParams
	}
	return &rpcError{Code: code, Message: err.Error()}
}

func httpStatus(e *rpcError) int {
	switch e.Code {
	case codeParseError, codeInvalidRequest, codeInvalidParams:
		return http.StatusBadRequest
	case codeMethodNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// dispatch routes a method call to its implementation.
func (s *Server) dispatch(ctx context.Context, method string, params json.RawMessage, client *wsClient) (any, error) {
	fn, ok := s.methods[method]
	if !ok {
		return nil, &rpcError{Code: codeMethodNotFound, Message: "method not found: " + method}
	}
	if s.metrics != nil {
		s.metrics.RecordAPIRequest(method)
	}
	result, err := fn(ctx, params, client)
	if err != nil {
		s.logger.WithFields(log.Fields{"method": method}).WithError(err).Debug("request failed")
	}
	return result, err
}

// handleJSONRPC handles JSON-RPC 2.0 requests over HTTP POST.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req jsonRPCRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, jsonRPCResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "Parse error"}})
		return
	}
	writeJSON(w, http.StatusOK, s.call(r.Context(), req, nil))
}

// call runs one decoded request and builds its response.
func (s *Server) call(ctx context.Context, req jsonRPCRequest, client *wsClient) jsonRPCResponse {
	resp := jsonRPCResponse{JSONRPC: "2.0", ID: req.ID}
	if req.Method == "" {
		resp.Error = &rpcError{Code: codeInvalidRequest, Message: "Invalid request: missing method"}
		return resp
	}
	result, err := s.dispatch(ctx, req.Method, req.Params, client)
	if err != nil {
		resp.Error = toRPCError(err)
		return resp
	}
	resp.Result = result
	return resp
}

// route names the JSON-RPC method behind each HTTP verb of a REST path.
type route struct {
	get  string
	post string
}

// rest adapts a JSON-RPC method to a REST endpoint. POST bodies are the
// params object; GET query values become params, numbers where they parse.
func (s *Server) rest(rt route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var method string
		var params json.RawMessage
		switch {
		case r.Method == http.MethodGet && rt.get != "":
			method = rt.get
			params = queryParams(r)
		case r.Method == http.MethodPost && rt.post != "":
			method = rt.post
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				writeRESTError(w, &rpcError{Code: codeParseError, Message: err.Error()})
				return
			}
			if len(body) > 0 {
				if !json.Valid(body) {
					writeRESTError(w, &rpcError{Code: codeParseError, Message: "Parse error"})
					return
				}
				params = body
			}
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		result, err := s.dispatch(r.Context(), method, params, nil)
		if err != nil {
			writeRESTError(w, toRPCError(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": result})
	}
}

func queryParams(r *http.Request) json.RawMessage {
	q := r.URL.Query()
	if len(q) == 0 {
		return nil
	}
	params := make(map[string]any, len(q))
	for k := range q {
		v := q.Get(k)
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			params[k] = f
		} else if b, err := strconv.ParseBool(v); err == nil {
			params[k] = b
		} else {
			params[k] = v
		}
	}
	data, _ := json.Marshal(params)
	return data
}

// decodeParams decodes params into dst, rejecting unknown fields. Missing
// params leave dst untouched.
func decodeParams(params json.RawMessage, dst any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidParams("invalid params: " + err.Error())
	}
	return nil
}

// corsMiddleware allows cross-origin requests from browser front ends.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeRESTError(w http.ResponseWriter, e *rpcError) {
	writeJSON(w, httpStatus(e), map[string]any{"error": e})
}

func hostname() string {
	h, _ := os.Hostname()
	return h
}
