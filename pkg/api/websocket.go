package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bentcrank-plotter/pkg/kinematics"
)

const (
	wsReadLimit    = 8 << 20
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteWait    = 10 * time.Second
	wsSendBuffer   = 64
)

// wsClient is one websocket connection. Requests are handled in order;
// responses and notifications share a buffered send queue.
type wsClient struct {
	id     int64
	name   string
	conn   *websocket.Conn
	server *Server
	sendCh chan any
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func (s *Server) newWSClient(conn *websocket.Conn) *wsClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &wsClient{
		id:     s.nextWSID.Add(1),
		conn:   conn,
		server: s,
		sendCh: make(chan any, wsSendBuffer),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Send queues msg. A full queue drops the message.
func (c *wsClient) Send(msg any) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.sendCh <- msg:
	case <-c.done:
	default:
		c.server.logger.WithField("client", c.id).Warn("dropping message, send queue full")
	}
}

// Close closes the connection and cancels in-flight requests.
func (c *wsClient) Close() {
	c.once.Do(func() {
		close(c.done)
		c.cancel()
		c.conn.Close()
	})
}

func (c *wsClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.Close()
	}()

	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.WithField("client", c.id).WithError(err).Warn("websocket read error")
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.sendCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.logger.WithField("client", c.id).WithError(err).Warn("websocket write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return
		}
	}
}

func (c *wsClient) handleMessage(data []byte) {
	var req jsonRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.Send(jsonRPCResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "Parse error"}})
		return
	}
	c.Send(c.server.call(c.ctx, req, c))
}

// handleWebSocket upgrades the connection and serves it until it closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := s.newWSClient(conn)
	s.wsClientMu.Lock()
	s.wsClients[client.id] = client
	s.wsClientMu.Unlock()
	s.logger.WithField("client", client.id).Info("websocket client connected")

	go client.writePump()
	client.Send(jsonRPCNotification{JSONRPC: "2.0", Method: "notify_ready"})
	client.readPump()
}

func (s *Server) removeClient(c *wsClient) {
	s.wsClientMu.Lock()
	delete(s.wsClients, c.id)
	s.wsClientMu.Unlock()
	s.logger.WithField("client", c.id).Info("websocket client disconnected")
}

// broadcast sends a notification to every connected client.
func (s *Server) broadcast(method string, params ...any) {
	msg := jsonRPCNotification{JSONRPC: "2.0", Method: method, Params: params}
	s.wsClientMu.RLock()
	defer s.wsClientMu.RUnlock()
	for _, c := range s.wsClients {
		c.Send(msg)
	}
}

// broadcastConfigChanged is registered with the solver and runs after each
// accepted configuration change, whatever its source.
func (s *Server) broadcastConfigChanged(cfg kinematics.Config, d kinematics.Derived) {
	s.broadcast("notify_config_changed", newConfigResponse(cfg, d))
}
