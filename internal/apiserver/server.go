package apiserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/r58io/core-service/internal/config"
	"github.com/r58io/core-service/internal/constants"
	"github.com/r58io/core-service/internal/logging"
	"github.com/r58io/core-service/internal/security"
)

// connection is one authenticated-or-not WebSocket client. Each connection
// is served by one reader and one writer goroutine, plus one event pump
// goroutine once it subscribes, with sends to the client funneled through
// outbox so the reader never blocks on a slow client.
type connection struct {
	id            string
	conn          *websocket.Conn
	outbox        chan []byte
	authenticated int32 // atomic bool
	clientID      string
	role          string
	subscriberID  string
}

// Server is the control API's WebSocket JSON server. It holds no
// domain logic itself: every method call is delegated to the narrow
// SupervisorAPI/RecorderAPI/EventBusAPI collaborators.
type Server struct {
	cfg        config.ServerConfig
	jwtHandler *security.JWTHandler
	supervisor SupervisorAPI
	recorder   RecorderAPI
	bus        EventBusAPI
	logger     *logging.Logger
	upgrader   websocket.Upgrader

	httpServer *http.Server

	mu            sync.Mutex
	connections   map[string]*connection
	connCounter   int64
	activeConns   int32
}

// NewServer builds a control API server. jwtHandler, supervisor, recorder
// and bus are dependency-injected so cmd/coreserviced owns their lifetimes.
func NewServer(cfg config.ServerConfig, jwtHandler *security.JWTHandler, supervisor SupervisorAPI, recorder RecorderAPI, bus EventBusAPI, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetLogger("apiserver")
	}
	return &Server{
		cfg:        cfg,
		jwtHandler: jwtHandler,
		supervisor: supervisor,
		recorder:   recorder,
		bus:        bus,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		connections: make(map[string]*connection),
	}
}

// Start runs the control API's HTTP server until ctx is cancelled, then
// shuts it down within ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	path := s.cfg.WebSocketPath
	if path == "" {
		path = "/ws"
	}
	mux.HandleFunc(path, s.handleUpgrade)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      mux,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownTimeout := s.cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the control API's WebSocket upgrade handler, for
// embedding in a caller-owned http.Server or a test's httptest.Server.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleUpgrade)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxConnections > 0 && atomic.LoadInt32(&s.activeConns) >= int32(s.cfg.MaxConnections) {
		http.Error(w, "maximum connections reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	id := "conn_" + strconv.FormatInt(atomic.AddInt64(&s.connCounter, 1), 10)
	c := &connection{id: id, conn: conn, outbox: make(chan []byte, 32)}

	s.mu.Lock()
	s.connections[id] = c
	s.mu.Unlock()
	atomic.AddInt32(&s.activeConns, 1)

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) readPump(c *connection) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)
			s.logger.WithFields(logging.Fields{"connection_id": c.id, "panic": fmt.Sprintf("%v", r), "stack": string(stack[:n])}).Error("recovered from panic in connection handler")
		}
		s.closeConnection(c)
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			s.send(c, Response{Error: &ErrorDescriptor{Kind: constants.KindInvalidArgument, Code: constants.CodeForProtoKind(constants.KindInvalidArgument), Message: "malformed request"}})
			continue
		}
		s.dispatch(c, req)
	}
}

func (s *Server) writePump(c *connection) {
	for msg := range c.outbox {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (s *Server) send(c *connection, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	select {
	case c.outbox <- data:
	default:
		s.logger.WithField("connection_id", c.id).Warn("outbox full, dropping response")
	}
}

func (s *Server) sendEvent(c *connection, msg EventMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.outbox <- data:
	default:
		s.closeConnection(c)
	}
}

func (s *Server) closeConnection(c *connection) {
	s.mu.Lock()
	_, ok := s.connections[c.id]
	delete(s.connections, c.id)
	s.mu.Unlock()
	if !ok {
		return
	}
	if c.subscriberID != "" {
		s.bus.Unsubscribe(c.subscriberID)
	}
	close(c.outbox)
	c.conn.Close()
	atomic.AddInt32(&s.activeConns, -1)
}
