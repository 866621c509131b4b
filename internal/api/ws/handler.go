package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/cubiclauncher/kepler/internal/domain/app"
	"github.com/cubiclauncher/kepler/internal/infrastructure/monitoring"
	"github.com/cubiclauncher/kepler/internal/shared/id"
	"github.com/cubiclauncher/kepler/internal/shared/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

// Message types sent to clients
const (
	TypeSnapshot     = "snapshot"
	TypeStateChanged = "state_changed"
	TypePong         = "pong"
	TypeError        = "error"
)

// Request types accepted from clients
const (
	RequestPing     = "ping"
	RequestGetState = "get_state"

	// unknownType labels every other request in metrics
	unknownType = "unknown"
)

// Message is a frame sent to the client
type Message struct {
	Type      string               `json:"type"`
	State     *types.StateSnapshot `json:"state,omitempty"`
	Event     *types.StateEvent    `json:"event,omitempty"`
	Message   string               `json:"message,omitempty"`
	Timestamp int64                `json:"timestamp"`
}

// Request is a frame received from the client
type Request struct {
	Type string `json:"type"`
}

// Option configures a Handler
type Option func(*Handler)

// WithAllowedOrigins restricts which browser origins may connect.
// Requests without an Origin header (non-browser clients) are always allowed.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		h.origins = make(map[string]struct{}, len(origins))
		for _, o := range origins {
			h.origins[o] = struct{}{}
		}
	}
}

// WithMetrics records connection and message counts
func WithMetrics(m *monitoring.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithLogger sets the handler logger
func WithLogger(log *zap.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// Handler streams activity changes to WebSocket clients
type Handler struct {
	manager  *app.Manager
	metrics  *monitoring.Metrics
	log      *zap.Logger
	origins  map[string]struct{} // nil allows any origin
	upgrader websocket.Upgrader

	mu      sync.Mutex
	closed  bool          // Protected by mu
	closing chan struct{} // closed by Close
	streams sync.WaitGroup
}

// NewHandler creates a new WebSocket handler
func NewHandler(manager *app.Manager, opts ...Option) *Handler {
	h := &Handler{
		manager: manager,
		log:     zap.NewNop(),
		closing: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.origins == nil {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	_, ok := h.origins[origin]
	return ok
}

// HandleConnection upgrades the request and streams state events until
// the client goes away or Close is called. The first frame is always a snapshot.
func (h *Handler) HandleConnection(c *gin.Context) {
	if !h.track() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error": "server is shutting down",
			"code":  "shutting_down",
		})
		return
	}
	defer h.streams.Done()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	log := h.log.With(zap.Stringer("conn_id", id.NewConnID()))
	log.Debug("stream connected")

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	events := h.manager.Subscribe()
	defer h.manager.Unsubscribe(events)

	replies := make(chan Message, 8)
	done := make(chan struct{})
	go h.readLoop(conn, replies, done, log)
	defer func() {
		conn.Close()
		<-done
	}()

	if err := h.send(conn, h.snapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := h.send(conn, Message{Type: TypeStateChanged, Event: &evt, Timestamp: evt.Timestamp.Unix()}); err != nil {
				log.Debug("stream write failed", zap.Error(err))
				return
			}
		case msg := <-replies:
			if err := h.send(conn, msg); err != nil {
				log.Debug("stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			log.Debug("stream disconnected")
			return
		case <-h.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			log.Debug("stream closed by server")
			return
		}
	}
}

// Close ends every open stream with a going-away close frame and waits for
// their handlers to return. Later connection attempts get 503.
func (h *Handler) Close() {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.closing)
	}
	h.mu.Unlock()

	h.streams.Wait()
}

// track registers a stream unless the handler is closed
func (h *Handler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.streams.Add(1)
	return true
}

// readLoop handles client requests; replies are written by the caller's goroutine.
func (h *Handler) readLoop(conn *websocket.Conn, replies chan<- Message, done chan<- struct{}, log *zap.Logger) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("stream read error", zap.Error(err))
			}
			return
		}
		kind := requestKind(req.Type)
		h.recordMessage("in", kind)

		var reply Message
		switch kind {
		case RequestPing:
			reply = Message{Type: TypePong, Timestamp: time.Now().Unix()}
		case RequestGetState:
			reply = h.snapshot()
		default:
			reply = Message{Type: TypeError, Message: "unknown message type", Timestamp: time.Now().Unix()}
		}

		select {
		case replies <- reply:
		default:
			log.Warn("dropping reply to slow stream client", zap.String("type", req.Type))
		}
	}
}

// requestKind maps client-chosen request types onto a fixed set
func requestKind(t string) string {
	switch t {
	case RequestPing, RequestGetState:
		return t
	default:
		return unknownType
	}
}

func (h *Handler) snapshot() Message {
	snap := h.manager.Snapshot()
	return Message{Type: TypeSnapshot, State: &snap, Timestamp: time.Now().Unix()}
}

func (h *Handler) send(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		return err
	}
	h.recordMessage("out", msg.Type)
	return nil
}

func (h *Handler) recordMessage(direction, msgType string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(direction, msgType)
	}
}
