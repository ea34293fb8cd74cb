package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/items-api/internal/model"
)

// WebSocket configuration constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
	closeGrace     = 100 * time.Millisecond
)

var (
	feedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "items_api",
		Name:      "item_feed_clients",
		Help:      "Number of connected item feed subscribers",
	})

	feedDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "items_api",
		Name:      "item_feed_dropped_clients_total",
		Help:      "Subscribers disconnected because their send buffer was full",
	})
)

// feedClient is one subscriber with its own outbound queue.
type feedClient struct {
	conn       *websocket.Conn
	remoteAddr string
	send       chan model.ItemEvent
	cancel     context.CancelFunc
}

// WebSocketHandler pushes item change events to connected WebSocket
// clients. It implements service.Notifier.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger
	mu       sync.RWMutex
	clients  map[*feedClient]struct{}
}

// NewWebSocketHandler creates a WebSocketHandler. Upgrades are accepted
// from the listed origins; "*" accepts any.
func NewWebSocketHandler(allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
		logger:  logger,
		clients: make(map[*feedClient]struct{}),
	}
}

// RegisterRoutes registers the item feed route.
func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws/items", h.HandleWebSocket).Methods(http.MethodGet)
}

// HandleWebSocket upgrades the request and subscribes the connection to
// item events.
//
//nolint:contextcheck // the connection outlives the upgrade request
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &feedClient{
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
		send:       make(chan model.ItemEvent, sendBuffer),
		cancel:     cancel,
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	feedClients.Inc()

	h.logger.Info("item feed client connected", zap.String("remote_addr", c.remoteAddr))

	go h.writePump(ctx, c)
	go h.readPump(ctx, c)
}

// Notify queues event for every subscriber. A subscriber whose queue is
// full is disconnected and unsubscribed instead of blocking the caller.
func (h *WebSocketHandler) Notify(event model.ItemEvent) {
	var dropped []*feedClient

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			dropped = append(dropped, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range dropped {
		feedDropped.Inc()
		h.logger.Warn("item feed client too slow, disconnecting",
			zap.String("remote_addr", c.remoteAddr))
		c.cancel()
		h.removeClient(c)
	}
}

// ClientCount returns the number of connected subscribers.
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump discards client messages and keeps the read deadline fresh.
// It returns when the peer goes away.
func (h *WebSocketHandler) readPump(ctx context.Context, c *feedClient) {
	defer func() {
		c.cancel()
		h.removeClient(c)
		if err := c.conn.Close(); err != nil {
			h.logger.Debug("error closing connection", zap.Error(err))
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.logger.Error("failed to set read deadline", zap.Error(err))
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for ctx.Err() == nil {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump is the only writer on the connection.
func (h *WebSocketHandler) writePump(ctx context.Context, c *feedClient) {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.sendCloseMessage(c.conn)
			return
		case event := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				h.logger.Debug("failed to send item event", zap.Error(err))
				c.cancel()
				return
			}
		case <-pingTicker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug("failed to send ping", zap.Error(err))
				c.cancel()
				return
			}
		}
	}
}

func (h *WebSocketHandler) sendCloseMessage(conn *websocket.Conn) {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		h.logger.Debug("failed to set write deadline for close", zap.Error(err))
		return
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down")
	if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		h.logger.Debug("failed to send close message", zap.Error(err))
	}
}

func (h *WebSocketHandler) removeClient(c *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		feedClients.Dec()
		h.logger.Info("item feed client disconnected", zap.String("remote_addr", c.remoteAddr))
	}
}

// CloseAllConnections sends a close frame to every subscriber and then
// closes the underlying connections.
func (h *WebSocketHandler) CloseAllConnections() {
	h.mu.RLock()
	clients := make([]*feedClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	// writePump sends the close frame once its context is done.
	for _, c := range clients {
		c.cancel()
	}

	time.Sleep(closeGrace)

	h.mu.Lock()
	for c := range h.clients {
		if err := c.conn.Close(); err != nil {
			h.logger.Debug("error closing connection", zap.Error(err))
		}
		delete(h.clients, c)
		feedClients.Dec()
	}
	h.mu.Unlock()

	h.logger.Info("all item feed connections closed")
}
