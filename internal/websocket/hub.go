package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"printhub/internal/apperr"
	"printhub/internal/middleware"
	"printhub/internal/rbac"
	"printhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sendBuffer      = 256
	broadcastBuffer = 512
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers connect from the dashboard origin; the token is the gate.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the frame pushed to every dashboard client
type Message struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Client represents a single connected WebSocket client
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	log        *zap.Logger
}

// NewHub initializes a new WS Hub instance
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		log:        log.Named("ws"),
	}
}

// RegisterLifecycle runs the dispatch loop for the life of the fx app
func RegisterLifecycle(lc fx.Lifecycle, hub *Hub) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go hub.Run()
			return nil
		},
		OnStop: func(context.Context) error {
			hub.Stop()
			return nil
		},
	})
}

// Run starts the core dispatch loop for WebSocket events
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("client connected", zap.Int("clients", h.ClientCount()))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			h.log.Debug("client disconnected")
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Slow consumer: drop it rather than stall everyone else.
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends the dispatch loop and closes every client queue
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues an event for broadcast. It never blocks: when the queue
// is full the event is dropped and logged.
func (h *Hub) Publish(event string, data any) {
	payload, err := json.Marshal(Message{Event: event, Data: data, Timestamp: time.Now().UTC()})
	if err != nil {
		h.log.Error("failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}

	select {
	case <-h.done:
	case h.broadcast <- payload:
	default:
		h.log.Warn("broadcast queue full, event dropped", zap.String("event", event))
	}
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			// Fast track writing queued messages
			n := len(c.Send)
			for i := 0; i < n; i++ {
				_, _ = w.Write([]byte{'\n'})
				_, _ = w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pongs and close frames are processed
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		_ = c.Conn.Close()
	}()
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("unexpected close", zap.Error(err))
			}
			return
		}
	}
}

// Handler upgrades authorized callers. Browsers cannot set headers on a
// websocket handshake, so the token may come in the `token` query parameter.
type Handler struct {
	hub    *Hub
	tokens middleware.TokenVerifier
	gate   *rbac.Gate
	log    *zap.Logger
}

func NewHandler(hub *Hub, tokens middleware.TokenVerifier, gate *rbac.Gate, log *zap.Logger) *Handler {
	return &Handler{hub: hub, tokens: tokens, gate: gate, log: log}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ws", h.ServeWs)
}

// ServeWs handles websocket requests from the peer
func (h *Handler) ServeWs(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		var err error
		if tokenString, err = middleware.BearerToken(c); err != nil {
			response.Abort(c, h.log, err)
			return
		}
	}

	id, err := h.tokens.Verify(tokenString)
	if err != nil {
		response.Abort(c, h.log, apperr.Unauthenticated("invalid token"))
		return
	}
	if err := h.gate.Authorize(c.Request.Context(), id, rbac.MaintenanceView); err != nil {
		response.Abort(c, h.log, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{Hub: h.hub, Conn: conn, Send: make(chan []byte, sendBuffer)}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		_ = conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in new goroutines
	go client.writePump()
	go client.readPump()
}
