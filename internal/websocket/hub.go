package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/config"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// Hub maintains the set of active dashboard clients and broadcasts
// analysis events to them.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan Event
	register   chan *Client
	unregister chan *Client

	config   *config.WebSocketConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu    sync.RWMutex
	stats *HubStats
}

// HubStats tracks WebSocket hub statistics
type HubStats struct {
	TotalConnections   int64
	ActiveConnections  int64
	TotalMessages      int64
	TotalBroadcasts    int64
	LastConnectionTime time.Time
	LastDisconnectTime time.Time
	LastBroadcastTime  time.Time
}

// NewHub creates a new WebSocket hub
func NewHub(cfg *config.WebSocketConfig, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		config:     cfg,
		logger:     logger,
		stats:      &HubStats{},
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// checkOrigin validates the request origin against the configured
// allow-list. An empty list or a "*" entry allows every origin.
func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.config.AllowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Run starts the hub loop. It handles registration, unregistration, and
// broadcasting until the process exits.
func (h *Hub) Run() {
	h.logger.Info("Starting WebSocket hub", zap.String("component", "websocket"))

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	h.stats.TotalConnections++
	h.stats.ActiveConnections++
	h.stats.LastConnectionTime = time.Now()

	h.logger.Info("Dashboard client connected",
		zap.String("component", "websocket"),
		zap.String("client_id", client.ID),
		zap.String("client_ip", client.IP),
		zap.Int64("active_connections", h.stats.ActiveConnections),
	)

	h.broadcastToOthers(Event{
		Type:      EventTypeConnection,
		Timestamp: time.Now(),
		Data: ConnectionEvent{
			Action:    "connected",
			ClientID:  client.ID,
			ClientIP:  client.IP,
			UserAgent: client.UserAgent,
			Message:   fmt.Sprintf("Client %s connected", client.ID),
		},
	}, client)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	close(client.Send)
	h.stats.ActiveConnections--
	h.stats.LastDisconnectTime = time.Now()

	h.logger.Info("Dashboard client disconnected",
		zap.String("component", "websocket"),
		zap.String("client_id", client.ID),
		zap.Int64("active_connections", h.stats.ActiveConnections),
	)

	h.broadcastToOthers(Event{
		Type:      EventTypeConnection,
		Timestamp: time.Now(),
		Data: ConnectionEvent{
			Action:   "disconnected",
			ClientID: client.ID,
			ClientIP: client.IP,
			Message:  fmt.Sprintf("Client %s disconnected", client.ID),
		},
	}, nil)
}

func (h *Hub) broadcastEvent(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats.TotalBroadcasts++
	h.stats.LastBroadcastTime = time.Now()
	h.broadcastToOthers(event, nil)
}

// broadcastToOthers sends an event to every subscribed client except
// the excluded one. Clients with a full send buffer are dropped. The
// caller must hold h.mu.
func (h *Hub) broadcastToOthers(event Event, exclude *Client) {
	for client := range h.clients {
		if client == exclude || !client.wantsEvent(event.Type) {
			continue
		}
		select {
		case client.Send <- event:
			h.stats.TotalMessages++
		default:
			h.logger.Warn("Client send buffer full, dropping connection",
				zap.String("component", "websocket"),
				zap.String("client_id", client.ID),
			)
			delete(h.clients, client)
			close(client.Send)
			h.stats.ActiveConnections--
		}
	}
}

// wantsEvent reports whether the client's subscription covers the event
// type. No subscription means everything.
func (c *Client) wantsEvent(eventType EventType) bool {
	if c.Subscription == nil {
		return true
	}
	for _, subscribed := range c.Subscription.Events {
		if subscribed == eventType {
			return true
		}
	}
	return false
}

// BroadcastEvent queues an event for delivery to connected clients,
// honoring the broadcast toggles in configuration. A full queue drops
// the event rather than blocking the analysis path.
func (h *Hub) BroadcastEvent(event Event) {
	if !h.shouldBroadcastEvent(event.Type) {
		return
	}

	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping event",
			zap.String("component", "websocket"),
			zap.String("event_type", string(event.Type)),
		)
	}
}

func (h *Hub) shouldBroadcastEvent(eventType EventType) bool {
	if h.config == nil || !h.config.Enabled {
		return false
	}

	switch eventType {
	case EventTypeAnalysisResult, EventTypeBatchCompleted:
		return h.config.BroadcastResults
	case EventTypeSystemStatus:
		return h.config.BroadcastSystem
	case EventTypeConnection:
		return true
	default:
		return false
	}
}

// HandleWebSocket upgrades the HTTP request and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection",
			zap.String("component", "websocket"),
			zap.Error(err),
		)
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan Event, 256),
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
		IP:          clientIP(r),
		UserAgent:   r.UserAgent(),
	}

	h.register <- client

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(event); err != nil {
				h.logger.Error("Failed to write WebSocket message",
					zap.String("component", "websocket"),
					zap.String("client_id", client.ID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(client *Client) {
	defer func() {
		h.unregister <- client
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.LastPing = time.Now()
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg ClientMessage
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error",
					zap.String("component", "websocket"),
					zap.String("client_id", client.ID),
					zap.Error(err),
				)
			}
			break
		}
		h.handleClientMessage(client, msg)
	}
}

func (h *Hub) handleClientMessage(client *Client, msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		data, ok := msg.Data.(map[string]interface{})
		if !ok {
			return
		}
		jsonData, _ := json.Marshal(data)
		var subscription SubscriptionRequest
		if err := json.Unmarshal(jsonData, &subscription); err == nil {
			client.Subscription = &subscription
			h.logger.Info("Client subscription updated",
				zap.String("component", "websocket"),
				zap.String("client_id", client.ID),
				zap.Any("subscription", subscription),
			)
		}
	case "ping":
		pongEvent := Event{
			Type:      "pong",
			Timestamp: time.Now(),
			Data:      map[string]string{"message": "pong"},
		}
		select {
		case client.Send <- pongEvent:
		default:
		}
	}
}

// GetStats returns a snapshot of hub statistics.
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := *h.stats
	stats.ActiveConnections = int64(len(h.clients))
	return stats
}

// clientIP extracts the client IP from the request, honoring proxy
// headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
