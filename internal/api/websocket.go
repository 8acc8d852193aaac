package api

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket event types
const (
	EventGenerationProgress = "generation_progress"
	EventGenerationComplete = "generation_complete"
	EventGenerationError    = "generation_error"
	EventResponse           = "response"
	EventError              = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn   *websocket.Conn
	send   chan WSMessage
	server *Server
	mu     sync.Mutex
}

// Client tracking for broadcasts
var (
	clients   = make(map[*WSClient]bool)
	clientsMu sync.RWMutex
)

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &WSClient{
		conn:   conn,
		send:   make(chan WSMessage, 256),
		server: s,
	}

	s.log.Info("websocket client connected")

	go client.readPump()
	go client.writePump()
}

func (c *WSClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		c.mu.Lock()
		err := c.conn.WriteJSON(msg)
		c.mu.Unlock()

		if err != nil {
			c.server.log.Warn("websocket write error", zap.Error(err))
			return
		}
	}
}

func (c *WSClient) readPump() {
	defer func() {
		removeClient(c)
		c.conn.Close()
		c.server.log.Info("websocket client disconnected")
	}()

	addClient(c)

	for {
		var msg WSMessage
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.log.Warn("websocket error", zap.Error(err))
			}
			break
		}

		c.handleMessage(&msg)
	}
}

func (c *WSClient) handleMessage(msg *WSMessage) {
	switch msg.Event {
	case "ping":
		c.send <- WSMessage{Event: EventResponse, Data: map[string]interface{}{"pong": true}}
	default:
		c.send <- WSMessage{Event: EventError, Data: map[string]interface{}{
			"error": "unknown event: " + msg.Event,
		}}
	}
}

func addClient(client *WSClient) {
	clientsMu.Lock()
	clients[client] = true
	clientsMu.Unlock()
}

func removeClient(client *WSClient) {
	clientsMu.Lock()
	delete(clients, client)
	clientsMu.Unlock()
}

// Broadcast sends an event to all connected clients. Clients with a full
// send buffer are skipped rather than blocking the generation run.
func (s *Server) Broadcast(event string, data map[string]interface{}) {
	clientsMu.RLock()
	defer clientsMu.RUnlock()

	message := WSMessage{Event: event, Data: data}

	for client := range clients {
		select {
		case client.send <- message:
		default:
			// Client send buffer full, skip
		}
	}
}
