package services

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024 * 1024 // 1MB
)

// Client represents a connected WebSocket client, subscribed to one board.
type Client struct {
	Hub   *Hub
	Conn  *websocket.Conn
	Send  chan []byte
	Email string
	Room  string // board room key, "projectID:teamID"
}

// WebSocketMessage is the standard message format for WebSocket communication.
type WebSocketMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	User string `json:"user,omitempty"`
}

// RoomKey builds the hub room key for a board.
func RoomKey(projectID, teamID string) string {
	return projectID + ":" + teamID
}

// ReadPump pumps messages from the WebSocket connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warnf("WebSocket error: %v", err)
			}
			break
		}

		var wsMessage WebSocketMessage
		if err := json.Unmarshal(message, &wsMessage); err != nil {
			c.Hub.log.Warnf("Error unmarshalling WebSocket message: %v", err)
			continue
		}

		// Clients only ever send pings; board updates originate server-side.
		if wsMessage.Type == "ping" {
			pongMessage := WebSocketMessage{
				Type: "pong",
				Data: map[string]string{"timestamp": time.Now().Format(time.RFC3339)},
			}
			if pongJSON, err := json.Marshal(pongMessage); err == nil {
				c.Send <- pongJSON
			}
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type roomMessage struct {
	room    string
	payload []byte
}

// Hub maintains the set of active clients per board room and fans out
// board updates.
type Hub struct {
	Clients    map[*Client]bool
	broadcast  chan roomMessage
	register   chan *Client
	unregister chan *Client
	log        *zap.SugaredLogger
}

// NewHub creates a new hub instance.
func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		broadcast:  make(chan roomMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		Clients:    make(map[*Client]bool),
		log:        log,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastBoard sends a message to every client watching the given board.
func (h *Hub) BroadcastBoard(projectID, teamID string, message WebSocketMessage) {
	jsonMessage, err := json.Marshal(message)
	if err != nil {
		h.log.Warnf("Error marshalling WebSocket message: %v", err)
		return
	}
	h.broadcast <- roomMessage{room: RoomKey(projectID, teamID), payload: jsonMessage}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.Clients[client] = true
			h.log.Infof("Client connected: %s (room %s)", client.Email, client.Room)
		case client := <-h.unregister:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				close(client.Send)
				h.log.Infof("Client disconnected: %s", client.Email)
			}
		case msg := <-h.broadcast:
			for client := range h.Clients {
				if client.Room != msg.room {
					continue
				}
				select {
				case client.Send <- msg.payload:
				default:
					// Client's send buffer is full, assume disconnected
					h.log.Warnf("Client send buffer full, removing client: %s", client.Email)
					close(client.Send)
					delete(h.Clients, client)
				}
			}
		}
	}
}
