package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// historyLimit is how many saved predictions a get_history reply carries
const historyLimit = 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Native clients send no Origin
		return true
	},
}

// wsClient is one websocket connection of a signed in user.
// gorilla/websocket allows a single concurrent writer, hence mu.
type wsClient struct {
	conn   *websocket.Conn
	userID int64
	mu     sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		s.rejectAuth(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WebSocket upgrade failed:", err)
		return
	}
	defer conn.Close()

	// Store client connection
	client := &wsClient{conn: conn, userID: userID}
	clientID := uuid.New().String()
	s.clients.Store(clientID, client)
	defer s.clients.Delete(clientID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Println("Error reading message:", err)
			}
			break
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendError(client, "Invalid message format")
			continue
		}

		s.handleWebSocketMessage(r.Context(), client, msg)
	}
}

func (s *Server) handleWebSocketMessage(ctx context.Context, client *wsClient, msg wsMessage) {
	switch msg.Type {
	case "get_history":
		s.handleGetHistory(ctx, client)
	case "":
		s.sendError(client, "Invalid message format")
	default:
		s.sendError(client, "Unknown message type")
	}
}

func (s *Server) handleGetHistory(ctx context.Context, client *wsClient) {
	predictions, err := s.db.RecentPredictions(ctx, client.userID, historyLimit)
	if err != nil {
		log.Printf("Error retrieving history: %v", err)
		s.sendError(client, "Failed to retrieve history")
		return
	}

	counts := map[string]int{}
	for _, p := range predictions {
		counts[string(p.Grade)]++
	}
	s.sendMessage(client, "history", map[string]any{
		"items":  predictions,
		"grades": counts,
	})
}

// notify pushes an event to every open connection of userID
func (s *Server) notify(userID int64, messageType string, data any) {
	s.clients.Range(func(_, value any) bool {
		client := value.(*wsClient)
		if client.userID == userID {
			s.sendMessage(client, messageType, data)
		}
		return true
	})
}

func (s *Server) closeClients() {
	s.clients.Range(func(key, value any) bool {
		client := value.(*wsClient)
		client.mu.Lock()
		client.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		client.mu.Unlock()
		client.conn.Close()
		return true
	})
}

func (s *Server) sendMessage(client *wsClient, messageType string, data any) {
	msg := map[string]any{
		"type": messageType,
		"data": data,
	}

	if err := client.writeJSON(msg); err != nil {
		log.Println("Error sending message:", err)
	}
}

func (s *Server) sendError(client *wsClient, message string) {
	msg := map[string]any{
		"type":    "error",
		"message": message,
	}

	if err := client.writeJSON(msg); err != nil {
		log.Println("Error sending error message:", err)
	}
}
