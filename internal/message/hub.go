package message

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// MessageEvent is the payload pushed to websocket subscribers when a new
// message lands in a conversation.
type MessageEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	SenderID       string `json:"sender_id"`
	Text           string `json:"text"`
	CreatedAt      string `json:"created_at"`
}

// subscriber serializes writes to a single websocket connection.
// gorilla/websocket allows at most one concurrent writer per conn.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub manages WebSocket connections and fans out message events per
// conversation.
type Hub struct {
	mu            sync.RWMutex
	subscribers   map[*websocket.Conn]*subscriber             // one writer guard per conn
	conversations map[string]map[*websocket.Conn]*subscriber // conversationID -> members
}

// NewHub creates a new message hub.
func NewHub() *Hub {
	return &Hub{
		subscribers:   make(map[*websocket.Conn]*subscriber),
		conversations: make(map[string]map[*websocket.Conn]*subscriber),
	}
}

// Subscribe registers a WebSocket connection for a conversation. A
// connection subscribed to several conversations shares one writer guard.
func (h *Hub) Subscribe(conversationID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subscribers[conn]
	if !ok {
		sub = &subscriber{conn: conn}
		h.subscribers[conn] = sub
	}
	if h.conversations[conversationID] == nil {
		h.conversations[conversationID] = make(map[*websocket.Conn]*subscriber)
	}
	h.conversations[conversationID][conn] = sub
}

// Unsubscribe removes a WebSocket connection from all conversations.
func (h *Hub) Unsubscribe(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subscribers, conn)
	for convID, members := range h.conversations {
		delete(members, conn)
		if len(members) == 0 {
			delete(h.conversations, convID)
		}
	}
}

// Broadcast sends a message event to all subscribers of a conversation.
func (h *Hub) Broadcast(conversationID string, event *MessageEvent) {
	h.mu.RLock()
	members := make([]*subscriber, 0, len(h.conversations[conversationID]))
	for _, sub := range h.conversations[conversationID] {
		members = append(members, sub)
	}
	h.mu.RUnlock()

	if len(members) == 0 {
		return
	}

	// Serialize once for all subscribers.
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal message event", "error", err)
		return
	}

	for _, sub := range members {
		if err := sub.send(data); err != nil {
			slog.Warn("failed to send message to websocket client",
				"error", err,
				"conversation_id", conversationID,
			)
			// Connection will be cleaned up when the client disconnects.
		}
	}
}

// ConnectionCount returns the number of active connections for a conversation.
func (h *Hub) ConnectionCount(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.conversations[conversationID])
}
