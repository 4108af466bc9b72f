package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/afterdark-app/afterdark/internal/message"
	"github.com/afterdark-app/afterdark/internal/middleware"
	"github.com/afterdark-app/afterdark/internal/notification"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin enforcement happens in the CORS middleware before the
		// upgrade; browsers send same-origin by default for ws.
		return true
	},
}

// MessageHandlers holds dependencies for direct-messaging HTTP handlers.
type MessageHandlers struct {
	svc      *message.Service
	hub      *message.Hub
	notifier *notification.Service // Optional, can be nil
}

// NewMessageHandlers creates a new MessageHandlers instance.
// notifier is optional and can be nil if push notifications are not configured.
func NewMessageHandlers(svc *message.Service, hub *message.Hub, notifier *notification.Service) *MessageHandlers {
	return &MessageHandlers{
		svc:      svc,
		hub:      hub,
		notifier: notifier,
	}
}

// SendMessageRequest represents the request body for sending a message.
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`
}

// ConversationsResponse represents the response for listing conversations.
type ConversationsResponse struct {
	Conversations []*message.Conversation `json:"conversations"`
}

// MessagesResponse represents the response for conversation history.
type MessagesResponse struct {
	Messages []*message.Message `json:"messages"`
}

// Send handles POST /messages - delivers a direct message.
// Requires a mutual follow between sender and recipient.
func (h *MessageHandlers) Send(w http.ResponseWriter, r *http.Request) {
	senderID := middleware.GetUserID(r.Context())
	if senderID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(req.RecipientID) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "recipient_id is required")
		return
	}

	msg, err := h.svc.Send(senderID, req.RecipientID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, message.ErrNotMutual):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotMutual)
			WriteError(w, ctx, http.StatusForbidden, ErrCodeNotMutual, "You can only message users who follow you back")
		case errors.Is(err, message.ErrEmptyMessage):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Message text cannot be empty")
		case errors.Is(err, message.ErrMessageTooLong):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Message text too long")
		default:
			slog.ErrorContext(r.Context(), "failed to send message", "error", err)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to send message")
		}
		return
	}

	if h.notifier != nil {
		preview := msg.Text
		if len(preview) > 80 {
			preview = preview[:80]
		}
		if err := h.notifier.MessageReceived(r.Context(), req.RecipientID, msg.ConversationID, senderID, preview); err != nil {
			slog.WarnContext(r.Context(), "failed to send message notification", "error", err, "user_id", req.RecipientID)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(msg); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode message response", "error", err)
	}
}

// Conversations handles GET /conversations - lists the user's conversations,
// most recently active first.
func (h *MessageHandlers) Conversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	conversations, err := h.svc.Conversations(userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list conversations", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list conversations")
		return
	}
	if conversations == nil {
		conversations = []*message.Conversation{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ConversationsResponse{Conversations: conversations}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode conversations response", "error", err)
	}
}

// History handles GET /conversations/{id}/messages - conversation history,
// newest last. Only participants may read.
func (h *MessageHandlers) History(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/conversations/"), "/")
	if len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] != "messages" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid URL path")
		return
	}
	conversationID := pathParts[0]

	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := parseIntInRange(limitStr, "limit", 1, 200)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		limit = parsed
	}

	messages, err := h.svc.History(userID, conversationID, limit)
	if err != nil {
		if errors.Is(err, message.ErrConversationNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Conversation not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to load history", "error", err, "conversation_id", conversationID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load conversation history")
		return
	}
	if messages == nil {
		messages = []*message.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(MessagesResponse{Messages: messages}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode messages response", "error", err)
	}
}

// Subscribe handles GET /ws?conversation_id= - upgrades to a WebSocket and
// streams new-message events for one conversation. Only participants may
// subscribe.
func (h *MessageHandlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "conversation_id is required")
		return
	}

	allowed, err := h.svc.CanSubscribe(userID, conversationID)
	if err != nil {
		if errors.Is(err, message.ErrConversationNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Conversation not found")
			return
		}
		slog.ErrorContext(ctx, "failed to check subscription", "error", err, "conversation_id", conversationID)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}
	if !allowed {
		ctx = middleware.SetErrorCode(ctx, ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "You are not a participant in this conversation")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upgrade websocket connection",
			"error", err,
			"conversation_id", conversationID,
		)
		return
	}

	h.hub.Subscribe(conversationID, conn)

	requestID := middleware.GetRequestID(ctx)
	slog.InfoContext(ctx, "websocket client subscribed to conversation",
		"conversation_id", conversationID,
		"request_id", requestID,
	)

	defer func() {
		h.hub.Unsubscribe(conn)
		conn.Close()
		slog.InfoContext(ctx, "websocket client unsubscribed",
			"conversation_id", conversationID,
			"request_id", requestID,
		)
	}()

	// Clients do not send messages over this socket; reading detects
	// disconnection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.WarnContext(ctx, "websocket connection closed unexpectedly",
					"error", err,
					"conversation_id", conversationID,
				)
			}
			break
		}
	}
}
