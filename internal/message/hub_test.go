package message

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialHubConn upgrades a real websocket pair, subscribes the server side of
// the connection to conversationID, and returns the client side.
func dialHubConn(t *testing.T, hub *Hub, conversationID string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		hub.Subscribe(conversationID, conn)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { client.Close() })

	// Subscription happens after the upgrade on the server goroutine.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount(conversationID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for subscription")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return client
}

func TestHub_BroadcastDeliversEvent(t *testing.T) {
	hub := NewHub()
	client := dialHubConn(t, hub, "conv-1")

	hub.Broadcast("conv-1", &MessageEvent{
		Type:           "message.created",
		ConversationID: "conv-1",
		MessageID:      "msg-1",
		SenderID:       "user-1",
		Text:           "see you at the warehouse",
	})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event MessageEvent
	if err := client.ReadJSON(&event); err != nil {
		t.Fatalf("failed to read broadcast event: %v", err)
	}
	if event.MessageID != "msg-1" || event.Text != "see you at the warehouse" {
		t.Errorf("unexpected event: %+v", event)
	}
}

// TestHub_ConcurrentBroadcasts hammers one subscriber with parallel
// broadcasts; every frame must arrive intact, since writes to a single
// connection are serialized.
func TestHub_ConcurrentBroadcasts(t *testing.T) {
	hub := NewHub()
	client := dialHubConn(t, hub, "conv-1")

	const broadcasts = 25
	var wg sync.WaitGroup
	for i := 0; i < broadcasts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			hub.Broadcast("conv-1", &MessageEvent{
				Type:           "message.created",
				ConversationID: "conv-1",
				MessageID:      fmt.Sprintf("msg-%d", n),
				SenderID:       "user-1",
				Text:           "hello",
			})
		}(i)
	}
	wg.Wait()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	seen := make(map[string]bool, broadcasts)
	for i := 0; i < broadcasts; i++ {
		var event MessageEvent
		if err := client.ReadJSON(&event); err != nil {
			t.Fatalf("failed to read event %d: %v", i, err)
		}
		if event.ConversationID != "conv-1" || event.Text != "hello" {
			t.Fatalf("corrupt event %d: %+v", i, event)
		}
		seen[event.MessageID] = true
	}
	if len(seen) != broadcasts {
		t.Errorf("expected %d distinct message IDs, got %d", broadcasts, len(seen))
	}
}

// TestHub_SharedGuardAcrossConversations checks that a connection in two
// conversations is broadcast to from both without duplicate registration.
func TestHub_SharedGuardAcrossConversations(t *testing.T) {
	hub := NewHub()
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		hub.Subscribe("conv-1", conn)
		hub.Subscribe("conv-2", conn)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { client.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount("conv-2") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for subscription")
		}
		time.Sleep(10 * time.Millisecond)
	}

	var wg sync.WaitGroup
	for _, convID := range []string{"conv-1", "conv-2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			hub.Broadcast(id, &MessageEvent{Type: "message.created", ConversationID: id})
		}(convID)
	}
	wg.Wait()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	got := make(map[string]bool, 2)
	for i := 0; i < 2; i++ {
		var event MessageEvent
		if err := client.ReadJSON(&event); err != nil {
			t.Fatalf("failed to read event %d: %v", i, err)
		}
		got[event.ConversationID] = true
	}
	if !got["conv-1"] || !got["conv-2"] {
		t.Errorf("expected events from both conversations, got %v", got)
	}
}
