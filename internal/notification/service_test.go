package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// recordingSender captures sent notes and fails for tokens in failFor.
type recordingSender struct {
	mu      sync.Mutex
	sent    map[string][]*Note // token -> notes
	failFor map[string]bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{
		sent:    make(map[string][]*Note),
		failFor: make(map[string]bool),
	}
}

func (s *recordingSender) Send(_ context.Context, token string, note *Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[token] {
		return errors.New("registration token not registered")
	}
	s.sent[token] = append(s.sent[token], note)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTokenRepositoryRegisterAndRemove(t *testing.T) {
	repo := NewInMemoryTokenRepository()

	if err := repo.Register(&DeviceToken{UserID: "user-a", Token: "tok-1", Platform: "ios"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := repo.Register(&DeviceToken{UserID: "user-a", Token: "tok-2", Platform: "android"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tokens, err := repo.TokensForUser("user-a")
	if err != nil {
		t.Fatalf("TokensForUser failed: %v", err)
	}
	if len(tokens) != 2 {
		t.Errorf("expected 2 tokens, got %d", len(tokens))
	}

	// Re-registering a token under a new user moves it.
	if err := repo.Register(&DeviceToken{UserID: "user-b", Token: "tok-1", Platform: "ios"}); err != nil {
		t.Fatalf("re-Register failed: %v", err)
	}
	tokens, _ = repo.TokensForUser("user-a")
	if len(tokens) != 1 || tokens[0] != "tok-2" {
		t.Errorf("expected only tok-2 left for user-a, got %v", tokens)
	}

	if err := repo.Remove("tok-2"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := repo.Remove("tok-2"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound on double remove, got %v", err)
	}
}

func TestNotifyFansOutToAllDevices(t *testing.T) {
	repo := NewInMemoryTokenRepository()
	sender := newRecordingSender()
	svc := NewService(repo, sender, testLogger())

	_ = repo.Register(&DeviceToken{UserID: "user-a", Token: "tok-1", Platform: "ios"})
	_ = repo.Register(&DeviceToken{UserID: "user-a", Token: "tok-2", Platform: "android"})
	_ = repo.Register(&DeviceToken{UserID: "user-b", Token: "tok-3", Platform: "ios"})

	note := &Note{Title: "Guestlist update", Body: "You're on the list"}
	if err := svc.Notify(context.Background(), "user-a", note); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if len(sender.sent["tok-1"]) != 1 || len(sender.sent["tok-2"]) != 1 {
		t.Errorf("expected both of user-a's devices notified, got %v", sender.sent)
	}
	if len(sender.sent["tok-3"]) != 0 {
		t.Error("user-b's device should not have been notified")
	}
}

func TestNotifyDropsUndeliverableTokens(t *testing.T) {
	repo := NewInMemoryTokenRepository()
	sender := newRecordingSender()
	sender.failFor["tok-stale"] = true
	svc := NewService(repo, sender, testLogger())

	_ = repo.Register(&DeviceToken{UserID: "user-a", Token: "tok-stale", Platform: "ios"})
	_ = repo.Register(&DeviceToken{UserID: "user-a", Token: "tok-live", Platform: "android"})

	if err := svc.Notify(context.Background(), "user-a", &Note{Title: "t", Body: "b"}); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	// The live device still got its notification.
	if len(sender.sent["tok-live"]) != 1 {
		t.Error("expected delivery to the healthy token despite a stale one")
	}
	// The stale token is gone.
	tokens, _ := repo.TokensForUser("user-a")
	if len(tokens) != 1 || tokens[0] != "tok-live" {
		t.Errorf("expected stale token removed, got %v", tokens)
	}
}

func TestGuestlistDecidedPayload(t *testing.T) {
	repo := NewInMemoryTokenRepository()
	sender := newRecordingSender()
	svc := NewService(repo, sender, testLogger())

	_ = repo.Register(&DeviceToken{UserID: "user-a", Token: "tok-1", Platform: "ios"})

	err := svc.GuestlistDecided(context.Background(), "user-a", "event-1", "Warehouse Rave", "approved")
	if err != nil {
		t.Fatalf("GuestlistDecided failed: %v", err)
	}

	notes := sender.sent["tok-1"]
	if len(notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(notes))
	}
	if notes[0].Data["kind"] != "guestlist.approved" {
		t.Errorf("expected kind guestlist.approved, got %q", notes[0].Data["kind"])
	}
	if notes[0].Data["event_id"] != "event-1" {
		t.Errorf("expected event_id event-1, got %q", notes[0].Data["event_id"])
	}
}
