package payment

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestRecordEventDeduplicates(t *testing.T) {
	repo := NewInMemoryWebhookRepository()

	if err := repo.RecordEvent("evt_123", "checkout.session.completed"); err != nil {
		t.Fatalf("first RecordEvent failed: %v", err)
	}
	if err := repo.RecordEvent("evt_123", "checkout.session.completed"); !errors.Is(err, ErrEventAlreadyProcessed) {
		t.Errorf("expected ErrEventAlreadyProcessed on duplicate, got %v", err)
	}

	processed, err := repo.HasProcessed("evt_123")
	if err != nil {
		t.Fatalf("HasProcessed failed: %v", err)
	}
	if !processed {
		t.Error("expected event to be recorded")
	}

	processed, err = repo.HasProcessed("evt_other")
	if err != nil {
		t.Fatalf("HasProcessed failed: %v", err)
	}
	if processed {
		t.Error("unrecorded event should not read as processed")
	}
}

func TestRecordEventConcurrent(t *testing.T) {
	repo := NewInMemoryWebhookRepository()

	const workers = 16
	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)

	// All workers race to record the same event. Exactly one wins.
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.RecordEvent("evt_race", "checkout.session.completed"); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != 1 {
		t.Errorf("expected exactly one successful record, got %d", count)
	}
}

func TestRecordDistinctEvents(t *testing.T) {
	repo := NewInMemoryWebhookRepository()

	for i := 0; i < 5; i++ {
		eventID := fmt.Sprintf("evt_%d", i)
		if err := repo.RecordEvent(eventID, "checkout.session.completed"); err != nil {
			t.Fatalf("RecordEvent %s failed: %v", eventID, err)
		}
	}
}
