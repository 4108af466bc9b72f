package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/afterdark-app/afterdark/internal/event"
	"github.com/afterdark-app/afterdark/internal/geo"
	"github.com/afterdark-app/afterdark/internal/middleware"
	"github.com/afterdark-app/afterdark/internal/social"
)

func seedLocatedEvent(t *testing.T, repo *event.InMemoryRepository, id, title string, lat, lng float64, startsIn time.Duration) *event.Event {
	t.Helper()

	now := time.Now()
	e := &event.Event{
		ID:        id,
		HostID:    "host-1",
		Title:     title,
		Location:  &geo.Point{Lat: lat, Lng: lng},
		StartsAt:  now.Add(startsIn),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(e); err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}
	return e
}

func decodeNearby(t *testing.T, w *httptest.ResponseRecorder) NearbyResponse {
	t.Helper()

	var resp NearbyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse nearby response: %v, body: %s", err, w.Body.String())
	}
	return resp
}

func TestNearby_SortsByDistance(t *testing.T) {
	repo := event.NewInMemoryRepository()
	h := NewNearbyHandlers(repo, social.NewInMemoryRepository(), nil)

	// Viewer in lower Manhattan; Brooklyn is closer than Harlem.
	seedLocatedEvent(t, repo, "evt-harlem", "Uptown Jam", 40.8116, -73.9465, 3*time.Hour)
	seedLocatedEvent(t, repo, "evt-bk", "Warehouse Rave", 40.6782, -73.9442, 3*time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/events/nearby?lat=40.7128&lng=-74.0060", nil)
	w := httptest.NewRecorder()

	h.Nearby(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decodeNearby(t, w)
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Event.ID != "evt-bk" {
		t.Errorf("expected closest event first, got %s", resp.Results[0].Event.ID)
	}
	for _, res := range resp.Results {
		if res.DistanceMiles == nil {
			t.Errorf("expected distance annotation for %s", res.Event.ID)
		}
	}
}

func TestNearby_NoLocation_DistanceUnknown(t *testing.T) {
	repo := event.NewInMemoryRepository()
	h := NewNearbyHandlers(repo, social.NewInMemoryRepository(), nil)
	seedLocatedEvent(t, repo, "evt-1", "Warehouse Rave", 40.68, -73.94, 2*time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/events/nearby", nil)
	w := httptest.NewRecorder()

	h.Nearby(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	resp := decodeNearby(t, w)
	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Results))
	}
	if resp.Results[0].DistanceMiles != nil {
		t.Error("expected nil distance when viewer location is unknown")
	}
}

func TestNearby_MaxDistanceFilter(t *testing.T) {
	repo := event.NewInMemoryRepository()
	h := NewNearbyHandlers(repo, social.NewInMemoryRepository(), nil)

	seedLocatedEvent(t, repo, "evt-near", "Around the Corner", 40.7138, -74.0070, 2*time.Hour)
	seedLocatedEvent(t, repo, "evt-far", "Philly Takeover", 39.9526, -75.1652, 2*time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/events/nearby?lat=40.7128&lng=-74.0060&max_distance=10", nil)
	w := httptest.NewRecorder()

	h.Nearby(w, req)

	resp := decodeNearby(t, w)
	if len(resp.Results) != 1 || resp.Results[0].Event.ID != "evt-near" {
		t.Errorf("expected only the nearby event, got %+v", resp.Results)
	}
}

func TestNearby_SearchText(t *testing.T) {
	repo := event.NewInMemoryRepository()
	h := NewNearbyHandlers(repo, social.NewInMemoryRepository(), nil)

	seedLocatedEvent(t, repo, "evt-1", "Warehouse Rave", 40.68, -73.94, 2*time.Hour)
	seedLocatedEvent(t, repo, "evt-2", "Jazz Night", 40.69, -73.95, 2*time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/events/nearby?q=warehouse", nil)
	w := httptest.NewRecorder()

	h.Nearby(w, req)

	resp := decodeNearby(t, w)
	if len(resp.Results) != 1 || resp.Results[0].Event.ID != "evt-1" {
		t.Errorf("expected only the matching event, got %+v", resp.Results)
	}
}

func TestNearby_FriendsFilterRequiresAuth(t *testing.T) {
	repo := event.NewInMemoryRepository()
	h := NewNearbyHandlers(repo, social.NewInMemoryRepository(), nil)

	req := httptest.NewRequest(http.MethodGet, "/events/nearby?friends=true", nil)
	w := httptest.NewRecorder()

	h.Nearby(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestNearby_FriendsFilter(t *testing.T) {
	repo := event.NewInMemoryRepository()
	socialRepo := social.NewInMemoryRepository()
	h := NewNearbyHandlers(repo, socialRepo, nil)

	seedLocatedEvent(t, repo, "evt-friend", "Warehouse Rave", 40.68, -73.94, 2*time.Hour)
	seedLocatedEvent(t, repo, "evt-other", "Jazz Night", 40.69, -73.95, 2*time.Hour)

	if err := socialRepo.Follow("viewer", "friend-1"); err != nil {
		t.Fatalf("failed to follow: %v", err)
	}
	if err := repo.AddAttendee("evt-friend", "friend-1"); err != nil {
		t.Fatalf("failed to add attendee: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/events/nearby?friends=true", nil)
	req = req.WithContext(middleware.SetUserID(req.Context(), "viewer"))
	w := httptest.NewRecorder()

	h.Nearby(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeNearby(t, w)
	if len(resp.Results) != 1 || resp.Results[0].Event.ID != "evt-friend" {
		t.Errorf("expected only the friend-attended event, got %+v", resp.Results)
	}
}

func TestNearby_InvalidParams(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"lat without lng", "lat=40.7"},
		{"bad lat", "lat=abc&lng=-74"},
		{"lat out of range", "lat=95&lng=-74"},
		{"unknown window", "window=next-year"},
		{"custom window missing bounds", "window=custom"},
		{"max_distance without location", "max_distance=10"},
		{"negative max_distance", "lat=40.7&lng=-74&max_distance=-5"},
		{"limit out of range", "limit=10000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := event.NewInMemoryRepository()
			h := NewNearbyHandlers(repo, social.NewInMemoryRepository(), nil)

			req := httptest.NewRequest(http.MethodGet, "/events/nearby?"+tt.query, nil)
			w := httptest.NewRecorder()

			h.Nearby(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestNearby_CustomWindow(t *testing.T) {
	repo := event.NewInMemoryRepository()
	h := NewNearbyHandlers(repo, social.NewInMemoryRepository(), nil)

	seedLocatedEvent(t, repo, "evt-soon", "Warehouse Rave", 40.68, -73.94, 2*time.Hour)
	seedLocatedEvent(t, repo, "evt-later", "Jazz Night", 40.69, -73.95, 100*time.Hour)

	start := time.Now().UTC().Format(time.RFC3339)
	end := time.Now().UTC().Add(24 * time.Hour).Format(time.RFC3339)
	req := httptest.NewRequest(http.MethodGet, "/events/nearby?window=custom&start="+start+"&end="+end, nil)
	w := httptest.NewRecorder()

	h.Nearby(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeNearby(t, w)
	if len(resp.Results) != 1 || resp.Results[0].Event.ID != "evt-soon" {
		t.Errorf("expected only the event inside the window, got %+v", resp.Results)
	}
}
