package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type requestLogEntry struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Size      int    `json:"size"`
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	ErrorCode string `json:"error_code"`
}

// captureLog runs handler through the Logging middleware and returns the
// parsed JSON log entry it emitted.
func captureLog(t *testing.T, req *http.Request, handler http.HandlerFunc, wrap ...func(http.Handler) http.Handler) requestLogEntry {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var h http.Handler = Logging(logger)(handler)
	for _, w := range wrap {
		h = w(h)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry requestLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v, log: %s", err, buf.String())
	}
	return entry
}

func TestLogging_BasicFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	entry := captureLog(t, req, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	})

	if entry.Method != "GET" {
		t.Errorf("expected method GET, got %s", entry.Method)
	}
	if entry.Path != "/feed" {
		t.Errorf("expected path /feed, got %s", entry.Path)
	}
	if entry.Status != 200 {
		t.Errorf("expected status 200, got %d", entry.Status)
	}
	if entry.LatencyMS < 0 {
		t.Errorf("expected latency_ms >= 0, got %d", entry.LatencyMS)
	}
	if entry.Size != len("hello") {
		t.Errorf("expected size %d, got %d", len("hello"), entry.Size)
	}
	if entry.Level != "INFO" {
		t.Errorf("expected level INFO, got %s", entry.Level)
	}
}

func TestLogging_WithRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/messages", nil)
	req.Header.Set(RequestIDHeader, "req-456")

	entry := captureLog(t, req, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, RequestID)

	if entry.RequestID != "req-456" {
		t.Errorf("expected request_id req-456, got %s", entry.RequestID)
	}
}

func TestLogging_WithUserID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	entry := captureLog(t, req, func(w http.ResponseWriter, r *http.Request) {
		*r = *r.WithContext(SetUserID(r.Context(), "user-42"))
		w.WriteHeader(http.StatusOK)
	})

	if entry.UserID != "user-42" {
		t.Errorf("expected user_id user-42, got %s", entry.UserID)
	}
}

func TestLogging_ClientErrorLogsWarn(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	entry := captureLog(t, req, func(w http.ResponseWriter, r *http.Request) {
		*r = *r.WithContext(SetErrorCode(r.Context(), "validation_error"))
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"validation failed"}`))
	})

	if entry.Status != 400 {
		t.Errorf("expected status 400, got %d", entry.Status)
	}
	if entry.ErrorCode != "validation_error" {
		t.Errorf("expected error_code validation_error, got %s", entry.ErrorCode)
	}
	if entry.Level != "WARN" {
		t.Errorf("expected level WARN for 4xx, got %s", entry.Level)
	}
}

func TestLogging_ServerErrorLogsError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	entry := captureLog(t, req, func(w http.ResponseWriter, r *http.Request) {
		*r = *r.WithContext(SetErrorCode(r.Context(), "internal_error"))
		w.WriteHeader(http.StatusInternalServerError)
	})

	if entry.Status != 500 {
		t.Errorf("expected status 500, got %d", entry.Status)
	}
	if entry.ErrorCode != "internal_error" {
		t.Errorf("expected error_code internal_error, got %s", entry.ErrorCode)
	}
	if entry.Level != "ERROR" {
		t.Errorf("expected level ERROR for 5xx, got %s", entry.Level)
	}
}

func TestLogging_DefaultStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	entry := captureLog(t, req, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	if entry.Status != 200 {
		t.Errorf("expected default status 200, got %d", entry.Status)
	}
}

func TestLogging_AllFieldsPresent(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/guestlist/ev-123", nil)
	req.Header.Set(RequestIDHeader, "req-789")

	body := `{"error":"guest list is closed"}`
	entry := captureLog(t, req, func(w http.ResponseWriter, r *http.Request) {
		ctx := SetUserID(r.Context(), "user-42")
		ctx = SetErrorCode(ctx, "forbidden")
		*r = *r.WithContext(ctx)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(body))
	}, RequestID)

	if entry.Method != "DELETE" {
		t.Errorf("expected method DELETE, got %s", entry.Method)
	}
	if entry.Path != "/guestlist/ev-123" {
		t.Errorf("expected path /guestlist/ev-123, got %s", entry.Path)
	}
	if entry.Status != 403 {
		t.Errorf("expected status 403, got %d", entry.Status)
	}
	if entry.RequestID != "req-789" {
		t.Errorf("expected request_id req-789, got %s", entry.RequestID)
	}
	if entry.UserID != "user-42" {
		t.Errorf("expected user_id user-42, got %s", entry.UserID)
	}
	if entry.ErrorCode != "forbidden" {
		t.Errorf("expected error_code forbidden, got %s", entry.ErrorCode)
	}
	if entry.Size != len(body) {
		t.Errorf("expected size %d, got %d", len(body), entry.Size)
	}
}

func TestLogging_ErrorCodeFromDerivedContext(t *testing.T) {
	// Handlers derive a context for the error response without rebinding
	// the request; the code must still reach the request log.
	req := httptest.NewRequest(http.MethodGet, "/events/ev-missing", nil)
	entry := captureLog(t, req, func(w http.ResponseWriter, r *http.Request) {
		SetErrorCode(r.Context(), "not_found")
		w.WriteHeader(http.StatusNotFound)
	})

	if entry.Status != 404 {
		t.Errorf("expected status 404, got %d", entry.Status)
	}
	if entry.ErrorCode != "not_found" {
		t.Errorf("expected error_code not_found, got %q", entry.ErrorCode)
	}
}

func TestLogging_NoErrorCodeFor2xx(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*r = *r.WithContext(SetErrorCode(r.Context(), "not_found"))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if strings.Contains(buf.String(), "error_code") {
		t.Error("error_code should not be logged for 2xx responses")
	}
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"production", "development", "staging"} {
		if NewLogger(env) == nil {
			t.Fatalf("expected non-nil logger for env %q", env)
		}
	}
}

func TestUserIDContext(t *testing.T) {
	ctx := context.Background()
	if id := GetUserID(ctx); id != "" {
		t.Errorf("expected empty user ID, got %q", id)
	}
	if id := GetUserID(SetUserID(ctx, "user-42")); id != "user-42" {
		t.Errorf("expected user-42, got %q", id)
	}
}

func TestErrorCodeContext(t *testing.T) {
	ctx := context.Background()
	if code := GetErrorCode(ctx); code != "" {
		t.Errorf("expected empty error code, got %q", code)
	}
	if code := GetErrorCode(SetErrorCode(ctx, "not_found")); code != "not_found" {
		t.Errorf("expected not_found, got %q", code)
	}
}

func TestResponseWriter_CapturesStatusAndSize(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	rw.WriteHeader(http.StatusCreated)
	if rw.statusCode != http.StatusCreated {
		t.Errorf("expected captured status 201, got %d", rw.statusCode)
	}
	if w.Code != http.StatusCreated {
		t.Errorf("expected underlying writer status 201, got %d", w.Code)
	}

	data := []byte(`{"status":"going"}`)
	n, err := rw.Write(data)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if n != len(data) {
		t.Errorf("expected to write %d bytes, wrote %d", len(data), n)
	}
	if rw.size != len(data) {
		t.Errorf("expected size %d, got %d", len(data), rw.size)
	}
}
