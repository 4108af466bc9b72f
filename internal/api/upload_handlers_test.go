package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/afterdark-app/afterdark/internal/upload"
)

func newUploadHandlers(t *testing.T) *UploadHandlers {
	t.Helper()

	// Presigning is local, so dummy credentials work fine in tests.
	svc, err := upload.NewService(upload.ServiceConfig{
		BucketName:      "test-flyers",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
		Endpoint:        "https://test.r2.cloudflarestorage.com",
		MaxSizeMB:       10,
	})
	if err != nil {
		t.Fatalf("failed to create upload service: %v", err)
	}
	return NewUploadHandlers(svc)
}

func TestSignUpload_Success(t *testing.T) {
	h := newUploadHandlers(t)

	req := authedRequest(t, http.MethodPost, "/uploads/sign", "user-1", SignUploadRequest{
		ContentType: "image/jpeg",
		SizeBytes:   1024 * 1024,
	})
	w := httptest.NewRecorder()
	h.SignUpload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp SignUploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.URL == "" || resp.ExpiresAt == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if !strings.HasPrefix(resp.Key, "flyers/temp/") || !strings.HasSuffix(resp.Key, ".jpg") {
		t.Errorf("unexpected object key: %s", resp.Key)
	}
}

func TestSignUpload_WithEventID(t *testing.T) {
	h := newUploadHandlers(t)

	eventID := "evt-123"
	req := authedRequest(t, http.MethodPost, "/uploads/sign", "user-1", SignUploadRequest{
		ContentType: "image/png",
		SizeBytes:   2048,
		EventID:     &eventID,
	})
	w := httptest.NewRecorder()
	h.SignUpload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp SignUploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !strings.HasPrefix(resp.Key, "flyers/evt-123/") {
		t.Errorf("expected key under flyers/evt-123/, got %s", resp.Key)
	}
}

func TestSignUpload_RequiresAuth(t *testing.T) {
	h := newUploadHandlers(t)

	req := authedRequest(t, http.MethodPost, "/uploads/sign", "", SignUploadRequest{
		ContentType: "image/jpeg",
		SizeBytes:   1024,
	})
	w := httptest.NewRecorder()
	h.SignUpload(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestSignUpload_Errors(t *testing.T) {
	h := newUploadHandlers(t)
	badEventID := "!!!"

	tests := []struct {
		name     string
		body     SignUploadRequest
		wantCode string
	}{
		{"unsupported type", SignUploadRequest{ContentType: "application/pdf", SizeBytes: 1024}, ErrCodeUnsupportedType},
		{"file too large", SignUploadRequest{ContentType: "image/jpeg", SizeBytes: 11 * 1024 * 1024}, ErrCodeFileTooLarge},
		{"invalid event id", SignUploadRequest{ContentType: "image/jpeg", SizeBytes: 1024, EventID: &badEventID}, ErrCodeValidation},
		{"missing content type", SignUploadRequest{SizeBytes: 1024}, ErrCodeValidation},
		{"zero size", SignUploadRequest{ContentType: "image/jpeg"}, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authedRequest(t, http.MethodPost, "/uploads/sign", "user-1", tt.body)
			w := httptest.NewRecorder()
			h.SignUpload(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
			}
			if resp := decodeError(t, w); resp.Error.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, resp.Error.Code)
			}
		})
	}
}
