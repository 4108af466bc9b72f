package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		inbound  string
		wantSame bool
	}{
		{"generates a UUID when absent", "", false},
		{"honors an inbound ID", "edge-proxy-7f3a", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctxID string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxID = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/feed", nil)
			if tt.inbound != "" {
				req.Header.Set(RequestIDHeader, tt.inbound)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			echoed := w.Header().Get(RequestIDHeader)
			if echoed == "" {
				t.Fatal("response is missing the X-Request-ID header")
			}
			if echoed != ctxID {
				t.Errorf("response header %q != context ID %q", echoed, ctxID)
			}
			if tt.wantSame {
				if echoed != tt.inbound {
					t.Errorf("inbound ID %q was replaced with %q", tt.inbound, echoed)
				}
			} else if _, err := uuid.Parse(echoed); err != nil {
				t.Errorf("generated ID %q is not a UUID: %v", echoed, err)
			}
		})
	}
}

func TestGetRequestID_MissingFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Errorf("GetRequestID on bare context = %q, want empty", id)
	}
}
