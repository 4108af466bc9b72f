// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// normalizePath converts paths with dynamic segments to route patterns to prevent
// cardinality explosion in metrics. This maps paths like /events/123 to /events/{id}.
func normalizePath(path string) string {
	// Exact matches for static routes (no normalization needed)
	staticRoutes := map[string]bool{
		"/":                  true,
		"/feed":              true,
		"/events":            true,
		"/events/nearby":     true,
		"/conversations":     true,
		"/messages":          true,
		"/devices":           true,
		"/uploads/sign":      true,
		"/payments":          true,
		"/payments/checkout": true,
		"/internal/stripe":   true,
		"/ws":                true,
		"/health":            true,
		"/ready":             true,
		"/metrics":           true,
	}

	if staticRoutes[path] {
		return path
	}

	// Pattern-based normalization for dynamic routes
	// Handle specific known patterns first for accuracy

	// /events/{id}/... patterns
	if strings.HasPrefix(path, "/events/") {
		parts := strings.Split(path, "/")
		if len(parts) >= 3 {
			// /events/{id}/attend, /events/{id}/guestlist
			if len(parts) == 4 && (parts[3] == "attend" || parts[3] == "guestlist") {
				return "/events/{id}/" + parts[3]
			}
			// /events/{id}
			if len(parts) == 3 && parts[2] != "" {
				return "/events/{id}"
			}
		}
	}

	// /users/{id}/... patterns
	if strings.HasPrefix(path, "/users/") {
		parts := strings.Split(path, "/")
		if len(parts) >= 3 {
			// /users/{id}/follow, /users/{id}/followers, /users/{id}/following, /users/{id}/friends
			if len(parts) == 4 {
				switch parts[3] {
				case "follow", "followers", "following", "friends":
					return "/users/{id}/" + parts[3]
				}
			}
			// /users/{id}
			if len(parts) == 3 && parts[2] != "" {
				return "/users/{id}"
			}
		}
	}

	// /guestlist/{id}/decide
	if strings.HasPrefix(path, "/guestlist/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && parts[3] == "decide" {
			return "/guestlist/{id}/decide"
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/guestlist/{id}"
		}
	}

	// /conversations/{id}/messages
	if strings.HasPrefix(path, "/conversations/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && parts[3] == "messages" {
			return "/conversations/{id}/messages"
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/conversations/{id}"
		}
	}

	// /devices/{token}
	if strings.HasPrefix(path, "/devices/") {
		parts := strings.Split(path, "/")
		if len(parts) == 3 && parts[2] != "" {
			return "/devices/{token}"
		}
	}

	// Fallback: return as-is for unknown patterns
	// This ensures we don't accidentally break metrics for new routes
	return path
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// newMetricsResponseWriter creates a new metricsResponseWriter with default 200 status.
func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// It captures duration, request/response sizes, and request counts.
// Health check endpoints (/health, /ready) are excluded from metrics to avoid cardinality issues.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Exclude health check endpoints from metrics
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			// Wrap response writer to capture status and size
			mrw := newMetricsResponseWriter(w)

			// Get request size from Content-Length header
			requestSize := int64(0)
			if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
				if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
					requestSize = size
				}
			}

			// Call the next handler
			next.ServeHTTP(mrw, r)

			// Calculate duration in seconds
			duration := time.Since(start).Seconds()

			// Normalize path to prevent cardinality explosion
			normalizedPath := normalizePath(r.URL.Path)

			// Record metrics
			metrics.ObserveHTTPRequest(
				r.Method,
				normalizedPath,
				strconv.Itoa(mrw.statusCode),
				duration,
				requestSize,
				mrw.size,
			)
		})
	}
}
