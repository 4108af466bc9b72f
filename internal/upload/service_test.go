package upload

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		expectError bool
	}{
		{"valid image/jpeg", MIMEImageJPEG, false},
		{"valid image/png", MIMEImagePNG, false},
		{"valid image/webp", MIMEImageWebP, false},
		{"invalid image/gif", "image/gif", true},
		{"invalid video/mp4", "video/mp4", true},
		{"invalid application/pdf", "application/pdf", true},
		{"empty content type", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContentType(tt.contentType)
			if tt.expectError && !errors.Is(err, ErrUnsupportedType) {
				t.Errorf("expected ErrUnsupportedType for %q, got %v", tt.contentType, err)
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error for %q: %v", tt.contentType, err)
			}
		})
	}
}

func TestValidateFileSize(t *testing.T) {
	service := &Service{
		maxSizeBytes: 10 * 1024 * 1024, // 10MB
	}

	tests := []struct {
		name        string
		sizeBytes   int64
		expectError bool
	}{
		{"valid 1MB file", 1 * 1024 * 1024, false},
		{"valid 10MB file (at limit)", 10 * 1024 * 1024, false},
		{"invalid 11MB file (over limit)", 11 * 1024 * 1024, true},
		{"invalid 0 bytes", 0, true},
		{"invalid negative size", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.ValidateFileSize(tt.sizeBytes)
			if tt.expectError && err == nil {
				t.Errorf("expected error for size %d, got nil", tt.sizeBytes)
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error for size %d: %v", tt.sizeBytes, err)
			}
		})
	}
}

func TestGenerateObjectKey(t *testing.T) {
	eventID := "event123"

	tests := []struct {
		name        string
		contentType string
		eventID     *string
		expectError bool
		checkPrefix string
		checkExt    string
	}{
		{
			name:        "jpeg with event ID",
			contentType: MIMEImageJPEG,
			eventID:     &eventID,
			checkPrefix: "flyers/event123/",
			checkExt:    ".jpg",
		},
		{
			name:        "png without event ID",
			contentType: MIMEImagePNG,
			checkPrefix: "flyers/temp/",
			checkExt:    ".png",
		},
		{
			name:        "webp with event ID",
			contentType: MIMEImageWebP,
			eventID:     &eventID,
			checkPrefix: "flyers/event123/",
			checkExt:    ".webp",
		},
		{
			name:        "invalid content type",
			contentType: "image/gif",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := GenerateObjectKey(tt.contentType, tt.eventID)
			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.HasPrefix(key, tt.checkPrefix) {
				t.Errorf("expected key to start with %s, got %s", tt.checkPrefix, key)
			}
			if !strings.HasSuffix(key, tt.checkExt) {
				t.Errorf("expected key to end with %s, got %s", tt.checkExt, key)
			}
			// Key should contain a UUID between prefix and extension.
			if len(key) < len(tt.checkPrefix)+36+len(tt.checkExt) {
				t.Errorf("key too short to contain UUID: %s", key)
			}
		})
	}
}

func TestGenerateObjectKeyRejectsUnsafeEventID(t *testing.T) {
	traversal := "../../etc/passwd"
	key, err := GenerateObjectKey(MIMEImageJPEG, &traversal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(key, "..") || strings.Count(key, "/") != 2 {
		t.Errorf("expected sanitized key, got %s", key)
	}

	hostile := "@#$%^"
	if _, err := GenerateObjectKey(MIMEImageJPEG, &hostile); !errors.Is(err, ErrInvalidEventID) {
		t.Errorf("expected ErrInvalidEventID for fully-stripped ID, got %v", err)
	}
}

func TestSanitizePathComponent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"alphanumeric only", "event123", "event123"},
		{"with hyphens and underscores", "event-123_abc", "event-123_abc"},
		{"with slashes (should be removed)", "../../etc/passwd", "etcpasswd"},
		{"with special characters", "event@#$%123", "event123"},
		{"empty string", "", ""},
		{"only special characters", "@#$%^&*()", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sanitizePathComponent(tt.input)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestNewService(t *testing.T) {
	tests := []struct {
		name        string
		config      ServiceConfig
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid configuration",
			config: ServiceConfig{
				BucketName:      "flyers",
				AccessKeyID:     "test-key",
				SecretAccessKey: "test-secret",
				Endpoint:        "https://test.r2.cloudflarestorage.com",
				MaxSizeMB:       10,
			},
		},
		{
			name: "missing bucket name",
			config: ServiceConfig{
				AccessKeyID:     "test-key",
				SecretAccessKey: "test-secret",
				Endpoint:        "https://test.r2.cloudflarestorage.com",
			},
			expectError: true,
			errorMsg:    "bucket name is required",
		},
		{
			name: "missing access key",
			config: ServiceConfig{
				BucketName:      "flyers",
				SecretAccessKey: "test-secret",
				Endpoint:        "https://test.r2.cloudflarestorage.com",
			},
			expectError: true,
			errorMsg:    "access key ID is required",
		},
		{
			name: "missing secret",
			config: ServiceConfig{
				BucketName:  "flyers",
				AccessKeyID: "test-key",
				Endpoint:    "https://test.r2.cloudflarestorage.com",
			},
			expectError: true,
			errorMsg:    "secret access key is required",
		},
		{
			name: "missing endpoint",
			config: ServiceConfig{
				BucketName:      "flyers",
				AccessKeyID:     "test-key",
				SecretAccessKey: "test-secret",
			},
			expectError: true,
			errorMsg:    "endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewService(tt.config)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("expected error %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if service == nil {
				t.Fatal("expected service to be non-nil")
			}
		})
	}
}

func TestNewServiceDefaults(t *testing.T) {
	service, err := NewService(ServiceConfig{
		BucketName:      "flyers",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        "https://test.r2.cloudflarestorage.com",
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	if service.maxSizeBytes != 10*1024*1024 {
		t.Errorf("expected default max size 10MB, got %d bytes", service.maxSizeBytes)
	}
	if service.urlExpiry.Minutes() != 5 {
		t.Errorf("expected default expiry 5 minutes, got %v", service.urlExpiry)
	}
}
