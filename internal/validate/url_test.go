package validate

import (
	"errors"
	"net"
	"strings"
	"testing"
)

func TestURL(t *testing.T) {
	httpsOnly := URLConstraints{AllowedSchemes: []string{"https"}}

	tests := []struct {
		name        string
		input       string
		constraints URLConstraints
		wantErr     error
	}{
		{
			name:        "https passes",
			input:       "https://ra.co/events/12345",
			constraints: httpsOnly,
		},
		{
			name:        "http passes when listed",
			input:       "http://ra.co/events/12345",
			constraints: URLConstraints{AllowedSchemes: []string{"http", "https"}},
		},
		{
			name:        "empty",
			input:       "",
			constraints: httpsOnly,
			wantErr:     ErrEmpty,
		},
		{
			name:        "scheme outside allowlist",
			input:       "ftp://ra.co/events",
			constraints: httpsOnly,
			wantErr:     ErrDisallowedScheme,
		},
		{
			name:        "over the length cap",
			input:       "https://ra.co/" + strings.Repeat("x", 2048),
			constraints: URLConstraints{AllowedSchemes: []string{"https"}, MaxLength: 2048},
			wantErr:     ErrStringTooLong,
		},
		{
			name:        "localhost blocked",
			input:       "https://localhost/admin",
			constraints: URLConstraints{AllowedSchemes: []string{"https"}, BlockPrivate: true},
			wantErr:     ErrSSRFRisk,
		},
		{
			name:        "rfc1918 address blocked",
			input:       "https://10.0.0.1/internal",
			constraints: URLConstraints{AllowedSchemes: []string{"https"}, BlockPrivate: true},
			wantErr:     ErrSSRFRisk,
		},
		{
			name:        "192.168 address blocked",
			input:       "https://192.168.1.1/router",
			constraints: URLConstraints{AllowedSchemes: []string{"https"}, BlockPrivate: true},
			wantErr:     ErrSSRFRisk,
		},
		{
			name:        "subdomain of allowlisted domain passes",
			input:       "https://shop.ra.co/tickets",
			constraints: URLConstraints{AllowedSchemes: []string{"https"}, AllowedDomains: []string{"ra.co"}},
		},
		{
			name:        "domain outside allowlist blocked",
			input:       "https://scalpers.example/tickets",
			constraints: URLConstraints{AllowedSchemes: []string{"https"}, AllowedDomains: []string{"ra.co"}},
			wantErr:     ErrDisallowedDomain,
		},
		{
			name:        "missing hostname",
			input:       "https:///events",
			constraints: httpsOnly,
			wantErr:     ErrInvalidURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := URL(tt.input, tt.constraints)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("URL() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("URL() error = %v", err)
			}
			if got == "" {
				t.Error("URL() returned an empty string for valid input")
			}
		})
	}
}

func TestTicketURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"https ticket link", "https://tickets.ra.co/warehouse-rave", false},
		{"plain http rejected", "http://tickets.ra.co/warehouse-rave", true},
		{"internal host rejected", "https://localhost/tickets", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := TicketURL(tt.input); (err != nil) != tt.wantErr {
				t.Errorf("TicketURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}

	// PublicWebURLConstraints relaxes only the scheme, not SSRF checks.
	if _, err := URL("http://ra.co", PublicWebURLConstraints); err != nil {
		t.Errorf("http should pass PublicWebURLConstraints: %v", err)
	}
	if _, err := URL("http://localhost", PublicWebURLConstraints); err == nil {
		t.Error("localhost should fail PublicWebURLConstraints")
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"::1", true},
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"192.168.1.1", true},
		{"169.254.169.254", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"172.15.0.1", false},
		{"172.32.0.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			if ip == nil {
				t.Fatalf("bad fixture IP %q", tt.ip)
			}
			if got := isPrivateIP(ip); got != tt.want {
				t.Errorf("isPrivateIP(%s) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}
}
