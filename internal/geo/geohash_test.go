package geo

import "testing"

// TestEncodeGeohash verifies encoding against known geohash values.
func TestEncodeGeohash(t *testing.T) {
	tests := []struct {
		name      string
		point     Point
		precision int
		want      string
	}{
		{"greenwich", Point{Lat: 51.4769, Lng: 0.0005}, 6, "u10hb5"},
		{"manhattan", Point{Lat: 40.7831, Lng: -73.9712}, 6, "dr72h8"},
		{"origin", Point{Lat: 0, Lng: 0}, 5, "7zzzz"},
		{"zero precision falls back to coarse", Point{Lat: 0, Lng: 0}, 0, "7zzzzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeGeohash(tt.point, tt.precision)
			if got != tt.want {
				t.Errorf("EncodeGeohash() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestTruncateGeohash exercises validation and truncation behavior.
func TestTruncateGeohash(t *testing.T) {
	tests := []struct {
		name      string
		hash      string
		precision int
		want      string
	}{
		{"truncates long hash", "dr5rumw3x9", 6, "dr5rum"},
		{"lowercases input", "DR5RUM", 6, "dr5rum"},
		{"shorter than precision kept", "dr5", 6, "dr5"},
		{"empty input", "", 6, ""},
		{"invalid character", "dr5a", 6, ""},
		{"zero precision", "dr5rum", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateGeohash(tt.hash, tt.precision)
			if got != tt.want {
				t.Errorf("TruncateGeohash(%q, %d) = %q, want %q", tt.hash, tt.precision, got, tt.want)
			}
		})
	}
}
