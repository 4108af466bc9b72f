package geo

import "strings"

// CoarsePrecision is the geohash precision used for public venue pins.
// Six characters is roughly ±0.6 km, coarse enough to place an event in a
// neighborhood without revealing the exact venue before a guestlist approval.
const CoarsePrecision = 6

// base32 is the geohash base32 alphabet (excludes a, i, l, o).
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// EncodeGeohash encodes a point into a geohash string of the given length.
// A precision below 1 falls back to CoarsePrecision.
func EncodeGeohash(p Point, precision int) string {
	if precision < 1 {
		precision = CoarsePrecision
	}

	latLo, latHi := -90.0, 90.0
	lngLo, lngHi := -180.0, 180.0

	var sb strings.Builder
	sb.Grow(precision)

	var ch uint
	bits := 0
	even := true
	for sb.Len() < precision {
		if even {
			mid := (lngLo + lngHi) / 2
			if p.Lng > mid {
				ch |= 1 << (4 - bits)
				lngLo = mid
			} else {
				lngHi = mid
			}
		} else {
			mid := (latLo + latHi) / 2
			if p.Lat > mid {
				ch |= 1 << (4 - bits)
				latLo = mid
			} else {
				latHi = mid
			}
		}

		even = !even
		bits++
		if bits == 5 {
			sb.WriteByte(base32[ch])
			bits = 0
			ch = 0
		}
	}

	return sb.String()
}

// TruncateGeohash lowercases and truncates a geohash to the given precision.
// Returns empty string for empty input, invalid characters, or precision < 1.
// Inputs already shorter than the precision are returned lowercased as is.
func TruncateGeohash(hash string, precision int) string {
	if hash == "" || precision < 1 {
		return ""
	}

	lower := strings.ToLower(hash)
	for _, c := range lower {
		if !strings.ContainsRune(base32, c) {
			return ""
		}
	}

	if len(lower) <= precision {
		return lower
	}
	return lower[:precision]
}
