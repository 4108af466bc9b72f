package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Weights defines the blend of sub-scores in the final relevance score.
// Each sub-score is in [0, 100]; weights should sum to 1.0 so the final
// score stays in the same range.
type Weights struct {
	Proximity  float64 `json:"proximity"`  // Distance to viewer (default: 0.30)
	Popularity float64 `json:"popularity"` // Attendee count (default: 0.25)
	Interest   float64 `json:"interest"`   // Category vs viewer interests (default: 0.25)
	Recency    float64 `json:"recency"`    // How new the listing is (default: 0.15)
	Timing     float64 `json:"timing"`     // How soon the event starts (default: 0.05)
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight configuration
}

// DefaultWeights returns the default scoring weight configuration.
//
// Formula: score = (proximity * 0.30) + (popularity * 0.25) +
// (interest * 0.25) + (recency * 0.15) + (timing * 0.05)
//
// Proximity dominates because the product is map-first: a packed club
// across town loses to a decent bar around the corner. Popularity and
// interest match carry equal weight as the social and taste signals.
// Recency keeps fresh listings circulating, and timing is a small nudge
// toward events starting soon.
func DefaultWeights() *Weights {
	return &Weights{
		Proximity:  0.30,
		Popularity: 0.25,
		Interest:   0.25,
		Recency:    0.15,
		Timing:     0.05,
	}
}

// LoadCalibration loads scoring weights from a JSON calibration file.
// Partial configurations are merged with defaults for graceful degradation.
// On error, returns default weights so ranking keeps working.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read feed calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse feed calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights with base weights.
// Only non-zero values from the override are applied, which allows
// partial overrides in the calibration file.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base
	if override.Proximity != 0 {
		result.Proximity = override.Proximity
	}
	if override.Popularity != 0 {
		result.Popularity = override.Popularity
	}
	if override.Interest != 0 {
		result.Interest = override.Interest
	}
	if override.Recency != 0 {
		result.Recency = override.Recency
	}
	if override.Timing != 0 {
		result.Timing = override.Timing
	}
	return &result
}

// logCalibrationOverrides logs which weights differ from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	if loaded.Proximity != defaults.Proximity {
		overrides = append(overrides, fmt.Sprintf("proximity: %.2f -> %.2f",
			defaults.Proximity, loaded.Proximity))
	}
	if loaded.Popularity != defaults.Popularity {
		overrides = append(overrides, fmt.Sprintf("popularity: %.2f -> %.2f",
			defaults.Popularity, loaded.Popularity))
	}
	if loaded.Interest != defaults.Interest {
		overrides = append(overrides, fmt.Sprintf("interest: %.2f -> %.2f",
			defaults.Interest, loaded.Interest))
	}
	if loaded.Recency != defaults.Recency {
		overrides = append(overrides, fmt.Sprintf("recency: %.2f -> %.2f",
			defaults.Recency, loaded.Recency))
	}
	if loaded.Timing != defaults.Timing {
		overrides = append(overrides, fmt.Sprintf("timing: %.2f -> %.2f",
			defaults.Timing, loaded.Timing))
	}

	if len(overrides) > 0 {
		slog.Info("loaded feed calibration with overrides", "overrides", overrides)
	} else {
		slog.Info("loaded feed calibration (using all defaults)")
	}
}
