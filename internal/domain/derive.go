package domain

import "math"

// Heuristic constants for mapping FIRMS radiometry to record metrics.
const (
	brightnessScale     = 500.0
	defaultBrightness   = 300.0
	frpToHectares       = 0.15
	defaultConfidence   = 0.7
	mediumIntensityFrom = 0.3
	highIntensityFrom   = 0.6
	criticalFrom        = 0.8
)

// DerivedMetrics are the record fields computed from a single detection.
type DerivedMetrics struct {
	Intensity  float64  `json:"intensity"`
	Severity   Severity `json:"severity"`
	AreaHa     float64  `json:"area_ha"`
	Confidence float64  `json:"confidence"`
}

// DeriveMetrics computes intensity, severity, estimated area and confidence.
// All defaults for missing optional fields are applied here.
func DeriveMetrics(d HotspotDetection) DerivedMetrics {
	brightness := defaultBrightness
	if d.Brightness != nil {
		brightness = *d.Brightness
	}
	intensity := math.Min(brightness/brightnessScale, 1.0)

	var frp float64
	if d.FRP != nil {
		frp = *d.FRP
	}

	confidence := defaultConfidence
	if d.Confidence != nil {
		confidence = float64(*d.Confidence) / 100
	}

	return DerivedMetrics{
		Intensity:  intensity,
		Severity:   SeverityFor(intensity),
		AreaHa:     frp * frpToHectares,
		Confidence: confidence,
	}
}

// SeverityFor maps intensity onto the four tiers. Each tier includes its
// lower bound: exactly 0.3 is medium, exactly 0.8 is critical.
func SeverityFor(intensity float64) Severity {
	switch {
	case intensity < mediumIntensityFrom:
		return SeverityLow
	case intensity < highIntensityFrom:
		return SeverityMedium
	case intensity < criticalFrom:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}
