package domain

import (
	"time"

	"github.com/google/uuid"
)

// Severity is the four-level tier derived from intensity.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Status is the advisory lifecycle state of a wildfire record. The pipeline
// only ever writes StatusActive; the other states are set by operators.
type Status string

const (
	StatusActive       Status = "active"
	StatusContained    Status = "contained"
	StatusExtinguished Status = "extinguished"
)

// Default source labels written on new records.
const (
	DefaultSatellite  = "MODIS"
	DefaultSourceName = "NASA FIRMS"
)

// Region is an administrative department of Bolivia. Name is the unique key.
type Region struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Code    string  `json:"code"`
	Capital string  `json:"capital,omitempty"`
	AreaKm2 float64 `json:"area_km2,omitempty"`
}

// WildfireRecord is the persisted, reconciled view of one fire.
type WildfireRecord struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	DetectedAt     time.Time `json:"detected_at"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Region         *Region   `json:"region,omitempty"`
	Intensity      float64   `json:"intensity"`
	Severity       Severity  `json:"severity"`
	AreaHa         float64   `json:"area_ha"`
	Confidence     float64   `json:"confidence"`
	Satellite      string    `json:"satellite"`
	SourceName     string    `json:"source_name"`
	Status         Status    `json:"status"`
	BrightnessTemp *float64  `json:"brightness_temp,omitempty"`
	PlaceName      string    `json:"place_name,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RegionName returns the region name or "" when the record is unclassified.
func (r WildfireRecord) RegionName() string {
	if r.Region == nil {
		return ""
	}
	return r.Region.Name
}

// ChangeAction tells downstream consumers whether a record was inserted or refreshed.
type ChangeAction string

const (
	ActionCreated ChangeAction = "created"
	ActionUpdated ChangeAction = "updated"
)

// RecordChange is emitted for every record written during a run.
type RecordChange struct {
	Action ChangeAction   `json:"action"`
	Record WildfireRecord `json:"record"`
}

// RunSummary is the externally observable result of one pipeline run.
type RunSummary struct {
	Created       int `json:"created"`
	Updated       int `json:"updated"`
	TotalInStore  int `json:"total_in_store"`
	ActiveInStore int `json:"active_in_store"`
	Fetched       int `json:"fetched"`
	Skipped       int `json:"skipped"`
}

// StoreStatus answers the status query surface.
type StoreStatus struct {
	Total            int        `json:"total"`
	Active           int        `json:"active"`
	LastDetection    *time.Time `json:"last_detection"`
	APIKeyConfigured bool       `json:"api_key_configured"`
}
