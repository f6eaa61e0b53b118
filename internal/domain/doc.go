// Package domain models NASA FIRMS hotspot detections and the wildfire records
// reconciled from them.
//
// # Data Source
//
// Detections come from the NASA Fire Information for Resource Management System
// (FIRMS) area API at https://firms.modaps.eosdis.nasa.gov/api/area/. The API
// returns one CSV per request covering a bounding box and a lookback window of
// whole days. Each row is a single thermal anomaly observed by a satellite pass.
//
// # FIRMS Data Conventions
//
// Columns (MODIS_NRT; VIIRS sources use bright_ti4/bright_ti5 instead):
//
//	latitude,longitude,brightness,scan,track,acq_date,acq_time,satellite,
//	instrument,confidence,version,bright_t31,frp,daynight
//
// Only latitude, longitude, acq_date and acq_time are mandatory. A payload
// missing any of them is rejected as a whole ([SchemaError]).
//
// Time format:
//
//	acq_date is "YYYY-MM-DD", acq_time is HHMM in 24-hour UTC, e.g. "0135".
//	Leading zeros are significant and are restored when a producer drops them:
//	"135" → "0135".
//
// Confidence:
//
//	MODIS reports an integer 0–100. VIIRS reports "l", "n" or "h"; those values
//	are treated as absent and fall back to the default confidence.
//
// # Derived Metrics
//
// The radiometric fields are mapped to user-facing metrics with fixed heuristics
// (no physical accuracy is claimed):
//
//	intensity  = min(brightness / 500, 1)          brightness defaults to 300
//	severity   = <0.3 low | <0.6 medium | <0.8 high | else critical
//	area (ha)  = frp × 0.15                         frp defaults to 0
//	confidence = confidence / 100                   defaults to 0.7
//
// # Reconciliation
//
// A detection matches an existing record when both coordinates lie within
// ±0.01° and the UTC calendar dates are equal. The window is coarse and can merge
// closely spaced fires; see [MatchQuery].
package domain
