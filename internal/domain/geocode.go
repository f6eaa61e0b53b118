package domain

import (
	"context"
	"log/slog"
)

// EnrichWithPlace fills PlaceName on a record from reverse geocoding.
// A nil geocoder, an error, or an empty result leaves the record unchanged.
func EnrichWithPlace(ctx context.Context, rec WildfireRecord, geocoder Geocoder, logger *slog.Logger) WildfireRecord {
	if geocoder == nil {
		return rec
	}

	result, err := geocoder.ReverseGeocode(ctx, rec.Latitude, rec.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"record_id", rec.ID,
			"lat", rec.Latitude,
			"lon", rec.Longitude,
			"error", err,
		)
		return rec
	}

	switch {
	case result.PlaceName != "":
		rec.PlaceName = result.PlaceName
	case result.FormattedAddress != "":
		rec.PlaceName = result.FormattedAddress
	}
	return rec
}
