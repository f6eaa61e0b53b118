package domain

import (
	"fmt"
	"time"
)

const unknownRegionName = "Desconocido"

// RecordName synthesizes the display name of a new record as
// "Incendio_<region>_<YYYYMMDD>_<HHMM>", using "Desconocido" for unclassified points.
func RecordName(region *Region, detectedAt time.Time) string {
	name := unknownRegionName
	if region != nil && region.Name != "" {
		name = region.Name
	}
	return fmt.Sprintf("Incendio_%s_%s", name, detectedAt.UTC().Format("20060102_1504"))
}
