package domain

import (
	"strings"
	"unicode/utf8"
)

// RegionBounds is one entry of the static classification table.
type RegionBounds struct {
	Name    string
	Capital string
	AreaKm2 float64
	Box     BoundingBox
}

// RegionTable is an ordered, read-only list of region boxes. Boxes overlap at
// their edges; the first declared entry that contains a point wins.
type RegionTable struct {
	entries []RegionBounds
}

// NewRegionTable copies entries so later changes by the caller cannot leak in.
func NewRegionTable(entries []RegionBounds) RegionTable {
	return RegionTable{entries: append([]RegionBounds(nil), entries...)}
}

// DefaultRegionTable returns the approximate department boxes for Bolivia in
// their fixed precedence order.
func DefaultRegionTable() RegionTable {
	return NewRegionTable([]RegionBounds{
		{Name: "La Paz", Capital: "La Paz", AreaKm2: 133985, Box: BoundingBox{MinLat: -17.5, MaxLat: -12.0, MinLon: -69.5, MaxLon: -66.0}},
		{Name: "Cochabamba", Capital: "Cochabamba", AreaKm2: 55631, Box: BoundingBox{MinLat: -18.5, MaxLat: -15.5, MinLon: -66.5, MaxLon: -63.5}},
		{Name: "Santa Cruz", Capital: "Santa Cruz de la Sierra", AreaKm2: 370621, Box: BoundingBox{MinLat: -20.0, MaxLat: -13.5, MinLon: -64.5, MaxLon: -57.5}},
		{Name: "Oruro", Capital: "Oruro", AreaKm2: 53588, Box: BoundingBox{MinLat: -19.5, MaxLat: -17.0, MinLon: -68.5, MaxLon: -65.5}},
		{Name: "Potosi", Capital: "Potosi", AreaKm2: 118218, Box: BoundingBox{MinLat: -22.9, MaxLat: -17.5, MinLon: -68.0, MaxLon: -64.5}},
		{Name: "Tarija", Capital: "Tarija", AreaKm2: 37623, Box: BoundingBox{MinLat: -22.5, MaxLat: -20.5, MinLon: -65.0, MaxLon: -62.5}},
		{Name: "Chuquisaca", Capital: "Sucre", AreaKm2: 51524, Box: BoundingBox{MinLat: -21.0, MaxLat: -18.5, MinLon: -65.5, MaxLon: -62.0}},
		{Name: "Beni", Capital: "Trinidad", AreaKm2: 213564, Box: BoundingBox{MinLat: -15.0, MaxLat: -10.0, MinLon: -68.0, MaxLon: -62.0}},
		{Name: "Pando", Capital: "Cobija", AreaKm2: 63827, Box: BoundingBox{MinLat: -12.0, MaxLat: -9.7, MinLon: -70.0, MaxLon: -64.5}},
	})
}

// Entries returns a copy of the table in declaration order.
func (t RegionTable) Entries() []RegionBounds {
	return append([]RegionBounds(nil), t.entries...)
}

// Locate scans the table in order and returns the first region containing the point.
func (t RegionTable) Locate(lat, lon float64) (RegionBounds, bool) {
	for _, e := range t.entries {
		if e.Box.Contains(lat, lon) {
			return e, true
		}
	}
	return RegionBounds{}, false
}

// NewRegion builds the record created on first encounter of a region.
func (e RegionBounds) NewRegion() Region {
	return Region{
		Name:    e.Name,
		Code:    RegionCode(e.Name),
		Capital: e.Capital,
		AreaKm2: e.AreaKm2,
	}
}

// RegionCode derives the default short code: the first two characters of the
// name, uppercased. Operators may edit it later.
func RegionCode(name string) string {
	if utf8.RuneCountInString(name) <= 2 {
		return strings.ToUpper(name)
	}
	runes := []rune(name)
	return strings.ToUpper(string(runes[:2]))
}
