package domain

// Point is a WGS-84 coordinate held as separate Lat and Lng fields and
// persisted as separate *_lat/*_lng columns; no (lon, lat) ordered pair is
// stored. Handlers convert to/from the {lat, lng} wire shape at the
// boundary.
type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether the point falls within legal WGS-84 bounds.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
