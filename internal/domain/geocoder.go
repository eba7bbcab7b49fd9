package domain

import "context"

// GeocodeResult is a resolved coordinate for a free-text query. A zero
// result with a nil error means the provider had no match.
type GeocodeResult struct {
	Geo         Geo
	DisplayName string
}

// Found reports whether the provider returned a usable coordinate.
func (r GeocodeResult) Found() bool {
	return r.Geo.Valid()
}

// Geocoder resolves free-text location queries to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (GeocodeResult, error)
}
