package geocoding

import (
	"context"
	"errors"
	"fmt"
)

// Geocoder turns coordinates into a human-readable place label.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// CoordinateLabel is the literal "lat,lon" label used when geocoding fails.
func CoordinateLabel(lat, lon float64) string {
	return fmt.Sprintf("%.6f,%.6f", lat, lon)
}

// ErrDisabled is returned by Nop.
var ErrDisabled = errors.New("geocoding disabled")

// Nop never resolves anything, so callers always fall back to coordinates.
type Nop struct{}

func (Nop) Reverse(context.Context, float64, float64) (string, error) {
	return "", ErrDisabled
}
