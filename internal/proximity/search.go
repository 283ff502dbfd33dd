/**
 * @description
 * Spatial candidate search shared by the exact matcher and the nearby ranker.
 *
 * Candidates are fetched with a cheap bounding-box query against the location store and
 * then filtered exactly with the Haversine great-circle distance. The box is only an
 * optimization: anything outside the requested radius is discarded afterwards.
 *
 * @dependencies
 * - internal/domain: location and bounding box models.
 */
package proximity

import (
	"context"
	"log"
	"math"
	"strings"

	"github.com/transfa/proximity-service/internal/domain"
)

const (
	// EarthRadiusMeters is the mean Earth radius used by the Haversine formula.
	EarthRadiusMeters = 6371000.0
	// MetersPerDegreeLatitude approximates the length of one degree of latitude.
	MetersPerDegreeLatitude = 111320.0
)

// LocationStore is the read side of the external location store.
type LocationStore interface {
	FindLocationsInBox(ctx context.Context, box domain.BoundingBox, nameFilter string, activeOnly bool) ([]domain.LocationWithTransactions, error)
}

// Candidate is an in-radius location with its true distance from the query point.
type Candidate struct {
	Location domain.LocationWithTransactions
	Distance float64
}

// ValidCoordinates reports whether lat/lon are finite and inside the WGS84 ranges.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Distance returns the great-circle distance between two points in meters.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	if a > 1 {
		a = 1
	}
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// BoundingBoxFor returns the box that encloses a circle of radiusMeters around the point.
func BoundingBoxFor(lat, lon, radiusMeters float64) domain.BoundingBox {
	latDelta := radiusMeters / MetersPerDegreeLatitude

	metersPerDegreeLon := MetersPerDegreeLatitude * math.Cos(toRadians(lat))
	lonDelta := 180.0
	// Near the poles a degree of longitude shrinks to nothing; fall back to the full span.
	if metersPerDegreeLon > 1e-6 {
		lonDelta = math.Min(radiusMeters/metersPerDegreeLon, 180)
	}

	box := domain.BoundingBox{
		MinLatitude:     math.Max(lat-latDelta, -90),
		MaxLatitude:     math.Min(lat+latDelta, 90),
		MinLongitude:    lon - lonDelta,
		MaxLongitude:    lon + lonDelta,
		CenterLatitude:  lat,
		CenterLongitude: lon,
	}
	// A box crossing the antimeridian is widened to every longitude; Haversine trims it.
	if box.MinLongitude < -180 || box.MaxLongitude > 180 {
		box.MinLongitude, box.MaxLongitude = -180, 180
	}
	return box
}

// Searcher finds active locations within a radius of a point.
type Searcher struct {
	store LocationStore
}

// NewSearcher creates a Searcher backed by the given location store.
func NewSearcher(store LocationStore) *Searcher {
	return &Searcher{store: store}
}

// Candidates returns active locations no further than radiusMeters from (lat, lon).
// Invalid input and store failures yield an empty slice rather than an error.
func (s *Searcher) Candidates(ctx context.Context, lat, lon, radiusMeters float64, nameHint string) []Candidate {
	if !ValidCoordinates(lat, lon) || !(radiusMeters > 0) || math.IsInf(radiusMeters, 0) {
		return nil
	}

	normalizedHint := NormalizeName(nameHint)
	box := BoundingBoxFor(lat, lon, radiusMeters)

	rows, err := s.store.FindLocationsInBox(ctx, box, normalizedHint, true)
	if err != nil {
		log.Printf("level=warn component=proximity_search msg=\"location query failed\" lat=%f lon=%f radius=%f err=%v", lat, lon, radiusMeters, err)
		return nil
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		if !row.IsActive || !ValidCoordinates(row.Latitude, row.Longitude) {
			continue
		}
		if normalizedHint != "" && !strings.Contains(NormalizeName(row.Name), normalizedHint) {
			continue
		}
		d := Distance(lat, lon, row.Latitude, row.Longitude)
		if d > radiusMeters {
			continue
		}
		candidates = append(candidates, Candidate{Location: row, Distance: d})
	}
	return candidates
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
