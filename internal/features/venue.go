package features

import (
	"math"

	"match-predictor/internal/common"
	"match-predictor/internal/sports"
)

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return common.EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// travelDistance is zero when either side lacks coordinates.
func travelDistance(from, to *sports.Venue) float64 {
	if !from.HasCoordinates() || !to.HasCoordinates() {
		return 0
	}
	return Haversine(*from.Latitude, *from.Longitude, *to.Latitude, *to.Longitude)
}

// VenueAdvantage is 0 for an unknown venue. In a tournament round it grows
// with how much farther the away team travelled; otherwise it is 1 when the
// match is played at the home team's own venue.
func VenueAdvantage(m sports.Match) float64 {
	if m.Venue == nil || m.Venue.Name == "" {
		return 0
	}

	if m.IsTournament() {
		home := travelDistance(m.HomeTeam.Venue, m.Venue)
		away := travelDistance(m.AwayTeam.Venue, m.Venue)
		return Normalize((away - home) / common.TravelDistanceNorm)
	}

	if m.HomeTeam.Venue != nil && m.HomeTeam.Venue.Name == m.Venue.Name {
		return 1
	}
	return 0
}
