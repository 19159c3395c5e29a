package airquality

import (
	"math"
	"sort"
)

const earthRadiusMeters = 6371000

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// SortByDistance orders readings nearest first. Ties keep upstream order.
func SortByDistance(readings []Reading, lat, lon float64) {
	sort.SliceStable(readings, func(i, j int) bool {
		return DistanceMeters(lat, lon, readings[i].Lat, readings[i].Lon) <
			DistanceMeters(lat, lon, readings[j].Lat, readings[j].Lon)
	})
}
