package models

import "math"

const earthRadiusKm = 6371.0088

// Point is a WGS84 coordinate.
type Point struct {
	Lng float64 `gorm:"column:lng" json:"lng" validate:"gte=-180,lte=180"`
	Lat float64 `gorm:"column:lat" json:"lat" validate:"gte=-90,lte=90"`
}

// DistanceKm returns the great-circle distance between a and b.
func DistanceKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// BoundingBox returns the lat/lng box enclosing the circle of radiusKm around
// p. Longitudes are not wrapped; callers handle values outside [-180, 180].
func BoundingBox(p Point, radiusKm float64) (minLat, maxLat, minLng, maxLng float64) {
	dLat := radiusKm / earthRadiusKm * 180 / math.Pi
	minLat = math.Max(-90, p.Lat-dLat)
	maxLat = math.Min(90, p.Lat+dLat)

	cos := math.Cos(p.Lat * math.Pi / 180)
	if cos < 1e-6 || maxLat >= 90 || minLat <= -90 {
		return minLat, maxLat, -180, 180
	}
	dLng := dLat / cos
	if dLng >= 180 {
		return minLat, maxLat, -180, 180
	}
	return minLat, maxLat, p.Lng - dLng, p.Lng + dLng
}
