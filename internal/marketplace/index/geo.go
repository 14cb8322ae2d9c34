package index

import (
	"math"

	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
	"github.com/mmcloughlin/geohash"
)

// Geohash precisions kept per point, coarse to fine.
var precisions = []uint{2, 3, 4, 5, 6}

// maxCells bounds the number of cells a radius query may visit.
const maxCells = 256

type cellSize struct{ lat, lng float64 }

var cellSizes = func() map[uint]cellSize {
	sizes := make(map[uint]cellSize, len(precisions))
	for _, p := range precisions {
		box := geohash.BoundingBox(geohash.EncodeWithPrecision(0.1, 0.1, p))
		sizes[p] = cellSize{lat: box.MaxLat - box.MinLat, lng: box.MaxLng - box.MinLng}
	}
	return sizes
}()

// geoIndex buckets points into geohash cells at several precisions.
type geoIndex struct {
	points map[uuid.UUID]models.Point
	cells  map[uint]map[string]map[uuid.UUID]struct{}
}

func newGeoIndex() *geoIndex {
	cells := make(map[uint]map[string]map[uuid.UUID]struct{}, len(precisions))
	for _, p := range precisions {
		cells[p] = make(map[string]map[uuid.UUID]struct{})
	}
	return &geoIndex{points: make(map[uuid.UUID]models.Point), cells: cells}
}

func (g *geoIndex) put(id uuid.UUID, pt models.Point) {
	g.remove(id)
	g.points[id] = pt
	for _, p := range precisions {
		hash := geohash.EncodeWithPrecision(pt.Lat, pt.Lng, p)
		bucket, ok := g.cells[p][hash]
		if !ok {
			bucket = make(map[uuid.UUID]struct{})
			g.cells[p][hash] = bucket
		}
		bucket[id] = struct{}{}
	}
}

func (g *geoIndex) remove(id uuid.UUID) {
	pt, ok := g.points[id]
	if !ok {
		return
	}
	delete(g.points, id)
	for _, p := range precisions {
		hash := geohash.EncodeWithPrecision(pt.Lat, pt.Lng, p)
		if bucket, ok := g.cells[p][hash]; ok {
			delete(bucket, id)
			if len(bucket) == 0 {
				delete(g.cells[p], hash)
			}
		}
	}
}

// within returns the ids within radiusKm of center with their distances.
func (g *geoIndex) within(center models.Point, radiusKm float64) map[uuid.UUID]float64 {
	out := make(map[uuid.UUID]float64)
	check := func(id uuid.UUID) {
		if _, done := out[id]; done {
			return
		}
		if d := models.DistanceKm(center, g.points[id]); d <= radiusKm {
			out[id] = d
		}
	}

	minLat, maxLat, minLng, maxLng := models.BoundingBox(center, radiusKm)
	precision, ok := pickPrecision(maxLat-minLat, maxLng-minLng)
	if !ok {
		for id := range g.points {
			check(id)
		}
		return out
	}
	for _, hash := range coveringCells(precision, minLat, maxLat, minLng, maxLng) {
		for id := range g.cells[precision][hash] {
			check(id)
		}
	}
	return out
}

// pickPrecision returns the finest precision whose cover of the box stays
// within maxCells. It reports false when even the coarsest is too fine.
func pickPrecision(latSpan, lngSpan float64) (uint, bool) {
	for i := len(precisions) - 1; i >= 0; i-- {
		p := precisions[i]
		size := cellSizes[p]
		n := (math.Floor(latSpan/size.lat) + 2) * (math.Floor(lngSpan/size.lng) + 2)
		if n <= maxCells {
			return p, true
		}
	}
	return 0, false
}

// coveringCells lists every cell of the given precision that intersects the
// box. Samples are spaced one cell apart, so each intersecting cell holds at
// least one sample.
func coveringCells(precision uint, minLat, maxLat, minLng, maxLng float64) []string {
	size := cellSizes[precision]
	seen := make(map[string]struct{})
	var out []string
	for lat := minLat; ; lat += size.lat {
		if lat > maxLat {
			lat = maxLat
		}
		for lng := minLng; ; lng += size.lng {
			if lng > maxLng {
				lng = maxLng
			}
			hash := geohash.EncodeWithPrecision(lat, wrapLng(lng), precision)
			if _, ok := seen[hash]; !ok {
				seen[hash] = struct{}{}
				out = append(out, hash)
			}
			if lng >= maxLng {
				break
			}
		}
		if lat >= maxLat {
			break
		}
	}
	return out
}

func wrapLng(lng float64) float64 {
	for lng < -180 {
		lng += 360
	}
	for lng >= 180 {
		lng -= 360
	}
	return lng
}
