package db

import (
	"strings"

	"github.com/gartstein/harvest/internal/marketplace/models"
	"gorm.io/gorm"
)

// BBox is a latitude/longitude rectangle. MinLng may exceed MaxLng when the
// box crosses the antimeridian.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundingBox returns the box enclosing the circle of radiusKm around center.
func BoundingBox(center models.Point, radiusKm float64) *BBox {
	minLat, maxLat, minLng, maxLng := models.BoundingBox(center, radiusKm)
	if minLng < -180 {
		minLng += 360
	}
	if maxLng > 180 {
		maxLng -= 360
	}
	return &BBox{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
}

func (b *BBox) scope(tx *gorm.DB, latCol, lngCol string) *gorm.DB {
	tx = tx.Where(latCol+" BETWEEN ? AND ?", b.MinLat, b.MaxLat)
	if b.MinLng <= b.MaxLng {
		return tx.Where(lngCol+" BETWEEN ? AND ?", b.MinLng, b.MaxLng)
	}
	return tx.Where(lngCol+" >= ? OR "+lngCol+" <= ?", b.MinLng, b.MaxLng)
}

// anyTerm keeps rows where at least one term occurs in one of the columns.
// Column names are compile-time constants of this package.
func anyTerm(tx *gorm.DB, terms []string, columns ...string) *gorm.DB {
	if len(terms) == 0 {
		return tx
	}
	var clauses []string
	var args []any
	for _, term := range terms {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		for _, col := range columns {
			clauses = append(clauses, "LOWER("+col+") LIKE ? ESCAPE '\\'")
			args = append(args, pattern)
		}
	}
	return tx.Where(strings.Join(clauses, " OR "), args...)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// filterByTags keeps records holding at least one of want.
func filterByTags[T any](records []T, want []string, tags func(*T) []string) []T {
	if len(want) == 0 {
		return records
	}
	wanted := make(map[string]struct{}, len(want))
	for _, w := range models.NormalizeTags(want) {
		wanted[w] = struct{}{}
	}
	out := records[:0]
	for i := range records {
		for _, tag := range tags(&records[i]) {
			if _, ok := wanted[tag]; ok {
				out = append(out, records[i])
				break
			}
		}
	}
	return out
}

func truncate[T any](records []T, limit int) []T {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

func skip[T any](records []T, offset int) []T {
	if offset >= len(records) {
		return nil
	}
	return records[offset:]
}
