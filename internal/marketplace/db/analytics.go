package db

import (
	"context"
	"fmt"
	"time"

	"github.com/gartstein/harvest/internal/marketplace/models"
)

// Counted names a table whose rows can be counted by creation time.
type Counted string

const (
	CountAccounts      Counted = "accounts"
	CountOrganizations Counted = "organizations"
	CountJobs          Counted = "jobs"
	CountApplications  Counted = "applications"
	CountMessages      Counted = "messages"
)

func (c Counted) model() (any, error) {
	switch c {
	case CountAccounts:
		return &models.Account{}, nil
	case CountOrganizations:
		return &models.Organization{}, nil
	case CountJobs:
		return &models.Job{}, nil
	case CountApplications:
		return &models.Application{}, nil
	case CountMessages:
		return &models.Message{}, nil
	}
	return nil, fmt.Errorf("unknown count target %q", string(c))
}

// CountCreated counts rows created in [from, to).
func (r *Repository) CountCreated(ctx context.Context, what Counted, from, to time.Time) (int64, error) {
	model, err := what.model()
	if err != nil {
		return 0, err
	}
	db, cancel := r.conn(ctx)
	defer cancel()
	var n int64
	err = db.Model(model).Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).Count(&n).Error
	return n, translate(err)
}

// Count counts every row.
func (r *Repository) Count(ctx context.Context, what Counted) (int64, error) {
	model, err := what.model()
	if err != nil {
		return 0, err
	}
	db, cancel := r.conn(ctx)
	defer cancel()
	var n int64
	err = db.Model(model).Count(&n).Error
	return n, translate(err)
}

// JobGrouping is a job column jobs can be grouped by.
type JobGrouping string

const (
	GroupByRegion   JobGrouping = "region"
	GroupByCategory JobGrouping = "category"
)

type GroupCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// TopJobGroups returns the limit largest non-empty groups, largest first and
// then by key.
func (r *Repository) TopJobGroups(ctx context.Context, by JobGrouping, limit int) ([]GroupCount, error) {
	if by != GroupByRegion && by != GroupByCategory {
		return nil, fmt.Errorf("unknown job grouping %q", string(by))
	}
	col := string(by)
	db, cancel := r.conn(ctx)
	defer cancel()
	groups := []GroupCount{}
	err := db.Model(&models.Job{}).
		Select(col+" AS key, COUNT(*) AS count").
		Where(col+" <> ?", "").
		Group(col).
		Order("count DESC, key").
		Limit(limit).
		Scan(&groups).Error
	if err != nil {
		return nil, translate(err)
	}
	if groups == nil {
		groups = []GroupCount{}
	}
	return groups, nil
}
