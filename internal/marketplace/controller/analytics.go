package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/gartstein/harvest/internal/marketplace/db"
	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWindowMonths = 6
	MaxWindowMonths     = 36
	topGroups           = 5
	// analyticsConcurrency bounds parallel store queries per snapshot.
	analyticsConcurrency = 4
)

// MonthlyCount holds the entities created in one calendar month (UTC).
type MonthlyCount struct {
	Month         string `json:"month"`
	Accounts      int64  `json:"accounts"`
	Organizations int64  `json:"organizations"`
	Jobs          int64  `json:"jobs"`
}

type Totals struct {
	Accounts      int64 `json:"accounts"`
	Organizations int64 `json:"organizations"`
	Jobs          int64 `json:"jobs"`
	Applications  int64 `json:"applications"`
	Messages      int64 `json:"messages"`
}

// AnalyticsData is a read-only snapshot. Months are oldest first and end with
// the current month; months without records are zero.
type AnalyticsData struct {
	WindowMonths  int             `json:"window_months"`
	Months        []MonthlyCount  `json:"months"`
	CurrentMonth  MonthlyCount    `json:"current_month"`
	TopRegions    []db.GroupCount `json:"top_regions"`
	TopCategories []db.GroupCount `json:"top_categories"`
	Totals        Totals          `json:"totals"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

type AnalyticsService struct {
	repo   Repository
	now    func() time.Time
	logger *zap.Logger
}

func NewAnalyticsService(repo Repository, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		repo:   repo,
		now:    utcNow,
		logger: logger.Named("analytics_service"),
	}
}

// Snapshot aggregates counts over the trailing windowMonths calendar months.
// Records written while it runs may or may not be counted.
func (s *AnalyticsService) Snapshot(ctx context.Context, actor models.Actor, windowMonths int) (*AnalyticsData, error) {
	if err := requireRole(actor); err != nil {
		return nil, err
	}
	if windowMonths == 0 {
		windowMonths = DefaultWindowMonths
	}
	if windowMonths < 1 || windowMonths > MaxWindowMonths {
		return nil, e.Invalid("window_months", fmt.Sprintf("must be between 1 and %d", MaxWindowMonths))
	}

	now := s.now()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	data := &AnalyticsData{
		WindowMonths: windowMonths,
		Months:       make([]MonthlyCount, windowMonths),
		GeneratedAt:  now,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(analyticsConcurrency)

	count := func(dst *int64, what db.Counted, from, to time.Time) {
		g.Go(func() error {
			n, err := retry(gctx, func() (int64, error) { return s.repo.CountCreated(gctx, what, from, to) })
			if err != nil {
				return fmt.Errorf("count %s: %w", what, err)
			}
			*dst = n
			return nil
		})
	}
	total := func(dst *int64, what db.Counted) {
		g.Go(func() error {
			n, err := retry(gctx, func() (int64, error) { return s.repo.Count(gctx, what) })
			if err != nil {
				return fmt.Errorf("count %s: %w", what, err)
			}
			*dst = n
			return nil
		})
	}
	top := func(dst *[]db.GroupCount, by db.JobGrouping) {
		g.Go(func() error {
			groups, err := retry(gctx, func() ([]db.GroupCount, error) { return s.repo.TopJobGroups(gctx, by, topGroups) })
			if err != nil {
				return fmt.Errorf("top %s: %w", by, err)
			}
			*dst = groups
			return nil
		})
	}

	for i := range data.Months {
		from := current.AddDate(0, i-windowMonths+1, 0)
		to := from.AddDate(0, 1, 0)
		m := &data.Months[i]
		m.Month = from.Format("2006-01")
		count(&m.Accounts, db.CountAccounts, from, to)
		count(&m.Organizations, db.CountOrganizations, from, to)
		count(&m.Jobs, db.CountJobs, from, to)
	}
	total(&data.Totals.Accounts, db.CountAccounts)
	total(&data.Totals.Organizations, db.CountOrganizations)
	total(&data.Totals.Jobs, db.CountJobs)
	total(&data.Totals.Applications, db.CountApplications)
	total(&data.Totals.Messages, db.CountMessages)
	top(&data.TopRegions, db.GroupByRegion)
	top(&data.TopCategories, db.GroupByCategory)

	if err := g.Wait(); err != nil {
		s.logger.Error("Analytics snapshot failed", zap.Error(err))
		return nil, err
	}
	data.CurrentMonth = data.Months[len(data.Months)-1]
	return data, nil
}
