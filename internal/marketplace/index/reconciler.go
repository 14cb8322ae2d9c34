package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Source is the authoritative store the indexes are rebuilt from.
type Source interface {
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	ScanVisibleJobs(ctx context.Context, now time.Time, batchSize int, fn func([]models.Job) error) error
	ScanProfiles(ctx context.Context, batchSize int, fn func([]models.Profile) error) error
	ScanOrganizations(ctx context.Context, batchSize int, fn func([]models.Organization) error) error
}

type ReconcilerConfig struct {
	// Interval between drains of the pending set.
	Interval time.Duration
	// SweepInterval between full rebuilds.
	SweepInterval time.Duration
	BatchSize     int
}

type key struct {
	kind Kind
	id   uuid.UUID
}

// Reconciler repairs index drift: entries whose sync failed are queued and
// refreshed from the store, and a periodic sweep rebuilds every collection.
type Reconciler struct {
	source Source
	index  *Manager
	cfg    ReconcilerConfig
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending map[key]struct{}
}

func NewReconciler(source Source, index *Manager, cfg ReconcilerConfig, logger *zap.Logger) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Reconciler{
		source:  source,
		index:   index,
		cfg:     cfg,
		logger:  logger.Named("reconciler"),
		now:     func() time.Time { return time.Now().UTC() },
		pending: make(map[key]struct{}),
	}
}

// Enqueue schedules a refresh of one entry.
func (r *Reconciler) Enqueue(kind Kind, id uuid.UUID) {
	r.mu.Lock()
	r.pending[key{kind, id}] = struct{}{}
	r.mu.Unlock()
}

func (r *Reconciler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Refresh reloads one entry from the store. A missing record is removed
// from the index.
func (r *Reconciler) Refresh(ctx context.Context, kind Kind, id uuid.UUID) error {
	var err error
	switch kind {
	case KindJob:
		var job *models.Job
		if job, err = r.source.GetJob(ctx, id); err == nil {
			r.index.IndexJob(job, r.now())
		}
	case KindProfile:
		var p *models.Profile
		if p, err = r.source.GetProfile(ctx, id); err == nil {
			r.index.IndexProfile(p)
		}
	case KindOrganization:
		var o *models.Organization
		if o, err = r.source.GetOrganization(ctx, id); err == nil {
			r.index.IndexOrganization(o)
		}
	default:
		return fmt.Errorf("unknown index kind %q", kind)
	}
	if errors.Is(err, e.ErrNotFound) {
		r.index.Remove(kind, id)
		return nil
	}
	return err
}

// Drain refreshes every pending entry. Failed entries stay queued.
func (r *Reconciler) Drain(ctx context.Context) error {
	r.mu.Lock()
	batch := r.pending
	r.pending = make(map[key]struct{})
	r.mu.Unlock()

	var failed int
	var lastErr error
	for k := range batch {
		if err := r.Refresh(ctx, k.kind, k.id); err != nil {
			failed++
			lastErr = err
			r.Enqueue(k.kind, k.id)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d index refreshes failed, last: %w", failed, lastErr)
	}
	return nil
}

// Sweep rebuilds every collection from the store and marks the index ready.
// Writes that race with the rebuild are refreshed afterwards; entries that
// still fail to refresh stay pending for the next drain and do not fail the
// sweep.
func (r *Reconciler) Sweep(ctx context.Context) error {
	now := r.now()
	for _, kind := range Kinds {
		c := r.index.Collection(kind)
		c.BeginRebuild()
		docs, err := r.load(ctx, kind, now)
		if err != nil {
			c.AbortRebuild()
			return fmt.Errorf("sweep %s: %w", kind, err)
		}
		for _, id := range c.Replace(docs) {
			r.Enqueue(kind, id)
		}
	}
	r.index.markReady()
	if err := r.Drain(ctx); err != nil {
		r.logger.Warn("Index entries left pending after sweep", zap.Error(err), zap.Int("pending", r.Pending()))
	}
	return nil
}

func (r *Reconciler) load(ctx context.Context, kind Kind, now time.Time) ([]Document, error) {
	var docs []Document
	var err error
	switch kind {
	case KindJob:
		err = r.source.ScanVisibleJobs(ctx, now, r.cfg.BatchSize, func(batch []models.Job) error {
			for i := range batch {
				docs = append(docs, JobDocument(&batch[i]))
			}
			return nil
		})
	case KindProfile:
		err = r.source.ScanProfiles(ctx, r.cfg.BatchSize, func(batch []models.Profile) error {
			for i := range batch {
				docs = append(docs, ProfileDocument(&batch[i]))
			}
			return nil
		})
	case KindOrganization:
		err = r.source.ScanOrganizations(ctx, r.cfg.BatchSize, func(batch []models.Organization) error {
			for i := range batch {
				docs = append(docs, OrganizationDocument(&batch[i]))
			}
			return nil
		})
	}
	return docs, err
}

// Run performs the first sweep, retrying with backoff, then drains the
// pending set every Interval and sweeps every SweepInterval until ctx ends.
func (r *Reconciler) Run(ctx context.Context) {
	err := backoff.RetryNotify(func() error { return r.Sweep(ctx) },
		backoff.WithContext(backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(0)), ctx),
		func(err error, next time.Duration) {
			r.logger.Warn("Initial index sweep failed", zap.Error(err), zap.Duration("retry_in", next))
		})
	if err != nil {
		return
	}

	drain := time.NewTicker(r.cfg.Interval)
	defer drain.Stop()
	sweep := time.NewTicker(r.cfg.SweepInterval)
	defer sweep.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-drain.C:
			if err := r.Drain(ctx); err != nil {
				r.logger.Warn("Index drain incomplete", zap.Error(err), zap.Int("pending", r.Pending()))
			}
		case <-sweep.C:
			if err := r.Sweep(ctx); err != nil {
				r.logger.Error("Index sweep failed", zap.Error(err))
			}
		}
	}
}
