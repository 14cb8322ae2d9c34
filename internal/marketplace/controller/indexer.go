package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/gartstein/harvest/internal/marketplace/events"
	"github.com/gartstein/harvest/internal/marketplace/index"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Indexer applies committed writes to the local search index. When the
// caller has already gone away the update is left to the reconciler, so a
// cancelled request never half-applies index side effects.
type Indexer struct {
	index      *index.Manager
	reconciler *index.Reconciler
	now        func() time.Time
	logger     *zap.Logger
}

func NewIndexer(idx *index.Manager, reconciler *index.Reconciler, logger *zap.Logger) *Indexer {
	return &Indexer{
		index:      idx,
		reconciler: reconciler,
		now:        utcNow,
		logger:     logger.Named("indexer"),
	}
}

func (x *Indexer) Job(ctx context.Context, job *models.Job) {
	if x.deferred(ctx, index.KindJob, job.ID) {
		return
	}
	x.index.IndexJob(job, x.now())
}

func (x *Indexer) Profile(ctx context.Context, p *models.Profile) {
	if x.deferred(ctx, index.KindProfile, p.ID) {
		return
	}
	x.index.IndexProfile(p)
}

func (x *Indexer) Organization(ctx context.Context, o *models.Organization) {
	if x.deferred(ctx, index.KindOrganization, o.ID) {
		return
	}
	x.index.IndexOrganization(o)
}

func (x *Indexer) Remove(kind index.Kind, ids ...uuid.UUID) {
	for _, id := range ids {
		x.index.Remove(kind, id)
	}
}

// Enqueue schedules a refresh from the store.
func (x *Indexer) Enqueue(kind index.Kind, id uuid.UUID) {
	x.reconciler.Enqueue(kind, id)
}

func (x *Indexer) deferred(ctx context.Context, kind index.Kind, id uuid.UUID) bool {
	if ctx.Err() == nil {
		return false
	}
	x.logger.Warn("Index sync deferred to reconciler",
		zap.Error(ctx.Err()),
		zap.String("kind", string(kind)),
		zap.String("id", id.String()),
	)
	x.reconciler.Enqueue(kind, id)
	return true
}

// HandleEvent refreshes the entry an event refers to. It is the handler of
// the Kafka consumer, which brings writes made by other instances into this
// instance's index.
func (x *Indexer) HandleEvent(ctx context.Context, ev events.Event) error {
	var kind index.Kind
	switch ev.Kind {
	case events.KindJob:
		kind = index.KindJob
	case events.KindProfile:
		kind = index.KindProfile
	case events.KindOrganization:
		kind = index.KindOrganization
	default:
		return nil
	}
	if err := x.reconciler.Refresh(ctx, kind, ev.ID); err != nil {
		x.reconciler.Enqueue(kind, ev.ID)
		return fmt.Errorf("refresh %s %s: %w", kind, ev.ID, err)
	}
	return nil
}
