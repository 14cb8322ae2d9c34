package db

import (
	"context"
	"time"

	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
)

func (r *Repository) CreateMessage(ctx context.Context, msg *models.Message) error {
	newID(&msg.ID)
	msg.ReadAt = nil
	if err := prepare(msg); err != nil {
		return err
	}
	return r.create(ctx, msg)
}

func (r *Repository) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	if err := r.first(ctx, &msg, "id = ?", id); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkMessageRead stamps the first read time. Later calls keep it.
func (r *Repository) MarkMessageRead(ctx context.Context, id uuid.UUID, at time.Time) (*models.Message, error) {
	var out *models.Message
	err := r.WithTransaction(ctx, func(tx *Repository) error {
		db, cancel := tx.conn(ctx)
		defer cancel()
		err := db.Model(&models.Message{}).
			Where("id = ? AND read_at IS NULL", id).
			Update("read_at", at).Error
		if err != nil {
			return translate(err)
		}
		out, err = tx.GetMessage(ctx, id)
		return err
	})
	return out, err
}

// ListInbox returns messages addressed to recipient, newest first.
func (r *Repository) ListInbox(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]models.Message, error) {
	db, cancel := r.conn(ctx)
	defer cancel()
	tx := db.Where("recipient_id = ?", recipientID)
	if unreadOnly {
		tx = tx.Where("read_at IS NULL")
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var msgs []models.Message
	err := tx.Order("created_at DESC").Find(&msgs).Error
	return msgs, translate(err)
}
