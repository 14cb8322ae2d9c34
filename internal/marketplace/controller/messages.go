package controller

import (
	"context"
	"fmt"
	"time"

	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/events"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultInboxLimit = 50
	maxInboxLimit     = 200
)

type MessageService struct {
	repo     Repository
	producer EventProducer
	now      func() time.Time
	logger   *zap.Logger
}

func NewMessageService(repo Repository, producer EventProducer, logger *zap.Logger) *MessageService {
	return &MessageService{
		repo:     repo,
		producer: producer,
		now:      utcNow,
		logger:   logger.Named("message_service"),
	}
}

type MessageInput struct {
	RecipientID    uuid.UUID
	OrganizationID *uuid.UUID
	JobID          *uuid.UUID
	ApplicationID  *uuid.UUID
	Body           string
}

// SendMessage stores a message from the actor. The recipient and any
// context references must exist.
func (s *MessageService) SendMessage(ctx context.Context, actor models.Actor, in MessageInput) (*models.Message, error) {
	if actor.Anonymous() {
		return nil, e.ErrUnauthenticated
	}
	if _, err := s.repo.GetAccount(ctx, in.RecipientID); err != nil {
		return nil, fmt.Errorf("recipient %s: %w", in.RecipientID, err)
	}
	if in.OrganizationID != nil {
		if _, err := s.repo.GetOrganization(ctx, *in.OrganizationID); err != nil {
			return nil, fmt.Errorf("organization %s: %w", *in.OrganizationID, err)
		}
	}
	if in.JobID != nil {
		if _, err := s.repo.GetJob(ctx, *in.JobID); err != nil {
			return nil, fmt.Errorf("job %s: %w", *in.JobID, err)
		}
	}
	if in.ApplicationID != nil {
		if _, err := s.repo.GetApplication(ctx, *in.ApplicationID); err != nil {
			return nil, fmt.Errorf("application %s: %w", *in.ApplicationID, err)
		}
	}

	msg := &models.Message{
		SenderID:       actor.AccountID,
		RecipientID:    in.RecipientID,
		OrganizationID: in.OrganizationID,
		JobID:          in.JobID,
		ApplicationID:  in.ApplicationID,
		Body:           in.Body,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.producer.Produce(events.Event{Type: events.MessageSent, Kind: events.KindMessage, ID: msg.ID})
	return msg, nil
}

// MarkRead records when the recipient first read a message.
func (s *MessageService) MarkRead(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Message, error) {
	if actor.Anonymous() {
		return nil, e.ErrUnauthenticated
	}
	msg, err := s.repo.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.RecipientID != actor.AccountID {
		return nil, fmt.Errorf("%w: only the recipient may mark a message read", e.ErrForbidden)
	}
	return s.repo.MarkMessageRead(ctx, id, s.now())
}

func (s *MessageService) Inbox(ctx context.Context, actor models.Actor, unreadOnly bool, limit int) ([]models.Message, error) {
	if actor.Anonymous() {
		return nil, e.ErrUnauthenticated
	}
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	if limit > maxInboxLimit {
		limit = maxInboxLimit
	}
	return retry(ctx, func() ([]models.Message, error) {
		return s.repo.ListInbox(ctx, actor.AccountID, unreadOnly, limit)
	})
}
