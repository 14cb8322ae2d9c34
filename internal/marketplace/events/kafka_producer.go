// Package events publishes entity change notifications to Kafka and
// consumes them to keep every instance's search index current.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var jsonMarshal = json.Marshal

type EventType string

const (
	AccountCreated           EventType = "account_created"
	ProfileUpserted          EventType = "profile_upserted"
	OrganizationCreated      EventType = "organization_created"
	OrganizationUpdated      EventType = "organization_updated"
	JobCreated               EventType = "job_created"
	JobUpdated               EventType = "job_updated"
	JobStatusChanged         EventType = "job_status_changed"
	ApplicationSubmitted     EventType = "application_submitted"
	ApplicationStatusChanged EventType = "application_status_changed"
	MessageSent              EventType = "message_sent"
	EntityPurged             EventType = "entity_purged"
)

// Entity kinds carried by events.
const (
	KindAccount      = "account"
	KindProfile      = "profile"
	KindOrganization = "organization"
	KindJob          = "job"
	KindApplication  = "application"
	KindMessage      = "message"
)

// Event describes one committed change. Consumers reload the entity from the
// store rather than trusting a payload.
type Event struct {
	Type   EventType `json:"type"`
	Kind   string    `json:"kind"`
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status,omitempty"`
	At     time.Time `json:"at"`
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer    KafkaWriter
	events    chan Event
	logger    *zap.Logger
	closeChan chan struct{}
}

// NewProducer starts a producer writing to topic. It does not dial; call
// EnsureTopic first when the topic may be missing.
func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	p := &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			Topic:                  topic,
			AllowAutoTopicCreation: true,
		},
		events:    make(chan Event, 1000),
		logger:    logger.Named("kafka_producer"),
		closeChan: make(chan struct{}),
	}

	go p.eventLoop()
	return p
}

// EnsureTopic creates topic if it does not exist yet.
func EnsureTopic(brokers []string, topic string, partitions int, logger *zap.Logger) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Warn("failed to create topic (may already exist)", zap.Error(err), zap.String("topic", topic))
	}
	return nil
}

// Produce queues an event without blocking. A full queue drops the event;
// the index reconciler repairs what the consumers miss.
func (p *Producer) Produce(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	select {
	case p.events <- event:
	default:
		p.logger.Warn("Kafka producer queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("entity_id", event.ID.String()),
		)
	}
}

func (p *Producer) eventLoop() {
	for {
		select {
		case event := <-p.events:
			p.sendEvent(context.Background(), event)
		case <-p.closeChan:
			return
		}
	}
}

func (p *Producer) sendEvent(ctx context.Context, event Event) {
	value, err := jsonMarshal(event)
	if err != nil {
		p.logger.Error("Failed to serialize event",
			zap.Error(err),
			zap.String("entity_id", event.ID.String()),
		)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ID.String()),
		Value: value,
	})
	if err != nil {
		p.logger.Error("Failed to produce event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.String("entity_id", event.ID.String()),
		)
		return
	}
}

func (p *Producer) Close() {
	close(p.closeChan)
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}

// Discard drops every event. It stands in when no brokers are configured.
type Discard struct{}

func (Discard) Produce(Event) {}
