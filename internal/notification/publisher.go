// Package notification turns lifecycle and nudge events into messages on a
// Kafka topic, keyed by recipient. Delivery to people happens downstream.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/hoa-reimbursement/internal"
	"github.com/frahmantamala/hoa-reimbursement/internal/core/events"
	"github.com/segmentio/kafka-go"
)

// KafkaWriter is the part of kafka.Writer the publisher needs.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Subscriber interface {
	Subscribe(eventType string, handler events.Handler)
}

type Message struct {
	ID         string    `json:"id"`
	Recipient  string    `json:"recipient"`
	Kind       string    `json:"kind"`
	EntryID    string    `json:"entry_id,omitempty"`
	NudgeID    string    `json:"nudge_id,omitempty"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewKafkaPublisher builds a synchronous writer for the configured brokers.
// Topics are created on first write when the cluster allows it.
func NewKafkaPublisher(cfg internal.NotificationConfig, logger *slog.Logger) (*Publisher, error) {
	if cfg.Topic == "" {
		return nil, fmt.Errorf("notification topic is not configured")
	}
	brokers := strings.Split(cfg.Brokers, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return NewPublisher(writer, cfg.Topic, logger), nil
}

func NewPublisher(writer KafkaWriter, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{logger: logger, writer: writer, topic: topic}
}

// Register subscribes the publisher to the events that carry notifications.
func (p *Publisher) Register(bus Subscriber) {
	bus.Subscribe(events.EventTypeEntryTransitioned, p.HandleEntryTransitioned)
	bus.Subscribe(events.EventTypeNudgeSent, p.HandleNudgeSent)
}

func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(msg.Recipient), Value: value}); err != nil {
		p.logger.Error("failed to publish notification",
			"topic", p.topic,
			"recipient", msg.Recipient,
			"kind", msg.Kind,
			"error", err)
		return fmt.Errorf("failed to publish notification to %s: %w", p.topic, err)
	}

	p.logger.Debug("notification published",
		"topic", p.topic,
		"recipient", msg.Recipient,
		"kind", msg.Kind)
	return nil
}

// HandleEntryTransitioned publishes the transition's notice. Transitions
// without a recipient are skipped.
func (p *Publisher) HandleEntryTransitioned(ctx context.Context, event events.Event) error {
	evt, ok := event.(*events.EntryTransitionedEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T for %s", event, event.EventType())
	}
	if evt.Notice.Recipient == "" {
		return nil
	}
	return p.Publish(ctx, Message{
		ID:         evt.EventID(),
		Recipient:  evt.Notice.Recipient,
		Kind:       evt.Notice.Kind,
		EntryID:    evt.EntryID,
		Message:    evt.Notice.Message,
		OccurredAt: evt.OccurredAt(),
	})
}

func (p *Publisher) HandleNudgeSent(ctx context.Context, event events.Event) error {
	evt, ok := event.(*events.NudgeSentEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T for %s", event, event.EventType())
	}
	msg := Message{
		ID:         evt.EventID(),
		Recipient:  evt.RecipientID,
		Kind:       "nudge_" + evt.Template,
		NudgeID:    evt.NudgeID,
		Message:    evt.Message,
		OccurredAt: evt.OccurredAt(),
	}
	if evt.EntryID != nil {
		msg.EntryID = *evt.EntryID
	}
	return p.Publish(ctx, msg)
}

func (p *Publisher) Close() error {
	p.logger.Info("closing notification publisher", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close notification writer for %s: %w", p.topic, err)
	}
	return nil
}
