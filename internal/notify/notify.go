// Package notify publishes reservation activity to Kafka after a change has
// committed. Publishing is best effort: a failed write is logged and never
// undoes the change it describes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Activity types.
const (
	ReservationCreated   = "reservation.created"
	ReservationCancelled = "reservation.cancelled"
	ReservationsCleared  = "reservations.cleared"
	EventDeleted         = "event.deleted"
	UserDeleted          = "user.deleted"
)

// Activity is the JSON value of every published message. Messages are keyed
// by event id (user id for UserDeleted) so a partition sees one event's
// history in order.
type Activity struct {
	Type         string    `json:"type"`
	EventID      string    `json:"event_id,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	CapacityLeft *int      `json:"capacity_left,omitempty"`
	At           time.Time `json:"at"`
}

func (a Activity) key() []byte {
	if a.EventID != "" {
		return []byte(a.EventID)
	}
	return []byte(a.UserID)
}

// Publisher emits activity messages.
type Publisher interface {
	Publish(ctx context.Context, activities ...Activity)
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes activities with a kafka-go Writer.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

// NewKafkaPublisher returns a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	logrus.WithFields(logrus.Fields{"brokers": brokers, "topic": topic}).Info("kafka publisher configured")
	return &KafkaPublisher{writer: w, timeout: 5 * time.Second}
}

func (p *KafkaPublisher) Publish(ctx context.Context, activities ...Activity) {
	if len(activities) == 0 {
		return
	}
	msgs := make([]kafka.Message, 0, len(activities))
	for _, a := range activities {
		value, err := json.Marshal(a)
		if err != nil {
			logrus.WithError(err).WithField("type", a.Type).Error("encode activity")
			continue
		}
		msgs = append(msgs, kafka.Message{Key: a.key(), Value: value, Time: a.At})
	}

	// The request may already be finished; the write gets its own deadline.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(wctx, msgs...); err != nil {
		logrus.WithError(err).WithField("count", len(msgs)).Warn("publish activity failed")
	}
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}

// Noop discards activities. It is used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, ...Activity) {}
func (Noop) Close() error                        { return nil }
