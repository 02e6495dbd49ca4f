// Package events publishes persisted message changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/vedran77/teamchat/internal/domain"
	"go.uber.org/zap"
)

// MessageEvent is the record written to the topic. Records are keyed by chat
// id so that changes to one chat stay ordered within a partition.
type MessageEvent struct {
	Kind       string          `json:"kind"`
	Message    *domain.Message `json:"message"`
	OccurredAt time.Time       `json:"occurredAt"`
}

type Producer struct {
	w *kafka.Writer
}

func NewProducer(brokers []string, topic string, log *zap.Logger) *Producer {
	log = log.Named("events")
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn("kafka write failed", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
	return &Producer{w: w}
}

// PublishMessage enqueues the event. The writer is async, so delivery
// failures surface through the completion log only.
func (p *Producer) PublishMessage(ctx context.Context, kind string, msg *domain.Message) error {
	record, err := encode(kind, msg, time.Now())
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, record)
}

func (p *Producer) Close() error { return p.w.Close() }

func encode(kind string, msg *domain.Message, now time.Time) (kafka.Message, error) {
	value, err := json.Marshal(MessageEvent{Kind: kind, Message: msg, OccurredAt: now.UTC()})
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(msg.ChatID.String()),
		Value: value,
		Time:  now,
	}, nil
}
