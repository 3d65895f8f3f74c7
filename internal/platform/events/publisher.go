// Package events publishes domain events to Kafka for downstream consumers
// (dashboards, ticketing integrations). Delivery is best effort: a broker
// outage must never fail the operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// AlertEvent is the wire shape produced when an alert is created.
type AlertEvent struct {
	AlertID   string    `json:"alert_id"`
	CompanyID string    `json:"company_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher emits events to a Kafka topic.
type Publisher interface {
	PublishAlert(ctx context.Context, event AlertEvent)
	Close()
}

// KafkaPublisher produces asynchronously; failures are logged and dropped.
type KafkaPublisher struct {
	client *kgo.Client
	logger *slog.Logger
}

// NewKafka builds a publisher for the given brokers and topic. Returns nil
// when brokers are unconfigured so callers can wire it unconditionally.
func NewKafka(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{client: client, logger: logger}, nil
}

func (p *KafkaPublisher) PublishAlert(ctx context.Context, event AlertEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "alert event marshal failed", "error", err)
		return
	}
	record := &kgo.Record{Key: []byte(event.CompanyID), Value: payload}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("alert event publish failed",
				"alert_id", event.AlertID,
				"error", err,
			)
		}
	})
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
