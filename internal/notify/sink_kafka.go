package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	id "credentia/pkg/domain"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes ledger events to a Kafka topic for the dashboard and
// other downstream consumers. Records are keyed by institution so per-
// institution ordering is preserved within a partition.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects to the given brokers. The caller owns the sink's
// lifecycle and must Close it on shutdown.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchMaxBytes(1<<20),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

// kafkaPayload is the JSON structure published to the topic.
type kafkaPayload struct {
	Type        string            `json:"type"`
	Timestamp   string            `json:"timestamp"`
	Actor       id.Principal      `json:"actor,omitempty"`
	Institution string            `json:"institution,omitempty"`
	Subject     string            `json:"subject,omitempty"`
	Attrs       map[string]string `json:"attrs,omitempty"`
}

func (s *KafkaSink) Deliver(ctx context.Context, event Event) error {
	payload, err := json.Marshal(kafkaPayload{
		Type:        string(event.Type),
		Timestamp:   event.Timestamp.Format(time.RFC3339Nano),
		Actor:       event.Actor,
		Institution: event.Institution,
		Subject:     event.Subject,
		Attrs:       event.Attrs,
	})
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Institution),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	s.client.Close()
	return nil
}
