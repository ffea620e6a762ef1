package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"credrelay/pkg/platform/audit"
)

// DefaultTopic is where audit events land unless configured otherwise.
const DefaultTopic = "credrelay.audit"

// KafkaSink delivers audit events to a Kafka topic, keyed by subject so one
// credential's or request's trail stays in partition order.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects to the brokers and ensures the topic exists.
func NewKafkaSink(ctx context.Context, brokers []string, topic string) (*KafkaSink, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	// Idempotent: creating an existing topic reports TOPIC_ALREADY_EXISTS,
	// which we ignore.
	if _, err := admin.CreateTopic(ensureCtx, 1, 1, nil, topic); err != nil {
		resp, lerr := admin.ListTopics(ensureCtx, topic)
		if lerr != nil || !resp.Has(topic) {
			client.Close()
			return nil, fmt.Errorf("ensure audit topic %q: %w", topic, err)
		}
	}

	return &KafkaSink{client: client, topic: topic}, nil
}

func (s *KafkaSink) Publish(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Subject),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() {
	s.client.Close()
}
