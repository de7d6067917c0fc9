package notifications

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
)

// Producer publishes lifecycle events for downstream consumers. It
// satisfies the publisher interfaces of the bookings and waitlist packages.
type Producer interface {
	PublishBookingEvent(ctx context.Context, eventType string, payload map[string]interface{}) error
	PublishWaitlistEvent(ctx context.Context, eventType string, payload map[string]interface{}) error
	Close() error
	HealthCheck(ctx context.Context) error
}

// KafkaProducerConfig contains configuration for the Kafka producer
type KafkaProducerConfig struct {
	Brokers          []string
	Topic            string
	RetryMax         int
	TimeoutMs        int
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
	MaxMessageBytes  int
}

// DefaultKafkaProducerConfig returns a default producer configuration
func DefaultKafkaProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:          []string{"localhost:9092"},
		Topic:            "booking-lifecycle",
		RetryMax:         3,
		TimeoutMs:        10000,
		RequiredAcks:     sarama.WaitForAll,
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000,
	}
}

// KafkaProducer publishes lifecycle events to Kafka
type KafkaProducer struct {
	producer sarama.SyncProducer
	config   *KafkaProducerConfig
}

// NewKafkaProducer creates a new Kafka producer
func NewKafkaProducer(config *KafkaProducerConfig) (Producer, error) {
	if config == nil {
		config = DefaultKafkaProducerConfig()
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = time.Duration(config.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.Idempotent = config.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = config.MaxMessageBytes

	if config.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Hash partitioner keeps per-event ordering
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.Printf("Kafka lifecycle producer created for topic %s", config.Topic)
	return &KafkaProducer{producer: producer, config: config}, nil
}

func (kp *KafkaProducer) PublishBookingEvent(ctx context.Context, eventType string, payload map[string]interface{}) error {
	return kp.publish(ctx, "bookings", eventType, payload)
}

func (kp *KafkaProducer) PublishWaitlistEvent(ctx context.Context, eventType string, payload map[string]interface{}) error {
	return kp.publish(ctx, "waitlist", eventType, payload)
}

func (kp *KafkaProducer) publish(_ context.Context, source, eventType string, payload map[string]interface{}) error {
	event := NewLifecycleEvent(source, eventType, payload)

	messageBytes, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     kp.config.Topic,
		Key:       sarama.StringEncoder(event.GetPartitionKey()),
		Value:     sarama.ByteEncoder(messageBytes),
		Timestamp: event.OccurredAt,
	}

	if _, _, err := kp.producer.SendMessage(message); err != nil {
		return fmt.Errorf("failed to publish lifecycle event %s: %w", eventType, err)
	}
	return nil
}

// Close shuts down the producer
func (kp *KafkaProducer) Close() error {
	return kp.producer.Close()
}

// HealthCheck verifies the producer can reach the cluster
func (kp *KafkaProducer) HealthCheck(ctx context.Context) error {
	event := NewLifecycleEvent("system", "healthcheck", map[string]interface{}{"ts": time.Now().Unix()})
	messageBytes, err := event.ToJSON()
	if err != nil {
		return err
	}
	_, _, err = kp.producer.SendMessage(&sarama.ProducerMessage{
		Topic: kp.config.Topic,
		Key:   sarama.StringEncoder("healthcheck"),
		Value: sarama.ByteEncoder(messageBytes),
	})
	return err
}

// NoopProducer drops events. Used when Kafka is disabled.
type NoopProducer struct{}

func NewNoopProducer() Producer {
	return &NoopProducer{}
}

func (NoopProducer) PublishBookingEvent(context.Context, string, map[string]interface{}) error {
	return nil
}

func (NoopProducer) PublishWaitlistEvent(context.Context, string, map[string]interface{}) error {
	return nil
}

func (NoopProducer) Close() error { return nil }

func (NoopProducer) HealthCheck(context.Context) error { return nil }
