package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
)

// Consumer drains the lifecycle topic and hands events to a handler.
type Consumer interface {
	Start(ctx context.Context) error
	Stop() error
}

// EventHandler processes one lifecycle event. Returning an error logs and
// skips the message, offsets are committed either way.
type EventHandler func(ctx context.Context, event *LifecycleEvent) error

// ConsumerConfig contains configuration for the Kafka consumer group
type ConsumerConfig struct {
	Brokers        []string
	GroupID        string
	Topics         []string
	SessionTimeout time.Duration
	Heartbeat      time.Duration
	OffsetOldest   bool
}

// DefaultConsumerConfig returns default consumer configuration
func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		Brokers:        []string{"localhost:9092"},
		GroupID:        "ticketly-lifecycle-workers",
		Topics:         []string{"booking-lifecycle"},
		SessionTimeout: 30 * time.Second,
		Heartbeat:      3 * time.Second,
		OffsetOldest:   false,
	}
}

// KafkaConsumer is a sarama consumer group wrapper
type KafkaConsumer struct {
	group   sarama.ConsumerGroup
	config  *ConsumerConfig
	handler EventHandler
	cancel  context.CancelFunc
}

// NewKafkaConsumer creates a new Kafka lifecycle consumer
func NewKafkaConsumer(config *ConsumerConfig, handler EventHandler) (Consumer, error) {
	if config == nil {
		config = DefaultConsumerConfig()
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Session.Timeout = config.SessionTimeout
	saramaConfig.Consumer.Group.Heartbeat.Interval = config.Heartbeat
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = 1 * time.Second

	if config.OffsetOldest {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	group, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer group: %w", err)
	}

	return &KafkaConsumer{group: group, config: config, handler: handler}, nil
}

// Start begins consuming in a background goroutine until the context ends.
func (kc *KafkaConsumer) Start(ctx context.Context) error {
	ctx, kc.cancel = context.WithCancel(ctx)

	go func() {
		for err := range kc.group.Errors() {
			log.Printf("Kafka consumer error: %v", err)
		}
	}()

	go func() {
		for {
			if err := kc.group.Consume(ctx, kc.config.Topics, &groupHandler{handler: kc.handler}); err != nil {
				log.Printf("Kafka consume loop error: %v", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	log.Printf("Kafka lifecycle consumer started for topics %v", kc.config.Topics)
	return nil
}

// Stop shuts down the consumer group
func (kc *KafkaConsumer) Stop() error {
	if kc.cancel != nil {
		kc.cancel()
	}
	return kc.group.Close()
}

type groupHandler struct {
	handler EventHandler
}

func (groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var event LifecycleEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			log.Printf("Skipping malformed lifecycle message at %s/%d/%d: %v",
				message.Topic, message.Partition, message.Offset, err)
			session.MarkMessage(message, "")
			continue
		}

		if err := h.handler(session.Context(), &event); err != nil {
			log.Printf("Failed to handle lifecycle event %s (%s): %v", event.ID, event.Type, err)
		}
		session.MarkMessage(message, "")
	}
	return nil
}

// LogHandler is the default handler, it records lifecycle events so the
// topic can be watched without any downstream integration.
func LogHandler(_ context.Context, event *LifecycleEvent) error {
	log.Printf("Lifecycle event %s from %s: %s", event.Type, event.Source, event.GetPartitionKey())
	return nil
}
