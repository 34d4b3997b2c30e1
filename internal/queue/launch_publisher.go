package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// LaunchPublisher publishes launch lifecycle events.
type LaunchPublisher struct {
	writer *kafka.Writer
}

// NewLaunchPublisher constructs a publisher for the given topic.
func NewLaunchPublisher(k *Kafka, topic string) *LaunchPublisher {
	return &LaunchPublisher{writer: k.NewWriter(topic)}
}

// PublishEvent emits a launch event to Kafka. Events of one launch share
// a key so consumers see them in order.
func (p *LaunchPublisher) PublishEvent(ctx context.Context, event LaunchEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("launch publisher: marshal event: %w", err)
	}
	record := kafka.Message{
		Key:   event.LaunchID[:],
		Value: value,
		Time:  time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("launch publisher: write event: %w", err)
	}
	return nil
}

// Close closes the publisher.
func (p *LaunchPublisher) Close() error {
	return p.writer.Close()
}
