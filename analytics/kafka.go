// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wevote/wevote-server/cliparse"
	"github.com/wevote/wevote-server/models"
)

// KafkaPublisher writes actions as JSON, keyed by voter we_vote_id so a
// voter's actions stay ordered within one partition. Writes are async;
// Publish returns once the message is queued and delivery failures are
// reported to onError.
type KafkaPublisher struct {
	writer  *kafka.Writer
	onError func(error)
}

func NewKafkaPublisher(brokers []string, topic string, onError func(error)) *KafkaPublisher {
	kp := &KafkaPublisher{onError: onError}
	kp.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  5,
		Compression:  kafka.Snappy,
		Async:        true,
		Completion:   kp.completion,
	}
	return kp
}

// completion runs on the writer's goroutine after each batch
func (kp *KafkaPublisher) completion(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	slog.Warn("analytics batch not delivered", "error", err, "messages", len(messages))
	if kp.onError != nil {
		kp.onError(err)
	}
}

// New returns a KafkaPublisher when brokers are configured, NopPublisher
// otherwise. onError may be nil.
func New(cfg cliparse.Config, onError func(error)) Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, onError)
}

// Message converts an action to the record written to the topic
func Message(action models.AnalyticsAction) (kafka.Message, error) {
	value, err := json.Marshal(action)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal analytics action: %w", err)
	}

	return kafka.Message{
		Key:   []byte(action.VoterWeVoteID),
		Value: value,
		Time:  action.ExactTime,
	}, nil
}

func (kp *KafkaPublisher) Publish(ctx context.Context, action models.AnalyticsAction) error {
	msg, err := Message(action)
	if err != nil {
		return err
	}

	if err := kp.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

func (kp *KafkaPublisher) Close() error {
	if err := kp.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}
