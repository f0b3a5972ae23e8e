// Package consumer wraps franz-go consumer groups behind a small handler
// contract, so downstream code never touches broker types directly.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one consumed record.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int32
	Offset    int64
}

// Handler processes consumed messages. Returning nil commits the message;
// handlers skip (and commit) malformed input rather than wedging the group.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer runs a consumer group over one topic.
type Consumer struct {
	client    *kgo.Client
	topic     string
	logger    *slog.Logger
	closeOnce sync.Once
}

// Config holds consumer connection settings.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// New builds a consumer-group client and ensures the topic exists so a fresh
// deployment can start consuming before the first publish.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	if err := ensureTopic(ctx, client, cfg.Topic); err != nil {
		logger.Warn("topic ensure failed, consuming anyway", "topic", cfg.Topic, "error", err)
	}

	return &Consumer{client: client, topic: cfg.Topic, logger: logger}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	topics, err := adm.ListTopics(ctx)
	if err != nil {
		return err
	}
	if topics.Has(topic) {
		return nil
	}
	_, err = adm.CreateTopic(ctx, 1, 1, nil, topic)
	return err
}

// Run polls until the context is canceled or the consumer is closed,
// dispatching every record to the handler. Handler errors are logged and the
// message is retried on the next poll only if uncommitted; transport errors
// never propagate to the caller.
func (c *Consumer) Run(ctx context.Context, handler Handler) {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Warn("kafka fetch error", "topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(func(rec *kgo.Record) {
			msg := &Message{
				Topic:     rec.Topic,
				Key:       rec.Key,
				Value:     rec.Value,
				Partition: rec.Partition,
				Offset:    rec.Offset,
			}
			if err := handler.Handle(ctx, msg); err != nil {
				c.logger.Error("handler failed", "topic", msg.Topic, "offset", msg.Offset, "error", err)
			}
		})
	}
}

// Close stops the consumer. Idempotent and best effort.
func (c *Consumer) Close() {
	c.closeOnce.Do(func() {
		c.client.Close()
	})
}
