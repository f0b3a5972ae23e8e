// Package producer wraps franz-go for fire-and-forget event publishing.
// Publish failures are counted and logged but never surface to callers: the
// pipeline must stay correct with the broker degraded or absent.
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes messages to a single topic. A Producer built without
// brokers is disabled and drops everything silently; callers check Enabled
// once at construction, not per publish.
type Producer struct {
	client    *kgo.Client
	topic     string
	logger    *slog.Logger
	failures  atomic.Int64
	onFailure func()
}

// Option configures a Producer.
type Option func(*Producer)

// WithFailureHook is called once per failed publish, after the failure is
// counted and logged. Hooks must not block.
func WithFailureHook(fn func()) Option {
	return func(p *Producer) { p.onFailure = fn }
}

// New connects to the brokers. Empty brokers yield a disabled producer and
// no error.
func New(brokers []string, topic, clientID string, logger *slog.Logger, opts ...Option) (*Producer, error) {
	p := &Producer{topic: topic, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	if len(brokers) == 0 {
		return p, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	p.client = client
	return p, nil
}

// Enabled reports whether a broker connection was configured.
func (p *Producer) Enabled() bool {
	return p.client != nil
}

// Publish sends one message, fire and forget. Never blocks on broker
// availability and never returns an error to the caller.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) {
	if p.client == nil {
		return
	}
	record := &kgo.Record{Topic: p.topic, Key: []byte(key), Value: value}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.recordFailure(key, err)
		}
	})
}

func (p *Producer) recordFailure(key string, err error) {
	p.failures.Add(1)
	if p.onFailure != nil {
		p.onFailure()
	}
	if p.logger != nil {
		p.logger.Warn("kafka publish failed", "topic", p.topic, "key", key, "error", err)
	}
}

// Failures returns the count of failed publishes since start.
func (p *Producer) Failures() int64 {
	return p.failures.Load()
}

// Close flushes outstanding messages briefly and releases the client.
func (p *Producer) Close() {
	if p.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}
