package kpi

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"gnce/internal/platform/kafka/consumer"
	"gnce/internal/runlog"
)

// StreamConsumer feeds an Aggregator from a topic of run-event JSON
// messages. It is the single writer to the aggregator state; dashboards read
// snapshots. Stopping is idempotent and best effort; there is no other
// cancellation semantics.
type StreamConsumer struct {
	consumer *consumer.Consumer
	agg      *Aggregator
	logger   *slog.Logger
	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewStreamConsumer wires a broker consumer to an aggregator.
func NewStreamConsumer(c *consumer.Consumer, agg *Aggregator, logger *slog.Logger) *StreamConsumer {
	return &StreamConsumer{consumer: c, agg: agg, logger: logger, done: make(chan struct{})}
}

// Start launches the background consume loop.
func (s *StreamConsumer) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go func() {
		defer close(s.done)
		s.consumer.Run(ctx, s)
	}()
}

// Handle decodes one run-event message and folds it into the aggregator.
// Malformed messages are skipped, never redelivered.
func (s *StreamConsumer) Handle(_ context.Context, msg *consumer.Message) error {
	var ev runlog.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		s.logger.Warn("skipping malformed run event", "offset", msg.Offset, "error", err)
		return nil
	}
	s.agg.Update(ev)
	return nil
}

// Snapshot exposes the aggregator's point-in-time state.
func (s *StreamConsumer) Snapshot() Summary {
	return s.agg.Snapshot()
}

// Stop shuts the consume loop down and waits for it to drain.
func (s *StreamConsumer) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.consumer.Close()
		<-s.done
	})
}
