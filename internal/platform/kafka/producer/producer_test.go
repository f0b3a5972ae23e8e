package producer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledProducerDropsSilently(t *testing.T) {
	p, err := New(nil, "gnce.run-events", "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	p.Publish(context.Background(), "adra-001", []byte(`{}`))
	assert.Equal(t, int64(0), p.Failures())
}

func TestRecordFailureCountsAndInvokesHook(t *testing.T) {
	hooked := 0
	p, err := New(nil, "gnce.run-events", "test", slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithFailureHook(func() { hooked++ }))
	require.NoError(t, err)

	p.recordFailure("adra-001", errors.New("broker down"))
	p.recordFailure("adra-002", errors.New("broker down"))

	assert.Equal(t, int64(2), p.Failures())
	assert.Equal(t, 2, hooked)
}
