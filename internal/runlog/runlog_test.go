package runlog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gnce/internal/adra"
)

func finalizedRecord(t *testing.T) adra.Record {
	t.Helper()
	rec := adra.Record{
		"adra_id": "adra-42",
		adra.LayerVerdict: map[string]any{
			"decision_outcome":     "ALLOW",
			"severity":             "MEDIUM",
			"execution_authorized": true,
		},
		adra.LayerLineage: map[string]any{
			"policies_triggered": []any{
				map[string]any{"regime": "DSA", "status": "VIOLATED"},
				map[string]any{"regime": "DSA", "status": "SATISFIED"},
			},
		},
		adra.LayerDrift: map[string]any{"drift_outcome": "NO_DRIFT"},
		adra.LayerVeto:  map[string]any{"veto_path_triggered": false},
	}
	_, err := adra.BuildCanonical(rec)
	require.NoError(t, err)
	return rec
}

func TestFromRecord(t *testing.T) {
	ev, err := FromRecord(finalizedRecord(t), Options{SessionID: "sess-1", EngineVersion: "0.4.0"})
	require.NoError(t, err)

	assert.Equal(t, EventTypeRun, ev.EventType)
	assert.True(t, strings.HasPrefix(ev.EventID, "evt-"))
	assert.Equal(t, "adra-42", ev.ADRAID)
	assert.Equal(t, "ALLOW", ev.Decision)
	assert.Equal(t, "MEDIUM", ev.Severity)
	assert.True(t, ev.ExecutionEligible)
	assert.Equal(t, "NO_DRIFT", ev.DriftOutcome)
	assert.Equal(t, 1, ev.ViolationsCount)
	assert.Equal(t, "N/A", ev.VetoCategory)
	assert.Equal(t, "DSA", ev.Regime)
	assert.Contains(t, ev.ADRAHash, "sha256:")
	assert.Contains(t, ev.Checksum, "sha256:")
}

func TestFromRecord_Defaults(t *testing.T) {
	ev, err := FromRecord(adra.Record{}, Options{})
	require.NoError(t, err)

	assert.Equal(t, "unknown", ev.ADRAID)
	assert.Equal(t, "UNKNOWN", ev.Decision)
	assert.Equal(t, "N/A", ev.Severity)
	assert.False(t, ev.ExecutionEligible)
	assert.Equal(t, "N/A", ev.DriftOutcome)
	assert.Equal(t, "N/A", ev.VetoCategory)
	assert.Equal(t, "UNKNOWN", ev.Regime)
}

func TestPrimaryRegime(t *testing.T) {
	mixed := adra.Record{adra.LayerLineage: map[string]any{
		"policies_triggered": []any{
			map[string]any{"regime": "DSA"},
			map[string]any{"regime": "GDPR"},
		},
	}}
	assert.Equal(t, "MIXED", PrimaryRegime(mixed))

	single := adra.Record{adra.LayerLineage: map[string]any{
		"policies_triggered": []any{map[string]any{"regime": "DSA"}},
	}}
	assert.Equal(t, "DSA", PrimaryRegime(single))

	assert.Equal(t, "UNKNOWN", PrimaryRegime(adra.Record{}))
}

func TestLogEmitAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "run_events.jsonl")
	log := NewLog(path)
	defer log.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ev, err := FromRecord(finalizedRecord(t), Options{})
		require.NoError(t, err)
		require.NoError(t, log.Emit(ctx, ev))
	}

	events, err := Read(path)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "ALLOW", events[0].Decision)
}

func TestRead_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_events.jsonl")
	content := `{"event_type":"gnce_run","adra_id":"a-1","decision":"ALLOW"}
this is not json
{"event_type":"gnce_run","adra_id":"a-2","decision":"DENY"}

{"truncated":
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	events, err := Read(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a-1", events[0].ADRAID)
	assert.Equal(t, "DENY", events[1].Decision)
}

func TestRead_MissingFile(t *testing.T) {
	events, err := Read(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, events)
}

type capturingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *capturingPublisher) Publish(_ context.Context, key string, _ []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
}

func TestLogMirrorsToPublisher(t *testing.T) {
	pub := &capturingPublisher{}
	log := NewLog(filepath.Join(t.TempDir(), "run_events.jsonl"), WithPublisher(pub))
	defer log.Close()

	ev, err := FromRecord(finalizedRecord(t), Options{})
	require.NoError(t, err)
	require.NoError(t, log.Emit(context.Background(), ev))

	assert.Equal(t, []string{"adra-42"}, pub.keys)
}

type capturingStore struct {
	events []Event
	err    error
}

func (s *capturingStore) Append(_ context.Context, ev Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func TestLogMirrorsToStore(t *testing.T) {
	store := &capturingStore{}
	log := NewLog(filepath.Join(t.TempDir(), "run_events.jsonl"), WithStore(store))
	defer log.Close()

	ev, err := FromRecord(finalizedRecord(t), Options{})
	require.NoError(t, err)
	require.NoError(t, log.Emit(context.Background(), ev))

	require.Len(t, store.events, 1)
	assert.Equal(t, "adra-42", store.events[0].ADRAID)
}

func TestLogStoreFailureSurfaces(t *testing.T) {
	store := &capturingStore{err: errors.New("db down")}
	log := NewLog(filepath.Join(t.TempDir(), "run_events.jsonl"), WithStore(store))
	defer log.Close()

	ev, err := FromRecord(finalizedRecord(t), Options{})
	require.NoError(t, err)
	err = log.Emit(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist run event")
}
