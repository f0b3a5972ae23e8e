package httptransport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gnce/internal/kpi"
	"gnce/internal/ledger"
	"gnce/internal/pipeline"
	"gnce/internal/runlog"
	"gnce/internal/signing"
)

type fixture struct {
	server *httptest.Server
	keys   *signing.KeyStore
	chain  *ledger.Chain
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	keys, err := signing.DeriveKeyStore([]byte("master-secret"), "http-test")
	require.NoError(t, err)

	chain := ledger.New()
	logPath := filepath.Join(t.TempDir(), "run_events.ndjson")
	runLog := runlog.NewLog(logPath)
	t.Cleanup(func() { _ = runLog.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := pipeline.New(keys, chain, runLog, logger)

	h := NewHandler(svc, chain, logPath, logger, opts...)
	server := httptest.NewServer(NewRouter(h))
	t.Cleanup(server.Close)

	return &fixture{server: server, keys: keys, chain: chain}
}

func finalizeBody() string {
	return `{
		"record": {
			"adra_id": "adra-http-1",
			"L1_the_verdict_and_constitutional_outcome": {
				"decision_outcome": "ALLOW",
				"severity": "LOW"
			},
			"L7_veto_and_execution_feedback": {"execution_authorized": true}
		}
	}`
}

func TestFinalizeEndpoint(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.server.URL+"/records/finalize", "application/json",
		strings.NewReader(finalizeBody()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res pipeline.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, "ALLOW", res.Record["final_verdict"])
	assert.NotEmpty(t, res.TokenJWT)
	assert.Equal(t, 1, f.chain.Len())
}

func TestFinalizeMissingVetoLayerIs422(t *testing.T) {
	f := newFixture(t)

	body := `{"record": {"adra_id": "x", "L1_the_verdict_and_constitutional_outcome": {"decision_outcome": "ALLOW"}}}`
	resp, err := http.Post(f.server.URL+"/records/finalize", "application/json",
		strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestFinalizeBadBodyIs400(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{"not json", "{}"} {
		resp, err := http.Post(f.server.URL+"/records/finalize", "application/json",
			strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestKPIBatchFromRunLog(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.server.URL+"/records/finalize", "application/json",
		strings.NewReader(finalizeBody()))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(f.server.URL + "/kpi")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var s kpi.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.Equal(t, 1, s.TotalRuns)
	assert.Equal(t, 1, s.Allow)
}

func TestKPIFromAggregator(t *testing.T) {
	agg := kpi.NewAggregator()
	agg.Update(runlog.Event{EventType: runlog.EventTypeRun, Decision: "DENY"})
	f := newFixture(t, WithAggregator(agg))

	resp, err := http.Get(f.server.URL + "/kpi")
	require.NoError(t, err)
	defer resp.Body.Close()

	var s kpi.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.Equal(t, 1, s.TotalRuns)
	assert.Equal(t, 1, s.Deny)
}

func TestLedgerExportAndVerify(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.server.URL+"/records/finalize", "application/json",
		strings.NewReader(finalizeBody()))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(f.server.URL + "/ledger")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var records []ledger.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, ledger.Genesis, records[0].PrevHash)

	resp, err = http.Get(f.server.URL + "/ledger/verify")
	require.NoError(t, err)
	defer resp.Body.Close()

	var verify struct {
		Valid  bool `json:"valid"`
		Length int  `json:"length"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&verify))
	assert.True(t, verify.Valid)
	assert.Equal(t, 1, verify.Length)
}

func TestLedgerRequiresAuthWhenConfigured(t *testing.T) {
	keys, err := signing.DeriveKeyStore([]byte("master-secret"), "http-test")
	require.NoError(t, err)
	f := newFixture(t, WithAuth(keys))

	resp, err := http.Get(f.server.URL + "/ledger")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := keys.TokenJWT(map[string]any{"sub": "auditor"})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/ledger", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	assert.JSONEq(t, `{"status":"ok"}`, buf.String())
}
