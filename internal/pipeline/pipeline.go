// Package pipeline finalizes evidence records: compatibility bridging,
// regime-bundle normalization, veto derivation, canonicalization, event
// stream derivation, execution-token signing, ledger append, and run-event
// emission, in that order.
package pipeline

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gnce/internal/adra"
	"gnce/internal/events"
	"gnce/internal/ledger"
	"gnce/internal/platform/metrics"
	"gnce/internal/policy"
	"gnce/internal/regimes"
	"gnce/internal/runlog"
	"gnce/internal/signing"
)

// Input is one finalize request. Record is the layered evidence envelope;
// Regimes optionally carries a raw regime result bundle to normalize and fold
// into the record; RawInput is the original payload echoed into the created
// event.
type Input struct {
	Record   adra.Record
	Regimes  map[string]any
	RawInput map[string]any
}

// Result is everything finalize produces for one record.
type Result struct {
	Record       adra.Record     `json:"record"`
	Policies     []policy.Record `json:"policies"`
	Events       []events.Event  `json:"events"`
	Token        map[string]any  `json:"execution_token"`
	TokenJWT     string          `json:"execution_token_jwt"`
	// EnvelopeSignature is the detached hex signature over the canonical
	// record, present when a remote signer is configured.
	EnvelopeSignature string        `json:"envelope_signature,omitempty"`
	LedgerRecord      ledger.Record `json:"ledger_record"`
	RunEvent          runlog.Event  `json:"run_event"`
}

// Service wires the finalize dependencies.
type Service struct {
	keys    *signing.KeyStore
	chain   *ledger.Chain
	runLog  *runlog.Log
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	session runlog.Options
	orch    *regimes.Orchestrator
	signer  signing.RemoteSigner
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSession stamps session context onto emitted run events.
func WithSession(opts runlog.Options) Option {
	return func(s *Service) { s.session = opts }
}

// WithOrchestrator evaluates regimes against the raw input when the caller
// did not supply a regime bundle.
func WithOrchestrator(o *regimes.Orchestrator) Option {
	return func(s *Service) { s.orch = o }
}

// WithRemoteSigner co-signs the canonical envelope with an external signing
// backend.
func WithRemoteSigner(rs signing.RemoteSigner) Option {
	return func(s *Service) { s.signer = rs }
}

// New builds the finalize service.
func New(keys *signing.KeyStore, chain *ledger.Chain, runLog *runlog.Log, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		keys:   keys,
		chain:  chain,
		runLog: runLog,
		logger: logger,
		tracer: otel.Tracer("gnce/pipeline"),
		signer: signing.Disabled(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Finalize runs the full pipeline over one record. Validation and signing
// failures abort before any ledger or log write; a ledger persistence failure
// aborts before the run event, so the ledger never trails the log.
func (s *Service) Finalize(ctx context.Context, in Input) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.finalize")
	defer span.End()
	start := time.Now()

	rec := adra.ApplyCompat(in.Record)

	regimeBundle := in.Regimes
	if len(regimeBundle) == 0 && s.orch != nil && len(in.RawInput) > 0 {
		regimeBundle = s.orch.Evaluate(ctx, in.RawInput)
	}

	var policies []policy.Record
	if len(regimeBundle) > 0 {
		policies = policy.NormalizeRegimeBundle(regimeBundle)
		s.foldPolicies(rec, policies)
	} else {
		policies = policiesFromLineage(rec)
	}

	if err := adra.Validate(rec); err != nil {
		return nil, s.fail(span, fmt.Errorf("validate record: %w", err))
	}
	if err := adra.ValidateShape(rec); err != nil {
		return nil, s.fail(span, fmt.Errorf("validate record: %w", err))
	}

	canonical, err := adra.BuildCanonical(rec)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("canonicalize record: %w", err))
	}

	adraID := canonical.ID()
	verdict, _ := canonical[adra.FieldFinalVerdict].(string)
	span.SetAttributes(
		attribute.String("gnce.adra_id", adraID),
		attribute.String("gnce.final_verdict", verdict),
	)

	stream := events.BuildStream(adraID, in.RawInput, policies,
		canonical.Layer(adra.LayerVerdict),
		canonical.Layer(adra.LayerDrift),
		canonical.Layer(adra.LayerVeto),
	)

	token, err := s.keys.SignToken(map[string]any{
		"adra_id":       adraID,
		"final_verdict": verdict,
		"envelope_hash": canonical[adra.FieldEnvelopeHash],
	})
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("sign execution token: %w", err))
	}
	tokenJWT, err := s.keys.TokenJWT(token)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("sign execution token: %w", err))
	}

	var envelopeSig string
	if s.signer.Enabled() {
		canonicalBytes, err := adra.CanonicalJSON(map[string]any(canonical))
		if err != nil {
			return nil, s.fail(span, fmt.Errorf("canonicalize for co-sign: %w", err))
		}
		sig, err := s.signer.Sign(ctx, canonicalBytes)
		if err != nil {
			return nil, s.fail(span, fmt.Errorf("co-sign envelope: %w", err))
		}
		envelopeSig = hex.EncodeToString(sig)
	}

	ledgerRec, err := s.chain.Append(ctx, map[string]any(canonical))
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("ledger append: %w", err))
	}
	if s.metrics != nil {
		s.metrics.LedgerAppends.Inc()
	}

	runEv, err := runlog.FromRecord(canonical, s.session)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("build run event: %w", err))
	}
	if err := s.runLog.Emit(ctx, runEv); err != nil {
		return nil, s.fail(span, fmt.Errorf("emit run event: %w", err))
	}
	if s.metrics != nil {
		s.metrics.RunEventsEmitted.Inc()
		s.metrics.RecordsFinalized.WithLabelValues(verdict).Inc()
		s.metrics.FinalizeSeconds.Observe(time.Since(start).Seconds())
	}

	s.logger.InfoContext(ctx, "record finalized",
		"adra_id", adraID,
		"final_verdict", verdict,
		"policies", len(policies),
		"ledger_hash", ledgerRec.Hash,
	)

	return &Result{
		Record:            canonical,
		Policies:          policies,
		Events:            stream,
		Token:             token,
		TokenJWT:          tokenJWT,
		EnvelopeSignature: envelopeSig,
		LedgerRecord:      ledgerRec,
		RunEvent:          runEv,
	}, nil
}

// foldPolicies writes normalized policies into the lineage layer and derives
// the veto layer when the record arrived without one.
func (s *Service) foldPolicies(rec adra.Record, policies []policy.Record) {
	lineage := rec.Layer(adra.LayerLineage)
	if _, ok := lineage["policies_triggered"]; !ok {
		lineage["policies_triggered"] = policyItems(policies)
		rec[adra.LayerLineage] = lineage
	}
	if _, ok := rec[adra.LayerVeto]; !ok {
		rec[adra.LayerVeto] = adra.ApplyVeto(adra.BuildVetoBasis(policies))
	}
}

func policyItems(policies []policy.Record) []any {
	items := make([]any, 0, len(policies))
	for _, p := range policies {
		raw, err := json.Marshal(p)
		if err != nil {
			continue
		}
		var item map[string]any
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items
}

// policiesFromLineage recovers typed policy records from a lineage layer
// supplied by the caller.
func policiesFromLineage(rec adra.Record) []policy.Record {
	raw, ok := rec.Layer(adra.LayerLineage)["policies_triggered"].([]any)
	if !ok {
		return nil
	}
	policies := make([]policy.Record, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		encoded, err := json.Marshal(m)
		if err != nil {
			continue
		}
		var p policy.Record
		if err := json.Unmarshal(encoded, &p); err != nil {
			continue
		}
		policies = append(policies, p)
	}
	return policies
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	if s.metrics != nil {
		s.metrics.FinalizeFailures.Inc()
	}
	return err
}
