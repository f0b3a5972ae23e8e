// Package ledger appends canonicalized artifacts into a tamper-evident,
// prev-hash-linked chain. The chain is single-writer and locally verifiable:
// replaying stored (prev_hash, artifact) pairs must reproduce every stored
// hash, and a single-byte change to any artifact invalidates every later
// record.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gnce/internal/adra"
)

// Genesis is the fixed chain root marker.
const Genesis = "GENESIS"

// Record is one chain entry.
type Record struct {
	Timestamp string `json:"timestamp"`
	Artifact  any    `json:"artifact"`
	PrevHash  string `json:"prev_hash"`
	Hash      string `json:"hash"`
}

// Store persists chain records. Append failures are fatal for that write and
// surface to the caller; a lost ledger record is a lost audit record.
type Store interface {
	Append(ctx context.Context, rec Record) error
}

// Chain is the in-memory hash chain. Appends advance prevHash and therefore
// must be serialized; the internal mutex covers that, and readers always see
// a consistent prefix.
type Chain struct {
	mu       sync.Mutex
	records  []Record
	prevHash string
	store    Store
	now      func() time.Time
}

// Option configures a Chain.
type Option func(*Chain)

// WithStore attaches a persistence backend; every append is written through.
func WithStore(store Store) Option {
	return func(c *Chain) { c.store = store }
}

// WithClock sets the timestamp source for testability.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty chain rooted at Genesis.
func New(opts ...Option) *Chain {
	c := &Chain{prevHash: Genesis, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Append hashes the artifact against the current chain head, stores the new
// record, and advances the head. Returns the appended record.
func (c *Chain) Append(ctx context.Context, artifact any) (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash, err := chainHash(c.prevHash, artifact)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Timestamp: c.now().UTC().Format(time.RFC3339Nano),
		Artifact:  artifact,
		PrevHash:  c.prevHash,
		Hash:      hash,
	}

	if c.store != nil {
		if err := c.store.Append(ctx, rec); err != nil {
			return Record{}, fmt.Errorf("persist ledger record: %w", err)
		}
	}

	c.records = append(c.records, rec)
	c.prevHash = hash
	return rec, nil
}

// Records returns a copy of the chain.
func (c *Chain) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Len returns the number of chained records.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Export renders the chain as an ordered JSON array, each record
// reproducible by independent hash recomputation.
func (c *Chain) Export() ([]byte, error) {
	records := c.Records()
	out, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("export ledger: %w", err)
	}
	return out, nil
}

// Verify replays a chain and recomputes every hash from the stored
// (prev_hash, artifact) pairs. It reports a boolean: verification runs
// against historical or untrusted exports and a mismatch is a result, not an
// error.
func Verify(records []Record) bool {
	prev := Genesis
	for _, rec := range records {
		if rec.PrevHash != prev {
			return false
		}
		hash, err := chainHash(rec.PrevHash, rec.Artifact)
		if err != nil || hash != rec.Hash {
			return false
		}
		prev = rec.Hash
	}
	return true
}

func chainHash(prevHash string, artifact any) (string, error) {
	canonical, err := adra.CanonicalJSON(artifact)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(prevHash), canonical...))
	return hex.EncodeToString(sum[:]), nil
}
