package runlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Publisher forwards run events to an optional broker. Publishing is
// fire-and-forget; implementations must never block or fail the caller.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte)
}

// Store persists run events to a queryable database alongside the file.
type Store interface {
	Append(ctx context.Context, ev Event) error
}

// Log appends run events to an NDJSON file, one object per line. Appends are
// serialized per file; write failures surface to the caller because a
// dropped run event is a lost audit trail entry.
type Log struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	publisher Publisher
	store     Store
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithPublisher mirrors every emitted event to a broker, best effort.
func WithPublisher(p Publisher) LogOption {
	return func(l *Log) { l.publisher = p }
}

// WithStore mirrors every emitted event to a database. Store failures
// surface like file failures; both copies are audit trail.
func WithStore(s Store) LogOption {
	return func(l *Log) { l.store = s }
}

// NewLog creates a run-event log writing to path. Parent directories are
// created as needed; the file is opened lazily on first emit.
func NewLog(path string, opts ...LogOption) *Log {
	l := &Log{path: path}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Emit appends one event and flushes. The broker mirror, when configured,
// never affects the result.
func (l *Log) Emit(ctx context.Context, ev Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode run event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
			return fmt.Errorf("create run log dir: %w", err)
		}
		file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open run log: %w", err)
		}
		l.file = file
	}

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append run event: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("flush run log: %w", err)
	}

	if l.store != nil {
		if err := l.store.Append(ctx, ev); err != nil {
			return fmt.Errorf("persist run event: %w", err)
		}
	}
	if l.publisher != nil {
		l.publisher.Publish(ctx, ev.ADRAID, line)
	}
	return nil
}

// Close releases the underlying file. Safe to call without prior emits.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Read loads every well-formed event from an NDJSON log. Malformed or blank
// lines are skipped, not fatal: the log may be tailed by other writers or
// truncated mid-line.
func Read(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open run log: %w", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("read run log: %w", err)
	}
	return events, nil
}
