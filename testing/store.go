// Package testing provides fixtures for applications that capture access events.
// It offers a recording store that never touches a database, request builders,
// and SQLite-backed sets created from the reference schema.
//
// Example usage:
//
//	backend := testing.NewBackend()
//	reg, _ := core.NewRegistry([]core.SetConfig{backend.Set("set1")}, backend.Factory())
//	capturer, _ := reg.Capturer("")
//	capturer.Process(ctx, testing.Login("alice", "https://sp.example.org"))
//
//	rows := backend.Records("set1")
package testing

import (
	"context"
	"errors"
	"sync"

	"github.com/PaulFidika/accesslog/core"
)

// Kind is the backend name the recording store registers under.
const Kind = "recording"

// RecordingStore keeps persisted records in memory. Stores created by one Backend for
// the same set share their records, so sweeps see what capture wrote.
type RecordingStore struct {
	b   *Backend
	set string

	mu     sync.Mutex
	closed bool
}

// Backend hands out recording stores and lets tests inject failures.
type Backend struct {
	mu      sync.Mutex
	records map[string][]core.Record
	opened  map[string]int
	closed  map[string]int

	// PersistErr, when set, is returned by every Persist.
	PersistErr error
	// DeleteErr, when set, is returned by every DeleteBefore.
	DeleteErr error
}

func NewBackend() *Backend {
	return &Backend{
		records: make(map[string][]core.Record),
		opened:  make(map[string]int),
		closed:  make(map[string]int),
	}
}

// Factory returns a core factory with only the recording backend registered.
func (b *Backend) Factory() *core.Factory {
	f := core.NewFactory(nil)
	f.Register(Kind, b.Constructor)
	return f
}

// Constructor satisfies core.Constructor.
func (b *Backend) Constructor(opts core.StoreOptions) (core.Store, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opened[opts.Set]++
	return &RecordingStore{b: b, set: opts.Set}, nil
}

// Set returns a set configuration bound to the recording backend.
func (b *Backend) Set(name string) core.SetConfig {
	return core.SetConfig{Name: name, Store: core.StoreConfig{Kind: Kind}}
}

// Seed stores records for set as if they had been captured.
func (b *Backend) Seed(set string, recs ...core.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range recs {
		b.records[set] = append(b.records[set], clone(r))
	}
}

// Records returns a copy of what set has persisted.
func (b *Backend) Records(set string) []core.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]core.Record, 0, len(b.records[set]))
	for _, r := range b.records[set] {
		out = append(out, clone(r))
	}
	return out
}

// Opened reports how many stores were created for set.
func (b *Backend) Opened(set string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened[set]
}

// Closed reports how many stores for set were closed.
func (b *Backend) Closed(set string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed[set]
}

func (s *RecordingStore) Persist(_ context.Context, rec core.Record) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return &core.Error{Op: "persist", Set: s.set, Kind: core.ErrConnection, Err: errors.New("store closed")}
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.b.PersistErr != nil {
		return &core.Error{Op: "persist", Set: s.set, Kind: core.ErrExecution, Err: s.b.PersistErr}
	}
	s.b.records[s.set] = append(s.b.records[s.set], clone(rec))
	return nil
}

func (s *RecordingStore) DeleteBefore(_ context.Context, cutoff int64) (int64, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.b.DeleteErr != nil {
		return 0, &core.Error{Op: "delete", Set: s.set, Kind: core.ErrExecution, Err: s.b.DeleteErr}
	}
	rows := s.b.records[s.set]
	kept := rows[:0]
	var n int64
	for _, r := range rows {
		if d, ok := r.Date(); ok && d < cutoff {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.b.records[s.set] = kept
	return n, nil
}

func (s *RecordingStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.b.mu.Lock()
	s.b.closed[s.set]++
	s.b.mu.Unlock()
	return nil
}

func clone(r core.Record) core.Record {
	out := make(core.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
