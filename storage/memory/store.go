// Package memorystore keeps access records in process memory, mainly for tests and single-process hosts.
package memorystore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/PaulFidika/accesslog/core"
)

// Kind is the backend name used in configuration.
const Kind = "memory"

// Tables holds rows per table name. Every store built from the same Tables sees the
// same rows, so a sweep store prunes what the capture store wrote.
type Tables struct {
	mu   sync.Mutex
	data map[string][]map[string]string
}

func NewTables() *Tables {
	return &Tables{data: make(map[string][]map[string]string)}
}

// Constructor returns a core.Constructor writing into t.
func (t *Tables) Constructor() core.Constructor {
	return func(opts core.StoreOptions) (core.Store, error) {
		if err := opts.Require(); err != nil {
			return nil, err
		}
		return &Store{tables: t, opts: opts}, nil
	}
}

// Rows returns a copy of table's rows in insertion order.
func (t *Tables) Rows(table string) []map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	src := t.data[table]
	out := make([]map[string]string, len(src))
	for i, r := range src {
		cp := make(map[string]string, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

// Names lists tables that hold at least one row.
func (t *Tables) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.data))
	for k, v := range t.data {
		if len(v) > 0 {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// New satisfies core.Constructor with a private Tables.
func New(opts core.StoreOptions) (core.Store, error) {
	return NewTables().Constructor()(opts)
}

// Store is one set's view of a table in Tables.
type Store struct {
	tables *Tables
	opts   core.StoreOptions
	closed bool
}

var (
	_ core.Store     = (*Store)(nil)
	_ core.Pruner    = (*Store)(nil)
	_ core.Describer = (*Store)(nil)
)

func (s *Store) Persist(_ context.Context, rec core.Record) error {
	row := make(map[string]string, len(s.opts.Mapping))
	for _, e := range s.opts.Mapping {
		v, ok := rec[e.Source]
		if !ok {
			return s.opts.Fail("persist", core.ErrBind, fmt.Errorf("no value for placeholder %q", e.Source))
		}
		row[e.Column] = v
	}
	s.tables.mu.Lock()
	defer s.tables.mu.Unlock()
	if s.closed {
		return s.opts.Fail("persist", core.ErrConnection, fmt.Errorf("store closed"))
	}
	s.tables.data[s.opts.Table] = append(s.tables.data[s.opts.Table], row)
	return nil
}

// DeleteBefore drops rows whose date column parses below cutoff. Unparseable dates are kept.
func (s *Store) DeleteBefore(_ context.Context, cutoff int64) (int64, error) {
	col := core.KeyDate
	if c, ok := s.opts.Mapping.ColumnFor(core.KeyDate); ok {
		col = c
	}
	s.tables.mu.Lock()
	defer s.tables.mu.Unlock()
	rows := s.tables.data[s.opts.Table]
	kept := rows[:0]
	var n int64
	for _, r := range rows {
		if d, err := strconv.ParseInt(r[col], 10, 64); err == nil && d < cutoff {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.tables.data[s.opts.Table] = kept
	return n, nil
}

func (s *Store) Columns(context.Context) ([]string, error) {
	return s.opts.Mapping.Columns(), nil
}

func (s *Store) Close() error {
	s.tables.mu.Lock()
	defer s.tables.mu.Unlock()
	s.closed = true
	return nil
}
