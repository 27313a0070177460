package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// StoreOptions is what a backend constructor receives: the backend parameters plus the
// table and merged mapping injected by the set.
type StoreOptions struct {
	Set     string
	Table   string
	Mapping Mapping
	Params  map[string]string
	Logger  logrus.FieldLogger
}

// Param returns a trimmed parameter value.
func (o StoreOptions) Param(key string) string {
	return strings.TrimSpace(o.Params[key])
}

// Require fails with ErrMissingStoreOption for the first absent key. Table and mapping
// are checked as well since every backend needs them.
func (o StoreOptions) Require(keys ...string) error {
	if strings.TrimSpace(o.Table) == "" {
		return o.missing("table")
	}
	if len(o.Mapping) == 0 {
		return o.missing("mapping")
	}
	for _, k := range keys {
		if _, ok := o.Params[k]; !ok {
			return o.missing(k)
		}
	}
	return nil
}

func (o StoreOptions) missing(key string) error {
	return &Error{Op: "configure", Set: o.Set, Table: o.Table, Kind: ErrMissingStoreOption, Err: fmt.Errorf("%q", key)}
}

// Invalid reports a bad value for key.
func (o StoreOptions) Invalid(key string, err error) error {
	return &Error{Op: "configure", Set: o.Set, Table: o.Table, Kind: ErrInvalidStoreOption, Err: fmt.Errorf("%q: %w", key, err)}
}

// Fail builds a backend failure of the given kind for op.
func (o StoreOptions) Fail(op string, kind, err error) error {
	return &Error{Op: op, Set: o.Set, Table: o.Table, Kind: kind, Err: err}
}

// Log returns the configured logger or the logrus standard logger.
func (o StoreOptions) Log() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}

// Constructor builds a Store from options.
type Constructor func(opts StoreOptions) (Store, error)

// Factory maps backend kinds to constructors. Populate it at process start.
type Factory struct {
	mu     sync.RWMutex
	ctors  map[string]Constructor
	logger logrus.FieldLogger
}

func NewFactory(logger logrus.FieldLogger) *Factory {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Factory{ctors: map[string]Constructor{}, logger: logger}
}

// Register adds or replaces the constructor for kind.
func (f *Factory) Register(kind string, c Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[normalizeKind(kind)] = c
}

// Has reports whether kind is registered.
func (f *Factory) Has(kind string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.ctors[normalizeKind(kind)]
	return ok
}

// Kinds lists registered kinds in sorted order.
func (f *Factory) Kinds() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.ctors))
	for k := range f.ctors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New constructs a Store for set. It returns a usable Store or an error, never both.
func (f *Factory) New(set *Set) (Store, error) {
	f.mu.RLock()
	ctor, ok := f.ctors[normalizeKind(set.Store.Kind)]
	f.mu.RUnlock()
	if !ok {
		return nil, &Error{Op: "configure", Set: set.Name, Table: set.Table, Kind: ErrUnknownStoreBackend, Err: fmt.Errorf("%q", set.Store.Kind)}
	}
	params := make(map[string]string, len(set.Store.Params))
	for k, v := range set.Store.Params {
		params[k] = v
	}
	st, err := ctor(StoreOptions{
		Set:     set.Name,
		Table:   set.Table,
		Mapping: append(Mapping(nil), set.Mapping...),
		Params:  params,
		Logger:  f.logger.WithFields(logrus.Fields{"set": set.Name, "table": set.Table, "store": set.Store.Kind}),
	})
	if err != nil {
		return nil, WithSet(err, set.Name)
	}
	if st == nil {
		return nil, &Error{Op: "configure", Set: set.Name, Table: set.Table, Kind: ErrUnknownStoreBackend, Err: fmt.Errorf("%q constructor returned no store", set.Store.Kind)}
	}
	return st, nil
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}
