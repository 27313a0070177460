package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PaulFidika/accesslog/extract"
	"github.com/sirupsen/logrus"
)

// Registry holds the resolved sets. It is built once and read-only afterwards.
type Registry struct {
	order     []string
	sets      map[string]*Set
	capturers map[string]*Capturer
	factory   *Factory
	logger    logrus.FieldLogger
}

// RegistryOption customizes NewRegistry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used by the registry and its capturers.
func WithLogger(l logrus.FieldLogger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// Resolve validates cfg, applies defaults and merges the implicit columns into the mapping.
func Resolve(cfg SetConfig) (*Set, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return nil, &Error{Op: "resolve", Kind: ErrInvalidSet, Err: errors.New("set name is required")}
	}
	s := &Set{
		Name:         name,
		UIDField:     strings.TrimSpace(cfg.UIDField),
		ServiceField: strings.TrimSpace(cfg.ServiceField),
		Table:        strings.TrimSpace(cfg.Table),
		RemoveAfter:  cfg.RemoveAfter,
		Store:        cfg.Store,
	}
	if s.UIDField == "" {
		s.UIDField = DefaultUIDField
	}
	if s.ServiceField == "" {
		s.ServiceField = DefaultServiceField
	}
	if s.Table == "" {
		s.Table = DefaultTable
	}
	if s.RemoveAfter == 0 {
		s.RemoveAfter = DefaultRemoveAfter
	}
	if s.RemoveAfter < 0 {
		return nil, &Error{Op: "resolve", Set: name, Table: s.Table, Kind: ErrInvalidSet, Err: fmt.Errorf("removeafter must be positive, got %d", s.RemoveAfter)}
	}
	if strings.TrimSpace(s.Store.Kind) == "" {
		return nil, &Error{Op: "resolve", Set: name, Table: s.Table, Kind: ErrMissingStoreOption, Err: errors.New(`"class"`)}
	}

	user := cfg.Mapping
	if user == nil {
		user = DefaultMapping()
	}
	merged := make(Mapping, 0, len(user)+3)
	for _, key := range []string{KeyUsername, KeyService, KeyDate} {
		if _, ok := user.ColumnFor(key); !ok {
			merged = append(merged, MappingEntry{Column: key, Source: key})
		}
	}
	s.extractors = map[string]extract.Func{}
	for _, e := range user {
		col, src := strings.TrimSpace(e.Column), strings.TrimSpace(e.Source)
		if col == "" || src == "" {
			return nil, &Error{Op: "resolve", Set: name, Table: s.Table, Kind: ErrInvalidSet, Err: fmt.Errorf("mapping entry %q → %q is incomplete", e.Column, e.Source)}
		}
		switch src {
		case KeyUsername, KeyService, KeyDate:
		default:
			fn, ok := extract.Lookup(src)
			if !ok {
				return nil, &Error{Op: "resolve", Set: name, Table: s.Table, Kind: ErrUnknownAttribute, Err: fmt.Errorf("%q (known: %s)", src, strings.Join(extract.Keys(), ", "))}
			}
			s.extractors[src] = fn
		}
		merged = append(merged, MappingEntry{Column: col, Source: src})
	}
	seen := make(map[string]struct{}, len(merged))
	for _, e := range merged {
		if _, dup := seen[e.Column]; dup {
			return nil, &Error{Op: "resolve", Set: name, Table: s.Table, Kind: ErrInvalidSet, Err: fmt.Errorf("duplicate column %q", e.Column)}
		}
		seen[e.Column] = struct{}{}
	}
	s.Mapping = merged
	return s, nil
}

// NewRegistry resolves every set and builds one capture store per set.
// Any failure is a configuration error and nothing is kept open.
func NewRegistry(cfgs []SetConfig, factory *Factory, opts ...RegistryOption) (*Registry, error) {
	if factory == nil {
		return nil, &Error{Op: "resolve", Kind: ErrInvalidSet, Err: errors.New("store factory is required")}
	}
	r := &Registry{
		sets:      make(map[string]*Set, len(cfgs)),
		capturers: make(map[string]*Capturer, len(cfgs)),
		factory:   factory,
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, cfg := range cfgs {
		set, err := Resolve(cfg)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		if _, dup := r.sets[set.Name]; dup {
			_ = r.Close()
			return nil, &Error{Op: "resolve", Set: set.Name, Kind: ErrInvalidSet, Err: errors.New("duplicate set name")}
		}
		if !factory.Has(set.Store.Kind) {
			_ = r.Close()
			return nil, &Error{Op: "resolve", Set: set.Name, Table: set.Table, Kind: ErrUnknownStoreBackend, Err: fmt.Errorf("%q (known: %s)", set.Store.Kind, strings.Join(factory.Kinds(), ", "))}
		}
		st, err := factory.New(set)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.order = append(r.order, set.Name)
		r.sets[set.Name] = set
		r.capturers[set.Name] = newCapturer(set, st, r.logger)
	}
	return r, nil
}

// Names returns set names in configuration order.
func (r *Registry) Names() []string { return append([]string(nil), r.order...) }

// Sets returns the resolved sets in configuration order.
func (r *Registry) Sets() []*Set {
	out := make([]*Set, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.sets[n])
	}
	return out
}

// Set returns the named set.
func (r *Registry) Set(name string) (*Set, bool) {
	s, ok := r.sets[name]
	return s, ok
}

// Factory returns the factory the registry was built with.
func (r *Registry) Factory() *Factory { return r.factory }

// Capturer returns the capture path for name. An empty name selects "set1", or the
// first configured set when no set carries that name.
func (r *Registry) Capturer(name string) (*Capturer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultSetName
		if _, ok := r.capturers[name]; !ok && len(r.order) > 0 {
			name = r.order[0]
		}
	}
	c, ok := r.capturers[name]
	if !ok {
		return nil, &Error{Op: "capture", Set: name, Kind: ErrInvalidSet, Err: errors.New("no such set")}
	}
	return c, nil
}

// Close closes every capture store.
func (r *Registry) Close() error {
	var errs []error
	for _, c := range r.capturers {
		if err := c.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
