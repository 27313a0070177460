package core

import (
	"context"
	"strconv"
	"strings"

	"github.com/PaulFidika/accesslog/extract"
)

// Implicit semantic keys present in every record.
const (
	KeyUsername = "username"
	KeyService  = "service"
	KeyDate     = "date"
)

// Reference defaults for a set.
const (
	DefaultSetName      = "set1"
	DefaultUIDField     = "eduPersonPrincipalName"
	DefaultServiceField = "entityid"
	DefaultTable        = "lastaccess"
	DefaultRemoveAfter  = 3
)

// Request is the per-login context handed over by the authentication host.
type Request struct {
	// Attributes holds identity attributes; multi-valued, the first value is used.
	Attributes map[string][]string
	// Destination describes the service being accessed.
	Destination map[string]string
	extract.Transport
}

// Record is one access event keyed by semantic key. Every value is a string.
type Record map[string]string

// Date returns the record timestamp in Unix seconds.
func (r Record) Date() (int64, bool) {
	v, ok := r[KeyDate]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	return n, err == nil
}

// MappingEntry binds a persisted column to a semantic source key.
type MappingEntry struct {
	Column string
	Source string
}

// Mapping is an ordered column → source association.
type Mapping []MappingEntry

// DefaultMapping is used when a set declares none.
func DefaultMapping() Mapping {
	return Mapping{
		{Column: "ip", Source: extract.KeyIP},
		{Column: "browser", Source: extract.KeyBrowser},
		{Column: "os", Source: extract.KeyOS},
	}
}

// Columns returns the column names in order.
func (m Mapping) Columns() []string {
	out := make([]string, len(m))
	for i, e := range m {
		out[i] = e.Column
	}
	return out
}

// Sources returns the source keys in order.
func (m Mapping) Sources() []string {
	out := make([]string, len(m))
	for i, e := range m {
		out[i] = e.Source
	}
	return out
}

// ColumnFor returns the first column fed by source.
func (m Mapping) ColumnFor(source string) (string, bool) {
	for _, e := range m {
		if e.Source == source {
			return e.Column, true
		}
	}
	return "", false
}

// StoreConfig selects a backend kind and carries its parameters verbatim.
type StoreConfig struct {
	Kind   string
	Params map[string]string
}

// SetConfig is the operator-authored description of one set.
type SetConfig struct {
	Name         string
	UIDField     string
	ServiceField string
	Table        string
	// RemoveAfter is the retention window in months.
	RemoveAfter int
	Mapping     Mapping
	Store       StoreConfig
}

// Set is a resolved, read-only set.
type Set struct {
	Name         string
	UIDField     string
	ServiceField string
	Table        string
	RemoveAfter  int
	// Mapping is the merged mapping including the implicit columns.
	Mapping Mapping
	Store   StoreConfig

	extractors map[string]extract.Func
}

// DateColumn returns the column holding the Unix timestamp.
func (s *Set) DateColumn() string {
	if c, ok := s.Mapping.ColumnFor(KeyDate); ok {
		return c
	}
	return KeyDate
}

// Store persists access records.
type Store interface {
	Persist(ctx context.Context, rec Record) error
	Close() error
}

// Pruner is implemented by stores that support retention sweeps.
type Pruner interface {
	// DeleteBefore removes rows dated strictly before cutoff (Unix seconds).
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// Describer is implemented by stores that can report their table's columns.
type Describer interface {
	Columns(ctx context.Context) ([]string, error)
}
