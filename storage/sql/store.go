// Package sqlstore is the reference SQL backend. It writes one row per access event
// with a statement precomputed from the set's mapping.
//
// Options:
//   - dsn: "<driver>:<source>", e.g. "sqlite:/var/lib/accesslog.db" or
//     "pgsql:host=db;dbname=idp" or "postgres://db/idp" or
//     "mysql:host=db;port=3306;dbname=idp".
//   - username, password: database credentials (ignored by sqlite).
//   - attrcase: lower | natural | upper. Case folding of result-set column names.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PaulFidika/accesslog/core"
	"github.com/sirupsen/logrus"
)

// Kind is the backend name used in configuration.
const Kind = "sql"

// Case folding modes.
const (
	CaseLower   = "lower"
	CaseNatural = "natural"
	CaseUpper   = "upper"
)

// Store writes access records through database/sql.
type Store struct {
	opts     core.StoreOptions
	dialect  dialect
	source   string
	username string
	password string
	attrcase string
	insert   string
	keys     []string
	log      logrus.FieldLogger

	mu sync.Mutex
	db *sql.DB
}

var (
	_ core.Store     = (*Store)(nil)
	_ core.Pruner    = (*Store)(nil)
	_ core.Describer = (*Store)(nil)
)

// New satisfies core.Constructor.
func New(opts core.StoreOptions) (core.Store, error) {
	s, err := Open(opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Open validates options and precomputes the insert statement. It does not connect.
func Open(opts core.StoreOptions) (*Store, error) {
	if err := opts.Require("dsn", "username", "password"); err != nil {
		return nil, err
	}
	d, source, err := parseDSN(opts.Param("dsn"))
	if err != nil {
		return nil, opts.Invalid("dsn", err)
	}
	attrcase := strings.ToLower(opts.Param("attrcase"))
	switch attrcase {
	case "":
		attrcase = CaseNatural
	case CaseLower, CaseNatural, CaseUpper:
	default:
		return nil, opts.Invalid("attrcase", fmt.Errorf("wrong case value %q", attrcase))
	}
	s := &Store{
		opts:     opts,
		dialect:  d,
		source:   source,
		username: opts.Params["username"],
		password: opts.Params["password"],
		attrcase: attrcase,
		log:      opts.Log(),
	}
	s.insert, s.keys = buildInsert(d, opts.Table, opts.Mapping)
	return s, nil
}

// buildInsert renders INSERT INTO <table> (<columns>) VALUES (<placeholders>).
// Identifiers come from trusted configuration and are interpolated verbatim.
func buildInsert(d dialect, table string, m core.Mapping) (string, []string) {
	phs := make([]string, len(m))
	for i, e := range m {
		phs[i] = d.placeholder(i+1, e.Source)
	}
	q := "INSERT INTO " + table + " (" + strings.Join(m.Columns(), ", ") + ") VALUES (" + strings.Join(phs, ", ") + ")"
	return q, m.Sources()
}

// Statement returns the precomputed insert statement.
func (s *Store) Statement() string { return s.insert }

func (s *Store) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}
	db, err := openDB(s.dialect, s.source, s.username, s.password)
	if err != nil {
		return nil, s.opts.Fail("connect", core.ErrConnection, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		s.log.WithError(err).WithField("driver", s.dialect.name).Error("accesslog: cannot connect to database")
		return nil, s.opts.Fail("connect", core.ErrConnection, err)
	}
	s.db = db
	return db, nil
}

func (s *Store) bind(rec core.Record) ([]any, error) {
	args := make([]any, 0, len(s.keys))
	seen := make(map[string]struct{}, len(s.keys))
	for _, k := range s.keys {
		v, ok := rec[k]
		if !ok {
			return nil, s.opts.Fail("persist", core.ErrBind, fmt.Errorf("no value for placeholder %q", k))
		}
		if s.dialect.named {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			args = append(args, sql.Named(k, v))
			continue
		}
		args = append(args, v)
	}
	return args, nil
}

// Persist inserts rec as a single statement, without an explicit transaction.
func (s *Store) Persist(ctx context.Context, rec core.Record) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	args, err := s.bind(rec)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, s.insert, args...); err != nil {
		return s.opts.Fail("persist", core.ErrExecution, err)
	}
	return nil
}

// DeleteBefore removes rows whose date column is strictly older than cutoff.
func (s *Store) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	col := core.KeyDate
	if c, ok := s.opts.Mapping.ColumnFor(core.KeyDate); ok {
		col = c
	}
	q := "DELETE FROM " + s.opts.Table + " WHERE " + col + " < " + s.dialect.placeholder(1, "cutoff")
	var arg any = cutoff
	if s.dialect.named {
		arg = sql.Named("cutoff", cutoff)
	}
	res, err := db.ExecContext(ctx, q, arg)
	if err != nil {
		return 0, s.opts.Fail("sweep", core.ErrExecution, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.opts.Fail("sweep", core.ErrExecution, err)
	}
	return n, nil
}

// Columns lists the table's columns, folded per attrcase.
func (s *Store) Columns(ctx context.Context) ([]string, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+s.opts.Table+" WHERE 1 = 0")
	if err != nil {
		return nil, s.opts.Fail("describe", core.ErrExecution, err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, s.opts.Fail("describe", core.ErrExecution, err)
	}
	for i, c := range cols {
		cols[i] = s.fold(c)
	}
	return cols, nil
}

func (s *Store) fold(name string) string {
	switch s.attrcase {
	case CaseLower:
		return strings.ToLower(name)
	case CaseUpper:
		return strings.ToUpper(name)
	default:
		return name
	}
}

// Close releases the connection if one was established.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if errors.Is(err, sql.ErrConnDone) {
		return nil
	}
	return err
}
