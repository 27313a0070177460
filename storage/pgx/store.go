// Package pgxstore writes access records to PostgreSQL through a pgx pool.
package pgxstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PaulFidika/accesslog/core"
	sqlstore "github.com/PaulFidika/accesslog/storage/sql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Kind is the backend name used in configuration.
const Kind = "pgx"

// Store is a pgxpool-backed access record store.
type Store struct {
	opts   core.StoreOptions
	cfg    *pgxpool.Config
	insert string
	keys   []string

	mu sync.Mutex
	pg *pgxpool.Pool
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

// Open parses the pool configuration and precomputes the insert. It does not connect.
func Open(opts core.StoreOptions) (*Store, error) {
	if err := opts.Require("dsn"); err != nil {
		return nil, err
	}
	dsn, err := poolDSN(opts.Param("dsn"))
	if err != nil {
		return nil, opts.Invalid("dsn", err)
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, opts.Invalid("dsn", err)
	}
	if u := opts.Param("username"); u != "" {
		cfg.ConnConfig.User = u
	}
	if p, ok := opts.Params["password"]; ok && p != "" {
		cfg.ConnConfig.Password = p
	}
	s := &Store{opts: opts, cfg: cfg}
	s.insert, s.keys = buildInsert(opts.Table, opts.Mapping)
	return s, nil
}

// poolDSN accepts the same "<driver>:<source>" forms as the sql backend and hands
// anything without a recognised prefix (a bare keyword string) to pgx unchanged.
func poolDSN(dsn string) (string, error) {
	driver, source, err := sqlstore.ParseDSN(dsn)
	if err != nil {
		return dsn, nil
	}
	if driver != sqlstore.DriverPostgres {
		return "", fmt.Errorf("pgx backend needs a postgres dsn, got %s", driver)
	}
	return source, nil
}

func buildInsert(table string, m core.Mapping) (string, []string) {
	phs := make([]string, len(m))
	for i, e := range m {
		phs[i] = "@" + e.Source
	}
	return "INSERT INTO " + table + " (" + strings.Join(m.Columns(), ", ") + ") VALUES (" + strings.Join(phs, ", ") + ")", m.Sources()
}

func (s *Store) pool(ctx context.Context) (*pgxpool.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pg != nil {
		return s.pg, nil
	}
	pg, err := pgxpool.NewWithConfig(ctx, s.cfg)
	if err != nil {
		return nil, s.opts.Fail("connect", core.ErrConnection, err)
	}
	if err := pg.Ping(ctx); err != nil {
		pg.Close()
		s.opts.Log().WithError(err).Error("accesslog: cannot connect to postgres")
		return nil, s.opts.Fail("connect", core.ErrConnection, err)
	}
	s.pg = pg
	return pg, nil
}

func (s *Store) bind(rec core.Record) (pgx.NamedArgs, error) {
	args := make(pgx.NamedArgs, len(s.keys))
	for _, k := range s.keys {
		v, ok := rec[k]
		if !ok {
			return nil, s.opts.Fail("persist", core.ErrBind, fmt.Errorf("no value for placeholder %q", k))
		}
		args[k] = v
	}
	return args, nil
}

// Persist inserts rec in its own statement.
func (s *Store) Persist(ctx context.Context, rec core.Record) error {
	pg, err := s.pool(ctx)
	if err != nil {
		return err
	}
	args, err := s.bind(rec)
	if err != nil {
		return err
	}
	if _, err := pg.Exec(ctx, s.insert, args); err != nil {
		return s.opts.Fail("persist", core.ErrExecution, err)
	}
	return nil
}

// DeleteBefore removes rows older than cutoff.
func (s *Store) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	pg, err := s.pool(ctx)
	if err != nil {
		return 0, err
	}
	col := core.KeyDate
	if c, ok := s.opts.Mapping.ColumnFor(core.KeyDate); ok {
		col = c
	}
	tag, err := pg.Exec(ctx, `DELETE FROM `+s.opts.Table+` WHERE `+col+` < $1`, cutoff)
	if err != nil {
		return 0, s.opts.Fail("sweep", core.ErrExecution, err)
	}
	return tag.RowsAffected(), nil
}

// Columns lists the table's columns as reported by the server.
func (s *Store) Columns(ctx context.Context) ([]string, error) {
	pg, err := s.pool(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := pg.Query(ctx, `SELECT * FROM `+s.opts.Table+` WHERE 1 = 0`)
	if err != nil {
		return nil, s.opts.Fail("describe", core.ErrExecution, err)
	}
	defer rows.Close()
	fds := rows.FieldDescriptions()
	out := make([]string, len(fds))
	for i, fd := range fds {
		out[i] = fd.Name
	}
	if err := rows.Err(); err != nil {
		return nil, s.opts.Fail("describe", core.ErrExecution, err)
	}
	return out, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pg != nil {
		s.pg.Close()
		s.pg = nil
	}
	return nil
}
