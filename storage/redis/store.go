// Package redisstore appends access records to Redis streams.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PaulFidika/accesslog/core"
	"github.com/redis/go-redis/v9"
)

// Kind is the backend name used in configuration.
const Kind = "redis"

// Store appends access records to a Redis stream named after the set's table.
// Stream ids carry the insertion time, so retention trims by MINID.
type Store struct {
	opts  core.StoreOptions
	rOpts *redis.Options
	key   string

	mu  sync.Mutex
	rdb *redis.Client
}

var (
	_ core.Store  = (*Store)(nil)
	_ core.Pruner = (*Store)(nil)
)

// New satisfies core.Constructor.
func New(opts core.StoreOptions) (core.Store, error) {
	s, err := Open(opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Open validates options without connecting. "addr" may also be a redis:// URL.
func Open(opts core.StoreOptions) (*Store, error) {
	if err := opts.Require("addr"); err != nil {
		return nil, err
	}
	addr := opts.Param("addr")
	var ro *redis.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, opts.Invalid("addr", err)
		}
		ro = parsed
	} else {
		if addr == "" {
			return nil, opts.Invalid("addr", fmt.Errorf("empty address"))
		}
		ro = &redis.Options{Addr: addr}
	}
	if u := opts.Param("username"); u != "" {
		ro.Username = u
	}
	if p := opts.Params["password"]; p != "" {
		ro.Password = p
	}
	if raw := opts.Param("db"); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil {
			return nil, opts.Invalid("db", err)
		}
		ro.DB = db
	}
	return &Store{opts: opts, rOpts: ro, key: opts.Table}, nil
}

// WithClient makes the store use an existing client.
func (s *Store) WithClient(rdb *redis.Client) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rdb = rdb
	return s
}

func (s *Store) client(ctx context.Context) (*redis.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rdb != nil {
		return s.rdb, nil
	}
	rdb := redis.NewClient(s.rOpts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		s.opts.Log().WithError(err).Error("accesslog: cannot connect to redis")
		return nil, s.opts.Fail("connect", core.ErrConnection, err)
	}
	s.rdb = rdb
	return rdb, nil
}

// values flattens rec into column/value pairs in mapping order.
func (s *Store) values(rec core.Record) ([]any, error) {
	out := make([]any, 0, 2*len(s.opts.Mapping))
	for _, e := range s.opts.Mapping {
		v, ok := rec[e.Source]
		if !ok {
			return nil, s.opts.Fail("persist", core.ErrBind, fmt.Errorf("no value for placeholder %q", e.Source))
		}
		out = append(out, e.Column, v)
	}
	return out, nil
}

// Persist appends rec with XADD.
func (s *Store) Persist(ctx context.Context, rec core.Record) error {
	rdb, err := s.client(ctx)
	if err != nil {
		return err
	}
	vals, err := s.values(rec)
	if err != nil {
		return err
	}
	if err := rdb.XAdd(ctx, &redis.XAddArgs{Stream: s.key, Values: vals}).Err(); err != nil {
		return s.opts.Fail("persist", core.ErrExecution, err)
	}
	return nil
}

// DeleteBefore trims entries added before cutoff.
func (s *Store) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	rdb, err := s.client(ctx)
	if err != nil {
		return 0, err
	}
	n, err := rdb.XTrimMinID(ctx, s.key, minID(cutoff)).Result()
	if err != nil {
		return 0, s.opts.Fail("sweep", core.ErrExecution, err)
	}
	return n, nil
}

func minID(cutoff int64) string {
	if cutoff < 0 {
		cutoff = 0
	}
	return strconv.FormatInt(cutoff*1000, 10)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rdb == nil {
		return nil
	}
	err := s.rdb.Close()
	s.rdb = nil
	return err
}
