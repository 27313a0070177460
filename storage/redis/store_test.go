package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PaulFidika/accesslog/core"
	"github.com/google/go-cmp/cmp"
)

func options(addr string) core.StoreOptions {
	return core.StoreOptions{
		Set:     "set1",
		Table:   "lastaccess",
		Mapping: core.Mapping{{Column: "username", Source: "username"}, {Column: "service", Source: "service"}, {Column: "date", Source: "date"}, {Column: "client_ip", Source: "ip"}},
		Params:  map[string]string{"addr": addr},
	}
}

func TestOpen(t *testing.T) {
	opts := options("redis://:pw@127.0.0.1:6380/2")
	s, err := Open(opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.rOpts.Addr != "127.0.0.1:6380" || s.rOpts.DB != 2 || s.rOpts.Password != "pw" || s.key != "lastaccess" {
		t.Fatalf("unexpected options %+v", s.rOpts)
	}
	opts = options("127.0.0.1:6379")
	opts.Params["db"] = "three"
	if _, err := Open(opts); !errors.Is(err, core.ErrInvalidStoreOption) {
		t.Fatalf("expected ErrInvalidStoreOption, got %v", err)
	}
	opts = options("")
	delete(opts.Params, "addr")
	if _, err := Open(opts); !errors.Is(err, core.ErrMissingStoreOption) {
		t.Fatalf("expected ErrMissingStoreOption, got %v", err)
	}
}

func TestValues_MappingOrder(t *testing.T) {
	s, err := Open(options("127.0.0.1:6379"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := s.values(core.Record{"username": "alice", "service": "sp1", "date": "7", "ip": "10.0.0.1"})
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	want := []any{"username", "alice", "service", "sp1", "date", "7", "client_ip", "10.0.0.1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("values (-want +got):\n%s", diff)
	}
	if _, err := s.values(core.Record{"username": "alice"}); !errors.Is(err, core.ErrBind) {
		t.Fatalf("expected ErrBind, got %v", err)
	}
}

func TestMinID(t *testing.T) {
	if got := minID(1_700_000_000); got != "1700000000000" {
		t.Fatalf("minID = %s", got)
	}
	if got := minID(-5); got != "0" {
		t.Fatalf("minID = %s", got)
	}
}

func TestPersist_ConnectionRefused(t *testing.T) {
	s, err := Open(options("127.0.0.1:1"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Persist(ctx, core.Record{"username": "a", "service": "b", "date": "1", "ip": "x"}); !errors.Is(err, core.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if s.rdb != nil {
		t.Fatalf("failed client must not be retained")
	}
}
