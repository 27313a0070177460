package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/PaulFidika/accesslog/core"
	"github.com/go-sql-driver/mysql"
	"github.com/google/go-cmp/cmp"
)

const eventsDDL = `CREATE TABLE events (uid VARCHAR(256) NOT NULL, svc VARCHAR(256) NOT NULL, ts BIGINT NOT NULL)`

func newDB(t *testing.T, ddl string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "access.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(ddl); err != nil {
		t.Fatalf("ddl: %v", err)
	}
	return path
}

func eventsOptions(path string) core.StoreOptions {
	return core.StoreOptions{
		Set:     "set1",
		Table:   "events",
		Mapping: core.Mapping{{Column: "uid", Source: "username"}, {Column: "svc", Source: "service"}, {Column: "ts", Source: "date"}},
		Params:  map[string]string{"dsn": "sqlite:" + path, "username": "", "password": ""},
	}
}

func count(t *testing.T, path string) int {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestOpen_RequiredOptions(t *testing.T) {
	for _, key := range []string{"dsn", "username", "password"} {
		opts := eventsOptions("/tmp/x.db")
		delete(opts.Params, key)
		if _, err := Open(opts); !errors.Is(err, core.ErrMissingStoreOption) {
			t.Fatalf("missing %s: expected ErrMissingStoreOption, got %v", key, err)
		}
	}
	opts := eventsOptions("/tmp/x.db")
	opts.Params["attrcase"] = "camel"
	if _, err := Open(opts); !errors.Is(err, core.ErrInvalidStoreOption) {
		t.Fatalf("expected ErrInvalidStoreOption for attrcase, got %v", err)
	}
	opts = eventsOptions("/tmp/x.db")
	opts.Params["dsn"] = "oci:dbname=//db:1521/idp"
	if _, err := Open(opts); !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("expected configuration error for unsupported driver, got %v", err)
	}
}

func TestBuildInsert(t *testing.T) {
	m := core.Mapping{{Column: "uid", Source: "username"}, {Column: "svc", Source: "service"}, {Column: "ts", Source: "date"}}
	q, keys := buildInsert(dialectSQLite, "events", m)
	if want := "INSERT INTO events (uid, svc, ts) VALUES (:username, :service, :date)"; q != want {
		t.Fatalf("sqlite insert:\n got %s\nwant %s", q, want)
	}
	if diff := cmp.Diff([]string{"username", "service", "date"}, keys); diff != "" {
		t.Fatalf("keys (-want +got):\n%s", diff)
	}
	q, _ = buildInsert(dialectPostgres, "audit.lastaccess", m)
	if want := "INSERT INTO audit.lastaccess (uid, svc, ts) VALUES ($1, $2, $3)"; q != want {
		t.Fatalf("postgres insert:\n got %s\nwant %s", q, want)
	}
	q, keys = buildInsert(dialectMySQL, "events", core.Mapping{{Column: "uid", Source: "username"}, {Column: "uid2", Source: "username"}})
	if want := "INSERT INTO events (uid, uid2) VALUES (?, ?)"; q != want {
		t.Fatalf("mysql insert:\n got %s\nwant %s", q, want)
	}
	if diff := cmp.Diff([]string{"username", "username"}, keys); diff != "" {
		t.Fatalf("mysql keys (-want +got):\n%s", diff)
	}
}

func TestParseDSN_MySQL(t *testing.T) {
	cases := []struct {
		in      string
		net     string
		addr    string
		db      string
		charset string
	}{
		{"mysql:host=myhost;dbname=mydatabase", "tcp", "myhost:3306", "mydatabase", ""},
		{"mysql:host=db;port=3307;dbname=idp;charset=utf8mb4", "tcp", "db:3307", "idp", "utf8mb4"},
		{"mysql:unix_socket=/run/mysqld/mysqld.sock;dbname=idp", "unix", "/run/mysqld/mysqld.sock", "idp", ""},
		{"mysql:tcp(db:3306)/idp", "tcp", "db:3306", "idp", ""},
	}
	for _, tc := range cases {
		driver, src, err := ParseDSN(tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if driver != DriverMySQL {
			t.Fatalf("%s: driver = %q", tc.in, driver)
		}
		cfg, err := mysql.ParseDSN(src)
		if err != nil {
			t.Fatalf("%s: source %q does not parse: %v", tc.in, src, err)
		}
		if cfg.Net != tc.net || cfg.Addr != tc.addr || cfg.DBName != tc.db || cfg.Params["charset"] != tc.charset {
			t.Errorf("%s: got net=%s addr=%s db=%s charset=%s", tc.in, cfg.Net, cfg.Addr, cfg.DBName, cfg.Params["charset"])
		}
		if cfg.User != "" || cfg.Passwd != "" {
			t.Errorf("%s: credentials leaked into source %q", tc.in, src)
		}
	}
	for _, bad := range []string{"mysql:", "mysql:dbname=idp", "mysql:host=db;port=x", "mysql:host=db;sslmode=on"} {
		if _, _, err := ParseDSN(bad); err == nil {
			t.Errorf("%s: expected error", bad)
		}
	}
}

func TestOpen_MySQLCredentials(t *testing.T) {
	opts := eventsOptions("/tmp/x.db")
	opts.Params["dsn"] = "mysql:host=myhost;dbname=mydatabase"
	opts.Params["username"], opts.Params["password"] = "idp", "s3cret"
	s, err := Open(opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.dialect != dialectMySQL {
		t.Fatalf("dialect = %+v", s.dialect)
	}
	cfg, err := mysqlConfig(s.source, s.username, s.password)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.User != "idp" || cfg.Passwd != "s3cret" || cfg.Addr != "myhost:3306" || cfg.DBName != "mydatabase" {
		t.Fatalf("unexpected config: user=%s addr=%s db=%s", cfg.User, cfg.Addr, cfg.DBName)
	}
	db, err := openDB(s.dialect, s.source, s.username, s.password)
	if err != nil {
		t.Fatalf("openDB: %v", err)
	}
	_ = db.Close()
}

func TestParseDSN(t *testing.T) {
	cases := []struct {
		in     string
		driver string
		source string
	}{
		{"sqlite:/var/lib/a.db", "sqlite", "/var/lib/a.db"},
		{"file:a.db?cache=shared", "sqlite", "file:a.db?cache=shared"},
		{"pgsql:host=db;dbname=idp", "pgx", "host=db dbname=idp"},
		{"postgres://db:5432/idp", "pgx", "postgres://db:5432/idp"},
		{"pgx:postgres://db/idp", "pgx", "postgres://db/idp"},
		{"PGSQL:host=db;port=5433;dbname=idp", "pgx", "host=db port=5433 dbname=idp"},
	}
	for _, tc := range cases {
		d, src, err := parseDSN(tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if d.name != tc.driver || src != tc.source {
			t.Errorf("%s: got (%s, %s), want (%s, %s)", tc.in, d.name, src, tc.driver, tc.source)
		}
	}
	if _, _, err := parseDSN("no-driver"); err == nil {
		t.Fatalf("expected error without driver prefix")
	}
}

func TestPersist_MapsColumns(t *testing.T) {
	path := newDB(t, eventsDDL)
	s, err := Open(eventsOptions(path))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	rec := core.Record{"username": "alice", "service": "sp1", "date": "1700000000", "ip": "ignored"}
	if err := s.Persist(context.Background(), rec); err != nil {
		t.Fatalf("persist: %v", err)
	}

	db, _ := sql.Open("sqlite", path)
	defer db.Close()
	var uid, svc string
	var ts int64
	if err := db.QueryRow(`SELECT uid, svc, ts FROM events`).Scan(&uid, &svc, &ts); err != nil {
		t.Fatalf("select: %v", err)
	}
	if uid != "alice" || svc != "sp1" || ts != 1700000000 {
		t.Fatalf("unexpected row: %s %s %d", uid, svc, ts)
	}
}

func TestPersist_MissingMappedKeyIsBindError(t *testing.T) {
	path := newDB(t, eventsDDL)
	s, err := Open(eventsOptions(path))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	err = s.Persist(context.Background(), core.Record{"username": "alice", "date": "1"})
	if !errors.Is(err, core.ErrBind) {
		t.Fatalf("expected ErrBind, got %v", err)
	}
	if n := count(t, path); n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}
}

func TestPersist_ConnectionFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "access.db")
	s, err := Open(eventsOptions(path))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	err = s.Persist(context.Background(), core.Record{"username": "a", "service": "b", "date": "1"})
	if !errors.Is(err, core.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if s.db != nil {
		t.Fatalf("failed connection must not be retained")
	}
}

func TestPersist_ExecutionError(t *testing.T) {
	path := newDB(t, eventsDDL)
	opts := eventsOptions(path)
	opts.Table = "no_such_table"
	s, err := Open(opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	err = s.Persist(context.Background(), core.Record{"username": "a", "service": "b", "date": "1"})
	if !errors.Is(err, core.ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
	var e *core.Error
	if !errors.As(err, &e) || e.Table != "no_such_table" || e.Err == nil {
		t.Fatalf("expected table and driver detail on error, got %#v", err)
	}
}

func TestDeleteBefore(t *testing.T) {
	path := newDB(t, eventsDDL)
	s, err := Open(eventsOptions(path))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	for _, ts := range []string{"100", "199", "200", "300"} {
		if err := s.Persist(context.Background(), core.Record{"username": "u", "service": "s", "date": ts}); err != nil {
			t.Fatalf("persist: %v", err)
		}
	}
	n, err := s.DeleteBefore(context.Background(), 200)
	if err != nil || n != 2 {
		t.Fatalf("first sweep: n=%d err=%v", n, err)
	}
	n, err = s.DeleteBefore(context.Background(), 200)
	if err != nil || n != 0 {
		t.Fatalf("second sweep: n=%d err=%v", n, err)
	}
	if got := count(t, path); got != 2 {
		t.Fatalf("expected 2 rows left, got %d", got)
	}
}

func TestColumns_CaseFolding(t *testing.T) {
	path := newDB(t, `CREATE TABLE events (Uid TEXT, Svc TEXT, Ts BIGINT)`)
	for mode, want := range map[string][]string{
		"":      {"Uid", "Svc", "Ts"},
		"lower": {"uid", "svc", "ts"},
		"upper": {"UID", "SVC", "TS"},
	} {
		opts := eventsOptions(path)
		opts.Params["attrcase"] = mode
		s, err := Open(opts)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		got, err := s.Columns(context.Background())
		_ = s.Close()
		if err != nil {
			t.Fatalf("columns: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("attrcase %q (-want +got):\n%s", mode, diff)
		}
	}
}
