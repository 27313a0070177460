package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/PaulFidika/accesslog/core"
	"github.com/google/go-cmp/cmp"
)

const sample = `
schedule: "0 3 * * *"
sets:
  zeta:
    uidfield: uid
    servicefield: spEntityId
    table: audit_lastaccess
    removeafter: 6
    mapping:
      os: os
      client_ip: ip
      browser: browser
    store:
      class: sql
      dsn: "sqlite:/tmp/${ACCESSLOG_TEST_DB}.db"
      username: idp
      password: ${ACCESSLOG_TEST_PASSWORD}
      attrcase: lower
  alpha:
    store:
      kind: redis
      addr: 127.0.0.1:6379
      db: 2
`

func TestParse(t *testing.T) {
	t.Setenv("ACCESSLOG_TEST_DB", "events")
	t.Setenv("ACCESSLOG_TEST_PASSWORD", "s3cret")

	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Schedule != "0 3 * * *" {
		t.Fatalf("schedule = %q", f.Schedule)
	}
	want := []core.SetConfig{
		{
			Name:         "zeta",
			UIDField:     "uid",
			ServiceField: "spEntityId",
			Table:        "audit_lastaccess",
			RemoveAfter:  6,
			Mapping: core.Mapping{
				{Column: "os", Source: "os"},
				{Column: "client_ip", Source: "ip"},
				{Column: "browser", Source: "browser"},
			},
			Store: core.StoreConfig{Kind: "sql", Params: map[string]string{
				"dsn": "sqlite:/tmp/events.db", "username": "idp", "password": "s3cret", "attrcase": "lower",
			}},
		},
		{
			Name:  "alpha",
			Store: core.StoreConfig{Kind: "redis", Params: map[string]string{"addr": "127.0.0.1:6379", "db": "2"}},
		},
	}
	if diff := cmp.Diff(want, f.Sets); diff != "" {
		t.Fatalf("sets (-want +got):\n%s", diff)
	}
}

func TestParse_EmptyMappingKeepsOnlyImplicitColumns(t *testing.T) {
	f, err := Parse([]byte("sets:\n  s:\n    mapping: {}\n    store: {class: memory}\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Sets[0].Mapping == nil || len(f.Sets[0].Mapping) != 0 {
		t.Fatalf("expected empty, non-nil mapping, got %#v", f.Sets[0].Mapping)
	}
	set, err := core.Resolve(f.Sets[0])
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if diff := cmp.Diff([]string{"username", "service", "date"}, set.Mapping.Columns()); diff != "" {
		t.Fatalf("columns (-want +got):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	for name, doc := range map[string]string{
		"sets not a map":    "sets: [a, b]\n",
		"mapping not a map": "sets:\n  s:\n    mapping: [ip]\n",
		"nested value":      "sets:\n  s:\n    mapping: {ip: {x: y}}\n",
		"bad yaml":          "sets: {\n",
	} {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accesslog.yaml")
	if err := os.WriteFile(path, []byte("sets:\n  set1:\n    store: {class: memory}\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(f.Sets) != 1 || f.Sets[0].Name != "set1" || f.Sets[0].Store.Kind != "memory" {
		t.Fatalf("unexpected sets %+v", f.Sets)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(" "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
