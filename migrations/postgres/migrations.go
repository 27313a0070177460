// Package migrations embeds the reference lastaccess schema. The library never runs
// them; hosts apply them with bun/migrate or any external runner.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/uptrace/bun/migrate"
)

//go:embed *.sql
var migrationFS embed.FS

// FS exposes the embedded SQL for external runners.
var FS = migrationFS

// Migrations is a bun/migrate registry for this module.
var Migrations = migrate.NewMigrations()

const (
	LastAccessUp   = "20260301120000_lastaccess.up.sql"
	LastAccessDown = "20260301120000_lastaccess.down.sql"
)

const splitMarker = "--bun:split"

func init() {
	// Discover SQL migrations from embedded filesystem.
	_ = Migrations.Discover(migrationFS)
}

// Statements returns the statements of one embedded file, split the way bun splits them.
// The up migration is also valid SQLite, which tests rely on.
func Statements(name string) ([]string, error) {
	b, err := fs.ReadFile(migrationFS, name)
	if err != nil {
		return nil, fmt.Errorf("read migration %q: %w", name, err)
	}
	var out []string
	for _, part := range strings.Split(string(b), splitMarker) {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
