package testing

import (
	"database/sql"
	"fmt"
	"path/filepath"
	gotesting "testing"

	"github.com/PaulFidika/accesslog/core"
	migrations "github.com/PaulFidika/accesslog/migrations/postgres"
	sqlstore "github.com/PaulFidika/accesslog/storage/sql"
)

// SQLiteSet creates a database under tb.TempDir with the reference lastaccess table and
// returns a sql-backed set using it, along with the database path.
func SQLiteSet(tb gotesting.TB, name string) (core.SetConfig, string) {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name+".db")
	if err := applySchema(path); err != nil {
		tb.Fatalf("sqlite schema: %v", err)
	}
	return core.SetConfig{
		Name: name,
		Store: core.StoreConfig{Kind: sqlstore.Kind, Params: map[string]string{
			"dsn":      "sqlite:" + path,
			"username": "",
			"password": "",
		}},
	}, path
}

// CountRows returns the number of rows in table.
func CountRows(tb gotesting.TB, path, table string) int {
	tb.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		tb.Fatalf("open %s: %v", path, err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		tb.Fatalf("count %s: %v", table, err)
	}
	return n
}

func applySchema(path string) error {
	stmts, err := migrations.Statements(migrations.LastAccessUp)
	if err != nil {
		return err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("%s: %w", s, err)
		}
	}
	return nil
}
