// Package storage registers the built-in store backends.
package storage

import (
	"github.com/PaulFidika/accesslog/core"
	memorystore "github.com/PaulFidika/accesslog/storage/memory"
	pgxstore "github.com/PaulFidika/accesslog/storage/pgx"
	redisstore "github.com/PaulFidika/accesslog/storage/redis"
	sqlstore "github.com/PaulFidika/accesslog/storage/sql"
	"github.com/sirupsen/logrus"
)

// LegacySQLKind is the backend name used by older configurations.
const LegacySQLKind = "accesslog:SQLStore"

// NewFactory returns a factory with every built-in backend registered. Memory stores
// built from it share one set of tables.
func NewFactory(logger logrus.FieldLogger) *core.Factory {
	f := core.NewFactory(logger)
	f.Register(sqlstore.Kind, sqlstore.New)
	f.Register(LegacySQLKind, sqlstore.New)
	f.Register(pgxstore.Kind, pgxstore.New)
	f.Register(redisstore.Kind, redisstore.New)
	f.Register(memorystore.Kind, memorystore.NewTables().Constructor())
	return f
}
