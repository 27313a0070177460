package sqlstore

import (
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Driver names returned by ParseDSN.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
	DriverMySQL    = "mysql"
)

// dialect describes how a driver is opened and how placeholders are written.
type dialect struct {
	name  string
	named bool
	// numbered positional placeholders ($1) instead of "?".
	numbered bool
}

func (d dialect) placeholder(i int, key string) string {
	switch {
	case d.named:
		return ":" + key
	case d.numbered:
		return "$" + strconv.Itoa(i)
	default:
		return "?"
	}
}

var (
	dialectSQLite   = dialect{name: DriverSQLite, named: true}
	dialectPostgres = dialect{name: DriverPostgres, numbered: true}
	dialectMySQL    = dialect{name: DriverMySQL}
)

const defaultMySQLPort = "3306"

// ParseDSN splits a "<driver>:<source>" DSN and returns the driver name (one of the
// Driver constants) with the source in the form that driver expects.
func ParseDSN(dsn string) (driver, source string, err error) {
	d, source, err := parseDSN(dsn)
	if err != nil {
		return "", "", err
	}
	return d.name, source, nil
}

// parseDSN splits "<driver>:<rest>" into a dialect and the driver-specific source.
// PDO style keyword lists ("pgsql:host=h;dbname=d") are accepted for postgres and mysql.
func parseDSN(dsn string) (dialect, string, error) {
	dsn = strings.TrimSpace(dsn)
	i := strings.IndexByte(dsn, ':')
	if i <= 0 {
		return dialect{}, "", fmt.Errorf("expected <driver>:<source>, got %q", dsn)
	}
	prefix, rest := strings.ToLower(dsn[:i]), dsn[i+1:]
	switch prefix {
	case "sqlite", "sqlite3", "file":
		if prefix == "file" {
			rest = dsn
		}
		if rest == "" {
			return dialect{}, "", fmt.Errorf("sqlite path is required")
		}
		return dialectSQLite, rest, nil
	case "postgres", "postgresql":
		if strings.HasPrefix(rest, "//") {
			return dialectPostgres, dsn, nil
		}
		return dialectPostgres, keywordDSN(rest), nil
	case "pgsql", "pgx":
		return dialectPostgres, keywordDSN(rest), nil
	case "mysql":
		source, err := mysqlDSN(rest)
		if err != nil {
			return dialect{}, "", err
		}
		return dialectMySQL, source, nil
	default:
		return dialect{}, "", fmt.Errorf("unsupported driver %q (use sqlite, pgsql or mysql)", prefix)
	}
}

// mysqlDSN accepts the PDO keyword form ("host=h;port=p;dbname=d;charset=c" or
// "unix_socket=/path;dbname=d") as well as a native driver DSN ("tcp(h:p)/d"), and
// returns a native DSN without credentials.
func mysqlDSN(rest string) (string, error) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", fmt.Errorf("mysql source is required")
	}
	if !isKeywordList(rest) {
		cfg, err := mysql.ParseDSN(rest)
		if err != nil {
			return "", err
		}
		return cfg.FormatDSN(), nil
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	host, port := "", defaultMySQLPort
	for _, part := range strings.Split(rest, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			if strings.TrimSpace(part) == "" {
				continue
			}
			return "", fmt.Errorf("malformed mysql dsn element %q", part)
		}
		v = strings.TrimSpace(v)
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "host":
			host = v
		case "port":
			if _, err := strconv.Atoi(v); err != nil {
				return "", fmt.Errorf("invalid mysql port %q", v)
			}
			port = v
		case "dbname":
			cfg.DBName = v
		case "unix_socket":
			cfg.Net, host = "unix", v
		case "charset":
			if cfg.Params == nil {
				cfg.Params = map[string]string{}
			}
			cfg.Params["charset"] = v
		default:
			return "", fmt.Errorf("unsupported mysql dsn key %q", k)
		}
	}
	switch {
	case cfg.Net == "unix":
		cfg.Addr = host
	case host == "":
		return "", fmt.Errorf("mysql host is required")
	default:
		cfg.Addr = net.JoinHostPort(host, port)
	}
	return cfg.FormatDSN(), nil
}

// isKeywordList reports whether s starts with a bare "key=" element. Native driver
// DSNs put "=" only in the query string, after "(", "@" or "/".
func isKeywordList(s string) bool {
	first, _, _ := strings.Cut(s, ";")
	k, _, ok := strings.Cut(first, "=")
	return ok && !strings.ContainsAny(k, "()@/:?")
}

func keywordDSN(s string) string {
	if strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://") {
		return s
	}
	return strings.TrimSpace(strings.ReplaceAll(s, ";", " "))
}

// openDB opens a handle without connecting.
func openDB(d dialect, source, username, password string) (*sql.DB, error) {
	switch d.name {
	case dialectPostgres.name:
		cfg, err := pgx.ParseConfig(source)
		if err != nil {
			return nil, err
		}
		if username != "" {
			cfg.User = username
		}
		if password != "" {
			cfg.Password = password
		}
		return stdlib.OpenDB(*cfg), nil
	case dialectMySQL.name:
		cfg, err := mysqlConfig(source, username, password)
		if err != nil {
			return nil, err
		}
		conn, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, err
		}
		return sql.OpenDB(conn), nil
	default:
		db, err := sql.Open(d.name, source)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		return db, nil
	}
}

func mysqlConfig(source, username, password string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(source)
	if err != nil {
		return nil, err
	}
	if username != "" {
		cfg.User = username
	}
	if password != "" {
		cfg.Passwd = password
	}
	return cfg, nil
}
