package repository

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
)

const (
	defaultSQLitePath = "./brokerage.db"
	defaultPGPort     = 5432
	defaultPGDatabase = "brokerage"
	pingTimeout       = 5 * time.Second
)

// Every SQLite connection enforces foreign keys; document follow-ups and
// car rule groups rely on them.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"busy_timeout(5000)",
	"foreign_keys(ON)",
}

// dataSource returns the database/sql driver name and DSN for cfg.
func dataSource(cfg domain.RepositoryConfig) (string, string, error) {
	switch cfg.Driver {
	case "sqlite":
		return "sqlite", "file:" + sqlitePath(cfg) + "?_pragma=" + strings.Join(sqlitePragmas, "&_pragma="), nil

	case "postgres":
		host := cfg.PostgresHost
		if host == "" {
			host = "localhost"
		}
		port := cfg.PostgresPort
		if port == 0 {
			port = defaultPGPort
		}
		dbname := cfg.PostgresDB
		if dbname == "" {
			dbname = defaultPGDatabase
		}
		sslmode := cfg.PostgresSSLMode
		if sslmode == "" {
			sslmode = "disable"
		}

		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.PostgresUser, cfg.PostgresPassword),
			Host:     net.JoinHostPort(host, strconv.Itoa(port)),
			Path:     "/" + dbname,
			RawQuery: url.Values{"sslmode": {sslmode}, "fallback_application_name": {"brokerage"}}.Encode(),
		}
		return "postgres", u.String(), nil
	}

	return "", "", ierr.NewErrorf("unsupported driver: %s", cfg.Driver).
		WithHint("repository driver must be sqlite or postgres").
		Mark(ierr.ErrValidation)
}

// openDB opens and pings the configured database. SQLite files get their
// directory created first.
func openDB(cfg domain.RepositoryConfig) (*sql.DB, error) {
	driverName, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	if driverName == "sqlite" {
		if dir := filepath.Dir(sqlitePath(cfg)); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, ierr.WithError(err).WithMessage("create database directory " + dir).Mark(ierr.ErrDatabase)
			}
		}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, ierr.WithError(err).WithMessage("open " + driverName + " database").Mark(ierr.ErrDatabase)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, ierr.WithError(err).WithMessage("ping " + driverName + " database").Mark(ierr.ErrDatabase)
	}
	return db, nil
}

func sqlitePath(cfg domain.RepositoryConfig) string {
	if cfg.SQLitePath == "" {
		return defaultSQLitePath
	}
	return cfg.SQLitePath
}
