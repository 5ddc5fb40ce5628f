// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqlStore implements domain.Store over a querier.
type sqlStore struct {
	q      querier
	driver string
}

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	*sqlStore
	db *sql.DB
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		sqlStore: &sqlStore{q: db, driver: cfg.Driver},
		db:       db,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, ierr.WithError(err).WithMessage("failed to run migrations").Mark(ierr.ErrDatabase)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas(r.driver) {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// WithTx runs fn inside one transaction. fn's error, or a commit failure,
// rolls everything back.
func (r *SQLRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx domain.Store) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to begin transaction").Mark(ierr.ErrDatabase)
	}

	if err := fn(ctx, &sqlStore{q: tx, driver: r.driver}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return ierr.WithError(err).WithMessage("failed to commit transaction").Mark(ierr.ErrDatabase)
	}
	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *sqlStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = strconv.AppendInt(result, int64(n), 10)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

// insert runs an INSERT and returns the generated id.
func (s *sqlStore) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, s.rebind(query+" RETURNING id"), args...).Scan(&id)
	return id, err
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// findIDs returns which of ids exist in table.
func (s *sqlStore) findIDs(ctx context.Context, table string, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := "SELECT id FROM " + table + " WHERE id IN (" + placeholders(len(ids)) + ") ORDER BY id"
	rows, err := s.q.QueryContext(ctx, s.rebind(query), int64Args(ids)...)
	if err != nil {
		return nil, dbError(err, "find "+table)
	}
	defer rows.Close()

	var found []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, dbError(err, "scan "+table)
		}
		found = append(found, id)
	}
	return found, dbError(rows.Err(), "iterate "+table)
}

// deleteIDs removes the given ids from table and returns the affected count.
func (s *sqlStore) deleteIDs(ctx context.Context, table string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := "DELETE FROM " + table + " WHERE id IN (" + placeholders(len(ids)) + ")"
	result, err := s.q.ExecContext(ctx, s.rebind(query), int64Args(ids)...)
	if err != nil {
		return 0, dbError(err, "delete "+table)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, dbError(err, "delete "+table)
	}
	return n, nil
}

// dbError classifies a driver error. sql.ErrNoRows becomes ErrNotFound and
// unique violations become ErrConflict.
func dbError(err error, op string) error {
	if err == nil {
		return nil
	}
	if ierr.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithHintf("%s: record not found", op).
			Mark(ierr.ErrNotFound)
	}
	if isUniqueViolation(err) {
		return ierr.WithError(err).
			WithHintf("%s: record already exists", op).
			Mark(ierr.ErrConflict)
	}
	if isForeignKeyViolation(err) {
		return ierr.WithError(err).
			WithHintf("%s: referenced record does not exist", op).
			Mark(ierr.ErrIntegrity)
	}
	return ierr.WithError(err).WithMessage(op).Mark(ierr.ErrDatabase)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if ierr.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if ierr.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if ierr.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	var liteErr *sqlite.Error
	if ierr.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
			return true
		}
		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "FOREIGN KEY")
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// requireAffected turns an update that touched no row into ErrNotFound.
func requireAffected(result sql.Result, err error, op string) error {
	if err != nil {
		return dbError(err, op)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return dbError(err, op)
	}
	if n == 0 {
		return dbError(sql.ErrNoRows, op)
	}
	return nil
}
