// Package sqlite implements the store.Store interface on a local SQLite
// database, for single-operator installs that run without PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/alfredjeanlab/feeder/internal/model"
	"github.com/alfredjeanlab/feeder/internal/store"
)

// SQLiteStore implements store.Store using a SQLite database file.
type SQLiteStore struct {
	db *sqlx.DB
}

// Compile-time check that SQLiteStore implements store.Store.
var _ store.Store = (*SQLiteStore)(nil)

// New opens (or creates) a SQLite database at dbPath, enables WAL mode,
// and runs any pending schema migrations. Use ":memory:" for a throwaway
// database.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps an
	// in-memory database alive and shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

func (s *SQLiteStore) SetConfig(ctx context.Context, config *model.Config) error {
	return setConfig(ctx, s.db, config)
}

func (s *SQLiteStore) GetConfig(ctx context.Context, key string) (*model.Config, error) {
	return getConfig(ctx, s.db, key)
}

func (s *SQLiteStore) ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error) {
	return listConfigs(ctx, s.db, namespace)
}

func (s *SQLiteStore) ListAllConfigs(ctx context.Context) ([]*model.Config, error) {
	return listAllConfigs(ctx, s.db)
}

func (s *SQLiteStore) DeleteConfig(ctx context.Context, key string) error {
	return deleteConfig(ctx, s.db, key)
}

// RunInTransaction runs fn against a store bound to one transaction and
// commits if fn succeeds.
func (s *SQLiteStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(&txStore{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type txStore struct {
	tx *sqlx.Tx
}

var _ store.Store = (*txStore)(nil)

func (s *txStore) SetConfig(ctx context.Context, config *model.Config) error {
	return setConfig(ctx, s.tx, config)
}

func (s *txStore) GetConfig(ctx context.Context, key string) (*model.Config, error) {
	return getConfig(ctx, s.tx, key)
}

func (s *txStore) ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error) {
	return listConfigs(ctx, s.tx, namespace)
}

func (s *txStore) ListAllConfigs(ctx context.Context) ([]*model.Config, error) {
	return listAllConfigs(ctx, s.tx)
}

func (s *txStore) DeleteConfig(ctx context.Context, key string) error {
	return deleteConfig(ctx, s.tx, key)
}

func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

func (s *txStore) Close() error { return nil }

// configRow mirrors the configs table.
type configRow struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r configRow) toModel() *model.Config {
	return &model.Config{
		Key:       r.Key,
		Value:     []byte(r.Value),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func setConfig(ctx context.Context, db sqlx.ExtContext, c *model.Config) error {
	value := string(c.Value)
	if value == "" {
		value = "null"
	}
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO configs (key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		c.Key, value, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting config %s: %w", c.Key, err)
	}
	var row configRow
	if err := sqlx.GetContext(ctx, db, &row, `SELECT key, value, created_at, updated_at FROM configs WHERE key = ?`, c.Key); err != nil {
		return fmt.Errorf("reading back config %s: %w", c.Key, err)
	}
	c.CreatedAt, c.UpdatedAt = row.CreatedAt, row.UpdatedAt
	return nil
}

func getConfig(ctx context.Context, db sqlx.ExtContext, key string) (*model.Config, error) {
	var row configRow
	err := sqlx.GetContext(ctx, db, &row, `SELECT key, value, created_at, updated_at FROM configs WHERE key = ?`, key)
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

func listConfigs(ctx context.Context, db sqlx.ExtContext, namespace string) ([]*model.Config, error) {
	prefix := namespace + ":"
	var rows []configRow
	err := sqlx.SelectContext(ctx, db, &rows, `
		SELECT key, value, created_at, updated_at FROM configs
		WHERE substr(key, 1, ?) = ?
		ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("listing configs in %s: %w", namespace, err)
	}
	return toModels(rows), nil
}

func listAllConfigs(ctx context.Context, db sqlx.ExtContext) ([]*model.Config, error) {
	var rows []configRow
	if err := sqlx.SelectContext(ctx, db, &rows, `SELECT key, value, created_at, updated_at FROM configs ORDER BY key`); err != nil {
		return nil, fmt.Errorf("listing configs: %w", err)
	}
	return toModels(rows), nil
}

func deleteConfig(ctx context.Context, db sqlx.ExtContext, key string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM configs WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting config %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func toModels(rows []configRow) []*model.Config {
	out := make([]*model.Config, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out
}
