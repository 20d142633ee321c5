// Package sqlite provides a concrete implementation of the persistence.StorageDriver
// interface for SQLite databases. Each collection is stored as one row holding
// a JSON snapshot of the whole collection.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asaidimu/go-shelf/core/persistence"
	"github.com/asaidimu/go-shelf/core/schema"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
)

// DriverOptions provides configuration for the driver.
type DriverOptions struct {
	// TableName is the table holding the snapshots.
	TableName string

	// DropIfExists drops the snapshot table before creating it. When true, a
	// DROP TABLE IF EXISTS statement is executed before the table is created.
	DropIfExists bool
}

// DefaultDriverOptions returns a set of sensible default options for the
// SQLite driver.
func DefaultDriverOptions() *DriverOptions {
	return &DriverOptions{
		TableName: "collections",
	}
}

// Driver is a concrete implementation of the persistence.StorageDriver
// interface for SQLite.
type Driver struct {
	db      *sql.DB
	owned   bool
	logger  *zap.Logger
	options *DriverOptions
}

// Ensure Driver implements the persistence.StorageDriver interface.
var _ persistence.StorageDriver = (*Driver)(nil)

// Open opens (creating if needed) the SQLite database at path and prepares the
// snapshot table. The returned driver owns the connection and closes it on Close.
func Open(path string, logger *zap.Logger, options *DriverOptions) (*Driver, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY between our own writes.
	db.SetMaxOpenConns(1)

	d, err := NewDriver(db, logger, options)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	d.owned = true
	return d, nil
}

// NewDriver creates a driver over an existing connection. The caller keeps
// ownership of db.
func NewDriver(db *sql.DB, logger *zap.Logger, options *DriverOptions) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultDriverOptions()
	}
	if options.TableName == "" {
		options.TableName = DefaultDriverOptions().TableName
	}

	d := &Driver{
		db:      db,
		logger:  logger,
		options: options,
	}
	if err := d.createTable(context.Background()); err != nil {
		return nil, err
	}
	return d, nil
}

// quoteIdentifier safely quotes an identifier, such as a table name, to
// prevent SQL injection and to handle names that might be keywords.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *Driver) createTable(ctx context.Context) error {
	table := quoteIdentifier(d.options.TableName)

	if d.options.DropIfExists {
		if _, err := d.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", d.options.TableName, err)
		}
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`, table)
	d.logger.Debug("Executing SQL DDL", zap.String("sql", ddl))
	if _, err := d.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %s: %w", d.options.TableName, err)
	}
	return nil
}

// Load returns the stored snapshot of a collection.
func (d *Driver) Load(ctx context.Context, name string) ([]schema.Document, error) {
	sqlQuery := fmt.Sprintf("SELECT payload FROM %s WHERE name = ?", quoteIdentifier(d.options.TableName))
	d.logger.Debug("Executing SQL SELECT", zap.String("sql", sqlQuery), zap.String("collection", name))

	var payload []byte
	err := d.db.QueryRowContext(ctx, sqlQuery, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrNoSnapshot
	}
	if err != nil {
		d.logger.Error("Failed to execute SELECT query", zap.Error(err), zap.String("sql", sqlQuery))
		return nil, fmt.Errorf("failed to read snapshot of %s: %w", name, err)
	}

	docs, err := persistence.DecodeDocuments(payload)
	if err != nil {
		return nil, fmt.Errorf("corrupt snapshot of %s: %w", name, err)
	}
	return docs, nil
}

// Save replaces the stored snapshot of a collection.
func (d *Driver) Save(ctx context.Context, name string, docs []schema.Document) error {
	payload, err := persistence.EncodeDocuments(docs)
	if err != nil {
		return err
	}

	sqlQuery := fmt.Sprintf(`INSERT INTO %s (name, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		quoteIdentifier(d.options.TableName))
	d.logger.Debug("Executing SQL UPSERT", zap.String("collection", name), zap.Int("count", len(docs)))

	if _, err := d.db.ExecContext(ctx, sqlQuery, name, payload, time.Now().UnixMilli()); err != nil {
		d.logger.Error("Failed to execute UPSERT query", zap.Error(err), zap.String("sql", sqlQuery))
		return fmt.Errorf("failed to write snapshot of %s: %w", name, err)
	}
	return nil
}

// Close closes the database connection when the driver opened it.
func (d *Driver) Close() error {
	if !d.owned {
		return nil
	}
	return d.db.Close()
}
