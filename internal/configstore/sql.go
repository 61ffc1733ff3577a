package configstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spherical/image-analyzer/internal/domain"
	"github.com/spherical/image-analyzer/internal/observability"
)

// Dialect selects SQL syntax for a database engine.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// driverName maps a dialect to its database/sql driver.
func (d Dialect) driverName() string {
	switch d {
	case DialectSQLite:
		return "sqlite3"
	case DialectPostgres:
		return "postgres"
	default:
		return "mysql"
	}
}

func (d Dialect) schema() string {
	switch d {
	case DialectMySQL:
		return `CREATE TABLE IF NOT EXISTS app_configurations (
			path VARCHAR(512) NOT NULL PRIMARY KEY,
			document MEDIUMTEXT NOT NULL,
			updated_at BIGINT NOT NULL
		)`
	default:
		return `CREATE TABLE IF NOT EXISTS app_configurations (
			path VARCHAR(512) NOT NULL PRIMARY KEY,
			document TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		)`
	}
}

func (d Dialect) upsertQuery() string {
	switch d {
	case DialectPostgres:
		return `
		INSERT INTO app_configurations (path, document, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (path) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at
	`
	case DialectMySQL:
		return `
		INSERT INTO app_configurations (path, document, updated_at)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE document = VALUES(document), updated_at = VALUES(updated_at)
	`
	default:
		return `
		INSERT INTO app_configurations (path, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (path) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at
	`
	}
}

func (d Dialect) selectQuery() string {
	if d == DialectPostgres {
		return `SELECT document, updated_at FROM app_configurations WHERE path = $1`
	}
	return `SELECT document, updated_at FROM app_configurations WHERE path = ?`
}

// SQLStore keeps documents in the app_configurations table and polls it
// for changes.
type SQLStore struct {
	db           *sql.DB
	dialect      Dialect
	pollInterval time.Duration
	logger       *observability.Logger
	now          func() time.Time
}

// NewSQLStore wraps an open database. Call Migrate before first use.
func NewSQLStore(db *sql.DB, dialect Dialect, pollInterval time.Duration, logger *observability.Logger) *SQLStore {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &SQLStore{
		db:           db,
		dialect:      dialect,
		pollInterval: pollInterval,
		logger:       logger,
		now:          time.Now,
	}
}

// OpenSQLStore opens dsn with the dialect's driver and creates the table.
func OpenSQLStore(ctx context.Context, dialect Dialect, dsn string, maxOpenConns int, pollInterval time.Duration, logger *observability.Logger) (*SQLStore, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, domain.StoreError(fmt.Sprintf("open %s database", dialect), err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, domain.StoreError(fmt.Sprintf("%s ping failed", dialect), err)
	}

	store := NewSQLStore(db, dialect, pollInterval, logger)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Migrate creates the configuration table if needed.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema()); err != nil {
		return domain.StoreError("create app_configurations table", err)
	}
	return nil
}

func (s *SQLStore) Save(ctx context.Context, path string, cfg domain.AppConfiguration) error {
	data, err := encodeDocument(cfg)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsertQuery(), path, string(data), s.now().UnixNano()); err != nil {
		return domain.StoreError("save configuration", err)
	}
	s.logger.Debug().Str("path", path).Msg("Configuration saved")
	return nil
}

func (s *SQLStore) Load(ctx context.Context, path string) (domain.AppConfiguration, bool, error) {
	data, _, exists, err := s.fetch(ctx, path)
	if err != nil || !exists {
		return domain.AppConfiguration{}, false, err
	}
	cfg, err := decodeDocument(data)
	if err != nil {
		return domain.AppConfiguration{}, false, err
	}
	return cfg, true, nil
}

func (s *SQLStore) Subscribe(ctx context.Context, path string) (<-chan Snapshot, func(), error) {
	return pollSubscribe(ctx, s.pollInterval, func(ctx context.Context) ([]byte, string, bool, error) {
		return s.fetch(ctx, path)
	}, s.logger)
}

func (s *SQLStore) fetch(ctx context.Context, path string) ([]byte, string, bool, error) {
	var (
		document  string
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, s.dialect.selectQuery(), path).Scan(&document, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, domain.StoreError("load configuration", err)
	}
	return []byte(document), strconv.FormatInt(updatedAt, 10), true, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
