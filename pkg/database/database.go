package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"

	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver       string        `split_words:"true" default:"postgres"`
	DSN          string        `envconfig:"DSN" required:"true"`
	AutoMigrate  bool          `split_words:"true" default:"true"`
	MaxOpenConns int           `split_words:"true" default:"10"`
	DialTimeout  time.Duration `split_words:"true" default:"5s"`
	LogQueries   bool          `split_words:"true" default:"false"`
}

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("%w: unsupported database driver %q", contractx.ErrValidation, c.Driver)
	}
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("%w: database dsn is required", contractx.ErrValidation)
	}
	return nil
}

// Open connects to the configured database and, if enabled, creates the schema.
func Open(ctx context.Context, cfg Config) (*bun.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var db *bun.DB
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverPostgres:
		connector := pgdriver.NewConnector(
			pgdriver.WithDSN(cfg.DSN),
			pgdriver.WithDialTimeout(cfg.DialTimeout),
		)
		sqldb := sql.OpenDB(connector)
		if cfg.MaxOpenConns > 0 {
			sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	case DriverSQLite:
		sqldb, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// a single connection keeps in-memory databases alive and serializes writers
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if cfg.LogQueries {
		db.AddQueryHook(QueryLogger{})
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return db, nil
}

// Migrate creates the todos and users_profile tables and their indexes if missing.
func Migrate(ctx context.Context, db *bun.DB) error {
	if db == nil {
		return errors.New("nil database")
	}

	models := []any{
		(*contractx.Todo)(nil),
		(*contractx.Owner)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	if _, err := db.NewCreateIndex().
		Model((*contractx.Todo)(nil)).
		Index("todos_user_id_created_at_idx").
		Column("user_id", "created_at").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create todos index: %w", err)
	}

	return nil
}

// QueryLogger logs every executed statement at debug level.
type QueryLogger struct{}

var _ bun.QueryHook = QueryLogger{}

func (QueryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (QueryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	evt := log.Debug()
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		evt = log.Warn().Err(event.Err)
	}
	evt.
		Str("operation", event.Operation()).
		Dur("elapsed", time.Since(event.StartTime)).
		Str("query", event.Query).
		Msg("sql query")
}
