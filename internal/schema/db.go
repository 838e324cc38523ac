package schema

import (
	"context"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Supported database/sql driver names.
const (
	DriverPQ  = "postgres"
	DriverPGX = "pgx"
)

type DBConfig struct {
	URL              string
	Driver           string
	ConnMaxLifetime  time.Duration
	MaxOpenConns     int
	MaxIdleConns     int
	StatementTimeout time.Duration
}

func NewDBConfig(url string) *DBConfig {
	return &DBConfig{
		URL:              url,
		Driver:           DriverPQ,
		ConnMaxLifetime:  10 * time.Minute,
		MaxOpenConns:     10,
		MaxIdleConns:     5,
		StatementTimeout: 30 * time.Second,
	}
}

func (cfg *DBConfig) driver() (string, error) {
	switch cfg.Driver {
	case "", DriverPQ:
		return DriverPQ, nil
	case DriverPGX:
		return DriverPGX, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Connect opens a pool and pings it.
func (cfg *DBConfig) Connect(ctx context.Context) (*sqlx.DB, error) {
	return cfg.connect(ctx, cfg.URL)
}

func (cfg *DBConfig) connect(ctx context.Context, url string) (*sqlx.DB, error) {
	driver, err := cfg.driver()
	if err != nil {
		return nil, err
	}

	dsn, err := cfg.dsn(url)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// dsn carries the statement timeout as a startup parameter so every pooled
// connection opens with it, including ones created after a recycle.
func (cfg *DBConfig) dsn(url string) (string, error) {
	if cfg.StatementTimeout <= 0 {
		return url, nil
	}
	return withRuntimeParam(url, "statement_timeout", strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10))
}
