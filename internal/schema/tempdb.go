package schema

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/eleven-am/empire/internal/logger"
)

// TempDBManager creates throwaway databases on the configured server. The
// desired schema is loaded into one so atlas can inspect it.
type TempDBManager struct {
	config *DBConfig
}

func NewTempDBManager(config *DBConfig) *TempDBManager {
	return &TempDBManager{config: config}
}

// CreateTempDB creates name and connects to it. cleanup closes the
// connection and drops the database.
func (m *TempDBManager) CreateTempDB(ctx context.Context, name string) (*sqlx.DB, func(), error) {
	_, adminDSN, err := parseDSNForDB(m.config.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	admin, err := m.config.connect(ctx, adminDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to admin database: %w", err)
	}

	if _, err := admin.ExecContext(ctx, "CREATE DATABASE "+quoteIdentifier(name)); err != nil {
		admin.Close()
		return nil, nil, fmt.Errorf("failed to create temp database: %w", err)
	}

	drop := func() {
		if _, err := admin.ExecContext(context.Background(), "DROP DATABASE IF EXISTS "+quoteIdentifier(name)); err != nil {
			logger.Schema().Warn("failed to drop temp database", "database", name, "error", err)
		}
		admin.Close()
	}

	tempURL, err := withDatabase(m.config.URL, name)
	if err != nil {
		drop()
		return nil, nil, err
	}
	temp, err := m.config.connect(ctx, tempURL)
	if err != nil {
		drop()
		return nil, nil, fmt.Errorf("failed to connect to temp database: %w", err)
	}

	cleanup := func() {
		temp.Close()
		drop()
	}
	return temp, cleanup, nil
}
