package schema

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/eleven-am/empire/internal/logger"
)

// EnsureDatabaseExists creates the target database when it is missing.
func (cfg *DBConfig) EnsureDatabaseExists(ctx context.Context) error {
	dbName, adminDSN, err := parseDSNForDB(cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to parse DSN: %w", err)
	}

	db, err := cfg.connect(ctx, adminDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to admin database: %w", err)
	}
	defer db.Close()

	return createDatabase(ctx, db, dbName)
}

func createDatabase(ctx context.Context, db *sqlx.DB, dbName string) error {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`
	if err := db.GetContext(ctx, &exists, query, dbName); err != nil {
		return fmt.Errorf("failed to check database existence: %w", err)
	}
	if exists {
		return nil
	}

	logger.Schema().Info("creating database", "database", dbName)
	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+quoteIdentifier(dbName)); err != nil {
		return fmt.Errorf("failed to create database '%s': %w", dbName, err)
	}
	return nil
}

// parseDSNForDB extracts the database name and returns a DSN pointing at the
// postgres maintenance database on the same server.
func parseDSNForDB(dsn string) (dbName string, adminDSN string, err error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("invalid database URL: %w", err)
		}
		dbName = strings.TrimPrefix(u.Path, "/")
		if dbName == "" {
			return "", "", fmt.Errorf("no database name found in URL")
		}
		u.Path = "/postgres"
		return dbName, u.String(), nil
	}

	params := strings.Fields(dsn)
	adminParts := make([]string, 0, len(params))
	for _, kv := range params {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 && parts[0] == "dbname" {
			dbName = parts[1]
			adminParts = append(adminParts, "dbname=postgres")
			continue
		}
		adminParts = append(adminParts, kv)
	}
	if dbName == "" {
		return "", "", fmt.Errorf("no database name found in DSN")
	}
	return dbName, strings.Join(adminParts, " "), nil
}

// withDatabase returns dsn pointed at another database.
func withDatabase(dsn, dbName string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid database URL: %w", err)
		}
		u.Path = "/" + dbName
		return u.String(), nil
	}

	params := strings.Fields(dsn)
	replaced := false
	for i, kv := range params {
		if strings.HasPrefix(kv, "dbname=") {
			params[i] = "dbname=" + dbName
			replaced = true
		}
	}
	if !replaced {
		params = append(params, "dbname="+dbName)
	}
	return strings.Join(params, " "), nil
}

// withRuntimeParam sets a server parameter that lib/pq and pgx both send at
// connection startup.
func withRuntimeParam(dsn, key, value string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid database URL: %w", err)
		}
		q := u.Query()
		q.Set(key, value)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	params := strings.Fields(dsn)
	replaced := false
	for i, kv := range params {
		if strings.HasPrefix(kv, key+"=") {
			params[i] = key + "=" + value
			replaced = true
		}
	}
	if !replaced {
		params = append(params, key+"="+value)
	}
	return strings.Join(params, " "), nil
}

// quoteIdentifier quotes a PostgreSQL identifier to prevent SQL injection
func quoteIdentifier(name string) string {
	return fmt.Sprintf(`"%s"`, strings.ReplaceAll(name, `"`, `""`))
}

// GetDatabaseURL builds a database URL from components
func GetDatabaseURL(host, port, user, password, dbname, sslmode string) string {
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, url.QueryEscape(password), host, port, dbname, sslmode)
}
