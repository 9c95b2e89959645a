package rca

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/jackc/pgx/stdlib"
)

// OpenClickHouse opens a connection over the native protocol.
func OpenClickHouse(db DBConfig) *sql.DB {
	return clickhouse.OpenDB(
		&clickhouse.Options{
			Addr: []string{fmt.Sprintf("%s:%d", db.Host, db.Port)},
			Auth: clickhouse.Auth{
				Database: db.Name,
				Username: db.User,
				Password: db.Password,
			},
			DialTimeout: 300 * time.Second,
			Compression: &clickhouse.Compression{
				Method: clickhouse.CompressionLZ4,
				Level:  0,
			},
		})
}

func OpenPostgres(db DBConfig) (*sql.DB, error) {
	connectionStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s", url.QueryEscape(db.User), url.QueryEscape(db.Password), db.Host, db.Port, db.Name)
	if db.SSLMode != "" {
		connectionStr += "?sslmode=" + db.SSLMode
	}

	return sql.Open("pgx", connectionStr)
}

// Connect opens and pings the database named by cfg and returns a Dialect for it.
func Connect(cfg *Config, log *slog.Logger) (*Dialect, error) {
	var (
		db *sql.DB
		e  error
	)

	switch cfg.DB.Dialect {
	case ch:
		db = OpenClickHouse(cfg.DB)
	case pg:
		if db, e = OpenPostgres(cfg.DB); e != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", e)
		}
	default:
		return nil, fmt.Errorf("unsupported dialect %q", cfg.DB.Dialect)
	}

	if e = db.Ping(); e != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach %s at %s: %w", cfg.DB.Dialect, cfg.DB.Host, e)
	}

	if log == nil {
		log = slog.Default()
	}

	return NewDialect(cfg.DB.Dialect, db, QueryTimeout(cfg.QueryTimeout), Retries(*cfg.Retries), DialectLogger(log))
}
