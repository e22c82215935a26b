package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/suar-net/suar-playground/internal/config"
)

const requestHistorySchema = `
CREATE TABLE IF NOT EXISTS request_history (
	id                   UUID PRIMARY KEY,
	executed_at          TIMESTAMPTZ NOT NULL,
	endpoint_id          TEXT,
	request_method       VARCHAR(10) NOT NULL,
	request_url          TEXT NOT NULL,
	request_headers      JSONB NOT NULL DEFAULT '{}',
	request_body         TEXT,
	response_status_code INTEGER NOT NULL,
	response_headers     JSONB NOT NULL DEFAULT '{}',
	response_body        TEXT,
	duration_ms          BIGINT NOT NULL,
	client_ip            TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_request_history_executed_at ON request_history (executed_at DESC);`

func ConnectDB(cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %v", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify database connection: %v", err)
	}

	return db, nil
}

// Migrate creates the archive table when it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, requestHistorySchema); err != nil {
		return fmt.Errorf("failed to migrate request_history: %w", err)
	}
	return nil
}
