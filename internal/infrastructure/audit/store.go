// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audit persists a record of every verifyRemoteResource run to Postgres, so an
// operator can see a verdict's history without re-running the chain against the
// network.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Config is the audit store's database connection configuration.
type Config struct {
	DSN string
}

// InitDB opens and pings the audit Postgres connection.
func InitDB(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	return db, nil
}
