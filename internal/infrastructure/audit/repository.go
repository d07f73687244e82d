// SPDX-License-Identifier: AGPL-3.0-or-later
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trellisfw/masklink/internal/domain/models"
)

// VerificationRecord is one completed verifyRemoteResource run, persisted for audit
// and alerting purposes.
type VerificationRecord struct {
	ID        uuid.UUID
	URL       string
	Trusted   bool
	Valid     bool
	Unchanged bool
	Match     bool
	Details   []string
	CheckedAt time.Time
}

// Repository handles PostgreSQL persistence for verification audit records.
type Repository struct {
	db *sql.DB
}

// NewRepository initializes an audit repository with the given database connection.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RecordVerification inserts a completed verifyRemoteResource verdict.
func (r *Repository) RecordVerification(ctx context.Context, rec VerificationRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CheckedAt.IsZero() {
		rec.CheckedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO verification_audit (id, url, trusted, valid, unchanged, match, details, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.URL, rec.Trusted, rec.Valid, rec.Unchanged, rec.Match, strings.Join(rec.Details, "; "), rec.CheckedAt)
	if err != nil {
		return fmt.Errorf("%w: %s", models.ErrDatabaseConnection, err.Error())
	}

	return nil
}

// ListRecentForURL returns the most recent audit records for a given resource URL,
// newest first, bounded by limit.
func (r *Repository) ListRecentForURL(ctx context.Context, url string, limit int) ([]VerificationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, url, trusted, valid, unchanged, match, details, checked_at
		FROM verification_audit
		WHERE url = $1
		ORDER BY checked_at DESC
		LIMIT $2
	`, url, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrDatabaseConnection, err.Error())
	}
	defer rows.Close()

	var records []VerificationRecord
	for rows.Next() {
		var rec VerificationRecord
		var details string
		if err := rows.Scan(&rec.ID, &rec.URL, &rec.Trusted, &rec.Valid, &rec.Unchanged, &rec.Match, &details, &rec.CheckedAt); err != nil {
			return nil, fmt.Errorf("%w: %s", models.ErrDatabaseConnection, err.Error())
		}
		if details != "" {
			rec.Details = strings.Split(details, "; ")
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// LastVerdictChanged reports whether the previous recorded verdict for url differs
// from (trusted, valid, unchanged, match) — used to decide whether an operator alert
// is warranted for a verdict regression.
func (r *Repository) LastVerdictChanged(ctx context.Context, url string, trusted, valid, unchanged, match bool) (bool, error) {
	records, err := r.ListRecentForURL(ctx, url, 1)
	if err != nil {
		return false, err
	}
	if len(records) == 0 {
		return false, nil
	}

	prev := records[0]
	return prev.Trusted != trusted || prev.Valid != valid || prev.Unchanged != unchanged || prev.Match != match, nil
}
