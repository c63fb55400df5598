package rulestate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tokengate/internal/compliance/models"
	id "tokengate/pkg/domain"
)

// PostgresStore persists transfer restriction rows in PostgreSQL.
// This store is pure I/O — rolling-window arithmetic belongs in the service.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed rule state store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const restrictionColumns = `
	token, subject, max_transfer_amount, daily_volume_limit, monthly_volume_limit,
	daily_count_limit, monthly_count_limit, transfer_lock_seconds,
	last_transfer_time, daily_volume_used, monthly_volume_used,
	daily_count_used, monthly_count_used, last_daily_reset, last_monthly_reset
`

func (s *PostgresStore) Get(ctx context.Context, token id.TokenID, subject id.Address) (*models.TransferRestrictions, error) {
	query := `SELECT ` + restrictionColumns + ` FROM transfer_restrictions WHERE token = $1 AND subject = $2`
	row, err := scanRestrictions(s.db.QueryRowContext(ctx, query, token.String(), subject.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get transfer restrictions: %w", err)
	}
	return row, nil
}

func (s *PostgresStore) GetDefault(ctx context.Context, token id.TokenID) (*models.TransferRestrictions, error) {
	return s.Get(ctx, token, "")
}

func (s *PostgresStore) Upsert(ctx context.Context, row *models.TransferRestrictions) error {
	if row == nil {
		return fmt.Errorf("restriction row is required")
	}
	query := `
		INSERT INTO transfer_restrictions (` + restrictionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (token, subject) DO UPDATE SET
			max_transfer_amount = EXCLUDED.max_transfer_amount,
			daily_volume_limit = EXCLUDED.daily_volume_limit,
			monthly_volume_limit = EXCLUDED.monthly_volume_limit,
			daily_count_limit = EXCLUDED.daily_count_limit,
			monthly_count_limit = EXCLUDED.monthly_count_limit,
			transfer_lock_seconds = EXCLUDED.transfer_lock_seconds,
			last_transfer_time = EXCLUDED.last_transfer_time,
			daily_volume_used = EXCLUDED.daily_volume_used,
			monthly_volume_used = EXCLUDED.monthly_volume_used,
			daily_count_used = EXCLUDED.daily_count_used,
			monthly_count_used = EXCLUDED.monthly_count_used,
			last_daily_reset = EXCLUDED.last_daily_reset,
			last_monthly_reset = EXCLUDED.last_monthly_reset
	`
	var lastTransfer sql.NullTime
	if !row.LastTransferTime.IsZero() {
		lastTransfer = sql.NullTime{Time: row.LastTransferTime, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		row.Token.String(),
		row.Subject.String(),
		row.MaxTransferAmount,
		row.DailyVolumeLimit,
		row.MonthlyVolumeLimit,
		row.DailyCountLimit,
		row.MonthlyCountLimit,
		int64(row.TransferLockDuration/time.Second),
		lastTransfer,
		row.DailyVolumeUsed,
		row.MonthlyVolumeUsed,
		row.DailyCountUsed,
		row.MonthlyCountUsed,
		row.LastDailyReset,
		row.LastMonthlyReset,
	)
	if err != nil {
		return fmt.Errorf("upsert transfer restrictions: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, token id.TokenID, subject id.Address) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM transfer_restrictions WHERE token = $1 AND subject = $2`,
		token.String(), subject.String(),
	)
	if err != nil {
		return fmt.Errorf("delete transfer restrictions: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, token id.TokenID) ([]*models.TransferRestrictions, error) {
	query := `SELECT ` + restrictionColumns + ` FROM transfer_restrictions WHERE token = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, token.String())
	if err != nil {
		return nil, fmt.Errorf("list transfer restrictions: %w", err)
	}
	defer rows.Close()

	var out []*models.TransferRestrictions
	for rows.Next() {
		row, err := scanRestrictions(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer restrictions: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer restrictions: %w", err)
	}
	return out, nil
}

type restrictionRow interface {
	Scan(dest ...any) error
}

func scanRestrictions(row restrictionRow) (*models.TransferRestrictions, error) {
	var r models.TransferRestrictions
	var token, subject string
	var lockSeconds int64
	var lastTransfer sql.NullTime
	if err := row.Scan(
		&token, &subject,
		&r.MaxTransferAmount, &r.DailyVolumeLimit, &r.MonthlyVolumeLimit,
		&r.DailyCountLimit, &r.MonthlyCountLimit, &lockSeconds,
		&lastTransfer,
		&r.DailyVolumeUsed, &r.MonthlyVolumeUsed,
		&r.DailyCountUsed, &r.MonthlyCountUsed,
		&r.LastDailyReset, &r.LastMonthlyReset,
	); err != nil {
		return nil, err
	}
	r.Token = id.TokenID(token)
	r.Subject = id.Address(subject)
	r.TransferLockDuration = time.Duration(lockSeconds) * time.Second
	if lastTransfer.Valid {
		r.LastTransferTime = lastTransfer.Time
	}
	return &r, nil
}
