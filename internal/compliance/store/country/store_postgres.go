package country

import (
	"context"
	"database/sql"
	"fmt"

	"tokengate/internal/compliance/models"
	id "tokengate/pkg/domain"
)

// PostgresStore persists country and bilateral rules in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed country policy store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetCountry(ctx context.Context, country id.CountryCode) (*models.CountryRestriction, error) {
	query := `
		SELECT country, is_blocked, is_whitelisted, max_transfer_amount, daily_limit, monthly_limit, requires_approval, reason
		FROM country_restrictions
		WHERE country = $1
	`
	rule, err := scanCountry(s.db.QueryRowContext(ctx, query, country.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get country restriction: %w", err)
	}
	return rule, nil
}

func (s *PostgresStore) UpsertCountry(ctx context.Context, rule *models.CountryRestriction) error {
	if rule == nil {
		return fmt.Errorf("country restriction is required")
	}
	query := `
		INSERT INTO country_restrictions (country, is_blocked, is_whitelisted, max_transfer_amount, daily_limit, monthly_limit, requires_approval, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (country) DO UPDATE SET
			is_blocked = EXCLUDED.is_blocked,
			is_whitelisted = EXCLUDED.is_whitelisted,
			max_transfer_amount = EXCLUDED.max_transfer_amount,
			daily_limit = EXCLUDED.daily_limit,
			monthly_limit = EXCLUDED.monthly_limit,
			requires_approval = EXCLUDED.requires_approval,
			reason = EXCLUDED.reason
	`
	_, err := s.db.ExecContext(ctx, query,
		rule.Country.String(),
		rule.IsBlocked,
		rule.IsWhitelisted,
		rule.MaxTransferAmount,
		rule.DailyLimit,
		rule.MonthlyLimit,
		rule.RequiresApproval,
		rule.Reason,
	)
	if err != nil {
		return fmt.Errorf("upsert country restriction: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteCountry(ctx context.Context, country id.CountryCode) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM country_restrictions WHERE country = $1`, country.String())
	if err != nil {
		return fmt.Errorf("delete country restriction: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCountries(ctx context.Context) ([]*models.CountryRestriction, error) {
	query := `
		SELECT country, is_blocked, is_whitelisted, max_transfer_amount, daily_limit, monthly_limit, requires_approval, reason
		FROM country_restrictions
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list country restrictions: %w", err)
	}
	defer rows.Close()

	var out []*models.CountryRestriction
	for rows.Next() {
		rule, err := scanCountry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan country restriction: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate country restrictions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetBilateral(ctx context.Context, source, destination id.CountryCode) (*models.BilateralRestriction, error) {
	query := `
		SELECT source, destination, is_blocked, max_transfer_amount, requires_approval
		FROM bilateral_restrictions
		WHERE source = $1 AND destination = $2
	`
	rule, err := scanBilateral(s.db.QueryRowContext(ctx, query, source.String(), destination.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get bilateral restriction: %w", err)
	}
	return rule, nil
}

func (s *PostgresStore) UpsertBilateral(ctx context.Context, rule *models.BilateralRestriction) error {
	if rule == nil {
		return fmt.Errorf("bilateral restriction is required")
	}
	query := `
		INSERT INTO bilateral_restrictions (source, destination, is_blocked, max_transfer_amount, requires_approval)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source, destination) DO UPDATE SET
			is_blocked = EXCLUDED.is_blocked,
			max_transfer_amount = EXCLUDED.max_transfer_amount,
			requires_approval = EXCLUDED.requires_approval
	`
	_, err := s.db.ExecContext(ctx, query,
		rule.Source.String(),
		rule.Destination.String(),
		rule.IsBlocked,
		rule.MaxTransferAmount,
		rule.RequiresApproval,
	)
	if err != nil {
		return fmt.Errorf("upsert bilateral restriction: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteBilateral(ctx context.Context, source, destination id.CountryCode) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM bilateral_restrictions WHERE source = $1 AND destination = $2`,
		source.String(), destination.String(),
	)
	if err != nil {
		return fmt.Errorf("delete bilateral restriction: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBilateral(ctx context.Context) ([]*models.BilateralRestriction, error) {
	query := `
		SELECT source, destination, is_blocked, max_transfer_amount, requires_approval
		FROM bilateral_restrictions
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list bilateral restrictions: %w", err)
	}
	defer rows.Close()

	var out []*models.BilateralRestriction
	for rows.Next() {
		rule, err := scanBilateral(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bilateral restriction: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bilateral restrictions: %w", err)
	}
	return out, nil
}

type countryRow interface {
	Scan(dest ...any) error
}

func scanCountry(row countryRow) (*models.CountryRestriction, error) {
	var r models.CountryRestriction
	var country string
	var reason sql.NullString
	if err := row.Scan(&country, &r.IsBlocked, &r.IsWhitelisted, &r.MaxTransferAmount, &r.DailyLimit, &r.MonthlyLimit, &r.RequiresApproval, &reason); err != nil {
		return nil, err
	}
	r.Country = id.CountryCode(country)
	if reason.Valid {
		r.Reason = reason.String
	}
	return &r, nil
}

func scanBilateral(row countryRow) (*models.BilateralRestriction, error) {
	var r models.BilateralRestriction
	var source, destination string
	if err := row.Scan(&source, &destination, &r.IsBlocked, &r.MaxTransferAmount, &r.RequiresApproval); err != nil {
		return nil, err
	}
	r.Source = id.CountryCode(source)
	r.Destination = id.CountryCode(destination)
	return &r, nil
}
