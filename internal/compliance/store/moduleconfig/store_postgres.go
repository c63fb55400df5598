package moduleconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"tokengate/internal/compliance/models"
	id "tokengate/pkg/domain"
)

// PostgresStore persists module configs in PostgreSQL. ORDER BY created_at
// preserves insertion order so priority tie-breaks stay stable across
// backends.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed module config store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, token id.TokenID, moduleType models.ModuleType) (*models.ComplianceModuleConfig, error) {
	query := `
		SELECT token, module_type, enabled, priority, config, version, updated_at
		FROM compliance_modules
		WHERE token = $1 AND module_type = $2
	`
	cfg, err := scanModuleConfig(s.db.QueryRowContext(ctx, query, token.String(), moduleType.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get module config: %w", err)
	}
	return cfg, nil
}

func (s *PostgresStore) Put(ctx context.Context, cfg *models.ComplianceModuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("module config is required")
	}
	query := `
		INSERT INTO compliance_modules (token, module_type, enabled, priority, config, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (token, module_type) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			priority = EXCLUDED.priority,
			config = EXCLUDED.config,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		cfg.Token.String(),
		cfg.Type.String(),
		cfg.Enabled,
		cfg.Priority,
		[]byte(cfg.Config),
		cfg.Version,
		cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put module config: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, token id.TokenID, moduleType models.ModuleType) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM compliance_modules WHERE token = $1 AND module_type = $2`,
		token.String(), moduleType.String(),
	)
	if err != nil {
		return fmt.Errorf("delete module config: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByToken(ctx context.Context, token id.TokenID) ([]*models.ComplianceModuleConfig, error) {
	query := `
		SELECT token, module_type, enabled, priority, config, version, updated_at
		FROM compliance_modules
		WHERE token = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, token.String())
	if err != nil {
		return nil, fmt.Errorf("list module configs: %w", err)
	}
	defer rows.Close()

	var out []*models.ComplianceModuleConfig
	for rows.Next() {
		cfg, err := scanModuleConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan module config: %w", err)
		}
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate module configs: %w", err)
	}
	return out, nil
}

type moduleConfigRow interface {
	Scan(dest ...any) error
}

func scanModuleConfig(row moduleConfigRow) (*models.ComplianceModuleConfig, error) {
	var cfg models.ComplianceModuleConfig
	var token, moduleType string
	var raw []byte
	if err := row.Scan(&token, &moduleType, &cfg.Enabled, &cfg.Priority, &raw, &cfg.Version, &cfg.UpdatedAt); err != nil {
		return nil, err
	}
	cfg.Token = id.TokenID(token)
	cfg.Type = models.ModuleType(moduleType)
	cfg.Config = json.RawMessage(raw)
	return &cfg, nil
}
