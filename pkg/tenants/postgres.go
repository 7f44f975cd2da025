// pkg/tenants/postgres.go
package tenants

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgRegistry implements Registry backed by PostgreSQL. The full tenant
// document is stored as jsonb so the auth union round-trips without a column
// per variant field.
type pgRegistry struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresRegistry constructs a PostgreSQL-backed tenant registry.
func NewPostgresRegistry(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Registry {
	return &pgRegistry{dbPool: dbPool, log: log}
}

// EnsureSchema creates required tables if they do not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenants (
  id uuid PRIMARY KEY,
  tenant_id text UNIQUE NOT NULL,
  display_name text,
  config jsonb NOT NULL,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

func (p *pgRegistry) Get(ctx context.Context, tenantID string) (TenantConfig, error) {
	var doc []byte
	err := p.dbPool.QueryRow(ctx,
		`SELECT config FROM tenants WHERE tenant_id=$1`, tenantID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return TenantConfig{}, ErrTenantNotFound
	}
	if err != nil {
		return TenantConfig{}, err
	}
	var t TenantConfig
	if err := json.Unmarshal(doc, &t); err != nil {
		return TenantConfig{}, err
	}
	return t, nil
}

func (p *pgRegistry) List(ctx context.Context) ([]TenantConfig, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT config FROM tenants ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TenantConfig
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var t TenantConfig
		if err := json.Unmarshal(doc, &t); err != nil {
			p.log.Warnw("skipping undecodable tenant row", "err", err)
			continue
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *pgRegistry) Upsert(ctx context.Context, cfg TenantConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = p.dbPool.Exec(ctx, `
INSERT INTO tenants (id, tenant_id, display_name, config)
VALUES ($1, $2, $3, $4)
ON CONFLICT (tenant_id) DO UPDATE
SET display_name=EXCLUDED.display_name, config=EXCLUDED.config, updated_at=NOW()
`, uuid.New(), cfg.TenantID, cfg.DisplayName, doc)
	return err
}

func (p *pgRegistry) Remove(ctx context.Context, tenantID string) error {
	_, err := p.dbPool.Exec(ctx, `DELETE FROM tenants WHERE tenant_id=$1`, tenantID)
	return err
}
