package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osse101/adlink/internal/domain"
	"github.com/osse101/adlink/internal/repository"
)

const integrationColumns = `
	integration_id::text, tenant_id, provider, page_id, page_name,
	default_config, manual, webhook_key, created_at, updated_at`

// IntegrationRepository implements repository.Integrations
type IntegrationRepository struct {
	db *pgxpool.Pool
}

// NewIntegrationRepository creates a new integration repository
func NewIntegrationRepository(db *pgxpool.Pool) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

var _ repository.Integrations = (*IntegrationRepository)(nil)

// FindByProvider returns the tenant's integration for provider
func (r *IntegrationRepository) FindByProvider(ctx context.Context, tenantID string, provider domain.Provider) (*domain.Integration, error) {
	query := `SELECT ` + integrationColumns + `
		FROM integrations
		WHERE tenant_id = $1 AND provider = $2
	`
	integration, err := scanIntegration(r.db.QueryRow(ctx, query, tenantID, string(provider)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrIntegrationNotFound, tenantID, provider)
		}
		return nil, dbError(ErrMsgFailedToFindIntegration, err)
	}
	return integration, nil
}

// Finalize stores the selected target account, replacing any earlier setup
func (r *IntegrationRepository) Finalize(ctx context.Context, req repository.FinalizeRequest) (*domain.Integration, error) {
	cfg, err := json.Marshal(req.DefaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal default config: %w", err)
	}

	query := `
		INSERT INTO integrations (tenant_id, provider, page_id, page_name, default_config, manual, webhook_key)
		VALUES ($1, $2, $3, $4, $5, FALSE, '')
		ON CONFLICT (tenant_id, provider) DO UPDATE
		SET page_id = EXCLUDED.page_id,
		    page_name = EXCLUDED.page_name,
		    default_config = EXCLUDED.default_config,
		    manual = FALSE,
		    webhook_key = '',
		    updated_at = NOW()
		RETURNING ` + integrationColumns

	integration, err := scanIntegration(r.db.QueryRow(ctx, query,
		req.TenantID,
		string(req.Provider),
		req.TargetID,
		req.TargetLabel,
		cfg,
	))
	if err != nil {
		return nil, dbError(ErrMsgFailedToUpsertIntegration, err)
	}
	return integration, nil
}

// SaveManual stores a webhook-based integration, replacing any earlier setup
func (r *IntegrationRepository) SaveManual(ctx context.Context, req repository.ManualSetupRequest) (*domain.Integration, error) {
	cfg, err := json.Marshal(req.DefaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal default config: %w", err)
	}

	query := `
		INSERT INTO integrations (tenant_id, provider, page_id, page_name, default_config, manual, webhook_key)
		VALUES ($1, $2, '', '', $3, TRUE, $4)
		ON CONFLICT (tenant_id, provider) DO UPDATE
		SET page_id = '',
		    page_name = '',
		    default_config = EXCLUDED.default_config,
		    manual = TRUE,
		    webhook_key = EXCLUDED.webhook_key,
		    updated_at = NOW()
		RETURNING ` + integrationColumns

	integration, err := scanIntegration(r.db.QueryRow(ctx, query,
		req.TenantID,
		string(req.Provider),
		cfg,
		req.WebhookKey,
	))
	if err != nil {
		return nil, dbError(ErrMsgFailedToUpsertIntegration, err)
	}
	return integration, nil
}

// Delete removes an integration by id
func (r *IntegrationRepository) Delete(ctx context.Context, id string) error {
	integrationID, err := parseIntegrationUUID(id)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM integrations WHERE integration_id = $1`, integrationID)
	if err != nil {
		return dbError(ErrMsgFailedToDeleteIntegration, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrIntegrationNotFound, id)
	}
	return nil
}

func scanIntegration(row pgx.Row) (*domain.Integration, error) {
	var i domain.Integration
	var provider string
	var cfg []byte
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&provider,
		&i.PageID,
		&i.PageName,
		&cfg,
		&i.Manual,
		&i.WebhookKey,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cfg, &i.DefaultConfig); err != nil {
		return nil, fmt.Errorf("failed to decode default config: %w", err)
	}
	i.Provider = domain.Provider(provider)
	return &i, nil
}
