package repository

import (
	"context"

	"github.com/osse101/adlink/internal/domain"
)

// Integrations defines data access for stored ad platform integrations.
// Lookups of a missing record return domain.ErrIntegrationNotFound.
type Integrations interface {
	FindByProvider(ctx context.Context, tenantID string, provider domain.Provider) (*domain.Integration, error)
	Finalize(ctx context.Context, req FinalizeRequest) (*domain.Integration, error)
	SaveManual(ctx context.Context, req ManualSetupRequest) (*domain.Integration, error)
	Delete(ctx context.Context, id string) error
}

// FinalizeRequest persists the target account selected after an OAuth exchange
type FinalizeRequest struct {
	TenantID      string               `json:"tenant_id"`
	Provider      domain.Provider      `json:"provider"`
	TargetID      string               `json:"target_id"`
	TargetLabel   string               `json:"target_label"`
	DefaultConfig domain.DefaultConfig `json:"default_config"`
}

// ManualSetupRequest persists a webhook-based integration
type ManualSetupRequest struct {
	TenantID      string               `json:"tenant_id"`
	Provider      domain.Provider      `json:"provider"`
	WebhookKey    string               `json:"webhook_key"`
	DefaultConfig domain.DefaultConfig `json:"default_config"`
}
