package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/osse101/adlink/internal/clock"
	"github.com/osse101/adlink/internal/domain"
	"github.com/osse101/adlink/internal/repository"
)

type integrationKey struct {
	tenantID string
	provider domain.Provider
}

// IntegrationRepository is an in-process repository.Integrations for
// development and tests. Data does not survive a restart.
type IntegrationRepository struct {
	clock clock.Clock

	mu       sync.RWMutex
	byKey    map[integrationKey]*domain.Integration
	keyForID map[string]integrationKey
}

// NewIntegrationRepository creates an empty repository
func NewIntegrationRepository(c clock.Clock) *IntegrationRepository {
	return &IntegrationRepository{
		clock:    c,
		byKey:    make(map[integrationKey]*domain.Integration),
		keyForID: make(map[string]integrationKey),
	}
}

var _ repository.Integrations = (*IntegrationRepository)(nil)

// FindByProvider returns a copy of the tenant's integration for provider
func (r *IntegrationRepository) FindByProvider(_ context.Context, tenantID string, provider domain.Provider) (*domain.Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byKey[integrationKey{tenantID, provider}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrIntegrationNotFound, tenantID, provider)
	}
	out := *i
	return &out, nil
}

// Finalize stores the selected target account
func (r *IntegrationRepository) Finalize(_ context.Context, req repository.FinalizeRequest) (*domain.Integration, error) {
	return r.upsert(req.TenantID, req.Provider, func(i *domain.Integration) {
		i.PageID = req.TargetID
		i.PageName = req.TargetLabel
		i.DefaultConfig = req.DefaultConfig
		i.Manual = false
		i.WebhookKey = ""
	}), nil
}

// SaveManual stores a webhook-based integration
func (r *IntegrationRepository) SaveManual(_ context.Context, req repository.ManualSetupRequest) (*domain.Integration, error) {
	return r.upsert(req.TenantID, req.Provider, func(i *domain.Integration) {
		i.PageID = ""
		i.PageName = ""
		i.DefaultConfig = req.DefaultConfig
		i.Manual = true
		i.WebhookKey = req.WebhookKey
	}), nil
}

// Delete removes an integration by id
func (r *IntegrationRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.keyForID[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrIntegrationNotFound, id)
	}
	delete(r.keyForID, id)
	delete(r.byKey, key)
	return nil
}

func (r *IntegrationRepository) upsert(tenantID string, provider domain.Provider, apply func(*domain.Integration)) *domain.Integration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	key := integrationKey{tenantID, provider}
	i, ok := r.byKey[key]
	if !ok {
		i = &domain.Integration{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			Provider:  provider,
			CreatedAt: now,
		}
		r.byKey[key] = i
		r.keyForID[i.ID] = key
	}
	apply(i)
	i.UpdatedAt = now

	out := *i
	return &out
}
