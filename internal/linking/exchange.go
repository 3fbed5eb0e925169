package linking

import (
	"context"
	"log/slog"
	"time"

	"github.com/osse101/adlink/internal/clock"
	"github.com/osse101/adlink/internal/domain"
	"github.com/osse101/adlink/internal/metrics"
)

// ExchangeRequest is sent to the backend to trade a code for account choices
type ExchangeRequest struct {
	Code          string               `json:"code"`
	RedirectURI   string               `json:"redirect_uri"`
	TenantID      string               `json:"tenant_id"`
	Provider      domain.Provider      `json:"provider"`
	DefaultConfig domain.DefaultConfig `json:"default_config"`
}

// Backend is the hosted service that owns provider credentials
type Backend interface {
	// Exchange trades an authorization code for the accounts the user may link
	Exchange(ctx context.Context, req ExchangeRequest) ([]domain.ExternalAccountChoice, error)
	// ListAccounts lists linkable accounts from a login that already completed
	ListAccounts(ctx context.Context, tenantID string, provider domain.Provider) ([]domain.ExternalAccountChoice, error)
}

// Invoker calls the backend on behalf of a session
type Invoker struct {
	backend Backend
	clock   clock.Clock
}

// NewInvoker creates an invoker
func NewInvoker(backend Backend, c clock.Clock) *Invoker {
	return &Invoker{backend: backend, clock: c}
}

// Exchange trades code for account choices. Upstream errors are surfaced
// verbatim; an empty result is a failure with the provider's explanation.
func (i *Invoker) Exchange(ctx context.Context, log *slog.Logger, provider *ProviderConfig, tenantID string, cfg domain.DefaultConfig, code string) ([]domain.ExternalAccountChoice, *SessionError) {
	start := i.clock.Now()
	accounts, err := i.backend.Exchange(ctx, ExchangeRequest{
		Code:          code,
		RedirectURI:   provider.RedirectURI,
		TenantID:      tenantID,
		Provider:      provider.Name,
		DefaultConfig: cfg,
	})
	i.observe(provider, start, err)

	if err != nil {
		log.Warn(LogMsgExchangeFailed, "error", err)
		return nil, newSessionError(ErrorKindExchangeFailure, err.Error(), err)
	}
	if len(accounts) == 0 {
		log.Warn(LogMsgExchangeFailed, "error", "no linkable accounts")
		return nil, newSessionError(ErrorKindExchangeFailure, provider.NoAccountsExplanation(), nil)
	}

	log.Info(LogMsgExchangeSucceeded, "accounts", len(accounts))
	return accounts, nil
}

// Probe lists accounts from a login that may have completed without a delivery
func (i *Invoker) Probe(ctx context.Context, provider *ProviderConfig, tenantID string) ([]domain.ExternalAccountChoice, error) {
	start := i.clock.Now()
	accounts, err := i.backend.ListAccounts(ctx, tenantID, provider.Name)
	i.observe(provider, start, err)
	return accounts, err
}

func (i *Invoker) observe(provider *ProviderConfig, start time.Time, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultFailure
	}
	metrics.ExchangeDuration.WithLabelValues(string(provider.Name), result).Observe(i.clock.Now().Sub(start).Seconds())
}
