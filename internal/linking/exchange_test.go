package linking

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/osse101/adlink/internal/domain"
)

func TestInvoker_Exchange(t *testing.T) {
	f := newFixture(t)
	google := f.provider(t, domain.ProviderGoogle)
	invoker := NewInvoker(f.backend, f.clock)

	f.backend.On("Exchange", mock.Anything, ExchangeRequest{
		Code:          "abc",
		RedirectURI:   google.RedirectURI,
		TenantID:      testTenantID,
		Provider:      domain.ProviderGoogle,
		DefaultConfig: testDefaultConfig,
	}).Return(testAccounts, nil).Once()

	accounts, serr := invoker.Exchange(context.Background(), slog.Default(), google, testTenantID, testDefaultConfig, "abc")

	require.Nil(t, serr)
	assert.Equal(t, testAccounts, accounts)
	f.backend.AssertExpectations(t)
}

func TestInvoker_ExchangeErrors(t *testing.T) {
	f := newFixture(t)
	google := f.provider(t, domain.ProviderGoogle)
	invoker := NewInvoker(f.backend, f.clock)

	f.backend.On("Exchange", mock.Anything, withCode("bad")).Return(nil, errUpstream).Once()
	f.backend.On("Exchange", mock.Anything, withCode("empty")).Return(nil, nil).Once()

	_, serr := invoker.Exchange(context.Background(), slog.Default(), google, testTenantID, testDefaultConfig, "bad")
	require.NotNil(t, serr)
	assert.Equal(t, errUpstream.Error(), serr.Message)
	assert.ErrorIs(t, serr, errUpstream)

	_, serr = invoker.Exchange(context.Background(), slog.Default(), google, testTenantID, testDefaultConfig, "empty")
	require.NotNil(t, serr)
	assert.Equal(t, "No Google Ads accounts were found for this login.", serr.Message)
	assert.Equal(t, ErrorKindExchangeFailure, serr.Kind)
}

func TestInvoker_Probe(t *testing.T) {
	f := newFixture(t)
	linkedin := f.provider(t, domain.ProviderLinkedIn)
	invoker := NewInvoker(f.backend, f.clock)
	f.backend.On("ListAccounts", mock.Anything, testTenantID, domain.ProviderLinkedIn).Return(testAccounts, nil).Once()

	accounts, err := invoker.Probe(context.Background(), linkedin, testTenantID)

	require.NoError(t, err)
	assert.Equal(t, testAccounts, accounts)
}

func TestAsSessionError(t *testing.T) {
	assert.Nil(t, AsSessionError(nil))

	original := newSessionError(ErrorKindTimeout, MsgTimeout, nil)
	assert.Same(t, original, AsSessionError(original))

	missing := AsSessionError(domain.ErrMissingContext)
	assert.Equal(t, ErrorKindMissingContext, missing.Kind)
	assert.Equal(t, MsgMissingContext, missing.Message)

	other := AsSessionError(errUpstream)
	assert.Equal(t, ErrorKindExchangeFailure, other.Kind)
	assert.ErrorIs(t, other, domain.ErrExchangeFailure)
	assert.Equal(t, "timeout: "+MsgTimeout, original.Error())
}
