package linking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/osse101/adlink/internal/domain"
	"github.com/osse101/adlink/internal/event"
	"github.com/osse101/adlink/internal/repository"
)

func newTestService(t *testing.T) (Service, *fixture) {
	t.Helper()
	f := newFixture(t)
	svc := NewService(ServiceConfig{Timing: f.deps.Timing}, ServiceDeps{
		Registry: f.registry,
		Repo:     f.repo,
		Launcher: f.deps.Launcher,
		Invoker:  f.deps.Invoker,
		Store:    f.store,
		Bus:      f.bus,
		Origins:  f.deps.Origins,
		Clock:    f.clock,
		Dispatch: f.deps.Dispatch,
	})
	return svc, f
}

func openDialog(t *testing.T, svc Service, f *fixture, provider domain.Provider, existing *domain.Integration) *DialogView {
	t.Helper()
	if existing != nil {
		f.repo.On("FindByProvider", mock.Anything, testTenantID, provider).Return(existing, nil)
	} else {
		f.repo.On("FindByProvider", mock.Anything, testTenantID, provider).Return(nil, domain.ErrIntegrationNotFound)
	}
	view, err := svc.OpenDialog(context.Background(), testTenantID, provider)
	require.NoError(t, err)
	return view
}

func connect(t *testing.T, svc Service, dialogID string) *ConnectResult {
	t.Helper()
	res, err := svc.Connect(context.Background(), dialogID, ConnectRequest{
		DefaultConfig: testDefaultConfig,
		Screen:        Screen{Width: 1920, Height: 1080},
	})
	require.NoError(t, err)
	return res
}

type updateRecorder struct {
	mu    sync.Mutex
	views []DialogView
}

func recordUpdates(bus event.Bus) *updateRecorder {
	r := &updateRecorder{}
	bus.Subscribe(event.DialogUpdated, func(_ context.Context, evt event.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.views = append(r.views, evt.Payload.(DialogView))
		return nil
	})
	return r
}

func (r *updateRecorder) last() DialogView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[len(r.views)-1]
}

func (r *updateRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Scenario 5: reopening a linked dialog lands in manage without building a URL
func TestService_ReopenLinkedGoesToManage(t *testing.T) {
	svc, f := newTestService(t)
	linked := &domain.Integration{ID: "i-1", TenantID: testTenantID, Provider: domain.ProviderMeta, PageName: "Acme Bikes"}

	view := openDialog(t, svc, f, domain.ProviderMeta, linked)

	assert.Equal(t, StepManage, view.Step)
	assert.Equal(t, linked, view.Integration)
	assert.Nil(t, view.Session)
	assert.Equal(t, 0, f.opener.opened())

	_, err := svc.Connect(context.Background(), view.ID, ConnectRequest{DefaultConfig: testDefaultConfig})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, 0, f.opener.opened())
}

func TestService_FullOAuthFlow(t *testing.T) {
	svc, f := newTestService(t)
	updates := recordUpdates(f.bus)
	ctx := context.Background()
	meta := f.provider(t, domain.ProviderMeta)

	view := openDialog(t, svc, f, domain.ProviderMeta, nil)
	assert.Equal(t, StepConnect, view.Step)
	assert.Equal(t, "Meta", view.DisplayName)

	res := connect(t, svc, view.ID)
	assert.True(t, strings.HasPrefix(res.URL, "https://www.facebook.com/v19.0/dialog/oauth?"))
	assert.Equal(t, res.Features.String(), res.Window)
	require.NotNil(t, res.View.Session)
	assert.Equal(t, StatusAwaitingProvider, res.View.Session.Status)

	f.backend.On("Exchange", mock.Anything, withCode("abc")).Return(testAccounts, nil).Once()
	require.NoError(t, svc.DeliverMessage(ctx, view.ID, testRelayOrigin, codeMessage(meta, "abc")))

	current, err := svc.GetDialog(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, StepSelectTarget, current.Step)
	assert.Equal(t, testAccounts, current.Accounts)
	assert.Equal(t, StepSelectTarget, updates.last().Step, "offer is pushed to subscribers")

	integration := &domain.Integration{ID: "i-1", TenantID: testTenantID, Provider: domain.ProviderMeta, PageID: "page-2", PageName: "Acme Outlet"}
	f.repo.On("Finalize", mock.Anything, repository.FinalizeRequest{
		TenantID:      testTenantID,
		Provider:      domain.ProviderMeta,
		TargetID:      "page-2",
		TargetLabel:   "Acme Outlet",
		DefaultConfig: testDefaultConfig,
	}).Return(integration, nil).Once()

	done, err := svc.SelectTarget(ctx, view.ID, "page-2")
	require.NoError(t, err)
	assert.Equal(t, StepSuccess, done.Step)
	assert.Equal(t, integration, done.Integration)
	require.NotNil(t, done.Session)
	assert.Equal(t, StatusLinked, done.Session.Status)
	assert.Equal(t, 0, f.clock.Pending())
	f.repo.AssertExpectations(t)
}

func TestService_SelectTargetFailureKeepsSelection(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	meta := f.provider(t, domain.ProviderMeta)
	view := openDialog(t, svc, f, domain.ProviderMeta, nil)
	connect(t, svc, view.ID)
	f.backend.On("Exchange", mock.Anything, withCode("abc")).Return(testAccounts, nil).Once()
	require.NoError(t, svc.DeliverMessage(ctx, view.ID, testRelayOrigin, codeMessage(meta, "abc")))

	f.repo.On("Finalize", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()

	current, err := svc.SelectTarget(ctx, view.ID, "page-1")
	require.NoError(t, err)
	assert.Equal(t, StepSelectTarget, current.Step)
	require.NotNil(t, current.Error)
	assert.Equal(t, MsgFinalizeFailed, current.Error.Message)
	assert.True(t, current.Error.Retryable)
	assert.Equal(t, testAccounts, current.Accounts)

	_, err = svc.SelectTarget(ctx, view.ID, "page-404")
	assert.ErrorIs(t, err, domain.ErrTargetNotOffered)
}

func TestService_ConcurrentSelectWritesOnce(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	meta := f.provider(t, domain.ProviderMeta)
	view := openDialog(t, svc, f, domain.ProviderMeta, nil)
	connect(t, svc, view.ID)
	f.backend.On("Exchange", mock.Anything, withCode("abc")).Return(testAccounts, nil).Once()
	require.NoError(t, svc.DeliverMessage(ctx, view.ID, testRelayOrigin, codeMessage(meta, "abc")))

	saving := make(chan struct{})
	release := make(chan struct{})
	integration := &domain.Integration{ID: "i-1", TenantID: testTenantID, Provider: domain.ProviderMeta, PageID: "page-1", PageName: "Acme Bikes"}
	f.repo.On("Finalize", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(saving)
		<-release
	}).Return(integration, nil).Once()

	var first *DialogView
	var firstErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		first, firstErr = svc.SelectTarget(ctx, view.ID, "page-1")
	}()
	<-saving

	_, err := svc.SelectTarget(ctx, view.ID, "page-2")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	close(release)
	<-done
	require.NoError(t, firstErr)
	assert.Equal(t, StepSuccess, first.Step)
	f.repo.AssertNumberOfCalls(t, "Finalize", 1)

	_, err = svc.SelectTarget(ctx, view.ID, "page-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "a linked dialog offers no targets")
}

func TestService_ConnectDisposesPreviousSession(t *testing.T) {
	svc, f := newTestService(t)
	view := openDialog(t, svc, f, domain.ProviderMeta, nil)

	first := connect(t, svc, view.ID)
	second := connect(t, svc, view.ID)

	require.NotNil(t, first.View.Session)
	require.NotNil(t, second.View.Session)
	assert.NotEqual(t, first.View.Session.ID, second.View.Session.ID)
	assert.Equal(t, 2, f.opener.opened())
	assert.Equal(t, 1, f.bus.SubscriberCount(event.OAuthCallback), "only the live session listens")

	// a message for the disposed session goes nowhere
	meta := f.provider(t, domain.ProviderMeta)
	require.NoError(t, f.bus.Publish(context.Background(),
		event.NewCallbackEvent(first.View.Session.ID, testRelayOrigin, codeMessage(meta, "old"))))
	f.backend.AssertNotCalled(t, "Exchange", mock.Anything, mock.Anything)
}

func TestService_TimeoutReturnsToConnectWithRetry(t *testing.T) {
	svc, f := newTestService(t)
	updates := recordUpdates(f.bus)
	view := openDialog(t, svc, f, domain.ProviderLinkedIn, nil)
	connect(t, svc, view.ID)

	f.clock.Advance(DefaultTimeout)

	current, err := svc.GetDialog(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, StepConnect, current.Step)
	require.NotNil(t, current.Error)
	assert.Equal(t, ErrorKindTimeout, current.Error.Kind)
	assert.True(t, current.Error.Retryable)
	assert.Equal(t, StatusTimedOut, current.Session.Status)
	assert.Equal(t, ErrorKindTimeout, updates.last().Error.Kind)

	// retry clears the error and launches again
	res := connect(t, svc, view.ID)
	assert.Nil(t, res.View.Error)
	assert.Equal(t, 2, f.opener.opened())
}

func TestService_MissingContext(t *testing.T) {
	svc, f := newTestService(t)

	view, err := svc.OpenDialog(context.Background(), "", domain.ProviderMeta)
	require.NoError(t, err)
	assert.Equal(t, StepConnect, view.Step)

	_, err = svc.Connect(context.Background(), view.ID, ConnectRequest{DefaultConfig: testDefaultConfig})
	assert.ErrorIs(t, err, domain.ErrMissingContext)
	assert.Equal(t, 0, f.opener.opened())

	current, err := svc.GetDialog(context.Background(), view.ID)
	require.NoError(t, err)
	require.NotNil(t, current.Error)
	assert.Equal(t, ErrorKindMissingContext, current.Error.Kind)
	assert.Equal(t, MsgMissingContext, current.Error.Message)
	f.repo.AssertNotCalled(t, "FindByProvider", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_UntrustedMessageIgnored(t *testing.T) {
	svc, f := newTestService(t)
	meta := f.provider(t, domain.ProviderMeta)
	view := openDialog(t, svc, f, domain.ProviderMeta, nil)
	connect(t, svc, view.ID)

	require.NoError(t, svc.DeliverMessage(context.Background(), view.ID, testEvilOrigin, codeMessage(meta, "abc")))

	current, err := svc.GetDialog(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, StepConnect, current.Step)
	assert.Nil(t, current.Error)
	assert.Equal(t, StatusAwaitingProvider, current.Session.Status)
}

func TestService_DeliverWithoutSessionIsNoop(t *testing.T) {
	svc, f := newTestService(t)
	meta := f.provider(t, domain.ProviderMeta)
	view := openDialog(t, svc, f, domain.ProviderMeta, nil)

	assert.NoError(t, svc.DeliverMessage(context.Background(), view.ID, testRelayOrigin, codeMessage(meta, "abc")))
	assert.NoError(t, svc.ReportPopupClosed(context.Background(), view.ID))
}

func TestService_PopupClosedProbe(t *testing.T) {
	svc, f := newTestService(t)
	view := openDialog(t, svc, f, domain.ProviderMeta, nil)
	connect(t, svc, view.ID)
	f.backend.On("ListAccounts", mock.Anything, testTenantID, domain.ProviderMeta).Return(testAccounts, nil).Once()

	require.NoError(t, svc.ReportPopupClosed(context.Background(), view.ID))
	f.clock.Advance(DefaultPopupPollInterval + DefaultPopupClosedGrace)

	current, err := svc.GetDialog(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, StepSelectTarget, current.Step)
	assert.Equal(t, testAccounts, current.Accounts)
}

func TestService_ManualFallback(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	view := openDialog(t, svc, f, domain.ProviderGoogle, nil)
	connect(t, svc, view.ID)

	manual, err := svc.EnterManual(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, StepManualFallback, manual.Step)
	require.NotNil(t, manual.Manual)
	key := manual.Manual.WebhookKey
	assert.NotEmpty(t, key)
	assert.Equal(t, testRelayOrigin+"/webhooks/google/"+testTenantID+"?key="+key, manual.Manual.WebhookURL)
	assert.Nil(t, manual.Session, "entering manual setup cancels the popup session")
	assert.Equal(t, 0, f.bus.SubscriberCount(event.OAuthCallback))

	back, err := svc.CancelManual(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, StepConnect, back.Step)

	manual, err = svc.EnterManual(ctx, view.ID)
	require.NoError(t, err)
	key = manual.Manual.WebhookKey

	saved := &domain.Integration{ID: "i-9", TenantID: testTenantID, Provider: domain.ProviderGoogle, Manual: true, WebhookKey: key}
	f.repo.On("SaveManual", mock.Anything, repository.ManualSetupRequest{
		TenantID:      testTenantID,
		Provider:      domain.ProviderGoogle,
		WebhookKey:    key,
		DefaultConfig: testDefaultConfig,
	}).Return(saved, nil).Once()

	done, err := svc.ConfirmManual(ctx, view.ID, testDefaultConfig)
	require.NoError(t, err)
	assert.Equal(t, StepSuccess, done.Step)
	assert.Equal(t, saved, done.Integration)
}

func TestService_ManualSaveFailureKeepsStep(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	view := openDialog(t, svc, f, domain.ProviderGoogle, nil)
	_, err := svc.EnterManual(ctx, view.ID)
	require.NoError(t, err)
	f.repo.On("SaveManual", mock.Anything, mock.Anything).Return(nil, errors.New("deadlock detected")).Once()

	current, err := svc.ConfirmManual(ctx, view.ID, testDefaultConfig)

	require.NoError(t, err)
	assert.Equal(t, StepManualFallback, current.Step)
	assert.Equal(t, MsgManualSaveFailed, current.Error.Message)
}

func TestService_ManualUnsupported(t *testing.T) {
	svc, f := newTestService(t)
	view := openDialog(t, svc, f, domain.ProviderMeta, nil)

	_, err := svc.EnterManual(context.Background(), view.ID)
	assert.ErrorIs(t, err, domain.ErrManualFallbackUnsupported)

	_, err = svc.ConfirmManual(context.Background(), view.ID, testDefaultConfig)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestService_Disconnect(t *testing.T) {
	t.Run("deletes and returns to connect", func(t *testing.T) {
		svc, f := newTestService(t)
		view := openDialog(t, svc, f, domain.ProviderMeta, &domain.Integration{ID: "i-1", PageName: "Acme"})
		f.repo.On("Delete", mock.Anything, "i-1").Return(nil).Once()

		current, err := svc.Disconnect(context.Background(), view.ID)
		require.NoError(t, err)
		assert.Equal(t, StepConnect, current.Step)
		assert.Nil(t, current.Integration)
		f.repo.AssertExpectations(t)
	})

	t.Run("already deleted", func(t *testing.T) {
		svc, f := newTestService(t)
		view := openDialog(t, svc, f, domain.ProviderMeta, &domain.Integration{ID: "i-1", PageName: "Acme"})
		f.repo.On("Delete", mock.Anything, "i-1").Return(domain.ErrIntegrationNotFound).Once()

		current, err := svc.Disconnect(context.Background(), view.ID)
		require.NoError(t, err)
		assert.Equal(t, StepConnect, current.Step)
	})

	t.Run("delete failure stays in manage", func(t *testing.T) {
		svc, f := newTestService(t)
		view := openDialog(t, svc, f, domain.ProviderMeta, &domain.Integration{ID: "i-1", PageName: "Acme"})
		f.repo.On("Delete", mock.Anything, "i-1").Return(domain.ErrDatabaseError).Once()

		current, err := svc.Disconnect(context.Background(), view.ID)
		require.NoError(t, err)
		assert.Equal(t, StepManage, current.Step)
		assert.Equal(t, MsgDisconnectFailed, current.Error.Message)
	})

	t.Run("nothing to disconnect", func(t *testing.T) {
		svc, f := newTestService(t)
		view := openDialog(t, svc, f, domain.ProviderMeta, nil)

		_, err := svc.Disconnect(context.Background(), view.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestService_CloseDialogCancelsSession(t *testing.T) {
	svc, f := newTestService(t)
	updates := recordUpdates(f.bus)
	view := openDialog(t, svc, f, domain.ProviderMeta, nil)
	res := connect(t, svc, view.ID)

	require.NoError(t, svc.CloseDialog(context.Background(), view.ID))

	assert.Equal(t, 0, f.clock.Pending())
	assert.Equal(t, 0, f.bus.SubscriberCount(event.OAuthCallback))
	last := updates.last()
	assert.True(t, last.Closed)
	require.NotNil(t, last.Session)
	assert.Equal(t, res.View.Session.ID, last.Session.ID)
	assert.Equal(t, StatusCancelled, last.Session.Status)

	_, err := svc.GetDialog(context.Background(), view.ID)
	assert.ErrorIs(t, err, domain.ErrDialogNotFound)
	assert.ErrorIs(t, svc.CloseDialog(context.Background(), view.ID), domain.ErrDialogNotFound)
}

func TestService_ReapDialogs(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	stale := openDialog(t, svc, f, domain.ProviderMeta, nil)
	f.clock.Advance(20 * time.Minute)
	fresh := openDialog(t, svc, f, domain.ProviderGoogle, nil)

	f.clock.Advance(15 * time.Minute)
	require.NoError(t, NewReaperJob(svc).Process(ctx))

	_, err := svc.GetDialog(ctx, stale.ID)
	assert.ErrorIs(t, err, domain.ErrDialogNotFound)
	_, err = svc.GetDialog(ctx, fresh.ID)
	assert.NoError(t, err)

	assert.Equal(t, 0, svc.ReapDialogs(ctx))
}

func TestService_OpenDialogErrors(t *testing.T) {
	svc, f := newTestService(t)

	_, err := svc.OpenDialog(context.Background(), testTenantID, "tiktok")
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)

	f.repo.On("FindByProvider", mock.Anything, testTenantID, domain.ProviderMeta).Return(nil, domain.ErrDatabaseError).Once()
	_, err = svc.OpenDialog(context.Background(), testTenantID, domain.ProviderMeta)
	assert.ErrorIs(t, err, domain.ErrDatabaseError)

	_, err = svc.GetDialog(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrDialogNotFound)
}

func TestService_Shutdown(t *testing.T) {
	svc, f := newTestService(t)
	view := openDialog(t, svc, f, domain.ProviderMeta, nil)
	connect(t, svc, view.ID)

	require.NoError(t, svc.Shutdown(context.Background()))

	assert.Equal(t, 0, f.clock.Pending())
	_, err := svc.GetDialog(context.Background(), view.ID)
	assert.ErrorIs(t, err, domain.ErrDialogNotFound)
	assert.Len(t, svc.Providers(), 3)
}
