package linking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/osse101/adlink/internal/clock"
	"github.com/osse101/adlink/internal/domain"
	"github.com/osse101/adlink/internal/event"
	"github.com/osse101/adlink/internal/repository"
)

const (
	testTenantID    = "tenant-1"
	testRelayOrigin = "https://relay.example.com"
	testAppOrigin   = "https://app.example.com"
	testEvilOrigin  = "https://evil.example.com"
	testSigningKey  = "0123456789abcdef0123456789abcdef"
)

var testProviderVars = map[string]string{
	"META_CLIENT_ID":     "meta-client",
	"GOOGLE_CLIENT_ID":   "google-client",
	"LINKEDIN_CLIENT_ID": "linkedin-client",
	"RELAY_ORIGIN":       testRelayOrigin,
}

var testAccounts = []domain.ExternalAccountChoice{
	{ID: "page-1", Label: "Acme Bikes"},
	{ID: "page-2", Label: "Acme Outlet"},
}

var testDefaultConfig = domain.DefaultConfig{LeadStatus: "new"}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := ParseProviders(defaultProvidersYAML, testProviderVars)
	require.NoError(t, err)
	return r
}

func testProvider(t *testing.T, name domain.Provider) *ProviderConfig {
	t.Helper()
	p, err := testRegistry(t).Get(name)
	require.NoError(t, err)
	return p
}

// MockBackend mocks the hosted exchange backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Exchange(ctx context.Context, req ExchangeRequest) ([]domain.ExternalAccountChoice, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ExternalAccountChoice), args.Error(1)
}

func (m *MockBackend) ListAccounts(ctx context.Context, tenantID string, provider domain.Provider) ([]domain.ExternalAccountChoice, error) {
	args := m.Called(ctx, tenantID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ExternalAccountChoice), args.Error(1)
}

// MockRepository mocks the integration store
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindByProvider(ctx context.Context, tenantID string, provider domain.Provider) (*domain.Integration, error) {
	args := m.Called(ctx, tenantID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Integration), args.Error(1)
}

func (m *MockRepository) Finalize(ctx context.Context, req repository.FinalizeRequest) (*domain.Integration, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Integration), args.Error(1)
}

func (m *MockRepository) SaveManual(ctx context.Context, req repository.ManualSetupRequest) (*domain.Integration, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Integration), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// fakeOpener records launches and hands out remote popups
type fakeOpener struct {
	mu     sync.Mutex
	urls   []string
	popups []*RemotePopup
	err    error
}

func (o *fakeOpener) Open(_ context.Context, url string, _ WindowFeatures) (PopupHandle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, url)
	if o.err != nil {
		return nil, o.err
	}
	p := &RemotePopup{}
	o.popups = append(o.popups, p)
	return p, nil
}

func (o *fakeOpener) opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.urls)
}

func (o *fakeOpener) popup(i int) *RemotePopup {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.popups[i]
}

// recordingObserver captures session outcomes
type recordingObserver struct {
	mu      sync.Mutex
	offered [][]domain.ExternalAccountChoice
	linked  []*domain.Integration
	failed  []*SessionError
}

func (o *recordingObserver) AccountsOffered(_ *Session, accounts []domain.ExternalAccountChoice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.offered = append(o.offered, accounts)
}

func (o *recordingObserver) SessionLinked(_ *Session, integration *domain.Integration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.linked = append(o.linked, integration)
}

func (o *recordingObserver) SessionFailed(_ *Session, err *SessionError) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, err)
}

func (o *recordingObserver) counts() (offered, linked, failed int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.offered), len(o.linked), len(o.failed)
}

func (o *recordingObserver) lastFailure() *SessionError {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.failed) == 0 {
		return nil
	}
	return o.failed[len(o.failed)-1]
}

// fixture wires a session's collaborators around a simulated clock.
// Backend calls run inline on the goroutine that triggered them.
type fixture struct {
	clock    *clock.Simulated
	bus      *event.MemoryBus
	store    *LRUStore
	backend  *MockBackend
	repo     *MockRepository
	opener   *fakeOpener
	registry *Registry
	deps     SessionDeps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:    clock.NewSimulated(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		bus:      event.NewMemoryBus(),
		store:    NewLRUStore(100, time.Hour),
		backend:  new(MockBackend),
		repo:     new(MockRepository),
		opener:   &fakeOpener{},
		registry: testRegistry(t),
	}
	codec := NewStateCodec([]byte(testSigningKey), 10*time.Minute, f.clock)
	f.deps = SessionDeps{
		Clock:        f.clock,
		Bus:          f.bus,
		Store:        f.store,
		Launcher:     NewLauncher(codec, f.opener),
		Invoker:      NewInvoker(f.backend, f.clock),
		Integrations: f.repo,
		Origins:      NewOriginAllowList(testRelayOrigin, testAppOrigin),
		Timing:       DefaultTiming(),
		Dispatch:     func(fn func()) { fn() },
	}
	return f
}

func (f *fixture) provider(t *testing.T, name domain.Provider) *ProviderConfig {
	t.Helper()
	p, err := f.registry.Get(name)
	require.NoError(t, err)
	return p
}

func (f *fixture) newSession(t *testing.T, tenantID string, provider domain.Provider) (*Session, *recordingObserver) {
	t.Helper()
	obs := &recordingObserver{}
	s := NewSession(SessionParams{
		ID:            "session-" + string(provider),
		TenantID:      tenantID,
		Provider:      f.provider(t, provider),
		DefaultConfig: testDefaultConfig,
	}, f.deps, obs)
	return s, obs
}

func (f *fixture) startSession(t *testing.T, provider domain.Provider) (*Session, *recordingObserver) {
	t.Helper()
	s, obs := f.newSession(t, testTenantID, provider)
	_, err := s.Start(context.Background(), Screen{Width: 1920, Height: 1080})
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingProvider, s.Status())
	return s, obs
}

func (f *fixture) sendMessage(t *testing.T, s *Session, origin string, payload event.CallbackPayloadV1) {
	t.Helper()
	require.NoError(t, f.bus.Publish(context.Background(), event.NewCallbackEvent(s.ID, origin, payload)))
}

func codeMessage(p *ProviderConfig, code string) event.CallbackPayloadV1 {
	return event.CallbackPayloadV1{Type: p.CallbackMarker, Code: code}
}

var errUpstream = errors.New("upstream unavailable")
