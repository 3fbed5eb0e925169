package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osse101/adlink/internal/clock"
	"github.com/osse101/adlink/internal/domain"
	"github.com/osse101/adlink/internal/event"
	"github.com/osse101/adlink/internal/linking"
)

const (
	testRelayOrigin = "https://relay.example.com"
	testAppOrigin   = "https://app.example.com"
	testSessionID   = "session-1"
)

type relayFixture struct {
	clock    *clock.Simulated
	codec    *linking.StateCodec
	store    *linking.LRUStore
	bus      *event.MemoryBus
	received []event.Event
	router   chi.Router
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	registry, err := linking.LoadProviders("", map[string]string{
		"META_CLIENT_ID":     "meta-client",
		"GOOGLE_CLIENT_ID":   "google-client",
		"LINKEDIN_CLIENT_ID": "linkedin-client",
		"RELAY_ORIGIN":       testRelayOrigin,
	})
	require.NoError(t, err)

	f := &relayFixture{
		clock: clock.NewSimulated(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		store: linking.NewLRUStore(100, time.Minute),
		bus:   event.NewMemoryBus(),
	}
	f.codec = linking.NewStateCodec([]byte("relay-test-signing-key"), 10*time.Minute, f.clock)
	f.bus.Subscribe(event.OAuthCallback, func(_ context.Context, e event.Event) error {
		f.received = append(f.received, e)
		return nil
	})

	h := NewHandler(Config{
		Codec:     f.codec,
		Registry:  registry,
		Store:     f.store,
		Bus:       f.bus,
		Clock:     f.clock,
		Origin:    testRelayOrigin,
		AppOrigin: testAppOrigin,
	})
	f.router = chi.NewRouter()
	f.router.Get("/oauth/{provider}/callback", h.HandleCallback())
	return f
}

func (f *relayFixture) state(t *testing.T, provider domain.Provider) string {
	t.Helper()
	token, err := f.codec.Encode(linking.LinkState{
		TenantID:      "tenant-1",
		Provider:      provider,
		SessionID:     testSessionID,
		DefaultConfig: domain.DefaultConfig{LeadStatus: "new"},
	})
	require.NoError(t, err)
	return token
}

func (f *relayFixture) get(provider string, params url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/oauth/"+provider+"/callback?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleCallback_RelaysCode(t *testing.T) {
	f := newRelayFixture(t)

	rec := f.get("meta", url.Values{ParamCode: {"abc"}, ParamState: {f.state(t, domain.ProviderMeta)}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgCloseWindow)
	assert.Contains(t, rec.Body.String(), "postMessage")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	code, ok := f.store.Get(linking.CodeKey(domain.ProviderMeta, testSessionID))
	require.True(t, ok)
	assert.Equal(t, "abc", code)
	_, ok = f.store.Get(linking.TimestampKey(domain.ProviderMeta, testSessionID))
	assert.True(t, ok)

	require.Len(t, f.received, 1)
	e := f.received[0]
	assert.Equal(t, testSessionID, e.Topic)
	assert.Equal(t, testRelayOrigin, e.Origin)
	assert.Equal(t, event.CallbackPayloadV1{Type: "meta_oauth_callback", Code: "abc"}, e.Payload)
}

func TestHandleCallback_RelaysProviderError(t *testing.T) {
	f := newRelayFixture(t)

	rec := f.get("google", url.Values{ParamError: {"access_denied"}, ParamState: {f.state(t, domain.ProviderGoogle)}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), TitleDenied)
	assert.Equal(t, 0, f.store.Len(), "errors are only delivered by message")

	require.Len(t, f.received, 1)
	assert.Equal(t, event.CallbackPayloadV1{Type: "google_oauth_callback", Error: "access_denied"}, f.received[0].Payload)
}

func TestHandleCallback_RejectsInvalidState(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		state    func(t *testing.T, f *relayFixture) string
	}{
		{"missing state", "meta", func(*testing.T, *relayFixture) string { return "" }},
		{"tampered state", "meta", func(t *testing.T, f *relayFixture) string { return f.state(t, domain.ProviderMeta) + "x" }},
		{"provider mismatch", "google", func(t *testing.T, f *relayFixture) string { return f.state(t, domain.ProviderMeta) }},
		{"unknown provider", "tiktok", func(t *testing.T, f *relayFixture) string { return f.state(t, domain.ProviderMeta) }},
		{"expired state", "meta", func(t *testing.T, f *relayFixture) string {
			token := f.state(t, domain.ProviderMeta)
			f.clock.Advance(11 * time.Minute)
			return token
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRelayFixture(t)

			rec := f.get(tt.provider, url.Values{ParamCode: {"abc"}, ParamState: {tt.state(t, f)}})

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), MsgInvalidLink)
			assert.NotContains(t, rec.Body.String(), "postMessage")
			assert.Equal(t, 0, f.store.Len())
			assert.Empty(t, f.received)
		})
	}
}

func TestHandleCallback_RequiresCodeOrError(t *testing.T) {
	f := newRelayFixture(t)

	rec := f.get("meta", url.Values{ParamState: {f.state(t, domain.ProviderMeta)}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgMissingParameter)
	assert.Empty(t, f.received)
}
