package linking

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osse101/adlink/internal/domain"
)

func TestParseProviders_Default(t *testing.T) {
	r := testRegistry(t)

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, domain.ProviderMeta, all[0].Name)
	assert.Equal(t, domain.ProviderGoogle, all[1].Name)
	assert.Equal(t, domain.ProviderLinkedIn, all[2].Name)

	meta := all[0]
	assert.Equal(t, "meta-client", meta.ClientID)
	assert.Equal(t, testRelayOrigin+"/oauth/meta/callback", meta.RedirectURI)
	assert.Equal(t, "meta_oauth_callback", meta.CallbackMarker)
	assert.False(t, meta.ManualFallback)

	google := all[1]
	assert.True(t, google.ManualFallback)
	assert.Equal(t, "offline", google.AuthParams["access_type"])
}

func TestParseProviders_AppliesDefaults(t *testing.T) {
	data := []byte(`
providers:
  - name: LinkedIn
    endpoint: linkedin
    client_id: id
    redirect_uri: https://relay.example.com/cb
    scopes: [r_ads]
`)
	r, err := ParseProviders(data, nil)
	require.NoError(t, err)

	p, err := r.Get(domain.ProviderLinkedIn)
	require.NoError(t, err)
	assert.Equal(t, "Linkedin", p.DisplayName)
	assert.Equal(t, "linkedin_oauth_callback", p.CallbackMarker)
	assert.Equal(t, DefaultPopupWidth, p.Popup.Width)
	assert.Equal(t, DefaultPopupHeight, p.Popup.Height)
	assert.Equal(t, "No linkable accounts were found for this Linkedin login.", p.NoAccountsExplanation())
}

func TestParseProviders_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		vars    map[string]string
		wantErr string
	}{
		{
			name:    "unknown provider",
			yaml:    "providers:\n  - name: tiktok\n    client_id: x\n",
			wantErr: domain.ErrMsgUnknownProvider,
		},
		{
			name:    "missing client id",
			yaml:    "providers:\n  - name: meta\n    endpoint: facebook\n    client_id: ${NO_SUCH_CLIENT_ID}\n    redirect_uri: https://r\n    scopes: [a]\n",
			vars:    map[string]string{"NO_SUCH_CLIENT_ID": ""},
			wantErr: "client_id",
		},
		{
			name:    "manual fallback without template",
			yaml:    "providers:\n  - name: google\n    endpoint: google\n    client_id: x\n    redirect_uri: https://r\n    scopes: [a]\n    manual_fallback: true\n",
			wantErr: "webhook_url_template",
		},
		{
			name:    "duplicate",
			yaml:    "providers:\n  - {name: meta, endpoint: facebook, client_id: x, redirect_uri: 'https://r', scopes: [a]}\n  - {name: meta, endpoint: facebook, client_id: y, redirect_uri: 'https://r', scopes: [a]}\n",
			wantErr: "configured twice",
		},
		{
			name:    "misspelled field",
			yaml:    "providers:\n  - {name: meta, endpoint: facebook, client_id: x, redirect_uri: 'https://r', scope: [a]}\n",
			wantErr: "invalid providers file",
		},
		{
			name:    "popup size not a number",
			yaml:    "providers:\n  - {name: meta, endpoint: facebook, client_id: x, redirect_uri: 'https://r', scopes: [a], popup: {width: wide}}\n",
			wantErr: "/providers/0/popup/width",
		},
		{
			name:    "unknown endpoint",
			yaml:    "providers:\n  - {name: meta, endpoint: myspace, client_id: x, redirect_uri: 'https://r', scopes: [a]}\n",
			wantErr: "enum",
		},
		{
			name:    "no providers",
			yaml:    "providers: []\n",
			wantErr: "minItems",
		},
		{
			name:    "invalid yaml",
			yaml:    "providers: [",
			wantErr: "failed to parse providers file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProviders([]byte(tt.yaml), tt.vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadProviders_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  - name: meta
    endpoint: facebook
    client_id: ${META_CLIENT_ID}
    redirect_uri: ${RELAY_ORIGIN}/oauth/meta/callback
    scopes: [ads_management]
`), 0o600))

	r, err := LoadProviders(path, testProviderVars)
	require.NoError(t, err)
	require.Len(t, r.All(), 1)

	_, err = LoadProviders(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestRegistry_GetUnknown(t *testing.T) {
	_, err := testRegistry(t).Get("tiktok")
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}

func TestProviderConfig_WebhookURL(t *testing.T) {
	google := testProvider(t, domain.ProviderGoogle)

	assert.Equal(t,
		testRelayOrigin+"/webhooks/google/tenant-1?key=k-123",
		google.WebhookURL("tenant-1", "k-123"))
}

func TestProviderConfig_Endpoints(t *testing.T) {
	meta := testProvider(t, domain.ProviderMeta)
	assert.Equal(t, "https://www.facebook.com/v19.0/dialog/oauth", meta.OAuth2Config().Endpoint.AuthURL)

	google := testProvider(t, domain.ProviderGoogle)
	assert.Contains(t, google.OAuth2Config().Endpoint.AuthURL, "accounts.google.com")

	linkedin := testProvider(t, domain.ProviderLinkedIn)
	assert.Equal(t, "https://www.linkedin.com/oauth/v2/accessToken", linkedin.OAuth2Config().Endpoint.TokenURL)
}
