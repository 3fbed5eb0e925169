package linking

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/osse101/adlink/internal/domain"
	"github.com/osse101/adlink/internal/validation"
)

//go:embed providers.yaml
var defaultProvidersYAML []byte

//go:embed providers.schema.json
var providersSchemaJSON []byte

var providersSchema = sync.OnceValues(func() (validation.SchemaValidator, error) {
	return validation.NewSchemaValidator(ProvidersSchemaName, providersSchemaJSON)
})

// PopupSize is the fixed popup window size for a provider
type PopupSize struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ProviderConfig is the per-provider record that parameterizes the generic
// linking flow.
type ProviderConfig struct {
	Name               domain.Provider   `yaml:"name"`
	DisplayName        string            `yaml:"display_name"`
	Endpoint           string            `yaml:"endpoint"`
	AuthURL            string            `yaml:"auth_url"`
	TokenURL           string            `yaml:"token_url"`
	ClientID           string            `yaml:"client_id"`
	RedirectURI        string            `yaml:"redirect_uri"`
	Scopes             []string          `yaml:"scopes"`
	AuthParams         map[string]string `yaml:"auth_params"`
	CallbackMarker     string            `yaml:"callback_marker"`
	Popup              PopupSize         `yaml:"popup"`
	ManualFallback     bool              `yaml:"manual_fallback"`
	WebhookURLTemplate string            `yaml:"webhook_url_template"`
	NoAccountsMessage  string            `yaml:"no_accounts_message"`
}

type providerFile struct {
	Providers []*ProviderConfig `yaml:"providers"`
}

// OAuth2Config returns the oauth2 configuration used to build authorization URLs
func (p *ProviderConfig) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    p.ClientID,
		Endpoint:    p.endpoint(),
		RedirectURL: p.RedirectURI,
		Scopes:      p.Scopes,
	}
}

// AuthCodeOptions returns the extra query parameters sent with the authorization request
func (p *ProviderConfig) AuthCodeOptions() []oauth2.AuthCodeOption {
	opts := make([]oauth2.AuthCodeOption, 0, len(p.AuthParams))
	for k, v := range p.AuthParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return opts
}

func (p *ProviderConfig) endpoint() oauth2.Endpoint {
	var ep oauth2.Endpoint
	switch p.Endpoint {
	case "facebook":
		ep = endpoints.Facebook
	case "google":
		ep = endpoints.Google
	case "linkedin":
		ep = endpoints.LinkedIn
	}
	if p.AuthURL != "" {
		ep.AuthURL = p.AuthURL
	}
	if p.TokenURL != "" {
		ep.TokenURL = p.TokenURL
	}
	return ep
}

// NoAccountsExplanation is the user-facing message for an exchange that found nothing to link
func (p *ProviderConfig) NoAccountsExplanation() string {
	if p.NoAccountsMessage != "" {
		return p.NoAccountsMessage
	}
	return fmt.Sprintf(MsgNoAccountsDefault, p.DisplayName)
}

// WebhookURL renders the manual-setup webhook URL for a tenant
func (p *ProviderConfig) WebhookURL(tenantID, webhookKey string) string {
	return strings.NewReplacer(
		WebhookPlaceholderTenant, tenantID,
		WebhookPlaceholderKey, webhookKey,
	).Replace(p.WebhookURLTemplate)
}

func (p *ProviderConfig) applyDefaults() {
	p.Name = domain.Provider(strings.ToLower(strings.TrimSpace(string(p.Name))))
	if p.DisplayName == "" {
		p.DisplayName = cases.Title(language.English).String(string(p.Name))
	}
	if p.Popup.Width <= 0 {
		p.Popup.Width = DefaultPopupWidth
	}
	if p.Popup.Height <= 0 {
		p.Popup.Height = DefaultPopupHeight
	}
	if p.CallbackMarker == "" {
		p.CallbackMarker = string(p.Name) + "_oauth_callback"
	}
}

// Validate checks that the record can drive a launch
func (p *ProviderConfig) Validate() error {
	if !p.Name.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownProvider, p.Name)
	}
	var missing []string
	if p.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if p.RedirectURI == "" {
		missing = append(missing, "redirect_uri")
	}
	if p.endpoint().AuthURL == "" {
		missing = append(missing, "endpoint or auth_url")
	}
	if len(p.Scopes) == 0 {
		missing = append(missing, "scopes")
	}
	if p.ManualFallback && p.WebhookURLTemplate == "" {
		missing = append(missing, "webhook_url_template")
	}
	if len(missing) > 0 {
		return fmt.Errorf("provider %s: missing %s", p.Name, strings.Join(missing, ", "))
	}
	return nil
}

// Registry holds the configured providers in file order
type Registry struct {
	providers map[domain.Provider]*ProviderConfig
	order     []domain.Provider
}

// NewRegistry builds a registry from already-parsed records
func NewRegistry(configs ...*ProviderConfig) (*Registry, error) {
	r := &Registry{providers: make(map[domain.Provider]*ProviderConfig, len(configs))}
	for _, cfg := range configs {
		cfg.applyDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.providers[cfg.Name]; dup {
			return nil, fmt.Errorf("provider %s configured twice", cfg.Name)
		}
		r.providers[cfg.Name] = cfg
		r.order = append(r.order, cfg.Name)
	}
	return r, nil
}

// LoadProviders reads the registry from path, or from the embedded default
// when path is empty. ${VAR} references resolve against vars first, then the
// process environment.
func LoadProviders(path string, vars map[string]string) (*Registry, error) {
	data := defaultProvidersYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read providers file: %w", err)
		}
	}
	return ParseProviders(data, vars)
}

// ParseProviders parses a registry document
func ParseProviders(data []byte, vars map[string]string) (*Registry, error) {
	expanded := os.Expand(string(data), func(key string) string {
		if v, ok := vars[key]; ok {
			return v
		}
		return os.Getenv(key)
	})

	var doc interface{}
	if err := yaml.Unmarshal([]byte(expanded), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}

	schema, err := providersSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.ValidateDocument(doc); err != nil {
		return nil, fmt.Errorf("invalid providers file: %w", err)
	}

	var file providerFile
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}
	return NewRegistry(file.Providers...)
}

// Get returns the record for provider
func (r *Registry) Get(provider domain.Provider) (*ProviderConfig, error) {
	cfg, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, provider)
	}
	return cfg, nil
}

// All returns the records in file order
func (r *Registry) All() []*ProviderConfig {
	out := make([]*ProviderConfig, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}
