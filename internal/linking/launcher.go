package linking

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/osse101/adlink/internal/domain"
)

// Screen is the opener's available screen area as reported by the browser
type Screen struct {
	Width  int `json:"width"  validate:"gte=0"`
	Height int `json:"height" validate:"gte=0"`
	Left   int `json:"left"`
	Top    int `json:"top"`
}

// WindowFeatures positions the popup window
type WindowFeatures struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Left   int `json:"left"`
	Top    int `json:"top"`
}

// String renders the features in window.open syntax
func (f WindowFeatures) String() string {
	return fmt.Sprintf("width=%d,height=%d,left=%d,top=%d,scrollbars=yes,resizable=yes", f.Width, f.Height, f.Left, f.Top)
}

// CenteredFeatures centers a window of size within screen
func CenteredFeatures(size PopupSize, screen Screen) WindowFeatures {
	if screen.Width <= 0 || screen.Height <= 0 {
		screen.Width, screen.Height = DefaultScreenWidth, DefaultScreenHeight
	}
	return WindowFeatures{
		Width:  size.Width,
		Height: size.Height,
		Left:   screen.Left + max(0, (screen.Width-size.Width)/2),
		Top:    screen.Top + max(0, (screen.Height-size.Height)/2),
	}
}

// PopupHandle observes a popup window. It is only used to detect closure.
type PopupHandle interface {
	Closed() bool
}

// Opener opens a popup window at url
type Opener interface {
	Open(ctx context.Context, url string, features WindowFeatures) (PopupHandle, error)
}

// RemotePopup is a popup that lives in the user's browser. Its closed state
// is reported back over HTTP.
type RemotePopup struct {
	closed atomic.Bool
}

// Closed reports whether the browser said the popup was closed
func (p *RemotePopup) Closed() bool {
	return p.closed.Load()
}

// MarkClosed records that the browser closed the popup
func (p *RemotePopup) MarkClosed() {
	p.closed.Store(true)
}

// RemoteOpener hands the URL back to the browser, which performs the actual window.open
type RemoteOpener struct{}

// Open returns a handle whose closed state is driven by browser reports
func (RemoteOpener) Open(context.Context, string, WindowFeatures) (PopupHandle, error) {
	return &RemotePopup{}, nil
}

// LaunchRequest describes one popup launch
type LaunchRequest struct {
	Provider      *ProviderConfig
	TenantID      string
	SessionID     string
	DefaultConfig domain.DefaultConfig
	Screen        Screen
}

// Launch is the result of opening the authorization popup
type Launch struct {
	URL      string
	Features WindowFeatures
	Popup    PopupHandle
}

// Launcher builds authorization URLs and opens popups
type Launcher struct {
	codec  *StateCodec
	opener Opener
}

// NewLauncher creates a launcher
func NewLauncher(codec *StateCodec, opener Opener) *Launcher {
	return &Launcher{codec: codec, opener: opener}
}

// AuthorizationURL builds the provider URL carrying a signed state
func (l *Launcher) AuthorizationURL(req LaunchRequest) (string, error) {
	if req.TenantID == "" {
		return "", fmt.Errorf("%w: tenant id is required", domain.ErrMissingContext)
	}
	if req.Provider == nil {
		return "", fmt.Errorf("%w: provider is required", domain.ErrMissingContext)
	}

	state, err := l.codec.Encode(LinkState{
		TenantID:      req.TenantID,
		Provider:      req.Provider.Name,
		SessionID:     req.SessionID,
		DefaultConfig: req.DefaultConfig,
	})
	if err != nil {
		return "", err
	}

	return req.Provider.OAuth2Config().AuthCodeURL(state, req.Provider.AuthCodeOptions()...), nil
}

// Launch opens exactly one popup at the authorization URL. Missing context
// fails before the opener is touched.
func (l *Launcher) Launch(ctx context.Context, req LaunchRequest) (*Launch, error) {
	url, err := l.AuthorizationURL(req)
	if err != nil {
		return nil, err
	}

	features := CenteredFeatures(req.Provider.Popup, req.Screen)
	popup, err := l.opener.Open(ctx, url, features)
	if err != nil {
		return nil, fmt.Errorf("failed to open popup: %w", err)
	}

	return &Launch{URL: url, Features: features, Popup: popup}, nil
}
