package linking

import (
	"sync"
	"time"

	"github.com/osse101/adlink/internal/domain"
)

// DialogView is the state a connect dialog renders
type DialogView struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenant_id"`
	Provider       domain.Provider `json:"provider"`
	DisplayName    string          `json:"display_name"`
	ManualFallback bool            `json:"manual_fallback"`
	WizardView
	Session *SessionView `json:"session,omitempty"`
	Closed  bool         `json:"closed,omitempty"`
}

// Dialog is one open connect dialog. It owns its wizard and at most one
// live session; starting a new session disposes the previous one.
type Dialog struct {
	ID       string
	TenantID string
	Provider *ProviderConfig

	// notify is called with a fresh view after any change made off the caller's goroutine
	notify func(*Dialog)

	mu         sync.Mutex
	wizard     *Wizard
	session    *Session
	lastActive time.Time
	closed     bool
	// finalizing is set while a selected target is being saved
	finalizing bool
}

func newDialog(id, tenantID string, provider *ProviderConfig, existing *domain.Integration, now time.Time, notify func(*Dialog)) *Dialog {
	return &Dialog{
		ID:         id,
		TenantID:   tenantID,
		Provider:   provider,
		notify:     notify,
		wizard:     NewWizard(provider, existing),
		lastActive: now,
	}
}

// View returns a snapshot of the dialog
func (d *Dialog) View() DialogView {
	d.mu.Lock()
	session := d.session
	v := DialogView{
		ID:             d.ID,
		TenantID:       d.TenantID,
		Provider:       d.Provider.Name,
		DisplayName:    d.Provider.DisplayName,
		ManualFallback: d.Provider.ManualFallback,
		WizardView:     d.wizard.View(),
		Closed:         d.closed,
	}
	d.mu.Unlock()

	if session != nil {
		sv := session.View()
		v.Session = &sv
	}
	return v
}

// Step returns the wizard step
func (d *Dialog) Step() Step {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wizard.Step()
}

// Session returns the current session, if any
func (d *Dialog) Session() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

func (d *Dialog) touch(now time.Time) {
	d.mu.Lock()
	d.lastActive = now
	d.mu.Unlock()
}

func (d *Dialog) idleSince() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastActive
}

// current reports whether s is still the dialog's live session
func (d *Dialog) current(s *Session) bool {
	return !d.closed && d.session == s
}

// AccountsOffered moves the wizard to target selection
func (d *Dialog) AccountsOffered(s *Session, accounts []domain.ExternalAccountChoice) {
	d.mu.Lock()
	if !d.current(s) {
		d.mu.Unlock()
		return
	}
	err := d.wizard.OfferAccounts(accounts)
	d.mu.Unlock()

	if err != nil {
		s.log.Warn(LogMsgOutOfStepOutcome, "error", err)
		return
	}
	d.notify(d)
}

// SessionLinked completes the wizard with an integration found by the probe
func (d *Dialog) SessionLinked(s *Session, integration *domain.Integration) {
	d.mu.Lock()
	if !d.current(s) {
		d.mu.Unlock()
		return
	}
	err := d.wizard.Complete(integration)
	d.mu.Unlock()

	if err != nil {
		s.log.Warn(LogMsgOutOfStepOutcome, "error", err)
		return
	}
	s.log.Info(LogMsgIntegrationLinked, "integration_id", integration.ID)
	d.notify(d)
}

// SessionFailed returns the wizard to connect with the session's error
func (d *Dialog) SessionFailed(s *Session, err *SessionError) {
	d.mu.Lock()
	if !d.current(s) {
		d.mu.Unlock()
		return
	}
	d.wizard.Fail(err)
	d.mu.Unlock()

	d.notify(d)
}
