package linking

import (
	"fmt"

	"github.com/osse101/adlink/internal/domain"
)

// Step is the visible step of the connect wizard
type Step string

// Wizard steps
const (
	StepConnect        Step = "connect"
	StepSelectTarget   Step = "select-target"
	StepManualFallback Step = "manual-fallback"
	StepSuccess        Step = "success"
	StepManage         Step = "manage"
)

// ManualSetup is the webhook information shown during manual fallback
type ManualSetup struct {
	WebhookKey string `json:"webhook_key"`
	WebhookURL string `json:"webhook_url"`
}

// WizardView is the externally visible state of a wizard
type WizardView struct {
	Step        Step                           `json:"step"`
	Accounts    []domain.ExternalAccountChoice `json:"accounts,omitempty"`
	Integration *domain.Integration            `json:"integration,omitempty"`
	Manual      *ManualSetup                   `json:"manual,omitempty"`
	Error       *SessionError                  `json:"error,omitempty"`
}

// Wizard is the per-dialog step machine. It is not safe for concurrent use;
// the owning dialog serializes access.
type Wizard struct {
	provider    *ProviderConfig
	step        Step
	accounts    []domain.ExternalAccountChoice
	integration *domain.Integration
	manual      *ManualSetup
	err         *SessionError
}

// NewWizard starts in manage when existing is already linked, otherwise in connect
func NewWizard(provider *ProviderConfig, existing *domain.Integration) *Wizard {
	w := &Wizard{provider: provider, step: StepConnect}
	if existing.IsLinked() {
		w.step = StepManage
		w.integration = existing
	}
	return w
}

// Step returns the current step
func (w *Wizard) Step() Step {
	return w.step
}

// Integration returns the linked integration in success or manage
func (w *Wizard) Integration() *domain.Integration {
	return w.integration
}

// BeginConnect clears a previous error before a new popup launch
func (w *Wizard) BeginConnect() error {
	if err := w.expect("connect", StepConnect); err != nil {
		return err
	}
	w.err = nil
	return nil
}

// OfferAccounts moves to select-target with the exchanged choices
func (w *Wizard) OfferAccounts(accounts []domain.ExternalAccountChoice) error {
	if err := w.expect("offer accounts", StepConnect); err != nil {
		return err
	}
	w.accounts = accounts
	w.err = nil
	w.step = StepSelectTarget
	return nil
}

// Target returns the offered account with id
func (w *Wizard) Target(id string) (domain.ExternalAccountChoice, error) {
	if err := w.expect("select target", StepSelectTarget); err != nil {
		return domain.ExternalAccountChoice{}, err
	}
	for _, a := range w.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.ExternalAccountChoice{}, fmt.Errorf("%w: %s", domain.ErrTargetNotOffered, id)
}

// Fail returns to connect with a retryable error. Success and manage are
// left untouched.
func (w *Wizard) Fail(err *SessionError) {
	w.err = err
	switch w.step {
	case StepConnect, StepSelectTarget, StepManualFallback:
		w.step = StepConnect
		w.accounts = nil
		w.manual = nil
	}
}

// Warn records an error without leaving the current step
func (w *Wizard) Warn(err *SessionError) {
	w.err = err
}

// Complete moves to success with the persisted integration. Completing from
// connect happens when the popup-closed probe finds the login already linked.
func (w *Wizard) Complete(integration *domain.Integration) error {
	if err := w.expect("complete", StepSelectTarget, StepManualFallback, StepConnect); err != nil {
		return err
	}
	w.integration = integration
	w.accounts = nil
	w.manual = nil
	w.err = nil
	w.step = StepSuccess
	return nil
}

// EnterManual moves to manual-fallback for providers that support it
func (w *Wizard) EnterManual(setup ManualSetup) error {
	if !w.provider.ManualFallback {
		return fmt.Errorf("%w: %s", domain.ErrManualFallbackUnsupported, w.provider.Name)
	}
	if err := w.expect("enter manual setup", StepConnect); err != nil {
		return err
	}
	w.manual = &setup
	w.err = nil
	w.step = StepManualFallback
	return nil
}

// Manual returns the manual setup shown in manual-fallback
func (w *Wizard) Manual() *ManualSetup {
	return w.manual
}

// LeaveManual returns from manual-fallback to connect
func (w *Wizard) LeaveManual() error {
	if err := w.expect("leave manual setup", StepManualFallback); err != nil {
		return err
	}
	w.manual = nil
	w.err = nil
	w.step = StepConnect
	return nil
}

// Disconnect returns to connect after the stored integration was deleted
func (w *Wizard) Disconnect() error {
	if err := w.expect("disconnect", StepSuccess, StepManage); err != nil {
		return err
	}
	w.integration = nil
	w.err = nil
	w.step = StepConnect
	return nil
}

// View returns a snapshot of the wizard
func (w *Wizard) View() WizardView {
	v := WizardView{
		Step:        w.step,
		Integration: w.integration,
		Manual:      w.manual,
		Error:       w.err,
	}
	if len(w.accounts) > 0 {
		v.Accounts = append([]domain.ExternalAccountChoice(nil), w.accounts...)
	}
	return v
}

func (w *Wizard) expect(action string, allowed ...Step) error {
	for _, s := range allowed {
		if w.step == s {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s from %s", domain.ErrInvalidTransition, action, w.step)
}
