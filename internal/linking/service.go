package linking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/osse101/adlink/internal/clock"
	"github.com/osse101/adlink/internal/domain"
	"github.com/osse101/adlink/internal/event"
	"github.com/osse101/adlink/internal/logger"
	"github.com/osse101/adlink/internal/metrics"
	"github.com/osse101/adlink/internal/repository"
)

// Repository defines the integration storage used by linking
type Repository interface {
	repository.Integrations
}

// Service defines the connect dialog operations
type Service interface {
	// OpenDialog opens a connect dialog. A tenant that is already linked starts in manage.
	OpenDialog(ctx context.Context, tenantID string, provider domain.Provider) (*DialogView, error)

	// GetDialog returns the current view of a dialog
	GetDialog(ctx context.Context, dialogID string) (*DialogView, error)

	// Connect disposes any previous session and launches a new authorization popup
	Connect(ctx context.Context, dialogID string, req ConnectRequest) (*ConnectResult, error)

	// ReportPopupClosed records that the browser closed the authorization popup
	ReportPopupClosed(ctx context.Context, dialogID string) error

	// DeliverMessage forwards a cross-context callback message to the dialog's session
	DeliverMessage(ctx context.Context, dialogID, origin string, msg event.CallbackPayloadV1) error

	// SelectTarget persists the chosen external account
	SelectTarget(ctx context.Context, dialogID, targetID string) (*DialogView, error)

	// EnterManual switches to manual webhook setup
	EnterManual(ctx context.Context, dialogID string) (*DialogView, error)

	// CancelManual returns from manual setup to connect
	CancelManual(ctx context.Context, dialogID string) (*DialogView, error)

	// ConfirmManual persists the manual setup
	ConfirmManual(ctx context.Context, dialogID string, cfg domain.DefaultConfig) (*DialogView, error)

	// Disconnect deletes the stored integration
	Disconnect(ctx context.Context, dialogID string) (*DialogView, error)

	// CloseDialog cancels any live session and forgets the dialog
	CloseDialog(ctx context.Context, dialogID string) error

	// ReapDialogs closes dialogs idle longer than the retention period
	ReapDialogs(ctx context.Context) int

	// Providers lists the configured providers
	Providers() []*ProviderConfig

	// Shutdown closes every open dialog
	Shutdown(ctx context.Context) error
}

// ConnectRequest carries the dialog inputs chosen before launching
type ConnectRequest struct {
	DefaultConfig domain.DefaultConfig `json:"default_config" validate:"required"`
	Screen        Screen               `json:"screen"`
}

// ConnectResult tells the browser where and how to open the popup
type ConnectResult struct {
	URL      string         `json:"url"`
	Features WindowFeatures `json:"features"`
	Window   string         `json:"window"`
	View     DialogView     `json:"dialog"`
}

// ServiceConfig holds service tuning
type ServiceConfig struct {
	Timing          Timing
	DialogRetention time.Duration
}

// ServiceDeps are the collaborators shared by all dialogs
type ServiceDeps struct {
	Registry *Registry
	Repo     Repository
	Launcher *Launcher
	Invoker  *Invoker
	Store    Store
	Bus      event.Bus
	Origins  *OriginAllowList
	Clock    clock.Clock
	// Dispatch runs backend calls off the caller's goroutine; nil uses a goroutine
	Dispatch func(func())
}

type service struct {
	registry  *Registry
	repo      Repository
	bus       event.Bus
	clock     clock.Clock
	session   SessionDeps
	retention time.Duration

	mu      sync.RWMutex
	dialogs map[string]*Dialog
}

// NewService creates a new linking service
func NewService(cfg ServiceConfig, deps ServiceDeps) Service {
	if cfg.DialogRetention <= 0 {
		cfg.DialogRetention = DefaultDialogRetention
	}
	return &service{
		registry: deps.Registry,
		repo:     deps.Repo,
		bus:      deps.Bus,
		clock:    deps.Clock,
		session: SessionDeps{
			Clock:        deps.Clock,
			Bus:          deps.Bus,
			Store:        deps.Store,
			Launcher:     deps.Launcher,
			Invoker:      deps.Invoker,
			Integrations: deps.Repo,
			Origins:      deps.Origins,
			Timing:       cfg.Timing.withDefaults(),
			Dispatch:     deps.Dispatch,
		},
		retention: cfg.DialogRetention,
		dialogs:   make(map[string]*Dialog),
	}
}

// OpenDialog opens a connect dialog
func (s *service) OpenDialog(ctx context.Context, tenantID string, provider domain.Provider) (*DialogView, error) {
	cfg, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	var existing *domain.Integration
	if tenantID != "" {
		existing, err = s.repo.FindByProvider(ctx, tenantID, provider)
		if err != nil && !errors.Is(err, domain.ErrIntegrationNotFound) {
			return nil, fmt.Errorf("failed to load integration: %w", err)
		}
	}

	d := newDialog(uuid.NewString(), tenantID, cfg, existing, s.clock.Now(), s.notify)

	s.mu.Lock()
	s.dialogs[d.ID] = d
	s.mu.Unlock()
	metrics.DialogsOpen.Inc()

	logger.FromContext(ctx).Info(LogMsgDialogOpened,
		logger.AttrKeyDialogID, d.ID,
		logger.AttrKeyProvider, string(provider),
		logger.AttrKeyTenantID, tenantID,
		"step", d.Step())

	v := d.View()
	return &v, nil
}

// GetDialog returns the current view of a dialog
func (s *service) GetDialog(_ context.Context, dialogID string) (*DialogView, error) {
	d, err := s.dialog(dialogID)
	if err != nil {
		return nil, err
	}
	v := d.View()
	return &v, nil
}

// Connect disposes any previous session and launches a new one
func (s *service) Connect(ctx context.Context, dialogID string, req ConnectRequest) (*ConnectResult, error) {
	d, err := s.dialog(dialogID)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if err := d.wizard.BeginConnect(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	previous := d.session
	deps := s.session
	deps.Logger = logger.FromContext(ctx).With(logger.AttrKeyDialogID, d.ID)
	session := NewSession(SessionParams{
		ID:            uuid.NewString(),
		TenantID:      d.TenantID,
		Provider:      d.Provider,
		DefaultConfig: req.DefaultConfig,
	}, deps, d)
	d.session = session
	d.lastActive = s.clock.Now()
	d.mu.Unlock()

	if previous != nil {
		previous.Dispose()
	}

	launch, err := session.Start(ctx, req.Screen)
	if err != nil {
		d.mu.Lock()
		if d.current(session) {
			d.wizard.Fail(AsSessionError(err))
		}
		d.mu.Unlock()
		s.publish(ctx, d)
		return nil, err
	}

	s.publish(ctx, d)
	return &ConnectResult{
		URL:      launch.URL,
		Features: launch.Features,
		Window:   launch.Features.String(),
		View:     d.View(),
	}, nil
}

// ReportPopupClosed marks the session's remote popup closed
func (s *service) ReportPopupClosed(_ context.Context, dialogID string) error {
	d, err := s.dialog(dialogID)
	if err != nil {
		return err
	}
	d.touch(s.clock.Now())

	session := d.Session()
	if session == nil {
		return nil
	}
	if popup, ok := session.Popup().(*RemotePopup); ok {
		popup.MarkClosed()
	}
	return nil
}

// DeliverMessage publishes a callback message on the bus, addressed to the
// dialog's current session. The listener decides whether it is trusted.
func (s *service) DeliverMessage(ctx context.Context, dialogID, origin string, msg event.CallbackPayloadV1) error {
	d, err := s.dialog(dialogID)
	if err != nil {
		return err
	}
	d.touch(s.clock.Now())

	session := d.Session()
	if session == nil {
		return nil
	}
	return s.bus.Publish(ctx, event.NewCallbackEvent(session.ID, origin, msg))
}

// SelectTarget persists the chosen account. A failed save keeps the
// selection step with a retryable error.
func (s *service) SelectTarget(ctx context.Context, dialogID, targetID string) (*DialogView, error) {
	d, err := s.dialog(dialogID)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With(logger.AttrKeyDialogID, d.ID)

	d.mu.Lock()
	if d.finalizing {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTransition, ErrMsgSelectionInProgress)
	}
	target, err := d.wizard.Target(targetID)
	session := d.session
	d.lastActive = s.clock.Now()
	if err == nil {
		d.finalizing = true
	}
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	defer func() {
		d.mu.Lock()
		d.finalizing = false
		d.mu.Unlock()
	}()

	req := repository.FinalizeRequest{
		TenantID:    d.TenantID,
		Provider:    d.Provider.Name,
		TargetID:    target.ID,
		TargetLabel: target.Label,
	}
	if session != nil {
		req.DefaultConfig = session.DefaultConfig
	}

	integration, err := s.repo.Finalize(ctx, req)
	if err != nil {
		log.Error(LogMsgFinalizeFailed, "error", err)
		d.mu.Lock()
		d.wizard.Warn(newSessionError(ErrorKindExchangeFailure, MsgFinalizeFailed, err))
		d.mu.Unlock()
		s.publish(ctx, d)
		v := d.View()
		return &v, nil
	}

	if session != nil {
		if err := session.MarkLinked(); err != nil {
			log.Warn(LogMsgOutOfStepOutcome, "error", err)
		}
	}

	d.mu.Lock()
	err = d.wizard.Complete(integration)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	log.Info(LogMsgIntegrationLinked, "integration_id", integration.ID, "target_id", target.ID)
	s.publish(ctx, d)
	v := d.View()
	return &v, nil
}

// EnterManual cancels any live session and shows the webhook setup
func (s *service) EnterManual(ctx context.Context, dialogID string) (*DialogView, error) {
	d, err := s.dialog(dialogID)
	if err != nil {
		return nil, err
	}
	if d.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", domain.ErrMissingContext)
	}

	key := uuid.NewString()
	d.mu.Lock()
	err = d.wizard.EnterManual(ManualSetup{
		WebhookKey: key,
		WebhookURL: d.Provider.WebhookURL(d.TenantID, key),
	})
	previous := d.session
	if err == nil {
		d.session = nil
	}
	d.lastActive = s.clock.Now()
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if previous != nil {
		previous.Dispose()
	}

	s.publish(ctx, d)
	v := d.View()
	return &v, nil
}

// CancelManual returns to connect
func (s *service) CancelManual(ctx context.Context, dialogID string) (*DialogView, error) {
	d, err := s.dialog(dialogID)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	err = d.wizard.LeaveManual()
	d.lastActive = s.clock.Now()
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.publish(ctx, d)
	v := d.View()
	return &v, nil
}

// ConfirmManual persists the manual webhook setup
func (s *service) ConfirmManual(ctx context.Context, dialogID string, cfg domain.DefaultConfig) (*DialogView, error) {
	d, err := s.dialog(dialogID)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With(logger.AttrKeyDialogID, d.ID)

	d.mu.Lock()
	manual := d.wizard.Manual()
	d.lastActive = s.clock.Now()
	d.mu.Unlock()
	if manual == nil {
		return nil, fmt.Errorf("%w: not in manual setup", domain.ErrInvalidTransition)
	}

	integration, err := s.repo.SaveManual(ctx, repository.ManualSetupRequest{
		TenantID:      d.TenantID,
		Provider:      d.Provider.Name,
		WebhookKey:    manual.WebhookKey,
		DefaultConfig: cfg,
	})
	if err != nil {
		log.Error(LogMsgManualSaveFailed, "error", err)
		d.mu.Lock()
		d.wizard.Warn(newSessionError(ErrorKindExchangeFailure, MsgManualSaveFailed, err))
		d.mu.Unlock()
		s.publish(ctx, d)
		v := d.View()
		return &v, nil
	}

	d.mu.Lock()
	err = d.wizard.Complete(integration)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	log.Info(LogMsgManualSaved, "integration_id", integration.ID)
	s.publish(ctx, d)
	v := d.View()
	return &v, nil
}

// Disconnect deletes the stored integration and returns to connect
func (s *service) Disconnect(ctx context.Context, dialogID string) (*DialogView, error) {
	d, err := s.dialog(dialogID)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With(logger.AttrKeyDialogID, d.ID)

	d.mu.Lock()
	step := d.wizard.Step()
	integration := d.wizard.Integration()
	d.lastActive = s.clock.Now()
	d.mu.Unlock()
	if step != StepSuccess && step != StepManage {
		return nil, fmt.Errorf("%w: cannot disconnect from %s", domain.ErrInvalidTransition, step)
	}

	if integration != nil {
		err := s.repo.Delete(ctx, integration.ID)
		if err != nil && !errors.Is(err, domain.ErrIntegrationNotFound) {
			log.Error(LogMsgDisconnectFailed, "error", err)
			d.mu.Lock()
			d.wizard.Warn(newSessionError(ErrorKindExchangeFailure, MsgDisconnectFailed, err))
			d.mu.Unlock()
			s.publish(ctx, d)
			v := d.View()
			return &v, nil
		}
		log.Info(LogMsgIntegrationDeleted, "integration_id", integration.ID)
	}

	d.mu.Lock()
	err = d.wizard.Disconnect()
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.publish(ctx, d)
	v := d.View()
	return &v, nil
}

// CloseDialog cancels any live session and forgets the dialog
func (s *service) CloseDialog(ctx context.Context, dialogID string) error {
	s.mu.Lock()
	d, ok := s.dialogs[dialogID]
	if ok {
		delete(s.dialogs, dialogID)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrDialogNotFound, dialogID)
	}

	s.close(ctx, d)
	return nil
}

func (s *service) close(ctx context.Context, d *Dialog) {
	d.mu.Lock()
	session := d.session
	d.closed = true
	d.mu.Unlock()

	if session != nil {
		session.Dispose()
	}
	metrics.DialogsOpen.Dec()
	logger.FromContext(ctx).Info(LogMsgDialogClosed, logger.AttrKeyDialogID, d.ID)
	s.publish(ctx, d)
}

// ReapDialogs closes dialogs idle longer than the retention period
func (s *service) ReapDialogs(ctx context.Context) int {
	cutoff := s.clock.Now().Add(-s.retention)

	var stale []*Dialog
	s.mu.Lock()
	for id, d := range s.dialogs {
		if d.idleSince().Before(cutoff) {
			stale = append(stale, d)
			delete(s.dialogs, id)
		}
	}
	s.mu.Unlock()

	for _, d := range stale {
		s.close(ctx, d)
	}
	if len(stale) > 0 {
		metrics.DialogsReaped.Add(float64(len(stale)))
		logger.FromContext(ctx).Info(LogMsgDialogsReaped, "count", len(stale))
	}
	return len(stale)
}

// Providers lists the configured providers
func (s *service) Providers() []*ProviderConfig {
	return s.registry.All()
}

// Shutdown closes every open dialog
func (s *service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	open := make([]*Dialog, 0, len(s.dialogs))
	for id, d := range s.dialogs {
		open = append(open, d)
		delete(s.dialogs, id)
	}
	s.mu.Unlock()

	for _, d := range open {
		s.close(ctx, d)
	}
	return nil
}

func (s *service) dialog(id string) (*Dialog, error) {
	s.mu.RLock()
	d, ok := s.dialogs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDialogNotFound, id)
	}
	return d, nil
}

func (s *service) notify(d *Dialog) {
	s.publish(context.Background(), d)
}

func (s *service) publish(ctx context.Context, d *Dialog) {
	if err := s.bus.Publish(ctx, event.NewDialogUpdatedEvent(d.ID, d.View())); err != nil {
		logger.FromContext(ctx).Warn(LogMsgPublishDialogFailed, logger.AttrKeyDialogID, d.ID, "error", err)
	}
}
