package linking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/osse101/adlink/internal/clock"
	"github.com/osse101/adlink/internal/domain"
	"github.com/osse101/adlink/internal/event"
	"github.com/osse101/adlink/internal/logger"
	"github.com/osse101/adlink/internal/metrics"
)

// Status is the lifecycle position of a link session
type Status string

// Session statuses
const (
	StatusIdle             Status = "idle"
	StatusAwaitingProvider Status = "awaiting-provider"
	StatusExchanging       Status = "exchanging"
	StatusLinked           Status = "linked"
	StatusFailed           Status = "failed"
	StatusTimedOut         Status = "timed-out"
	StatusCancelled        Status = "cancelled"
)

// Terminal reports whether no further transitions are possible
func (s Status) Terminal() bool {
	switch s {
	case StatusLinked, StatusFailed, StatusTimedOut, StatusCancelled:
		return true
	}
	return false
}

// IntegrationFinder looks up a stored integration
type IntegrationFinder interface {
	FindByProvider(ctx context.Context, tenantID string, provider domain.Provider) (*domain.Integration, error)
}

// SessionObserver is told about outcomes that happen off the caller's goroutine.
// Callbacks are never invoked while the session lock is held.
type SessionObserver interface {
	AccountsOffered(s *Session, accounts []domain.ExternalAccountChoice)
	SessionLinked(s *Session, integration *domain.Integration)
	SessionFailed(s *Session, err *SessionError)
}

// SessionDeps are shared by every session of a service
type SessionDeps struct {
	Clock        clock.Clock
	Bus          event.Bus
	Store        Store
	Launcher     *Launcher
	Invoker      *Invoker
	Integrations IntegrationFinder
	Origins      *OriginAllowList
	Timing       Timing
	// Dispatch runs backend calls off the caller's goroutine
	Dispatch func(func())
	Logger   *slog.Logger
}

// SessionParams identify one linking attempt
type SessionParams struct {
	ID            string
	TenantID      string
	Provider      *ProviderConfig
	DefaultConfig domain.DefaultConfig
}

// SessionView is the externally visible state of a session
type SessionView struct {
	ID        string        `json:"id"`
	Status    Status        `json:"status"`
	Error     *SessionError `json:"error,omitempty"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
}

// Session is one OAuth linking attempt. It owns its gate, listener and
// timers, and releases all of them on every terminal transition.
type Session struct {
	ID            string
	TenantID      string
	Provider      *ProviderConfig
	DefaultConfig domain.DefaultConfig

	deps     SessionDeps
	observer SessionObserver
	log      *slog.Logger
	gate     Gate
	life     Lifecycle

	mu        sync.Mutex
	status    Status
	err       *SessionError
	popup     PopupHandle
	listener  *Listener
	timeout   clock.Timer
	ctx       context.Context
	startedAt time.Time
	accounts  []domain.ExternalAccountChoice
}

// NewSession creates an idle session
func NewSession(p SessionParams, deps SessionDeps, observer SessionObserver) *Session {
	deps.Timing = deps.Timing.withDefaults()
	if deps.Dispatch == nil {
		deps.Dispatch = func(f func()) { go f() }
	}
	base := deps.Logger
	if base == nil {
		base = slog.Default()
	}
	return &Session{
		ID:            p.ID,
		TenantID:      p.TenantID,
		Provider:      p.Provider,
		DefaultConfig: p.DefaultConfig,
		deps:          deps,
		observer:      observer,
		log: base.With(
			logger.AttrKeySessionID, p.ID,
			logger.AttrKeyProvider, string(p.Provider.Name),
			logger.AttrKeyTenantID, p.TenantID,
		),
		status: StatusIdle,
		ctx:    context.Background(),
	}
}

// Start opens the popup, begins listening on both channels and arms the timeout
func (s *Session) Start(ctx context.Context, screen Screen) (*Launch, error) {
	s.mu.Lock()
	if s.status != StatusIdle {
		status := s.status
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session is %s", domain.ErrInvalidTransition, status)
	}

	launch, err := s.deps.Launcher.Launch(ctx, LaunchRequest{
		Provider:      s.Provider,
		TenantID:      s.TenantID,
		SessionID:     s.ID,
		DefaultConfig: s.DefaultConfig,
		Screen:        screen,
	})
	if err != nil {
		serr := AsSessionError(err)
		s.status = StatusFailed
		s.err = serr
		s.gate.Close()
		s.mu.Unlock()

		s.log.Warn(LogMsgLaunchFailed, "error", err)
		s.terminate(StatusFailed)
		return nil, serr
	}

	runCtx, cancel := context.WithCancel(logger.WithLogger(context.WithoutCancel(ctx), s.log))
	s.life.Own(cancel)
	s.ctx = runCtx
	s.popup = launch.Popup
	s.status = StatusAwaitingProvider
	s.startedAt = s.deps.Clock.Now()
	s.listener = NewListener(
		ListenerConfig{
			SessionID: s.ID,
			Provider:  s.Provider,
			Origins:   s.deps.Origins,
			Timing:    s.deps.Timing,
		},
		ListenerDeps{
			Bus:    s.deps.Bus,
			Store:  s.deps.Store,
			Clock:  s.deps.Clock,
			Popup:  launch.Popup,
			Logger: s.log,
		},
		&s.gate,
		s.handleDelivery,
		s.handlePopupClosed,
	)
	s.life.Own(s.listener.Stop)
	s.timeout = s.life.AfterFunc(s.deps.Clock, s.deps.Timing.Timeout, s.handleTimeout)
	listener := s.listener
	s.mu.Unlock()

	listener.Start()
	metrics.SessionsStarted.WithLabelValues(string(s.Provider.Name)).Inc()
	s.log.Info(LogMsgSessionStarted, "timeout", s.deps.Timing.Timeout)
	return launch, nil
}

// handleDelivery runs once, after the gate accepted a delivery
func (s *Session) handleDelivery(d Delivery) {
	s.mu.Lock()
	if s.status != StatusAwaitingProvider {
		s.mu.Unlock()
		return
	}

	if d.Error != "" {
		serr := newSessionError(ErrorKindProviderError,
			fmt.Sprintf(MsgProviderDenied, s.Provider.DisplayName)+" ("+d.Error+")",
			errors.New(d.Error))
		s.status = StatusFailed
		s.err = serr
		s.mu.Unlock()

		s.terminate(StatusFailed)
		s.observer.SessionFailed(s, serr)
		return
	}

	s.status = StatusExchanging
	s.timeout.Stop()
	ctx := s.ctx
	s.mu.Unlock()

	s.deps.Dispatch(func() {
		accounts, serr := s.deps.Invoker.Exchange(ctx, s.log, s.Provider, s.TenantID, s.DefaultConfig, d.Code)
		s.settle(accounts, serr)
	})
}

// handlePopupClosed runs when the popup closed and the grace period passed
// without a delivery. The re-validation probe takes the gate like any delivery.
func (s *Session) handlePopupClosed() {
	if !s.gate.TryAccept() {
		return
	}

	s.mu.Lock()
	listener := s.listener
	if s.status != StatusAwaitingProvider {
		s.mu.Unlock()
		return
	}
	s.status = StatusExchanging
	s.timeout.Stop()
	ctx := s.ctx
	s.mu.Unlock()

	listener.Stop()
	metrics.Deliveries.WithLabelValues(string(s.Provider.Name), string(ChannelPopupProbe), metrics.OutcomeAccepted).Inc()
	s.log.Info(LogMsgProbeStarted)

	s.deps.Dispatch(func() { s.probe(ctx) })
}

func (s *Session) probe(ctx context.Context) {
	if s.deps.Integrations != nil {
		integration, err := s.deps.Integrations.FindByProvider(ctx, s.TenantID, s.Provider.Name)
		if err == nil && integration.IsLinked() {
			s.linkedByProbe(integration)
			return
		}
	}

	accounts, err := s.deps.Invoker.Probe(ctx, s.Provider, s.TenantID)
	if err != nil || len(accounts) == 0 {
		s.settle(nil, newSessionError(ErrorKindProviderError, MsgPopupClosed, err))
		return
	}
	s.settle(accounts, nil)
}

func (s *Session) linkedByProbe(integration *domain.Integration) {
	s.mu.Lock()
	if s.status != StatusExchanging {
		s.mu.Unlock()
		s.log.Debug(LogMsgResultDiscarded)
		return
	}
	s.status = StatusLinked
	s.mu.Unlock()

	s.terminate(StatusLinked)
	s.observer.SessionLinked(s, integration)
}

// settle applies an exchange or probe result unless the session moved on meanwhile
func (s *Session) settle(accounts []domain.ExternalAccountChoice, serr *SessionError) {
	s.mu.Lock()
	if s.status != StatusExchanging {
		s.mu.Unlock()
		s.log.Debug(LogMsgResultDiscarded)
		return
	}

	if serr != nil {
		s.status = StatusFailed
		s.err = serr
		s.mu.Unlock()

		s.terminate(StatusFailed)
		s.observer.SessionFailed(s, serr)
		return
	}

	s.accounts = accounts
	s.mu.Unlock()

	s.observer.AccountsOffered(s, accounts)
}

func (s *Session) handleTimeout() {
	s.mu.Lock()
	if s.status != StatusAwaitingProvider {
		s.mu.Unlock()
		return
	}
	s.gate.Close()
	serr := newSessionError(ErrorKindTimeout, MsgTimeout, domain.ErrTimeout)
	s.status = StatusTimedOut
	s.err = serr
	s.mu.Unlock()

	s.log.Warn(LogMsgSessionTimedOut)
	s.terminate(StatusTimedOut)
	s.observer.SessionFailed(s, serr)
}

// MarkLinked completes a session whose selected target was persisted
func (s *Session) MarkLinked() error {
	s.mu.Lock()
	if s.status != StatusExchanging {
		status := s.status
		s.mu.Unlock()
		return fmt.Errorf("%w: session is %s", domain.ErrInvalidTransition, status)
	}
	s.status = StatusLinked
	s.mu.Unlock()

	s.terminate(StatusLinked)
	return nil
}

// Dispose cancels a live session. Terminal sessions keep their status.
// After Dispose returns no timer, poll or message can cause a side effect.
func (s *Session) Dispose() {
	s.mu.Lock()
	s.gate.Close()
	cancelled := !s.status.Terminal()
	if cancelled {
		s.status = StatusCancelled
	}
	s.mu.Unlock()

	if cancelled {
		s.terminate(StatusCancelled)
		return
	}
	s.life.Dispose()
}

// terminate is the single cleanup path for every terminal status
func (s *Session) terminate(status Status) {
	if !s.life.Dispose() {
		return
	}
	metrics.SessionsFinished.WithLabelValues(string(s.Provider.Name), string(status)).Inc()
	s.log.Info(LogMsgSessionFinished, "status", status)
}

// Status returns the current status
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the failure of a failed or timed-out session
func (s *Session) Err() *SessionError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Accounts returns the choices offered by the last successful exchange
func (s *Session) Accounts() []domain.ExternalAccountChoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts
}

// Popup returns the handle of the launched popup, if any
func (s *Session) Popup() PopupHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popup
}

// Consumed reports whether a delivery or probe took the gate
func (s *Session) Consumed() bool {
	return s.gate.Consumed()
}

// View returns a snapshot for the dialog view
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := SessionView{ID: s.ID, Status: s.status, Error: s.err}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		v.StartedAt = &started
	}
	return v
}
