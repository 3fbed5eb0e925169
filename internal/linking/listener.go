package linking

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/osse101/adlink/internal/clock"
	"github.com/osse101/adlink/internal/domain"
	"github.com/osse101/adlink/internal/event"
	"github.com/osse101/adlink/internal/metrics"
)

// Channel names the path a delivery arrived on
type Channel string

// Delivery channels
const (
	ChannelMessage     Channel = "message"
	ChannelPolledStore Channel = "polled-store"
	ChannelPopupProbe  Channel = "popup-probe"
)

// Delivery is a callback result accepted by the listener
type Delivery struct {
	Code       string
	Error      string
	Channel    Channel
	ReceivedAt time.Time
}

// Timing holds the session timer settings. Zero fields take the defaults;
// a negative PopupClosedGrace reports a closed popup without waiting.
type Timing struct {
	Timeout           time.Duration
	PollInterval      time.Duration
	PopupPollInterval time.Duration
	PopupClosedGrace  time.Duration
}

// DefaultTiming returns the standard session timer settings
func DefaultTiming() Timing {
	return Timing{
		Timeout:           DefaultTimeout,
		PollInterval:      DefaultPollInterval,
		PopupPollInterval: DefaultPopupPollInterval,
		PopupClosedGrace:  DefaultPopupClosedGrace,
	}
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.Timeout <= 0 {
		t.Timeout = d.Timeout
	}
	if t.PollInterval <= 0 {
		t.PollInterval = d.PollInterval
	}
	if t.PopupPollInterval <= 0 {
		t.PopupPollInterval = d.PopupPollInterval
	}
	if t.PopupClosedGrace == 0 {
		t.PopupClosedGrace = d.PopupClosedGrace
	}
	return t
}

// ListenerConfig identifies what a listener waits for
type ListenerConfig struct {
	SessionID string
	Provider  *ProviderConfig
	Origins   *OriginAllowList
	Timing    Timing
}

// ListenerDeps are the collaborators a listener observes
type ListenerDeps struct {
	Bus    event.Bus
	Store  Store
	Clock  clock.Clock
	Popup  PopupHandle
	Logger *slog.Logger
}

// Listener watches both delivery channels for one session and forwards the
// first valid delivery. Every later delivery, from either channel, is dropped.
type Listener struct {
	cfg   ListenerConfig
	deps  ListenerDeps
	gate  *Gate
	life  Lifecycle
	log   *slog.Logger
	codeK string
	timeK string

	onDelivery    func(Delivery)
	onPopupClosed func()

	mu          sync.Mutex
	popupTicker clock.Timer
	popupClosed bool
}

// NewListener creates a listener. onDelivery is called at most once, after
// both channels are torn down. onPopupClosed is called when the popup closed
// and the grace period passed with the gate still open.
func NewListener(cfg ListenerConfig, deps ListenerDeps, gate *Gate, onDelivery func(Delivery), onPopupClosed func()) *Listener {
	cfg.Timing = cfg.Timing.withDefaults()
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Listener{
		cfg:           cfg,
		deps:          deps,
		gate:          gate,
		log:           log,
		codeK:         CodeKey(cfg.Provider.Name, cfg.SessionID),
		timeK:         TimestampKey(cfg.Provider.Name, cfg.SessionID),
		onDelivery:    onDelivery,
		onPopupClosed: onPopupClosed,
	}
}

// Start subscribes to the message channel and starts the poll timers
func (l *Listener) Start() {
	l.life.Own(l.deps.Bus.Subscribe(event.OAuthCallback, l.handleEvent))
	l.life.Every(l.deps.Clock, l.cfg.Timing.PollInterval, l.pollStore)

	if l.deps.Popup != nil {
		t := l.life.Every(l.deps.Clock, l.cfg.Timing.PopupPollInterval, l.checkPopup)
		l.mu.Lock()
		l.popupTicker = t
		l.mu.Unlock()
	}
}

// Stop tears down the subscription and every timer. It is safe to call more than once.
func (l *Listener) Stop() {
	l.life.Dispose()
}

// Stopped reports whether the listener has been torn down
func (l *Listener) Stopped() bool {
	return l.life.Disposed()
}

func (l *Listener) handleEvent(_ context.Context, evt event.Event) error {
	if evt.Topic != l.cfg.SessionID || l.life.Disposed() {
		return nil
	}

	payload, err := event.DecodePayload[event.CallbackPayloadV1](evt.Payload)
	if err != nil || payload.Type != l.cfg.Provider.CallbackMarker {
		l.log.Debug(LogMsgUnexpectedMessage, "type", payload.Type)
		l.count(ChannelMessage, metrics.OutcomeIgnored)
		return nil
	}

	if !l.cfg.Origins.Allowed(evt.Origin) {
		l.log.Warn(LogMsgUntrustedOrigin, "origin", evt.Origin, "error", domain.ErrUntrustedOrigin)
		l.count(ChannelMessage, metrics.OutcomeUntrusted)
		return nil
	}

	if payload.Code == "" && payload.Error == "" {
		l.log.Debug(LogMsgEmptyCallback)
		l.count(ChannelMessage, metrics.OutcomeIgnored)
		return nil
	}

	l.accept(Delivery{
		Code:       payload.Code,
		Error:      payload.Error,
		Channel:    ChannelMessage,
		ReceivedAt: l.deps.Clock.Now(),
	})
	return nil
}

func (l *Listener) pollStore() {
	if l.life.Disposed() {
		return
	}

	code, okCode := l.deps.Store.Get(l.codeK)
	raw, okTime := l.deps.Store.Get(l.timeK)
	if !okCode || !okTime {
		return
	}

	// delete first so the next tick cannot read the same entry
	l.deps.Store.Delete(l.codeK)
	l.deps.Store.Delete(l.timeK)

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		l.log.Warn(LogMsgMalformedTimestamp, "value", raw)
		l.count(ChannelPolledStore, metrics.OutcomeMalformed)
		return
	}

	writtenAt := time.UnixMilli(ms)
	age := l.deps.Clock.Now().Sub(writtenAt)
	if age > l.cfg.Timing.Timeout {
		l.log.Warn(LogMsgStaleDelivery, "age", age, "error", domain.ErrStaleDelivery)
		l.count(ChannelPolledStore, metrics.OutcomeStale)
		return
	}

	l.accept(Delivery{
		Code:       code,
		Channel:    ChannelPolledStore,
		ReceivedAt: writtenAt,
	})
}

func (l *Listener) checkPopup() {
	if l.life.Disposed() || !l.gate.Open() || !l.deps.Popup.Closed() {
		return
	}

	l.mu.Lock()
	if l.popupClosed {
		l.mu.Unlock()
		return
	}
	l.popupClosed = true
	ticker := l.popupTicker
	l.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
	}

	grace := l.cfg.Timing.PopupClosedGrace
	l.log.Info(LogMsgPopupClosed, "grace", grace)
	report := func() {
		if l.life.Disposed() || !l.gate.Open() {
			return
		}
		l.onPopupClosed()
	}
	if grace < 0 {
		report()
		return
	}
	l.life.AfterFunc(l.deps.Clock, grace, report)
}

func (l *Listener) accept(d Delivery) {
	if !l.gate.TryAccept() {
		l.log.Debug(LogMsgDeliveryDuplicate, "channel", d.Channel)
		l.count(d.Channel, metrics.OutcomeDuplicate)
		return
	}

	l.Stop()
	l.deps.Store.Delete(l.codeK)
	l.deps.Store.Delete(l.timeK)

	l.log.Info(LogMsgDeliveryAccepted, "channel", d.Channel, "provider_error", d.Error != "")
	l.count(d.Channel, metrics.OutcomeAccepted)
	l.onDelivery(d)
}

func (l *Listener) count(ch Channel, outcome string) {
	metrics.Deliveries.WithLabelValues(string(l.cfg.Provider.Name), string(ch), outcome).Inc()
}
