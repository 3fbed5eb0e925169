package relay

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/osse101/adlink/internal/clock"
	"github.com/osse101/adlink/internal/domain"
	"github.com/osse101/adlink/internal/event"
	"github.com/osse101/adlink/internal/linking"
	"github.com/osse101/adlink/internal/logger"
	"github.com/osse101/adlink/internal/metrics"
)

// Handler receives the provider redirect and forwards it to the waiting
// session over both delivery channels
type Handler struct {
	codec     *linking.StateCodec
	registry  *linking.Registry
	store     linking.Store
	bus       event.Bus
	clock     clock.Clock
	origin    string
	appOrigin string
}

// Config wires a relay Handler
type Config struct {
	Codec    *linking.StateCodec
	Registry *linking.Registry
	Store    linking.Store
	Bus      event.Bus
	Clock    clock.Clock
	// Origin is the relay's own origin, stamped on every published message
	Origin string
	// AppOrigin is where the relay page posts the callback to its opener
	AppOrigin string
}

// NewHandler creates a relay handler
func NewHandler(cfg Config) *Handler {
	return &Handler{
		codec:     cfg.Codec,
		registry:  cfg.Registry,
		store:     cfg.Store,
		bus:       cfg.Bus,
		clock:     cfg.Clock,
		origin:    cfg.Origin,
		appOrigin: cfg.AppOrigin,
	}
}

// HandleCallback handles GET /oauth/{provider}/callback
func (h *Handler) HandleCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		query := r.URL.Query()

		provider, state, err := h.verify(chi.URLParam(r, "provider"), query.Get(ParamState))
		if err != nil {
			log.Warn(LogMsgCallbackRejected, "error", err)
			metrics.RelayCallbacks.WithLabelValues(providerLabel(chi.URLParam(r, "provider")), metrics.OutcomeRejected).Inc()
			renderPage(w, r, http.StatusBadRequest, pageData{Title: TitleInvalid, Message: MsgInvalidLink})
			return
		}

		code := query.Get(ParamCode)
		providerErr := query.Get(ParamError)
		if code == "" && providerErr == "" {
			log.Warn(LogMsgCallbackRejected, "error", MsgMissingParameter, logger.AttrKeySessionID, state.SessionID)
			metrics.RelayCallbacks.WithLabelValues(string(provider.Name), metrics.OutcomeRejected).Inc()
			renderPage(w, r, http.StatusBadRequest, pageData{Title: TitleInvalid, Message: MsgMissingParameter})
			return
		}

		payload := event.CallbackPayloadV1{Type: provider.CallbackMarker}
		if providerErr != "" {
			payload.Error = providerErr
			if desc := query.Get(ParamErrorDescription); desc != "" {
				payload.Error = desc
			}
		} else {
			payload.Code = code
			linking.WriteCallback(h.store, provider.Name, state.SessionID, code, h.clock.Now())
		}

		if err := h.bus.Publish(r.Context(), event.NewCallbackEvent(state.SessionID, h.origin, payload)); err != nil {
			log.Error(LogMsgPublishFailed, "error", err, logger.AttrKeySessionID, state.SessionID)
		}

		log.Info(LogMsgCallbackRelayed,
			logger.AttrKeySessionID, state.SessionID,
			logger.AttrKeyProvider, provider.Name,
			"provider_error", providerErr != "")
		metrics.RelayCallbacks.WithLabelValues(string(provider.Name), metrics.OutcomeAccepted).Inc()

		data := pageData{Title: TitleConnected, Message: MsgCloseWindow, Payload: &payload, TargetOrigin: h.appOrigin}
		if providerErr != "" {
			data.Title, data.Message = TitleDenied, MsgDeniedClose
		}
		renderPage(w, r, http.StatusOK, data)
	}
}

func (h *Handler) verify(name, token string) (*linking.ProviderConfig, *linking.LinkState, error) {
	p, err := domain.ParseProvider(name)
	if err != nil {
		return nil, nil, err
	}
	provider, err := h.registry.Get(p)
	if err != nil {
		return nil, nil, err
	}
	state, err := h.codec.Decode(token)
	if err != nil {
		return nil, nil, err
	}
	if state.Provider != provider.Name {
		return nil, nil, fmt.Errorf("%w: provider mismatch", domain.ErrInvalidState)
	}
	return provider, state, nil
}

func providerLabel(name string) string {
	if p, err := domain.ParseProvider(name); err == nil {
		return string(p)
	}
	return "unknown"
}
