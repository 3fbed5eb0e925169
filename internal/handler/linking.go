package handler

import (
	"context"
	"net/http"

	"github.com/osse101/adlink/internal/domain"
	"github.com/osse101/adlink/internal/event"
	"github.com/osse101/adlink/internal/linking"
	"github.com/osse101/adlink/internal/logger"
	"github.com/osse101/adlink/internal/sse"
)

// LinkingHandlers contains handlers for the connect dialog
type LinkingHandlers struct {
	svc linking.Service
	hub *sse.Hub
}

// NewLinkingHandlers creates new linking handlers
func NewLinkingHandlers(svc linking.Service, hub *sse.Hub) *LinkingHandlers {
	return &LinkingHandlers{svc: svc, hub: hub}
}

// OpenDialogRequest is the request body for opening a connect dialog.
// TenantID may be empty while the workspace is still loading.
type OpenDialogRequest struct {
	TenantID string `json:"tenant_id" validate:"max=64"`
	Provider string `json:"provider"  validate:"required,provider"`
}

// ConnectRequest is the request body for launching the authorization popup
type ConnectRequest struct {
	DefaultConfig domain.DefaultConfig `json:"default_config" validate:"required"`
	Screen        linking.Screen       `json:"screen"`
}

// MessageRequest carries a cross-context message the browser received.
// Origin is the message event's origin as reported by the API-key holding
// client; the Origin header is used only when it is empty. The session's
// origin guard trusts this value, so the route must stay behind API-key auth.
type MessageRequest struct {
	Origin string                  `json:"origin" validate:"max=255"`
	Data   event.CallbackPayloadV1 `json:"data"`
}

// SelectTargetRequest is the request body for choosing an external account
type SelectTargetRequest struct {
	TargetID string `json:"target_id" validate:"required,max=128"`
}

// ConfirmManualRequest is the request body for confirming manual setup
type ConfirmManualRequest struct {
	DefaultConfig domain.DefaultConfig `json:"default_config" validate:"required"`
}

// ProviderInfo describes a configured ad platform
type ProviderInfo struct {
	Name           domain.Provider `json:"name"`
	DisplayName    string          `json:"display_name"`
	ManualFallback bool            `json:"manual_fallback"`
}

// HandleOpenDialog handles POST /api/v1/dialogs
// @Summary Open a connect dialog
// @Description Opens a dialog for one ad platform. A tenant that is already linked starts in manage.
// @Tags dialogs
// @Accept json
// @Produce json
// @Param request body OpenDialogRequest true "Dialog details"
// @Success 201 {object} linking.DialogView
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/dialogs [post]
func (h *LinkingHandlers) HandleOpenDialog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenDialogRequest
		if err := DecodeAndValidateRequest(r, w, &req, "Open dialog"); err != nil {
			return
		}

		provider, err := domain.ParseProvider(req.Provider)
		if err != nil {
			respondServiceError(w, r, ErrMsgOpenDialogFailed, err)
			return
		}

		view, err := h.svc.OpenDialog(r.Context(), req.TenantID, provider)
		if err != nil {
			respondServiceError(w, r, ErrMsgOpenDialogFailed, err)
			return
		}

		respondJSON(w, http.StatusCreated, view)
	}
}

// HandleGetDialog handles GET /api/v1/dialogs/{id}
// @Summary Get a connect dialog
// @Tags dialogs
// @Produce json
// @Param id path string true "Dialog ID"
// @Success 200 {object} linking.DialogView
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/dialogs/{id} [get]
func (h *LinkingHandlers) HandleGetDialog() http.HandlerFunc {
	return h.viewAction(ErrMsgGetDialogFailed, h.svc.GetDialog)
}

// HandleCloseDialog handles DELETE /api/v1/dialogs/{id}
// @Summary Close a connect dialog
// @Description Cancels any live authorization and forgets the dialog
// @Tags dialogs
// @Produce json
// @Param id path string true "Dialog ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/dialogs/{id} [delete]
func (h *LinkingHandlers) HandleCloseDialog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetPathParam(r, w, PathParamDialogID)
		if !ok {
			return
		}
		if err := h.svc.CloseDialog(r.Context(), id); err != nil {
			respondServiceError(w, r, ErrMsgCloseDialogFailed, err)
			return
		}
		respondJSON(w, http.StatusOK, SuccessResponse{Message: MsgDialogClosed})
	}
}

// HandleDialogEvents handles GET /api/v1/dialogs/{id}/events
// @Summary Stream dialog updates
// @Description Server-sent events: a snapshot of the dialog followed by every update
// @Tags dialogs
// @Produce text/event-stream
// @Param id path string true "Dialog ID"
// @Success 200 {string} string "event stream"
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/dialogs/{id}/events [get]
func (h *LinkingHandlers) HandleDialogEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetPathParam(r, w, PathParamDialogID)
		if !ok {
			return
		}
		view, err := h.svc.GetDialog(r.Context(), id)
		if err != nil {
			respondServiceError(w, r, ErrMsgStreamDialogFailed, err)
			return
		}
		sse.Stream(w, r, h.hub, []string{id}, sse.NewEvent(id, sse.EventTypeDialogSnapshot, view))
	}
}

// HandleConnect handles POST /api/v1/dialogs/{id}/connect
// @Summary Launch authorization
// @Description Starts a new link session and returns the popup URL and window features
// @Tags dialogs
// @Accept json
// @Produce json
// @Param id path string true "Dialog ID"
// @Param request body ConnectRequest true "Lead defaults and screen geometry"
// @Success 200 {object} linking.ConnectResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/dialogs/{id}/connect [post]
func (h *LinkingHandlers) HandleConnect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetPathParam(r, w, PathParamDialogID)
		if !ok {
			return
		}
		var req ConnectRequest
		if err := DecodeAndValidateRequest(r, w, &req, "Connect"); err != nil {
			return
		}

		result, err := h.svc.Connect(r.Context(), id, linking.ConnectRequest{
			DefaultConfig: req.DefaultConfig,
			Screen:        req.Screen,
		})
		if err != nil {
			respondServiceError(w, r, ErrMsgConnectFailed, err)
			return
		}

		logger.FromContext(r.Context()).Info(LogMsgPopupLaunched, logger.AttrKeyDialogID, id)
		respondJSON(w, http.StatusOK, result)
	}
}

// HandlePopupClosed handles POST /api/v1/dialogs/{id}/popup-closed
// @Summary Report popup closure
// @Tags dialogs
// @Produce json
// @Param id path string true "Dialog ID"
// @Success 202 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/dialogs/{id}/popup-closed [post]
func (h *LinkingHandlers) HandlePopupClosed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetPathParam(r, w, PathParamDialogID)
		if !ok {
			return
		}
		if err := h.svc.ReportPopupClosed(r.Context(), id); err != nil {
			respondServiceError(w, r, ErrMsgPopupClosedFailed, err)
			return
		}
		respondJSON(w, http.StatusAccepted, SuccessResponse{Message: MsgPopupClosedRecorded})
	}
}

// HandleMessage handles POST /api/v1/dialogs/{id}/messages
// @Summary Deliver a callback message
// @Description Forwards a message the browser received from the authorization popup
// @Tags dialogs
// @Accept json
// @Produce json
// @Param id path string true "Dialog ID"
// @Param request body MessageRequest true "Message origin and data"
// @Success 202 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/dialogs/{id}/messages [post]
func (h *LinkingHandlers) HandleMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetPathParam(r, w, PathParamDialogID)
		if !ok {
			return
		}
		var req MessageRequest
		if err := DecodeAndValidateRequest(r, w, &req, "Deliver message"); err != nil {
			return
		}
		if req.Data.Type == "" {
			respondError(w, http.StatusBadRequest, ErrMsgMissingMessageField)
			return
		}

		// The header names the posting page, not the window that sent the message
		origin := req.Origin
		if origin == "" {
			origin = r.Header.Get(HeaderOrigin)
		}

		// Untrusted or unexpected messages are dropped by the session, not rejected here
		if err := h.svc.DeliverMessage(r.Context(), id, origin, req.Data); err != nil {
			respondServiceError(w, r, ErrMsgDeliverFailed, err)
			return
		}
		respondJSON(w, http.StatusAccepted, SuccessResponse{Message: MsgMessageDelivered})
	}
}

// HandleSelectTarget handles POST /api/v1/dialogs/{id}/select
// @Summary Select the account to link
// @Tags dialogs
// @Accept json
// @Produce json
// @Param id path string true "Dialog ID"
// @Param request body SelectTargetRequest true "Chosen account"
// @Success 200 {object} linking.DialogView
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/dialogs/{id}/select [post]
func (h *LinkingHandlers) HandleSelectTarget() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetPathParam(r, w, PathParamDialogID)
		if !ok {
			return
		}
		var req SelectTargetRequest
		if err := DecodeAndValidateRequest(r, w, &req, "Select target"); err != nil {
			return
		}
		view, err := h.svc.SelectTarget(r.Context(), id, req.TargetID)
		if err != nil {
			respondServiceError(w, r, ErrMsgSelectTargetFailed, err)
			return
		}
		respondJSON(w, http.StatusOK, view)
	}
}

// HandleEnterManual handles POST /api/v1/dialogs/{id}/manual
// @Summary Switch to manual webhook setup
// @Tags dialogs
// @Produce json
// @Param id path string true "Dialog ID"
// @Success 200 {object} linking.DialogView
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/dialogs/{id}/manual [post]
func (h *LinkingHandlers) HandleEnterManual() http.HandlerFunc {
	return h.viewAction(ErrMsgManualFailed, h.svc.EnterManual)
}

// HandleCancelManual handles POST /api/v1/dialogs/{id}/manual/cancel
// @Summary Leave manual setup
// @Tags dialogs
// @Produce json
// @Param id path string true "Dialog ID"
// @Success 200 {object} linking.DialogView
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/dialogs/{id}/manual/cancel [post]
func (h *LinkingHandlers) HandleCancelManual() http.HandlerFunc {
	return h.viewAction(ErrMsgManualFailed, h.svc.CancelManual)
}

// HandleConfirmManual handles POST /api/v1/dialogs/{id}/manual/confirm
// @Summary Confirm manual webhook setup
// @Tags dialogs
// @Accept json
// @Produce json
// @Param id path string true "Dialog ID"
// @Param request body ConfirmManualRequest true "Lead defaults"
// @Success 200 {object} linking.DialogView
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/dialogs/{id}/manual/confirm [post]
func (h *LinkingHandlers) HandleConfirmManual() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetPathParam(r, w, PathParamDialogID)
		if !ok {
			return
		}
		var req ConfirmManualRequest
		if err := DecodeAndValidateRequest(r, w, &req, "Confirm manual setup"); err != nil {
			return
		}
		view, err := h.svc.ConfirmManual(r.Context(), id, req.DefaultConfig)
		if err != nil {
			respondServiceError(w, r, ErrMsgManualFailed, err)
			return
		}
		respondJSON(w, http.StatusOK, view)
	}
}

// HandleDisconnect handles POST /api/v1/dialogs/{id}/disconnect
// @Summary Disconnect the integration
// @Tags dialogs
// @Produce json
// @Param id path string true "Dialog ID"
// @Success 200 {object} linking.DialogView
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/dialogs/{id}/disconnect [post]
func (h *LinkingHandlers) HandleDisconnect() http.HandlerFunc {
	return h.viewAction(ErrMsgDisconnectFailed, h.svc.Disconnect)
}

// HandleListProviders handles GET /api/v1/providers
// @Summary List supported ad platforms
// @Tags providers
// @Produce json
// @Success 200 {array} ProviderInfo
// @Router /api/v1/providers [get]
func (h *LinkingHandlers) HandleListProviders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers := h.svc.Providers()
		out := make([]ProviderInfo, 0, len(providers))
		for _, p := range providers {
			out = append(out, ProviderInfo{
				Name:           p.Name,
				DisplayName:    p.DisplayName,
				ManualFallback: p.ManualFallback,
			})
		}
		respondJSON(w, http.StatusOK, out)
	}
}

type viewFunc func(ctx context.Context, dialogID string) (*linking.DialogView, error)

// viewAction serves the dialog operations that take only the dialog id
func (h *LinkingHandlers) viewAction(opName string, action viewFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetPathParam(r, w, PathParamDialogID)
		if !ok {
			return
		}
		view, err := action(r.Context(), id)
		if err != nil {
			respondServiceError(w, r, opName, err)
			return
		}
		respondJSON(w, http.StatusOK, view)
	}
}
