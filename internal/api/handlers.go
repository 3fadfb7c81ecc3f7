package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ezyang/ghsim/internal/login"
	"github.com/ezyang/ghsim/pkg/models"
)

// Handler holds dependencies for the login HTTP endpoints.
type Handler struct {
	mgr *login.Manager
	log zerolog.Logger
}

// NewHandler creates the login HTTP handler.
func NewHandler(mgr *login.Manager, log zerolog.Logger) *Handler {
	return &Handler{mgr: mgr, log: log}
}

// StartLogin handles POST /v1/auth/login/start.
func (h *Handler) StartLogin(w http.ResponseWriter, r *http.Request) {
	var req models.StartLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	snap, err := h.mgr.Create(r.Context(), req.Account)
	if err != nil {
		h.log.Error().Err(err).Str("account", req.Account).Msg("failed to start login session")
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(snap))
}

// SubmitCredentials handles POST /v1/auth/login/credentials.
func (h *Handler) SubmitCredentials(w http.ResponseWriter, r *http.Request) {
	var req models.CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	snap, err := h.mgr.SubmitCredentials(req.SessionID, req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(snap))
}

// SubmitTwoFactor handles POST /v1/auth/login/2fa.
func (h *Handler) SubmitTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req models.TwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	snap, err := h.mgr.SubmitTwoFactor(req.SessionID, req.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(snap))
}

// WaitMobile handles POST /v1/auth/login/mobile-wait. The call blocks until
// approval, failure or timeout.
func (h *Handler) WaitMobile(w http.ResponseWriter, r *http.Request) {
	var req models.MobileWaitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	snap, err := h.mgr.WaitMobile(req.SessionID, timeout)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(snap))
}

// CancelLogin handles POST /v1/auth/login/cancel. Cancellation is accepted
// unconditionally and is idempotent.
func (h *Handler) CancelLogin(w http.ResponseWriter, r *http.Request) {
	var req models.CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	h.mgr.Cancel(req.SessionID)
	writeJSON(w, http.StatusOK, models.LoginResponse{
		SessionID: req.SessionID,
		Status:    models.StatusError,
		Message:   "Session cancelled",
	})
}

// GetStatus handles GET /v1/auth/login/status/{id}. A status read may
// observe a transient submitting state.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	snap, err := h.mgr.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(snap))
}

// NeedsLogin handles GET /v1/auth/needs-login.
func (h *Handler) NeedsLogin(w http.ResponseWriter, r *http.Request) {
	status, err := h.mgr.AccountStatus(r.URL.Query().Get("account"))
	if err != nil {
		writeErrorMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.AccountStatusResponse{
		Account:    status.Account,
		NeedsLogin: !status.Authenticated,
		Username:   status.Username,
	})
}

// GetScreenshot handles GET /v1/auth/login/{id}/screenshot.
func (h *Handler) GetScreenshot(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	data, err := h.mgr.Screenshot(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Write(data)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, login.ErrSessionNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, login.ErrInvalidSessionState):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("login operation failed")
		writeErrorMessage(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, models.ErrorResponse{Error: msg})
}

var statusNames = map[login.State]string{
	login.StateInitialized:           models.StatusInitialized,
	login.StateSubmittingCredentials: models.StatusSubmitting,
	login.StateWaitingTwoFactor:      models.StatusWaiting2FA,
	login.StateWaitingMobile:         models.StatusWaitingMobile,
	login.StateSubmittingTwoFactor:   models.StatusSubmitting,
	login.StateSuccess:               models.StatusSuccess,
	login.StateError:                 models.StatusError,
	login.StateCaptcha:               models.StatusCaptcha,
}

func toResponse(snap login.Snapshot) models.LoginResponse {
	status, ok := statusNames[snap.State]
	if !ok {
		status = models.StatusError
	}
	resp := models.LoginResponse{
		SessionID:        snap.ID,
		Status:           status,
		Message:          snap.Message,
		Error:            snap.ErrorMessage,
		Username:         snap.Username,
		VerificationCode: snap.VerificationCode,
	}
	if snap.RequiresTwoFactor {
		resp.TwofaMethod = snap.TwofaMethod
	}
	return resp
}
