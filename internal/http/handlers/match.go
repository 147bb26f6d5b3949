package handlers

import (
	"errors"
	"net/http"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/logx"
)

// MatchHandler handles partner responses to match notifications.
type MatchHandler struct {
	usecase matchUsecase
	logger  logx.Logger
}

// NewMatchHandler creates a new MatchHandler.
func NewMatchHandler(logger logx.Logger, uc matchUsecase) *MatchHandler {
	return &MatchHandler{usecase: uc, logger: logger}
}

type acceptRequest struct {
	PartnerID int64 `json:"partner_id"`
}

type rejectRequest struct {
	PartnerID int64  `json:"partner_id"`
	Reason    string `json:"reason,omitempty"`
}

// Accept handles POST /delivery/{id}/accept.
func (h *MatchHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, err := uuidFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req acceptRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.PartnerID <= 0 {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid partner id")
		return
	}

	d, err := h.usecase.Accept(r.Context(), id, req.PartnerID)
	switch {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(*d))
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.logger, w, r, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrAlreadyAssigned):
		writeError(h.logger, w, r, http.StatusConflict, "already assigned to another partner")
	case errors.Is(err, apperr.ErrWindowClosed):
		writeError(h.logger, w, r, http.StatusConflict, "acceptance window closed")
	case errors.Is(err, apperr.ErrCapacityExceeded):
		writeError(h.logger, w, r, http.StatusConflict, "partner at capacity")
	case errors.Is(err, apperr.ErrDeliveryCancelled):
		writeError(h.logger, w, r, http.StatusConflict, "delivery cancelled")
	case errors.Is(err, apperr.ErrInvalidTransition):
		writeError(h.logger, w, r, http.StatusConflict, "delivery is no longer active")
	case errors.Is(err, apperr.ErrConflict):
		writeError(h.logger, w, r, http.StatusConflict, "partner was not notified")
	default:
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
	}
}

// Reject handles POST /delivery/{id}/reject.
func (h *MatchHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := uuidFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req rejectRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.PartnerID <= 0 {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid partner id")
		return
	}

	err = h.usecase.Reject(r.Context(), id, req.PartnerID, req.Reason)
	switch {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "rejected"})
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.logger, w, r, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrDeliveryCancelled):
		writeError(h.logger, w, r, http.StatusConflict, "delivery cancelled")
	case errors.Is(err, apperr.ErrInvalidTransition):
		writeError(h.logger, w, r, http.StatusConflict, "delivery is no longer active")
	default:
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
	}
}
