package handlers

import (
	"errors"
	"net/http"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

// DeliveryHandler handles HTTP requests for delivery resources.
type DeliveryHandler struct {
	usecase deliveryUsecase
	logger  logx.Logger
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(logger logx.Logger, uc deliveryUsecase) *DeliveryHandler {
	return &DeliveryHandler{usecase: uc, logger: logger}
}

// Create handles POST /delivery.
// @Summary Create a delivery
// @Description Stores a delivery with a price estimate and starts matching
// @Tags deliveries
// @Accept json
// @Produce json
// @Param request body createDeliveryRequest true "Create delivery payload"
// @Success 201 {object} deliveryDTO
// @Failure 400 {object} ErrorResponse "invalid input"
// @Failure 500 {object} ErrorResponse "internal error"
// @Router /delivery [post]
func (h *DeliveryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDeliveryRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	model, err := req.toModel()
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid declared value")
		return
	}

	d, err := h.usecase.Create(r.Context(), model)
	switch {
	case err == nil:
		w.Header().Set("Location", "/delivery/"+d.ID.String())
		writeJSON(h.logger, w, r, http.StatusCreated, deliveryToResponse(*d))
	case errors.Is(err, apperr.ErrInvalid):
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid input")
	default:
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
	}
}

// GetByID handles GET /delivery/{id}.
func (h *DeliveryHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuidFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	d, err := h.usecase.Get(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(*d))
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.logger, w, r, http.StatusNotFound, "not found")
	default:
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
	}
}

// Cancel handles POST /delivery/{id}/cancel.
func (h *DeliveryHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuidFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req cancelDeliveryRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	err = h.usecase.Cancel(r.Context(), id, req.Reason)
	switch {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "cancelled"})
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.logger, w, r, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrInvalidTransition):
		writeError(h.logger, w, r, http.StatusConflict, "delivery already completed")
	default:
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
	}
}

// Progress handles POST /delivery/{id}/status.
func (h *DeliveryHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id, err := uuidFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req progressRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.PartnerID <= 0 {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid partner id")
		return
	}

	d, err := h.usecase.Progress(r.Context(), id, req.PartnerID, domain.DeliveryStatus(req.Status))
	switch {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(*d))
	case errors.Is(err, apperr.ErrInvalid):
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid status")
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.logger, w, r, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrInvalidTransition):
		writeError(h.logger, w, r, http.StatusConflict, "invalid transition")
	case errors.Is(err, apperr.ErrDeliveryCancelled):
		writeError(h.logger, w, r, http.StatusConflict, "delivery cancelled")
	case errors.Is(err, apperr.ErrConflict):
		writeError(h.logger, w, r, http.StatusConflict, "not the assigned partner")
	default:
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
	}
}

// ListAttempts handles GET /delivery/{id}/attempts.
func (h *DeliveryHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	id, err := uuidFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	list, err := h.usecase.ListAttempts(r.Context(), id)
	if err != nil {
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, attemptsToResponse(list))
}

// ListBids handles GET /delivery/{id}/bids.
func (h *DeliveryHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	id, err := uuidFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	list, err := h.usecase.ListBids(r.Context(), id)
	if err != nil {
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, bidsToResponse(list))
}
