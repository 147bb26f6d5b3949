package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/service/bidding"
)

// BidHandler handles partner bids on open windows.
type BidHandler struct {
	usecase bidUsecase
	logger  logx.Logger
}

// NewBidHandler creates a new BidHandler.
func NewBidHandler(logger logx.Logger, uc bidUsecase) *BidHandler {
	return &BidHandler{usecase: uc, logger: logger}
}

type submitBidRequest struct {
	PartnerID          int64        `json:"partner_id"`
	Amount             string       `json:"amount"`
	Notes              string       `json:"notes,omitempty"`
	Location           *geoPointDTO `json:"location,omitempty"`
	EstPickupMinutes   int          `json:"est_pickup_minutes,omitempty"`
	EstDeliveryMinutes int          `json:"est_delivery_minutes,omitempty"`
	RequestID          string       `json:"request_id,omitempty"`
}

type bidDTO struct {
	ID                 string    `json:"id"`
	DeliveryID         string    `json:"delivery_id"`
	PartnerID          int64     `json:"partner_id"`
	Amount             string    `json:"amount"`
	Notes              string    `json:"notes,omitempty"`
	DistanceToPickupKm float64   `json:"distance_to_pickup_km"`
	EstPickupMinutes   int       `json:"est_pickup_minutes,omitempty"`
	EstDeliveryMinutes int       `json:"est_delivery_minutes,omitempty"`
	Status             string    `json:"status"`
	ExceedsMaxRate     bool      `json:"exceeds_max_rate"`
	Reason             string    `json:"reason,omitempty"`
	ExpiresAt          time.Time `json:"expires_at"`
	CreatedAt          time.Time `json:"created_at"`
}

type withdrawBidRequest struct {
	PartnerID int64 `json:"partner_id"`
}

func bidToResponse(b domain.Bid) bidDTO {
	return bidDTO{
		ID:                 b.ID.String(),
		DeliveryID:         b.DeliveryID.String(),
		PartnerID:          b.PartnerID,
		Amount:             b.Amount.StringFixed(2),
		Notes:              b.Notes,
		DistanceToPickupKm: b.DistanceToPickupKm,
		EstPickupMinutes:   b.EstPickupMinutes,
		EstDeliveryMinutes: b.EstDeliveryMinutes,
		Status:             string(b.Status),
		ExceedsMaxRate:     b.ExceedsMaxRate,
		Reason:             b.Reason,
		ExpiresAt:          b.ExpiresAt,
		CreatedAt:          b.CreatedAt,
	}
}

func bidsToResponse(list []domain.Bid) []bidDTO {
	out := make([]bidDTO, 0, len(list))
	for _, b := range list {
		out = append(out, bidToResponse(b))
	}
	return out
}

// Submit handles POST /delivery/{id}/bid.
func (h *BidHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := uuidFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req submitBidRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.PartnerID <= 0 {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid partner id")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid amount")
		return
	}
	var requestID uuid.UUID
	if req.RequestID != "" {
		requestID, err = uuid.Parse(req.RequestID)
		if err != nil {
			writeError(h.logger, w, r, http.StatusBadRequest, "invalid request id")
			return
		}
	}

	model := bidding.BidRequest{
		DeliveryID:         id,
		PartnerID:          req.PartnerID,
		Amount:             amount,
		Notes:              req.Notes,
		EstPickupMinutes:   req.EstPickupMinutes,
		EstDeliveryMinutes: req.EstDeliveryMinutes,
		RequestID:          requestID,
	}
	if req.Location != nil {
		model.Location = domain.GeoPoint{Lat: req.Location.Lat, Lng: req.Location.Lng}
	}

	b, err := h.usecase.SubmitBid(r.Context(), model)
	switch {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusCreated, bidToResponse(*b))
	case errors.Is(err, apperr.ErrInvalid):
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid bid")
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.logger, w, r, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrWindowClosed):
		writeError(h.logger, w, r, http.StatusConflict, "bid window closed")
	case errors.Is(err, apperr.ErrDuplicateBid):
		writeError(h.logger, w, r, http.StatusConflict, "bid already placed")
	case errors.Is(err, apperr.ErrBidLimitReached):
		writeError(h.logger, w, r, http.StatusConflict, "bid limit reached")
	case errors.Is(err, apperr.ErrCapacityExceeded):
		writeError(h.logger, w, r, http.StatusConflict, "partner at capacity")
	case errors.Is(err, apperr.ErrDeliveryCancelled):
		writeError(h.logger, w, r, http.StatusConflict, "delivery cancelled")
	default:
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
	}
}

// Withdraw handles POST /bid/{id}/withdraw.
func (h *BidHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := uuidFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req withdrawBidRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.PartnerID <= 0 {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid partner id")
		return
	}

	err = h.usecase.WithdrawBid(r.Context(), id, req.PartnerID)
	switch {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "withdrawn"})
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.logger, w, r, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrConflict):
		writeError(h.logger, w, r, http.StatusConflict, "bid not withdrawable")
	default:
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
	}
}
