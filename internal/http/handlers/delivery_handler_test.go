package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/http/handlers"
	"service-dispatch/internal/service/delivery"
)

type stubDeliveryUsecase struct {
	createFn       func(ctx context.Context, req delivery.CreateRequest) (*domain.Delivery, error)
	getFn          func(ctx context.Context, id uuid.UUID) (*domain.Delivery, error)
	cancelFn       func(ctx context.Context, id uuid.UUID, reason string) error
	progressFn     func(ctx context.Context, id uuid.UUID, partnerID int64, to domain.DeliveryStatus) (*domain.Delivery, error)
	listAttemptsFn func(ctx context.Context, id uuid.UUID) ([]domain.MatchingAttempt, error)
	listBidsFn     func(ctx context.Context, id uuid.UUID) ([]domain.Bid, error)
}

func (s *stubDeliveryUsecase) Create(ctx context.Context, req delivery.CreateRequest) (*domain.Delivery, error) {
	return s.createFn(ctx, req)
}

func (s *stubDeliveryUsecase) Get(ctx context.Context, id uuid.UUID) (*domain.Delivery, error) {
	return s.getFn(ctx, id)
}

func (s *stubDeliveryUsecase) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	return s.cancelFn(ctx, id, reason)
}

func (s *stubDeliveryUsecase) Progress(ctx context.Context, id uuid.UUID, partnerID int64, to domain.DeliveryStatus) (*domain.Delivery, error) {
	return s.progressFn(ctx, id, partnerID, to)
}

func (s *stubDeliveryUsecase) ListAttempts(ctx context.Context, id uuid.UUID) ([]domain.MatchingAttempt, error) {
	return s.listAttemptsFn(ctx, id)
}

func (s *stubDeliveryUsecase) ListBids(ctx context.Context, id uuid.UUID) ([]domain.Bid, error) {
	return s.listBidsFn(ctx, id)
}

func sampleDelivery() *domain.Delivery {
	return &domain.Delivery{
		ID:             uuid.New(),
		RequesterID:    1,
		RequesterType:  domain.RequesterEC,
		Priority:       domain.PriorityASAP,
		Status:         domain.StatusMatching,
		EstimatedPrice: decimal.RequireFromString("90.00"),
		DistanceKm:     4.2,
	}
}

const createDeliveryBody = `{
	"requester_id": 1,
	"requester_type": "ec",
	"pickup": {"lat": 12.97, "lng": 77.59, "address": "MG Road 1"},
	"drop": {"lat": 12.93, "lng": 77.62, "address": "HSR Layout 5"},
	"package": {"weight_kg": 2.5, "declared_value": "1200.00"}
}`

func TestDeliveryHandler_Create_OK(t *testing.T) {
	t.Parallel()

	d := sampleDelivery()
	uc := &stubDeliveryUsecase{
		createFn: func(_ context.Context, req delivery.CreateRequest) (*domain.Delivery, error) {
			require.Equal(t, int64(1), req.RequesterID)
			require.Equal(t, domain.RequesterEC, req.RequesterType)
			require.Equal(t, 2.5, req.Package.WeightKg)
			require.True(t, req.Package.DeclaredValue.Equal(decimal.RequireFromString("1200.00")))
			return d, nil
		},
	}
	h := handlers.NewDeliveryHandler(testLogger(), uc)

	req := httptest.NewRequest(http.MethodPost, "/delivery", strings.NewReader(createDeliveryBody))
	rr := httptest.NewRecorder()
	h.Create(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "/delivery/"+d.ID.String(), rr.Header().Get("Location"))

	var resp struct {
		ID             string `json:"id"`
		Status         string `json:"status"`
		EstimatedPrice string `json:"estimated_price"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Equal(t, d.ID.String(), resp.ID)
	require.Equal(t, "matching", resp.Status)
	require.Equal(t, "90.00", resp.EstimatedPrice)
}

func TestDeliveryHandler_Create_BadDeclaredValue(t *testing.T) {
	t.Parallel()

	h := handlers.NewDeliveryHandler(testLogger(), &stubDeliveryUsecase{
		createFn: func(context.Context, delivery.CreateRequest) (*domain.Delivery, error) {
			require.FailNow(t, "usecase.Create should not be called")
			return nil, nil
		},
	})

	body := `{"requester_id":1,"requester_type":"ec","pickup":{"lat":1,"lng":1,"address":"a"},"drop":{"lat":2,"lng":2,"address":"b"},"package":{"weight_kg":1,"declared_value":"lots"}}`
	req := httptest.NewRequest(http.MethodPost, "/delivery", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Create(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeliveryHandler_Create_InvalidInput(t *testing.T) {
	t.Parallel()

	h := handlers.NewDeliveryHandler(testLogger(), &stubDeliveryUsecase{
		createFn: func(context.Context, delivery.CreateRequest) (*domain.Delivery, error) {
			return nil, apperr.ErrInvalid
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/delivery", strings.NewReader(createDeliveryBody))
	rr := httptest.NewRecorder()
	h.Create(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeliveryHandler_GetByID_InvalidUUID(t *testing.T) {
	t.Parallel()

	h := handlers.NewDeliveryHandler(testLogger(), &stubDeliveryUsecase{})

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/delivery/nope", nil), "id", "nope")
	rr := httptest.NewRecorder()
	h.GetByID(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeliveryHandler_GetByID_NotFound(t *testing.T) {
	t.Parallel()

	h := handlers.NewDeliveryHandler(testLogger(), &stubDeliveryUsecase{
		getFn: func(context.Context, uuid.UUID) (*domain.Delivery, error) {
			return nil, apperr.ErrNotFound
		},
	})

	id := uuid.NewString()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/delivery/"+id, nil), "id", id)
	rr := httptest.NewRecorder()
	h.GetByID(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeliveryHandler_Cancel_OK(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	uc := &stubDeliveryUsecase{
		cancelFn: func(_ context.Context, got uuid.UUID, reason string) error {
			require.Equal(t, id, got)
			require.Equal(t, "customer_request", reason)
			return nil
		},
	}
	h := handlers.NewDeliveryHandler(testLogger(), uc)

	req := withURLParam(
		httptest.NewRequest(http.MethodPost, "/delivery/"+id.String()+"/cancel", strings.NewReader(`{"reason":"customer_request"}`)),
		"id", id.String(),
	)
	rr := httptest.NewRecorder()
	h.Cancel(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"cancelled"}`, rr.Body.String())
}

func TestDeliveryHandler_Cancel_Terminal(t *testing.T) {
	t.Parallel()

	h := handlers.NewDeliveryHandler(testLogger(), &stubDeliveryUsecase{
		cancelFn: func(context.Context, uuid.UUID, string) error {
			return apperr.ErrInvalidTransition
		},
	})

	id := uuid.NewString()
	req := withURLParam(
		httptest.NewRequest(http.MethodPost, "/delivery/"+id+"/cancel", strings.NewReader(`{"reason":"x"}`)),
		"id", id,
	)
	rr := httptest.NewRecorder()
	h.Cancel(rr, req)

	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestDeliveryHandler_Progress_StatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"invalid status", apperr.ErrInvalid, http.StatusBadRequest},
		{"not found", apperr.ErrNotFound, http.StatusNotFound},
		{"bad transition", apperr.ErrInvalidTransition, http.StatusConflict},
		{"cancelled", apperr.ErrDeliveryCancelled, http.StatusConflict},
		{"wrong partner", apperr.ErrConflict, http.StatusConflict},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := handlers.NewDeliveryHandler(testLogger(), &stubDeliveryUsecase{
				progressFn: func(context.Context, uuid.UUID, int64, domain.DeliveryStatus) (*domain.Delivery, error) {
					if tc.err != nil {
						return nil, tc.err
					}
					return sampleDelivery(), nil
				},
			})

			id := uuid.NewString()
			req := withURLParam(
				httptest.NewRequest(http.MethodPost, "/delivery/"+id+"/status", strings.NewReader(`{"partner_id":3,"status":"picked_up"}`)),
				"id", id,
			)
			rr := httptest.NewRecorder()
			h.Progress(rr, req)

			require.Equal(t, tc.want, rr.Code)
		})
	}
}

func TestDeliveryHandler_Progress_MissingPartnerID(t *testing.T) {
	t.Parallel()

	h := handlers.NewDeliveryHandler(testLogger(), &stubDeliveryUsecase{})

	id := uuid.NewString()
	req := withURLParam(
		httptest.NewRequest(http.MethodPost, "/delivery/"+id+"/status", strings.NewReader(`{"status":"picked_up"}`)),
		"id", id,
	)
	rr := httptest.NewRecorder()
	h.Progress(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeliveryHandler_ListAttempts_OK(t *testing.T) {
	t.Parallel()

	h := handlers.NewDeliveryHandler(testLogger(), &stubDeliveryUsecase{
		listAttemptsFn: func(context.Context, uuid.UUID) ([]domain.MatchingAttempt, error) {
			return []domain.MatchingAttempt{
				{PartnerID: 3, Attempt: 1, Response: domain.ResponseRejected},
			}, nil
		},
	})

	id := uuid.NewString()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/delivery/"+id+"/attempts", nil), "id", id)
	rr := httptest.NewRecorder()
	h.ListAttempts(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp []struct {
		PartnerID int64  `json:"partner_id"`
		Response  string `json:"response"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp, 1)
	require.Equal(t, int64(3), resp[0].PartnerID)
	require.Equal(t, "rejected", resp[0].Response)
}
