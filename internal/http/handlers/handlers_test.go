package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"service-dispatch/internal/http/handlers"
	"service-dispatch/internal/logx"
	testlog "service-dispatch/internal/testutil"
)

func testLogger() logx.Logger {
	return testlog.New().Logger()
}

// withURLParam binds a chi route parameter onto the request, the way the
// router would before invoking the handler.
func withURLParam(r *http.Request, name, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(name, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, routeCtx))
}

func TestHandlers_Ping(t *testing.T) {
	t.Parallel()

	h := handlers.New(testLogger())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rr := httptest.NewRecorder()
	h.Ping(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"message":"pong"}`, rr.Body.String())
}

func TestHandlers_HealthcheckHead(t *testing.T) {
	t.Parallel()

	h := handlers.New(testLogger())

	req := httptest.NewRequest(http.MethodHead, "/healthcheck", nil)
	rr := httptest.NewRecorder()
	h.HealthcheckHead(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestHandlers_NotFound(t *testing.T) {
	t.Parallel()

	h := handlers.New(testLogger())

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()
	h.NotFound(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.JSONEq(t, `{"error":"route not found"}`, rr.Body.String())
}
