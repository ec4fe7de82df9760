package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ticket-engine/ticketing"
)

func TestRecorder_CountsSettlementsAndReversals(t *testing.T) {
	r := New()
	ctx := context.Background()

	require.NoError(t, r.Publish(ctx, ticketing.Event{
		Type: ticketing.EventDistributionSettled, Tickets: 60, Amount: decimal.NewFromInt(600),
	}))
	require.NoError(t, r.Publish(ctx, ticketing.Event{
		Type: ticketing.EventDistributionUnsettled, Amount: decimal.NewFromInt(600),
	}))
	require.NoError(t, r.Publish(ctx, ticketing.Event{
		Type: ticketing.EventStaffSettlementCreated, Amount: decimal.NewFromInt(-200),
	}))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.events.WithLabelValues("distribution.settled")))
	assert.Equal(t, 60.0, testutil.ToFloat64(r.ticketsSold))
	assert.Equal(t, 600.0, testutil.ToFloat64(r.revenueSettled))
	assert.Equal(t, 600.0, testutil.ToFloat64(r.revenueReversed))
	assert.Equal(t, 200.0, testutil.ToFloat64(r.cashDifference.WithLabelValues("short")))
}

func TestRecorder_MiddlewareAndHandler(t *testing.T) {
	r := New()
	router := chi.NewRouter()
	router.Use(r.Middleware)
	router.Get("/bundles/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	router.Handle("/metrics", r.Handler())

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bundles/b-1", nil))
	r.ObserveError(http.StatusNotFound)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `route="/bundles/{id}"`), "latency is labelled by route pattern")
	assert.Contains(t, body, `ticketing_api_errors_total{status="404"} 1`)
}
