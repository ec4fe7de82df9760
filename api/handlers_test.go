/*
handlers_test.go - HTTP tests for the ticketing API

Tests for:
- The distribute/settle/unsettle flow end to end through the router
- Error to status mapping (400, 404, 409, 423) and validation details
- Bulk CSV imports
- Staff cash counts and batch clearance
- Report download, demo scenarios and the metrics endpoint
*/
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ticket-engine/metrics"
	"github.com/warp/ticket-engine/report"
	"github.com/warp/ticket-engine/store/sqlstore"
	"github.com/warp/ticket-engine/ticketing"
)

// =============================================================================
// FIXTURE
// =============================================================================

type apiFixture struct {
	t      *testing.T
	router *chi.Mux
	scope  string
	staff  string
	rate   string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store, err := sqlstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rec := metrics.New()
	h := NewHandler(ticketing.New(store, ticketing.WithPublisher(rec)), rec, nil)
	h.now = func() time.Time { return time.Date(2025, 7, 2, 18, 0, 0, 0, time.UTC) }

	f := &apiFixture{t: t, router: NewRouter(h, nil)}
	f.scope = decodeAs[ScopeDTO](t, f.expect(http.MethodPost, "/api/scopes", CreateScopeRequest{Name: "Summer Fair"}, http.StatusCreated)).ID
	f.staff = decodeAs[StaffDTO](t, f.expect(http.MethodPost, "/api/staff", CreateStaffRequest{Name: "Dana"}, http.StatusCreated)).ID
	f.rate = decodeAs[RateDTO](t, f.expect(http.MethodPost, "/api/rates", CreateRateRequest{Name: "Ferris Wheel", UnitPrice: decimal.NewFromInt(10)}, http.StatusCreated)).ID
	return f
}

// do sends body as JSON, or verbatim when it is a string.
func (f *apiFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(f.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) expect(method, path string, body any, status int) *httptest.ResponseRecorder {
	f.t.Helper()
	rec := f.do(method, path, body)
	require.Equal(f.t, status, rec.Code, "%s %s: %s", method, path, rec.Body.String())
	return rec
}

func (f *apiFixture) path(suffix string) string {
	return "/api/scopes/" + f.scope + suffix
}

func (f *apiFixture) bundle(color string, start, end int64) BundleDTO {
	f.t.Helper()
	rec := f.expect(http.MethodPost, f.path("/bundles"), CreateBundleRequest{
		UnitPrice: decimal.NewFromInt(10), Color: color, Start: &start, End: &end,
	}, http.StatusCreated)
	return decodeAs[BundleDTO](f.t, rec)
}

func (f *apiFixture) distribute(bundleID string) DistributionDTO {
	f.t.Helper()
	rec := f.expect(http.MethodPost, f.path("/distributions"), DistributeRequest{
		StaffID: f.staff, RateID: f.rate, BundleID: bundleID, Date: "2025-07-01",
	}, http.StatusCreated)
	return decodeAs[DistributionDTO](f.t, rec)
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func int64p(v int64) *int64 { return &v }

func decp(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// =============================================================================
// SETTLEMENT FLOW
// =============================================================================

func TestSettleFlow(t *testing.T) {
	// GIVEN: Bundle 1-100 handed to Dana
	f := newAPIFixture(t)
	b := f.bundle("red", 1, 100)
	d := f.distribute(b.ID)
	assert.Equal(t, "distributed", d.Status)

	// WHEN: Dana returns from serial 61 with 200 paid electronically
	rec := f.expect(http.MethodPost, f.path("/distributions/"+d.ID+"/settle"), SettleRequest{
		ReturnedStart: int64p(61),
		Electronic:    decp(200),
		User:          "ops",
	}, http.StatusOK)

	// THEN: 60 sold for 600, the tail is back in stock and the ledger has the revenue
	res := decodeAs[SettleResponse](t, rec)
	require.NotNil(t, res.Distribution.Settlement)
	assert.Equal(t, "settled", res.Distribution.Status)
	assert.Equal(t, int64(60), res.Distribution.Settlement.TicketsSold)
	assert.True(t, decimal.NewFromInt(600).Equal(res.Distribution.Settlement.Revenue))
	assert.True(t, decimal.NewFromInt(400).Equal(res.Distribution.Settlement.Cash))
	assert.Equal(t, "2025-07-02", res.Distribution.Settlement.SettledOn, "date defaults to today")
	require.NotNil(t, res.Remainder)
	assert.Equal(t, int64(61), res.Remainder.Start)
	assert.Equal(t, int64(100), res.Remainder.End)
	require.NotNil(t, res.Entry)
	assert.Equal(t, ticketing.CategoryTicketSales, res.Entry.Category)

	sum := decodeAs[SummaryDTO](t, f.expect(http.MethodGet, f.path("/summary"), nil, http.StatusOK))
	assert.Equal(t, int64(60), sum.TicketsSold)
	assert.True(t, sum.Balanced)

	// WHEN: The settlement is reversed
	f.expect(http.MethodPost, f.path("/distributions/"+d.ID+"/unsettle"), nil, http.StatusOK)

	// THEN: The original bundle is whole again and the ledger is empty
	bundles := decodeAs[[]BundleDTO](t, f.expect(http.MethodGet, f.path("/bundles?status=distributed"), nil, http.StatusOK))
	require.Len(t, bundles, 1)
	assert.Equal(t, b.ID, bundles[0].ID)
	assert.Equal(t, int64(100), bundles[0].End)

	entries := decodeAs[[]EntryDTO](t, f.expect(http.MethodGet, f.path("/entries"), nil, http.StatusOK))
	assert.Empty(t, entries)
}

func TestEditAndCancel(t *testing.T) {
	f := newAPIFixture(t)
	first := f.bundle("red", 1, 100)
	second := f.bundle("red", 101, 200)
	d := f.distribute(first.ID)

	edited := decodeAs[DistributionDTO](t, f.expect(http.MethodPut, f.path("/distributions/"+d.ID), EditDistributionRequest{
		StaffID: f.staff, RateID: f.rate, BundleID: second.ID,
	}, http.StatusOK))
	assert.Equal(t, int64(101), edited.Start)

	f.expect(http.MethodPost, f.path("/distributions/"+d.ID+"/cancel"), nil, http.StatusOK)

	got := decodeAs[DistributionDTO](t, f.expect(http.MethodGet, f.path("/distributions/"+d.ID), nil, http.StatusOK))
	assert.Equal(t, "cancelled", got.Status)

	available := decodeAs[[]BundleDTO](t, f.expect(http.MethodGet, f.path("/bundles?status=available"), nil, http.StatusOK))
	assert.Len(t, available, 2)
}

func TestDistributeImported(t *testing.T) {
	f := newAPIFixture(t)
	d := decodeAs[DistributionDTO](t, f.expect(http.MethodPost, f.path("/distributions/imported"), ImportedDistributionRequest{
		StaffID: f.staff, RateID: f.rate, Start: int64p(500), End: int64p(599), Date: "2025-07-01",
	}, http.StatusCreated))
	assert.True(t, d.Imported)
	assert.Empty(t, d.BundleID)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestErrorStatuses(t *testing.T) {
	f := newAPIFixture(t)
	b := f.bundle("red", 1, 100)
	d := f.distribute(b.ID)
	archived := decodeAs[ScopeDTO](t, f.expect(http.MethodPost, "/api/scopes", CreateScopeRequest{Name: "Winter Fair"}, http.StatusCreated))
	require.False(t, archived.Active)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{
			name: "invalid range", method: http.MethodPost, path: f.path("/bundles"),
			body:   CreateBundleRequest{UnitPrice: decimal.NewFromInt(10), Color: "blue", Start: int64p(50), End: int64p(10)},
			status: http.StatusBadRequest, code: "invalid_range",
		},
		{
			name: "overlap", method: http.MethodPost, path: f.path("/bundles"),
			body:   CreateBundleRequest{UnitPrice: decimal.NewFromInt(10), Color: "red", Start: int64p(90), End: int64p(120)},
			status: http.StatusConflict, code: "overlap",
		},
		{
			name: "not available", method: http.MethodPost, path: f.path("/distributions"),
			body:   DistributeRequest{StaffID: f.staff, RateID: f.rate, BundleID: b.ID, Date: "2025-07-01"},
			status: http.StatusConflict, code: "not_available",
		},
		{
			name: "returned serial out of range", method: http.MethodPost, path: f.path("/distributions/" + d.ID + "/settle"),
			body:   SettleRequest{ReturnedStart: int64p(150)},
			status: http.StatusBadRequest, code: "out_of_range",
		},
		{
			name: "unknown distribution", method: http.MethodPost, path: f.path("/distributions/missing/cancel"),
			status: http.StatusNotFound, code: "not_found",
		},
		{
			name: "unknown scope list", method: http.MethodGet, path: "/api/scopes/missing/bundles",
			status: http.StatusNotFound, code: "not_found",
		},
		{
			name: "archived scope", method: http.MethodPost, path: "/api/scopes/" + archived.ID + "/bundles",
			body:   CreateBundleRequest{UnitPrice: decimal.NewFromInt(10), Color: "red", Start: int64p(1), End: int64p(10)},
			status: http.StatusLocked, code: "archived_scope",
		},
		{
			name: "unsettle open distribution", method: http.MethodPost, path: f.path("/distributions/" + d.ID + "/unsettle"),
			status: http.StatusConflict, code: "illegal_transition",
		},
		{
			name: "duplicate staff", method: http.MethodPost, path: "/api/staff",
			body:   CreateStaffRequest{Name: "Dana"},
			status: http.StatusConflict, code: "duplicate",
		},
		{
			name: "bad status filter", method: http.MethodGet, path: f.path("/bundles?status=lost"),
			status: http.StatusBadRequest, code: "invalid_input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decodeAs[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestValidationErrors(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, f.path("/distributions"), map[string]string{"rate_id": f.rate, "date": "July 1st"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_input", resp.Code)
	assert.Equal(t, map[string]string{
		"staff_id":  "required",
		"bundle_id": "required",
		"date":      "datetime",
	}, resp.Details)

	rec = f.do(http.MethodPost, "/api/staff", `{"name": "Noa", "role": "cashier"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	rec = f.do(http.MethodPost, "/api/staff", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// BULK IMPORT
// =============================================================================

func TestImportBundles(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.expect(http.MethodPost, f.path("/bundles/import"),
		"price,color,startSerial,endSerial\n10,green,1,50\n10,green,51,100\n", http.StatusCreated)
	assert.Equal(t, 2, decodeAs[ImportResponse](t, rec).Imported)

	// Line 2 overlaps green 1-50, so yellow on line 1 must not survive either.
	rec = f.do(http.MethodPost, f.path("/bundles/import"), "10,yellow,1,10\n10,green,40,60\n")
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	var resp struct {
		Details struct {
			Line int `json:"line"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Details.Line)

	yellow := decodeAs[[]BundleDTO](t, f.expect(http.MethodGet, f.path("/bundles?color=yellow"), nil, http.StatusOK))
	assert.Empty(t, yellow)
}

func TestImportDistributions(t *testing.T) {
	f := newAPIFixture(t)
	f.bundle("red", 1, 100)

	rec := f.expect(http.MethodPost, f.path("/distributions/import"),
		"date,staffName,rideName,startSerial\n2025-07-01,Dana,Ferris Wheel,1\n", http.StatusCreated)
	assert.Equal(t, 1, decodeAs[ImportResponse](t, rec).Imported)

	dists := decodeAs[[]DistributionDTO](t, f.expect(http.MethodGet, f.path("/distributions?staff_id="+f.staff), nil, http.StatusOK))
	require.Len(t, dists, 1)
	assert.Equal(t, int64(100), dists[0].End)
}

// =============================================================================
// CASH RECONCILIATION
// =============================================================================

func TestStaffSettlementFlow(t *testing.T) {
	// GIVEN: Dana settled 600 revenue with 200 electronic, so holds 400 cash
	f := newAPIFixture(t)
	d := f.distribute(f.bundle("red", 1, 100).ID)
	f.expect(http.MethodPost, f.path("/distributions/"+d.ID+"/settle"), SettleRequest{
		ReturnedStart: int64p(61), Electronic: decp(200), Date: "2025-07-02",
	}, http.StatusOK)

	expected := decodeAs[ExpectedCashDTO](t, f.expect(http.MethodGet,
		f.path("/staff-settlements/expected?staff_id="+f.staff+"&as_of=2025-07-02"), nil, http.StatusOK))
	assert.True(t, decimal.NewFromInt(400).Equal(expected.Expected))

	// WHEN: Dana hands in exactly 400
	balanced := decodeAs[RecordStaffSettlementResponse](t, f.expect(http.MethodPost, f.path("/staff-settlements"),
		RecordStaffSettlementRequest{StaffID: f.staff, Date: "2025-07-02", Actual: decimal.NewFromInt(400)}, http.StatusOK))

	// THEN: Nothing is stored
	assert.True(t, balanced.Balanced)
	assert.Nil(t, balanced.Settlement)

	// WHEN: Dana hands in 350, with expected computed server side
	short := decodeAs[RecordStaffSettlementResponse](t, f.expect(http.MethodPost, f.path("/staff-settlements"),
		RecordStaffSettlementRequest{StaffID: f.staff, Date: "2025-07-02", Actual: decimal.NewFromInt(350)}, http.StatusCreated))

	// THEN: A 50 shortfall is recorded, unsettled
	require.NotNil(t, short.Settlement)
	assert.True(t, decimal.NewFromInt(-50).Equal(short.Settlement.Difference))
	assert.Equal(t, "unsettled", short.Settlement.Status)

	// WHEN: Clearing it twice
	first := decodeAs[ClearBatchResponse](t, f.expect(http.MethodPost, "/api/staff-settlements/clear",
		ClearBatchRequest{IDs: []string{short.Settlement.ID}, User: "office"}, http.StatusOK))
	second := decodeAs[ClearBatchResponse](t, f.expect(http.MethodPost, "/api/staff-settlements/clear",
		ClearBatchRequest{IDs: []string{short.Settlement.ID}, User: "office"}, http.StatusOK))

	// THEN: Only the first call changes anything
	assert.Equal(t, []string{short.Settlement.ID}, first.Cleared)
	assert.Empty(t, second.Cleared)

	records := decodeAs[[]StaffSettlementDTO](t, f.expect(http.MethodGet, f.path("/staff-settlements?status=settled"), nil, http.StatusOK))
	require.Len(t, records, 1)
	assert.Equal(t, "office", records[0].ClearedBy)
	require.NotNil(t, records[0].ClearedOn)
	assert.Equal(t, "2025-07-02", *records[0].ClearedOn)
}

func TestClearBatch_Validation(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodPost, "/api/staff-settlements/clear", ClearBatchRequest{User: "office"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/staff-settlements/clear", ClearBatchRequest{IDs: []string{"missing"}, User: "office"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// REPORTING
// =============================================================================

func TestReportDownload(t *testing.T) {
	f := newAPIFixture(t)
	f.bundle("red", 1, 100)

	rec := f.expect(http.MethodGet, f.path("/report.xlsx"), nil, http.StatusOK)
	assert.Equal(t, report.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestRateUpdate(t *testing.T) {
	f := newAPIFixture(t)
	inactive := false
	rate := decodeAs[RateDTO](t, f.expect(http.MethodPut, "/api/rates/"+f.rate,
		UpdateRateRequest{UnitPrice: decp(12), Active: &inactive}, http.StatusOK))
	assert.True(t, decimal.NewFromInt(12).Equal(rate.UnitPrice))
	assert.False(t, rate.Active)
	assert.Equal(t, "Ferris Wheel", rate.Name)

	rates := decodeAs[[]RateDTO](t, f.expect(http.MethodGet, "/api/rates", nil, http.StatusOK))
	assert.Len(t, rates, 1)
}

func TestScenarios(t *testing.T) {
	f := newAPIFixture(t)

	list := decodeAs[[]ScenarioDTO](t, f.expect(http.MethodGet, "/api/scenarios", nil, http.StatusOK))
	assert.Len(t, list, 2)

	loaded := decodeAs[LoadScenarioResponse](t, f.expect(http.MethodPost, "/api/scenarios/load",
		LoadScenarioRequest{ScenarioID: "mid-season"}, http.StatusCreated))
	assert.True(t, loaded.Scope.Active)

	sum := decodeAs[SummaryDTO](t, f.expect(http.MethodGet, "/api/scopes/"+loaded.Scope.ID+"/summary", nil, http.StatusOK))
	assert.Equal(t, int64(110), sum.TicketsSold, "60 Ferris Wheel plus 50 Carousel")
	assert.True(t, sum.Balanced)

	// The fixture scope was archived by the load.
	rec := f.do(http.MethodPost, f.path("/bundles"), CreateBundleRequest{
		UnitPrice: decimal.NewFromInt(10), Color: "red", Start: int64p(1), End: int64p(10),
	})
	assert.Equal(t, http.StatusLocked, rec.Code)

	rec = f.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "closing-night"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.do(http.MethodPost, f.path("/distributions/missing/cancel"), nil)

	rec := f.expect(http.MethodGet, "/metrics", nil, http.StatusOK)
	body := rec.Body.String()
	assert.Contains(t, body, `ticketing_api_errors_total{status="404"} 1`)
	assert.Contains(t, body, `route="/api/scopes/{scopeID}/distributions/{id}/cancel"`)
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.expect(http.MethodGet, "/api/health", nil, http.StatusOK)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
