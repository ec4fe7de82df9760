/*
handlers.go - HTTP API handlers for the ticketing engine

PURPOSE:
  Exposes the ticketing engine via REST API. Handles HTTP request/response,
  JSON serialization and validation, and delegates to ticketing.Engine.

ENDPOINTS:
  Directory:
    GET    /api/scopes                          List scopes
    POST   /api/scopes                          Create scope
    POST   /api/scopes/{scopeID}/activate       Make scope the writable one
    GET    /api/staff                           List staff
    POST   /api/staff                           Add staff member
    GET    /api/rates                           List rate categories
    POST   /api/rates                           Create rate category
    PUT    /api/rates/{id}                      Edit name, price, active flag

  Stock (per scope):
    GET    /api/scopes/{scopeID}/bundles              List (?status=&color=)
    POST   /api/scopes/{scopeID}/bundles              Create bundle
    POST   /api/scopes/{scopeID}/bundles/import       Bulk CSV import
    POST   /api/scopes/{scopeID}/bundles/{id}/retire  Available -> Cancelled

  Distributions (per scope):
    GET    /api/scopes/{scopeID}/distributions              List (?staff_id=&status=)
    POST   /api/scopes/{scopeID}/distributions              Distribute bundle
    POST   /api/scopes/{scopeID}/distributions/imported     Distribute without stock
    POST   /api/scopes/{scopeID}/distributions/import       Bulk CSV import
    GET    /api/scopes/{scopeID}/distributions/{id}         Get one
    PUT    /api/scopes/{scopeID}/distributions/{id}         Edit before settlement
    POST   /api/scopes/{scopeID}/distributions/{id}/cancel
    POST   /api/scopes/{scopeID}/distributions/{id}/settle
    POST   /api/scopes/{scopeID}/distributions/{id}/unsettle

  Cash reconciliation:
    GET    /api/scopes/{scopeID}/staff-settlements           List (?staff_id=&status=)
    GET    /api/scopes/{scopeID}/staff-settlements/expected  ?staff_id=&as_of=
    POST   /api/scopes/{scopeID}/staff-settlements           Record cash count
    POST   /api/staff-settlements/clear                      Clear a batch

  Reporting:
    GET    /api/scopes/{scopeID}/entries       Accounting ledger
    GET    /api/scopes/{scopeID}/summary       Derived totals
    GET    /api/scopes/{scopeID}/report.xlsx   Workbook export

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid range, returned serial out of range
  - 404: Unknown scope, staff, rate, bundle, distribution or settlement
  - 409: Overlap, not available, already settled, remainder consumed,
         illegal transition, duplicate name
  - 423: Write against an archived scope
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The user recorded on settlements and clearances is
  whatever the client sends.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warp/ticket-engine/metrics"
	"github.com/warp/ticket-engine/report"
	"github.com/warp/ticket-engine/ticketing"
)

// maxBodyBytes caps JSON and CSV request bodies.
const maxBodyBytes = 8 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine  *ticketing.Engine
	Metrics *metrics.Recorder // optional
	Logger  *slog.Logger

	validate *validator.Validate
	now      func() time.Time
}

// NewHandler creates a handler serving engine.
func NewHandler(engine *ticketing.Engine, rec *metrics.Recorder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		Engine:   engine,
		Metrics:  rec,
		Logger:   logger,
		validate: v,
		now:      time.Now,
	}
}

func (h *Handler) today() time.Time {
	return ticketing.TruncateDate(h.now())
}

func scopeParam(r *http.Request) ticketing.ScopeID {
	return ticketing.ScopeID(chi.URLParam(r, "scopeID"))
}

// Health reports liveness.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SCOPE HANDLERS
// =============================================================================

// ListScopes returns all scopes.
func (h *Handler) ListScopes(w http.ResponseWriter, r *http.Request) {
	scopes, err := h.Engine.Store().ListScopes(r.Context())
	if err != nil {
		h.fail(w, "Failed to list scopes", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(scopes, toScopeDTO))
}

// CreateScope registers an operating period.
func (h *Handler) CreateScope(w http.ResponseWriter, r *http.Request) {
	var req CreateScopeRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, err := h.Engine.CreateScope(r.Context(), req.Name)
	if err != nil {
		h.fail(w, "Failed to create scope", err)
		return
	}
	writeJSON(w, http.StatusCreated, toScopeDTO(*s))
}

// ActivateScope makes a scope writable and archives the rest.
func (h *Handler) ActivateScope(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.ActivateScope(r.Context(), scopeParam(r))
	if err != nil {
		h.fail(w, "Failed to activate scope", err)
		return
	}
	writeJSON(w, http.StatusOK, toScopeDTO(*s))
}

// =============================================================================
// STAFF & RATE HANDLERS
// =============================================================================

// ListStaff returns all staff members.
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.Engine.Store().ListStaff(r.Context())
	if err != nil {
		h.fail(w, "Failed to list staff", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(staff, toStaffDTO))
}

// CreateStaff adds a staff member.
func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req CreateStaffRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, err := h.Engine.CreateStaff(r.Context(), req.Name)
	if err != nil {
		h.fail(w, "Failed to create staff", err)
		return
	}
	writeJSON(w, http.StatusCreated, toStaffDTO(*s))
}

// ListRates returns all rate categories.
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Engine.Store().ListRates(r.Context())
	if err != nil {
		h.fail(w, "Failed to list rates", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(rates, toRateDTO))
}

// CreateRate adds a rate category.
func (h *Handler) CreateRate(w http.ResponseWriter, r *http.Request) {
	var req CreateRateRequest
	if !h.decode(w, r, &req) {
		return
	}
	rate, err := h.Engine.CreateRate(r.Context(), req.Name, req.UnitPrice)
	if err != nil {
		h.fail(w, "Failed to create rate", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRateDTO(*rate))
}

// UpdateRate edits a rate category. Settled revenue is unaffected.
func (h *Handler) UpdateRate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRateRequest
	if !h.decode(w, r, &req) {
		return
	}
	rate, err := h.Engine.UpdateRate(r.Context(), ticketing.RateID(chi.URLParam(r, "id")), ticketing.RateUpdate{
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Active:    req.Active,
	})
	if err != nil {
		h.fail(w, "Failed to update rate", err)
		return
	}
	writeJSON(w, http.StatusOK, toRateDTO(*rate))
}

// =============================================================================
// STOCK HANDLERS
// =============================================================================

// ListBundles returns the bundles of a scope.
// GET /api/scopes/{scopeID}/bundles?status=available&color=red
func (h *Handler) ListBundles(w http.ResponseWriter, r *http.Request) {
	f := ticketing.BundleFilter{ScopeID: scopeParam(r), Color: r.URL.Query().Get("color")}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := ticketing.ParseBundleStatus(s)
		if err != nil {
			h.fail(w, "Invalid status filter", err)
			return
		}
		f.Status = status
	}
	if !h.scopeExists(w, r, f.ScopeID) {
		return
	}
	bundles, err := h.Engine.Store().ListBundles(r.Context(), f)
	if err != nil {
		h.fail(w, "Failed to list bundles", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(bundles, toBundleDTO))
}

// CreateBundle adds a bundle to stock.
func (h *Handler) CreateBundle(w http.ResponseWriter, r *http.Request) {
	var req CreateBundleRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.Engine.CreateBundle(r.Context(), scopeParam(r), ticketing.BundleInput{
		UnitPrice: req.UnitPrice,
		Color:     req.Color,
		Start:     *req.Start,
		End:       *req.End,
	})
	if err != nil {
		h.fail(w, "Failed to create bundle", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBundleDTO(*b))
}

// ImportBundles creates bundles from a CSV body, all or nothing.
// POST /api/scopes/{scopeID}/bundles/import  (price,color,startSerial,endSerial)
func (h *Handler) ImportBundles(w http.ResponseWriter, r *http.Request) {
	bundles, err := h.Engine.ImportStock(r.Context(), scopeParam(r), http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, "Failed to import stock", err)
		return
	}
	writeJSON(w, http.StatusCreated, ImportResponse{Imported: len(bundles)})
}

// RetireBundle withdraws an Available bundle from stock.
func (h *Handler) RetireBundle(w http.ResponseWriter, r *http.Request) {
	b, err := h.Engine.RetireBundle(r.Context(), scopeParam(r), ticketing.BundleID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, "Failed to retire bundle", err)
		return
	}
	writeJSON(w, http.StatusOK, toBundleDTO(*b))
}

// =============================================================================
// DISTRIBUTION HANDLERS
// =============================================================================

// ListDistributions returns the distributions of a scope.
// GET /api/scopes/{scopeID}/distributions?staff_id=...&status=settled
func (h *Handler) ListDistributions(w http.ResponseWriter, r *http.Request) {
	f := ticketing.DistributionFilter{
		ScopeID: scopeParam(r),
		StaffID: ticketing.StaffID(r.URL.Query().Get("staff_id")),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := ticketing.ParseDistributionStatus(s)
		if err != nil {
			h.fail(w, "Invalid status filter", err)
			return
		}
		f.Status = status
	}
	if !h.scopeExists(w, r, f.ScopeID) {
		return
	}
	dists, err := h.Engine.Store().ListDistributions(r.Context(), f)
	if err != nil {
		h.fail(w, "Failed to list distributions", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(dists, toDistributionDTO))
}

// GetDistribution returns one distribution of a scope.
func (h *Handler) GetDistribution(w http.ResponseWriter, r *http.Request) {
	id := ticketing.DistributionID(chi.URLParam(r, "id"))
	d, err := h.Engine.Store().GetDistribution(r.Context(), id)
	if err == nil && d.ScopeID != scopeParam(r) {
		err = &ticketing.NotFoundError{Kind: "distribution", ID: string(id)}
	}
	if err != nil {
		h.fail(w, "Failed to get distribution", err)
		return
	}
	writeJSON(w, http.StatusOK, toDistributionDTO(*d))
}

// Distribute hands a bundle to a staff member.
func (h *Handler) Distribute(w http.ResponseWriter, r *http.Request) {
	var req DistributeRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := ticketing.ParseDate(req.Date)
	if err != nil {
		h.fail(w, "Invalid date", err)
		return
	}
	d, err := h.Engine.Distribute(r.Context(), scopeParam(r), ticketing.DistributeInput{
		StaffID:  ticketing.StaffID(req.StaffID),
		RateID:   ticketing.RateID(req.RateID),
		BundleID: ticketing.BundleID(req.BundleID),
		Date:     date,
	})
	if err != nil {
		h.fail(w, "Failed to distribute bundle", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDistributionDTO(*d))
}

// DistributeImported records a distribution of serials not held as stock.
func (h *Handler) DistributeImported(w http.ResponseWriter, r *http.Request) {
	var req ImportedDistributionRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := ticketing.ParseDate(req.Date)
	if err != nil {
		h.fail(w, "Invalid date", err)
		return
	}
	d, err := h.Engine.DistributeImported(r.Context(), scopeParam(r), ticketing.ImportedInput{
		StaffID: ticketing.StaffID(req.StaffID),
		RateID:  ticketing.RateID(req.RateID),
		Start:   *req.Start,
		End:     *req.End,
		Date:    date,
	})
	if err != nil {
		h.fail(w, "Failed to record imported distribution", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDistributionDTO(*d))
}

// ImportDistributions distributes bundles listed in a CSV body, all or nothing.
// POST /api/scopes/{scopeID}/distributions/import  (date,staffName,rideName,startSerial)
func (h *Handler) ImportDistributions(w http.ResponseWriter, r *http.Request) {
	dists, err := h.Engine.ImportDistributions(r.Context(), scopeParam(r), http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, "Failed to import distributions", err)
		return
	}
	writeJSON(w, http.StatusCreated, ImportResponse{Imported: len(dists)})
}

// EditDistribution corrects staff, rate or bundle before settlement.
func (h *Handler) EditDistribution(w http.ResponseWriter, r *http.Request) {
	var req EditDistributionRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.Engine.Edit(r.Context(), scopeParam(r), ticketing.DistributionID(chi.URLParam(r, "id")), ticketing.EditInput{
		StaffID:  ticketing.StaffID(req.StaffID),
		RateID:   ticketing.RateID(req.RateID),
		BundleID: ticketing.BundleID(req.BundleID),
	})
	if err != nil {
		h.fail(w, "Failed to edit distribution", err)
		return
	}
	writeJSON(w, http.StatusOK, toDistributionDTO(*d))
}

// CancelDistribution returns the bundle to stock.
func (h *Handler) CancelDistribution(w http.ResponseWriter, r *http.Request) {
	d, err := h.Engine.Cancel(r.Context(), scopeParam(r), ticketing.DistributionID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, "Failed to cancel distribution", err)
		return
	}
	writeJSON(w, http.StatusOK, toDistributionDTO(*d))
}

// SettleDistribution closes a distribution from the first returned serial.
func (h *Handler) SettleDistribution(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if !h.decode(w, r, &req) {
		return
	}
	date := h.today()
	if req.Date != "" {
		var err error
		if date, err = ticketing.ParseDate(req.Date); err != nil {
			h.fail(w, "Invalid date", err)
			return
		}
	}
	res, err := h.Engine.Settle(r.Context(), scopeParam(r), ticketing.DistributionID(chi.URLParam(r, "id")), ticketing.SettleInput{
		ReturnedStart: *req.ReturnedStart,
		Electronic:    nullDecimal(req.Electronic),
		Cash:          nullDecimal(req.Cash),
		Date:          date,
		User:          req.User,
	})
	if err != nil {
		h.fail(w, "Failed to settle distribution", err)
		return
	}

	resp := SettleResponse{Distribution: toDistributionDTO(*res.Distribution)}
	if res.Remainder != nil {
		b := toBundleDTO(*res.Remainder)
		resp.Remainder = &b
	}
	if res.Entry != nil {
		e := toEntryDTO(*res.Entry)
		resp.Entry = &e
	}
	writeJSON(w, http.StatusOK, resp)
}

// UnsettleDistribution reverses a settlement.
func (h *Handler) UnsettleDistribution(w http.ResponseWriter, r *http.Request) {
	d, err := h.Engine.Unsettle(r.Context(), scopeParam(r), ticketing.DistributionID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, "Failed to reverse settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, toDistributionDTO(*d))
}

// =============================================================================
// CASH RECONCILIATION HANDLERS
// =============================================================================

// ListStaffSettlements returns the cash counts of a scope.
func (h *Handler) ListStaffSettlements(w http.ResponseWriter, r *http.Request) {
	f := ticketing.StaffSettlementFilter{
		ScopeID: scopeParam(r),
		StaffID: ticketing.StaffID(r.URL.Query().Get("staff_id")),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := ticketing.ParseReconcileStatus(s)
		if err != nil {
			h.fail(w, "Invalid status filter", err)
			return
		}
		f.Status = status
	}
	if !h.scopeExists(w, r, f.ScopeID) {
		return
	}
	records, err := h.Engine.Store().ListStaffSettlements(r.Context(), f)
	if err != nil {
		h.fail(w, "Failed to list staff settlements", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(records, toStaffSettlementDTO))
}

// ExpectedCash computes the cash a staff member should hold.
// GET /api/scopes/{scopeID}/staff-settlements/expected?staff_id=...&as_of=2025-07-31
func (h *Handler) ExpectedCash(w http.ResponseWriter, r *http.Request) {
	staff := ticketing.StaffID(r.URL.Query().Get("staff_id"))
	if staff == "" {
		h.writeError(w, http.StatusBadRequest, "staff_id is required", nil)
		return
	}
	asOf := h.today()
	if s := r.URL.Query().Get("as_of"); s != "" {
		var err error
		if asOf, err = ticketing.ParseDate(s); err != nil {
			h.fail(w, "Invalid as_of", err)
			return
		}
	}
	expected, err := h.Engine.ComputeExpected(r.Context(), scopeParam(r), staff, asOf)
	if err != nil {
		h.fail(w, "Failed to compute expected cash", err)
		return
	}
	writeJSON(w, http.StatusOK, ExpectedCashDTO{StaffID: string(staff), AsOf: formatDate(asOf), Expected: expected})
}

// RecordStaffSettlement stores a cash count with a non-zero difference.
func (h *Handler) RecordStaffSettlement(w http.ResponseWriter, r *http.Request) {
	var req RecordStaffSettlementRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	scope := scopeParam(r)
	date, err := ticketing.ParseDate(req.Date)
	if err != nil {
		h.fail(w, "Invalid date", err)
		return
	}

	in := ticketing.RecordInput{
		StaffID: ticketing.StaffID(req.StaffID),
		Date:    date,
		Actual:  req.Actual,
		Notes:   req.Notes,
	}
	if req.Expected != nil {
		in.Expected = *req.Expected
	} else {
		in.Expected, err = h.Engine.ComputeExpected(ctx, scope, in.StaffID, date)
		if err != nil {
			h.fail(w, "Failed to compute expected cash", err)
			return
		}
	}

	rec, err := h.Engine.RecordSettlement(ctx, scope, in)
	if err != nil {
		h.fail(w, "Failed to record staff settlement", err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, RecordStaffSettlementResponse{Balanced: true})
		return
	}
	dto := toStaffSettlementDTO(*rec)
	writeJSON(w, http.StatusCreated, RecordStaffSettlementResponse{Settlement: &dto})
}

// ClearStaffSettlements marks a batch of cash counts as settled.
func (h *Handler) ClearStaffSettlements(w http.ResponseWriter, r *http.Request) {
	var req ClearBatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	on := h.today()
	if req.Date != "" {
		var err error
		if on, err = ticketing.ParseDate(req.Date); err != nil {
			h.fail(w, "Invalid date", err)
			return
		}
	}
	ids := make([]ticketing.StaffSettlementID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = ticketing.StaffSettlementID(id)
	}
	cleared, err := h.Engine.ClearBatch(r.Context(), ids, req.User, on)
	if err != nil {
		h.fail(w, "Failed to clear staff settlements", err)
		return
	}
	resp := ClearBatchResponse{Cleared: make([]string, len(cleared))}
	for i, id := range cleared {
		resp.Cleared[i] = string(id)
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// LEDGER & REPORTING HANDLERS
// =============================================================================

// ListEntries returns the accounting ledger of a scope.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	scope := scopeParam(r)
	if !h.scopeExists(w, r, scope) {
		return
	}
	entries, err := h.Engine.Store().ListEntries(r.Context(), ticketing.EntryFilter{
		ScopeID:   scope,
		Reference: r.URL.Query().Get("reference"),
	})
	if err != nil {
		h.fail(w, "Failed to list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(entries, toEntryDTO))
}

// Summary returns derived totals for a scope.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Engine.Summarize(r.Context(), scopeParam(r))
	if err != nil {
		h.fail(w, "Failed to summarize scope", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(sum))
}

// Report streams the scope workbook.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	scope := scopeParam(r)
	f, err := report.Workbook(r.Context(), h.Engine, scope)
	if err != nil {
		h.fail(w, "Failed to build report", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="scope-%s.xlsx"`, scope))
	if err := f.Write(w); err != nil {
		h.Logger.Error("report write failed", "scope_id", scope, "error", err)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// scopeExists turns reads against an unknown scope into a 404 instead of
// an empty list.
func (h *Handler) scopeExists(w http.ResponseWriter, r *http.Request, scope ticketing.ScopeID) bool {
	if _, err := h.Engine.Store().GetScope(r.Context(), scope); err != nil {
		h.fail(w, "Failed to load scope", err)
		return false
	}
	return true
}

// decode reads a JSON body into dst and validates it. On failure it writes
// the 400 response and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make(map[string]string, len(ve))
			for _, fe := range ve {
				fields[fe.Field()] = fe.Tag()
			}
			h.writeErrorDetails(w, http.StatusBadRequest, "Validation failed", "invalid_input", fields)
			return false
		}
		h.writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// statusFor maps an engine error to its HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, context.Canceled):
		return 499, "canceled"
	case ticketing.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ticketing.ErrArchivedScope):
		return http.StatusLocked, "archived_scope"
	case errors.Is(err, ticketing.ErrInvalidRange):
		return http.StatusBadRequest, "invalid_range"
	case errors.Is(err, ticketing.ErrOutOfRange):
		return http.StatusBadRequest, "out_of_range"
	case ticketing.IsClientError(err):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, ticketing.ErrOverlap):
		return http.StatusConflict, "overlap"
	case errors.Is(err, ticketing.ErrNotAvailable):
		return http.StatusConflict, "not_available"
	case errors.Is(err, ticketing.ErrAlreadySettled):
		return http.StatusConflict, "already_settled"
	case errors.Is(err, ticketing.ErrRemainderAlreadyConsumed):
		return http.StatusConflict, "remainder_consumed"
	case errors.Is(err, ticketing.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, ticketing.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case ticketing.IsConflict(err):
		return http.StatusConflict, "conflict"
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge, "too_large"
	}
	return http.StatusInternalServerError, "internal"
}

// fail writes the response for an engine error.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error(message, "error", err)
	}
	details := any(err.Error())
	var le *ticketing.LineError
	if errors.As(err, &le) {
		details = map[string]any{"line": le.Line, "error": le.Err.Error()}
	}
	h.writeErrorDetails(w, status, message, code, details)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, err error) {
	if h.Metrics != nil {
		h.Metrics.ObserveError(status)
	}
	writeError(w, status, message, err)
}

func (h *Handler) writeErrorDetails(w http.ResponseWriter, status int, message, code string, details any) {
	if h.Metrics != nil {
		h.Metrics.ObserveError(status)
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
