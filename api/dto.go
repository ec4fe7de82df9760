/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ticketing domain model from the external API contract:
  - Dates travel as YYYY-MM-DD strings
  - Money travels as decimal strings ("12.50"), never floats
  - Settlement figures are flattened onto the distribution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry go-playground/validator tags for shape checks
  (required, date format). Business rules (price > 0, start <= end,
  returned serial in range) stay in the engine so every caller gets them.

SEE ALSO:
  - handlers.go: Uses these types
  - ticketing/types.go: Domain records
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/ticket-engine/ticketing"
)

// =============================================================================
// DIRECTORY
// =============================================================================

// ScopeDTO represents an operating period.
type ScopeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

// CreateScopeRequest is the request to create a scope.
type CreateScopeRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// StaffDTO represents a staff member.
type StaffDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

// CreateStaffRequest is the request to add a staff member.
type CreateStaffRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// RateDTO represents a rate category.
type RateDTO struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Active    bool            `json:"active"`
	CreatedAt string          `json:"created_at"`
}

// CreateRateRequest is the request to create a rate category.
type CreateRateRequest struct {
	Name      string          `json:"name" validate:"required,max=200"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// UpdateRateRequest edits a rate category. Omitted fields are unchanged.
type UpdateRateRequest struct {
	Name      *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Active    *bool            `json:"active,omitempty"`
}

// =============================================================================
// STOCK
// =============================================================================

// BundleDTO represents a stock bundle.
type BundleDTO struct {
	ID        string          `json:"id"`
	ScopeID   string          `json:"scope_id"`
	Color     string          `json:"color"`
	Start     int64           `json:"start"`
	End       int64           `json:"end"`
	Tickets   int64           `json:"tickets"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Status    string          `json:"status"`
	CreatedAt string          `json:"created_at"`
}

// CreateBundleRequest is the request to add a bundle to stock.
type CreateBundleRequest struct {
	UnitPrice decimal.Decimal `json:"unit_price"`
	Color     string          `json:"color" validate:"required,max=50"`
	Start     *int64          `json:"start" validate:"required"`
	End       *int64          `json:"end" validate:"required"`
}

// =============================================================================
// DISTRIBUTION
// =============================================================================

// DistributionDTO represents a distribution, with its settlement when settled.
type DistributionDTO struct {
	ID            string `json:"id"`
	ScopeID       string `json:"scope_id"`
	StaffID       string `json:"staff_id"`
	RateID        string `json:"rate_id"`
	BundleID      string `json:"bundle_id,omitempty"`
	Start         int64  `json:"start"`
	End           int64  `json:"end"`
	DistributedOn string `json:"distributed_on"`
	Status        string `json:"status"`
	Imported      bool   `json:"imported"`

	Settlement *SettlementDTO `json:"settlement,omitempty"`
}

// SettlementDTO holds the figures written by a settlement.
type SettlementDTO struct {
	ReturnedStart int64           `json:"returned_start"`
	SettledOn     string          `json:"settled_on"`
	TicketsSold   int64           `json:"tickets_sold"`
	Revenue       decimal.Decimal `json:"revenue"`
	Cash          decimal.Decimal `json:"cash"`
	Electronic    decimal.Decimal `json:"electronic"`
	SettledBy     string          `json:"settled_by,omitempty"`
	RemainderID   string          `json:"remainder_id,omitempty"`
}

// DistributeRequest hands a bundle to a staff member.
type DistributeRequest struct {
	StaffID  string `json:"staff_id" validate:"required"`
	RateID   string `json:"rate_id" validate:"required"`
	BundleID string `json:"bundle_id" validate:"required"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
}

// ImportedDistributionRequest records a distribution without stock.
type ImportedDistributionRequest struct {
	StaffID string `json:"staff_id" validate:"required"`
	RateID  string `json:"rate_id" validate:"required"`
	Start   *int64 `json:"start" validate:"required"`
	End     *int64 `json:"end" validate:"required"`
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
}

// EditDistributionRequest corrects an open distribution. An empty
// bundle_id keeps the current bundle.
type EditDistributionRequest struct {
	StaffID  string `json:"staff_id" validate:"required"`
	RateID   string `json:"rate_id" validate:"required"`
	BundleID string `json:"bundle_id,omitempty"`
}

// SettleRequest closes a distribution. Cash defaults to revenue minus
// electronic; electronic defaults to zero.
type SettleRequest struct {
	ReturnedStart *int64           `json:"returned_start" validate:"required"`
	Electronic    *decimal.Decimal `json:"electronic,omitempty"`
	Cash          *decimal.Decimal `json:"cash,omitempty"`
	Date          string           `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	User          string           `json:"user,omitempty" validate:"max=100"`
}

// SettleResponse is the outcome of a settlement.
type SettleResponse struct {
	Distribution DistributionDTO `json:"distribution"`
	Remainder    *BundleDTO      `json:"remainder,omitempty"`
	Entry        *EntryDTO       `json:"entry,omitempty"`
}

// =============================================================================
// CASH RECONCILIATION
// =============================================================================

// StaffSettlementDTO represents a staff cash count.
type StaffSettlementDTO struct {
	ID             string          `json:"id"`
	StaffID        string          `json:"staff_id"`
	ScopeID        string          `json:"scope_id"`
	SettlementDate string          `json:"settlement_date"`
	Expected       decimal.Decimal `json:"expected"`
	Actual         decimal.Decimal `json:"actual"`
	Difference     decimal.Decimal `json:"difference"`
	Notes          string          `json:"notes,omitempty"`
	Status         string          `json:"status"`
	ClearedBy      string          `json:"cleared_by,omitempty"`
	ClearedOn      *string         `json:"cleared_on,omitempty"`
}

// ExpectedCashDTO is the cash a staff member should hold.
type ExpectedCashDTO struct {
	StaffID  string          `json:"staff_id"`
	AsOf     string          `json:"as_of"`
	Expected decimal.Decimal `json:"expected"`
}

// RecordStaffSettlementRequest records a cash count. When expected is
// omitted the server computes it as of date.
type RecordStaffSettlementRequest struct {
	StaffID  string           `json:"staff_id" validate:"required"`
	Date     string           `json:"date" validate:"required,datetime=2006-01-02"`
	Expected *decimal.Decimal `json:"expected,omitempty"`
	Actual   decimal.Decimal  `json:"actual"`
	Notes    string           `json:"notes,omitempty" validate:"max=500"`
}

// RecordStaffSettlementResponse reports whether a count was stored. A
// balanced count is not stored.
type RecordStaffSettlementResponse struct {
	Balanced   bool                `json:"balanced"`
	Settlement *StaffSettlementDTO `json:"settlement,omitempty"`
}

// ClearBatchRequest clears staff settlements in one transaction.
type ClearBatchRequest struct {
	IDs  []string `json:"ids" validate:"required,min=1,dive,required"`
	User string   `json:"user" validate:"required,max=100"`
	Date string   `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// ClearBatchResponse lists the settlements that changed state.
type ClearBatchResponse struct {
	Cleared []string `json:"cleared"`
}

// =============================================================================
// LEDGER & SUMMARY
// =============================================================================

// EntryDTO represents an accounting ledger entry.
type EntryDTO struct {
	ID              string          `json:"id"`
	Category        string          `json:"category"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate string          `json:"transaction_date"`
	Reference       string          `json:"reference"`
	Description     string          `json:"description,omitempty"`
	UserID          string          `json:"user_id,omitempty"`
}

// SummaryDTO aggregates a scope.
type SummaryDTO struct {
	ScopeID               string          `json:"scope_id"`
	BundlesByStatus       map[string]int  `json:"bundles_by_status"`
	TicketsAvailable      int64           `json:"tickets_available"`
	DistributionsByStatus map[string]int  `json:"distributions_by_status"`
	TicketsSold           int64           `json:"tickets_sold"`
	Revenue               decimal.Decimal `json:"revenue"`
	Cash                  decimal.Decimal `json:"cash"`
	Electronic            decimal.Decimal `json:"electronic"`
	LedgerTotal           decimal.Decimal `json:"ledger_total"`
	LedgerEntries         int             `json:"ledger_entries"`
	Balanced              bool            `json:"balanced"`
}

// ImportResponse reports a bulk import.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// LoadScenarioResponse names the scope the scenario was loaded into.
type LoadScenarioResponse struct {
	Scenario string   `json:"scenario"`
	Scope    ScopeDTO `json:"scope"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatDate(t time.Time) string {
	return t.Format(ticketing.DateLayout)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toScopeDTO(s ticketing.Scope) ScopeDTO {
	return ScopeDTO{ID: string(s.ID), Name: s.Name, Active: s.Active, CreatedAt: formatTime(s.CreatedAt)}
}

func toStaffDTO(s ticketing.Staff) StaffDTO {
	return StaffDTO{ID: string(s.ID), Name: s.Name, Active: s.Active, CreatedAt: formatTime(s.CreatedAt)}
}

func toRateDTO(r ticketing.RateCategory) RateDTO {
	return RateDTO{
		ID:        string(r.ID),
		Name:      r.Name,
		UnitPrice: r.UnitPrice,
		Active:    r.Active,
		CreatedAt: formatTime(r.CreatedAt),
	}
}

func toBundleDTO(b ticketing.StockBundle) BundleDTO {
	return BundleDTO{
		ID:        string(b.ID),
		ScopeID:   string(b.ScopeID),
		Color:     b.Color,
		Start:     b.Start,
		End:       b.End,
		Tickets:   b.Size(),
		UnitPrice: b.UnitPrice,
		Status:    string(b.Status),
		CreatedAt: formatTime(b.CreatedAt),
	}
}

func toDistributionDTO(d ticketing.Distribution) DistributionDTO {
	dto := DistributionDTO{
		ID:            string(d.ID),
		ScopeID:       string(d.ScopeID),
		StaffID:       string(d.StaffID),
		RateID:        string(d.RateID),
		BundleID:      string(d.BundleID),
		Start:         d.Start,
		End:           d.End,
		DistributedOn: formatDate(d.DistributedOn),
		Status:        string(d.Status),
		Imported:      d.Imported(),
	}
	if s := d.Settlement; s != nil {
		dto.Settlement = &SettlementDTO{
			ReturnedStart: s.ReturnedStart,
			SettledOn:     formatDate(s.SettledOn),
			TicketsSold:   s.TicketsSold,
			Revenue:       s.Revenue,
			Cash:          s.Cash,
			Electronic:    s.Electronic,
			SettledBy:     s.SettledBy,
			RemainderID:   string(s.RemainderID),
		}
	}
	return dto
}

func toStaffSettlementDTO(s ticketing.StaffSettlement) StaffSettlementDTO {
	dto := StaffSettlementDTO{
		ID:             string(s.ID),
		StaffID:        string(s.StaffID),
		ScopeID:        string(s.ScopeID),
		SettlementDate: formatDate(s.SettlementDate),
		Expected:       s.Expected,
		Actual:         s.Actual,
		Difference:     s.Difference,
		Notes:          s.Notes,
		Status:         string(s.Status),
		ClearedBy:      s.ClearedBy,
	}
	if s.ClearedOn != nil {
		on := formatDate(*s.ClearedOn)
		dto.ClearedOn = &on
	}
	return dto
}

func toEntryDTO(e ticketing.AccountingEntry) EntryDTO {
	return EntryDTO{
		ID:              string(e.ID),
		Category:        e.Category,
		Amount:          e.Amount,
		TransactionDate: formatDate(e.TransactionDate),
		Reference:       e.Reference,
		Description:     e.Description,
		UserID:          e.UserID,
	}
}

func toSummaryDTO(s *ticketing.ScopeSummary) SummaryDTO {
	dto := SummaryDTO{
		ScopeID:               string(s.ScopeID),
		BundlesByStatus:       make(map[string]int, len(s.BundlesByStatus)),
		TicketsAvailable:      s.TicketsAvailable,
		DistributionsByStatus: make(map[string]int, len(s.DistributionsByStatus)),
		TicketsSold:           s.TicketsSold,
		Revenue:               s.Revenue,
		Cash:                  s.Cash,
		Electronic:            s.Electronic,
		LedgerTotal:           s.LedgerTotal,
		LedgerEntries:         s.LedgerEntries,
		Balanced:              s.Balanced,
	}
	for k, v := range s.BundlesByStatus {
		dto.BundlesByStatus[string(k)] = v
	}
	for k, v := range s.DistributionsByStatus {
		dto.DistributionsByStatus[string(k)] = v
	}
	return dto
}

func mapSlice[T, D any](in []T, f func(T) D) []D {
	out := make([]D, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}
