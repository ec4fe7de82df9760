/*
Package ticketing manages serially-numbered ticket stock from the moment a
bundle is printed until the cash for it is counted.

PURPOSE:
  A bundle is a contiguous run of ticket serials sharing one price and one
  color. Bundles are handed to staff (distribution), partially sold, and
  closed (settlement) by recording the first serial the staff member brought
  back. Revenue is derived from the serial delta, never typed in, and the
  unsold tail of a bundle becomes a new bundle that can be handed out again.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: typed string IDs so a BundleID can't be passed as a StaffID
  - Scope: one operating period (e.g. one exhibition run); only one is writable
  - RateCategory: a priced sale category ("ride")
  - StockBundle: a serial range with a lifecycle status
  - Distribution: a frozen snapshot of a bundle handed to one staff member
  - StaffSettlement: a cash count compared against expected cash
  - AccountingEntry: the revenue posting owned by the accounting ledger

SEE ALSO:
  - status.go: Status enums and the legal transition table
  - store.go: Persistence interfaces and the scoped transaction
  - settlement.go: The settle/unsettle algorithm
*/
package ticketing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	ScopeID           string
	StaffID           string
	RateID            string
	BundleID          string
	DistributionID    string
	StaffSettlementID string
	EntryID           string
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// Date returns midnight UTC of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidInput, s)
	}
	return t, nil
}

// TruncateDate drops the time of day, keeping the calendar date in UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return Date(y, m, d)
}

// =============================================================================
// DIRECTORY RECORDS
// =============================================================================

// Scope is an operating period. All stock and distributions belong to
// exactly one scope; only the active scope accepts writes.
type Scope struct {
	ID        ScopeID
	Name      string
	Active    bool
	CreatedAt time.Time
}

// Staff is a member of the field staff who receives ticket bundles.
type Staff struct {
	ID        StaffID
	Name      string
	Active    bool
	CreatedAt time.Time
}

// RateCategory is a named sale category bound to a unit price.
// Revenue is computed from UnitPrice at settlement time and stored,
// so later price edits never change settled revenue.
type RateCategory struct {
	ID        RateID
	Name      string
	UnitPrice decimal.Decimal
	Active    bool
	CreatedAt time.Time
}

// =============================================================================
// STOCK
// =============================================================================

// StockBundle is a contiguous serial range [Start, End] of one price and color.
//
// INVARIANT: Start <= End, and within a scope no two non-cancelled bundles
// of the same color overlap.
type StockBundle struct {
	ID        BundleID
	ScopeID   ScopeID
	UnitPrice decimal.Decimal
	Color     string
	Start     int64
	End       int64
	Status    BundleStatus
	CreatedAt time.Time
}

// Size is the number of tickets in the bundle.
func (b StockBundle) Size() int64 { return b.End - b.Start + 1 }

// Overlaps reports whether [start, end] shares at least one serial with b.
func (b StockBundle) Overlaps(start, end int64) bool {
	return start <= b.End && b.Start <= end
}

// =============================================================================
// DISTRIBUTION
// =============================================================================

// Distribution records a bundle handed to one staff member for one rate.
// Start and End are copied from the bundle when it is distributed and never
// change afterwards; reversal relies on them.
type Distribution struct {
	ID            DistributionID
	ScopeID       ScopeID
	StaffID       StaffID
	RateID        RateID
	BundleID      BundleID // empty for imported distributions without stock
	Start         int64
	End           int64
	DistributedOn time.Time
	Status        DistributionStatus

	// Settlement is non-nil exactly when Status is DistributionSettled.
	Settlement *SettlementRecord

	CreatedAt time.Time
}

// Imported reports whether the distribution bypasses physical stock.
func (d Distribution) Imported() bool { return d.BundleID == "" }

// SettlementRecord holds the fields written when a distribution is settled.
type SettlementRecord struct {
	ReturnedStart int64
	SettledOn     time.Time
	TicketsSold   int64
	Revenue       decimal.Decimal
	Cash          decimal.Decimal
	Electronic    decimal.Decimal
	SettledBy     string
	// RemainderID is the bundle split off at ReturnedStart, empty when
	// nothing was left over.
	RemainderID BundleID
}

// =============================================================================
// CASH RECONCILIATION
// =============================================================================

// StaffSettlement is a staff cash count. Difference = Actual - Expected;
// negative means the staff member is short.
type StaffSettlement struct {
	ID             StaffSettlementID
	StaffID        StaffID
	ScopeID        ScopeID
	SettlementDate time.Time
	Expected       decimal.Decimal
	Actual         decimal.Decimal
	Difference     decimal.Decimal
	Notes          string
	Status         ReconcileStatus
	ClearedBy      string
	ClearedOn      *time.Time
	CreatedAt      time.Time
}

// =============================================================================
// ACCOUNTING
// =============================================================================

// CategoryTicketSales is the ledger category for settled ticket revenue.
const CategoryTicketSales = "Ticket Sales"

// AccountingEntry is one row of the append-only accounting ledger.
type AccountingEntry struct {
	ID              EntryID
	ScopeID         ScopeID
	Category        string
	Amount          decimal.Decimal
	TransactionDate time.Time
	Reference       string
	Description     string
	UserID          string
	CreatedAt       time.Time
}

// DistributionReference is the ledger reference of a distribution's revenue
// entry. Reversal retracts by this reference, never by amount.
func DistributionReference(id DistributionID) string {
	return "distribution:" + string(id)
}
