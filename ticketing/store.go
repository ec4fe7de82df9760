/*
store.go - Persistence interfaces and the scoped transaction

PURPOSE:
  Defines the contract between the engine and the relational store.
  Reads are available both on the Store and inside a transaction; writes
  only exist on Tx, so every mutation runs inside one ACID transaction.

SCOPED TRANSACTION:
  Callers acquire a Tx and release it on every exit path:

    tx, err := store.Begin(ctx)
    if err != nil {
        return err
    }
    defer tx.Rollback() // no-op once committed; also runs on panic

    ... reads and writes through tx ...

    return tx.Commit()

STATUS WRITES:
  Status columns are only changed through Transition* methods. They
  validate the edge against status.go and update with
  "WHERE id = ? AND status = <from>", returning ErrStaleStatus when zero
  rows matched. This compare-and-swap is what makes two racing distributes
  end in exactly one success.

ACCOUNTING LEDGER:
  PostEntry/RetractEntries write the accounting ledger inside the same
  transaction, so a posted entry can never exist without its settled
  distribution.

IMPLEMENTATIONS:
  - store/sqlstore: SQLite and MySQL

SEE ALSO:
  - status.go: Legal transitions
  - engine.go: begin() adds the active-scope check
*/
package ticketing

import (
	"context"
	"time"
)

// =============================================================================
// FILTERS
// =============================================================================

// BundleFilter selects bundles. Zero fields don't filter.
type BundleFilter struct {
	ScopeID ScopeID
	Status  BundleStatus
	Color   string
	Start   *int64 // exact start serial
}

// DistributionFilter selects distributions. Zero fields don't filter.
type DistributionFilter struct {
	ScopeID        ScopeID
	StaffID        StaffID
	Status         DistributionStatus
	SettledAfter   *time.Time // exclusive, on SettledOn
	SettledThrough *time.Time // inclusive, on SettledOn
}

// StaffSettlementFilter selects staff settlements. Zero fields don't filter.
type StaffSettlementFilter struct {
	ScopeID ScopeID
	StaffID StaffID
	Status  ReconcileStatus
}

// EntryFilter selects accounting entries. Zero fields don't filter.
type EntryFilter struct {
	ScopeID   ScopeID
	Reference string
}

// =============================================================================
// READS
// =============================================================================

// Queries are the read operations. Get* methods return a *NotFoundError
// when the row does not exist.
type Queries interface {
	GetScope(ctx context.Context, id ScopeID) (*Scope, error)
	ActiveScope(ctx context.Context) (*Scope, error)
	ListScopes(ctx context.Context) ([]Scope, error)

	GetStaff(ctx context.Context, id StaffID) (*Staff, error)
	StaffByName(ctx context.Context, name string) (*Staff, error)
	ListStaff(ctx context.Context) ([]Staff, error)

	GetRate(ctx context.Context, id RateID) (*RateCategory, error)
	RateByName(ctx context.Context, name string) (*RateCategory, error)
	ListRates(ctx context.Context) ([]RateCategory, error)

	GetBundle(ctx context.Context, id BundleID) (*StockBundle, error)
	ListBundles(ctx context.Context, f BundleFilter) ([]StockBundle, error)
	// OverlappingBundles returns non-cancelled bundles of scope+color that
	// share at least one serial with [start, end].
	OverlappingBundles(ctx context.Context, scope ScopeID, color string, start, end int64) ([]StockBundle, error)

	GetDistribution(ctx context.Context, id DistributionID) (*Distribution, error)
	ListDistributions(ctx context.Context, f DistributionFilter) ([]Distribution, error)

	GetStaffSettlement(ctx context.Context, id StaffSettlementID) (*StaffSettlement, error)
	ListStaffSettlements(ctx context.Context, f StaffSettlementFilter) ([]StaffSettlement, error)

	ListEntries(ctx context.Context, f EntryFilter) ([]AccountingEntry, error)
}

// =============================================================================
// WRITES - only reachable through Tx
// =============================================================================

// Writes are the mutations. Implementations must enforce the transition
// tables on every status change.
type Writes interface {
	InsertScope(ctx context.Context, s *Scope) error
	// SetActiveScope makes id the only active scope.
	SetActiveScope(ctx context.Context, id ScopeID) error

	InsertStaff(ctx context.Context, s *Staff) error

	InsertRate(ctx context.Context, r *RateCategory) error
	UpdateRate(ctx context.Context, r *RateCategory) error

	InsertBundle(ctx context.Context, b *StockBundle) error
	TransitionBundle(ctx context.Context, id BundleID, from, to BundleStatus) error
	// ResizeBundle sets the end serial of a bundle.
	ResizeBundle(ctx context.Context, id BundleID, end int64) error
	// DeleteBundle removes a bundle only if it is still in status.
	DeleteBundle(ctx context.Context, id BundleID, status BundleStatus) error

	InsertDistribution(ctx context.Context, d *Distribution) error
	// TransitionDistribution writes d (status and settlement fields) if the
	// stored status is still from.
	TransitionDistribution(ctx context.Context, d *Distribution, from DistributionStatus) error
	// ReassignDistribution rewrites staff, rate, bundle and snapshot range of
	// a distribution that is still Distributed.
	ReassignDistribution(ctx context.Context, d *Distribution) error

	PostEntry(ctx context.Context, e *AccountingEntry) error
	// RetractEntries deletes the entries carrying reference and returns
	// how many were removed.
	RetractEntries(ctx context.Context, reference string) (int64, error)

	InsertStaffSettlement(ctx context.Context, s *StaffSettlement) error
	// ClearStaffSettlement moves an unsettled record to settled. It returns
	// false, nil when the record was already settled.
	ClearStaffSettlement(ctx context.Context, id StaffSettlementID, by string, on time.Time) (bool, error)
}

// =============================================================================
// STORE / TX
// =============================================================================

// Tx is a scoped database transaction. Rollback after Commit is a no-op.
type Tx interface {
	Queries
	Writes
	Commit() error
	Rollback() error
}

// Store is the engine's persistence backend.
type Store interface {
	Queries
	Begin(ctx context.Context) (Tx, error)
	Close() error
}
