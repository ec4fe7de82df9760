/*
stock.go - StockLedger: bundles of ticket serials

PURPOSE:
  Owns the physical inventory. A bundle is created from printed input,
  handed out by distribution.go, and split by settlement.go when only part
  of it was sold.

LIFECYCLE:
    available ──distribute──▶ distributed ──split──▶ settled
        │  ▲                       │                    │
        │  └───────recall──────────┘                    │
        │                          ▲                    │
     retire                        └─────unsettle───────┘
        ▼
    cancelled

SPLIT:
  Settling with returned serial R on bundle [S, E]:
    S < R <= E   original becomes settled [S, R-1], new available [R, E]
    R > E        whole bundle sold, original settled, no remainder
    R <= S       nothing sold, original settled unmodified

NON-OVERLAP:
  Within a scope, non-cancelled bundles of one color never share a serial.
  New input is checked against existing stock; splits only ever carve a
  sub-range out of a bundle, so they preserve the property by construction.
*/
package ticketing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// BundleInput describes a bundle to create.
type BundleInput struct {
	UnitPrice decimal.Decimal
	Color     string
	Start     int64
	End       int64
}

// CreateBundle adds an Available bundle to scope.
func (e *Engine) CreateBundle(ctx context.Context, scope ScopeID, in BundleInput) (*StockBundle, error) {
	tx, err := e.begin(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := e.createBundleTx(ctx, tx, scope, in)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	e.log.Info("bundle created", "scope_id", scope, "bundle_id", b.ID, "color", b.Color, "start", b.Start, "end", b.End)
	e.emit(ctx, Event{Type: EventBundleCreated, ScopeID: scope, BundleID: b.ID, Tickets: b.Size()})
	return b, nil
}

func (e *Engine) createBundleTx(ctx context.Context, tx Tx, scope ScopeID, in BundleInput) (*StockBundle, error) {
	color := strings.TrimSpace(in.Color)
	if color == "" {
		return nil, fmt.Errorf("%w: color is required", ErrInvalidInput)
	}
	if in.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("%w: unit price %s is negative", ErrInvalidInput, in.UnitPrice)
	}
	if err := checkRange(in.Start, in.End); err != nil {
		return nil, err
	}

	clashes, err := tx.OverlappingBundles(ctx, scope, color, in.Start, in.End)
	if err != nil {
		return nil, err
	}
	if len(clashes) > 0 {
		return nil, &OverlapError{Color: color, Start: in.Start, End: in.End, Existing: clashes[0].ID}
	}

	b := &StockBundle{
		ID:        BundleID(e.newID()),
		ScopeID:   scope,
		UnitPrice: in.UnitPrice,
		Color:     color,
		Start:     in.Start,
		End:       in.End,
		Status:    BundleAvailable,
		CreatedAt: e.now(),
	}
	if err := tx.InsertBundle(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// RetireBundle cancels an Available bundle (lost or voided books). Its
// serials stop counting toward the overlap check.
func (e *Engine) RetireBundle(ctx context.Context, scope ScopeID, id BundleID) (*StockBundle, error) {
	tx, err := e.begin(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := scopedBundle(ctx, tx, scope, id)
	if err != nil {
		return nil, err
	}
	if b.Status != BundleAvailable {
		return nil, fmt.Errorf("%w: bundle %s is %s", ErrNotAvailable, id, b.Status)
	}
	if err := tx.TransitionBundle(ctx, id, BundleAvailable, BundleCancelled); err != nil {
		return nil, staleAs(err, ErrNotAvailable)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	b.Status = BundleCancelled

	e.log.Info("bundle retired", "scope_id", scope, "bundle_id", id)
	e.emit(ctx, Event{Type: EventBundleRetired, ScopeID: scope, BundleID: id, Tickets: b.Size()})
	return b, nil
}

// recallBundle returns a distributed bundle to stock.
func recallBundle(ctx context.Context, tx Tx, id BundleID) error {
	return tx.TransitionBundle(ctx, id, BundleDistributed, BundleAvailable)
}

// MaxSerial is the highest serial a range may end on. Settlement takes the
// first returned serial, which for a sold-out range is End + 1.
const MaxSerial = math.MaxInt64 - 1

func checkRange(start, end int64) error {
	if start > end {
		return fmt.Errorf("%w: start %d > end %d", ErrInvalidRange, start, end)
	}
	if start < 1 {
		return fmt.Errorf("%w: serials start at 1, got %d", ErrInvalidRange, start)
	}
	if end > MaxSerial {
		return fmt.Errorf("%w: end %d above %d", ErrInvalidRange, end, int64(MaxSerial))
	}
	return nil
}

// splitBundle closes b at serial at and returns the remainder bundle, if any.
func (e *Engine) splitBundle(ctx context.Context, tx Tx, b *StockBundle, at int64) (*StockBundle, error) {
	if err := tx.TransitionBundle(ctx, b.ID, BundleDistributed, BundleSettled); err != nil {
		return nil, err
	}
	if at <= b.Start || at > b.End {
		return nil, nil
	}

	if err := tx.ResizeBundle(ctx, b.ID, at-1); err != nil {
		return nil, err
	}
	rest := &StockBundle{
		ID:        BundleID(e.newID()),
		ScopeID:   b.ScopeID,
		UnitPrice: b.UnitPrice,
		Color:     b.Color,
		Start:     at,
		End:       b.End,
		Status:    BundleAvailable,
		CreatedAt: e.now(),
	}
	if err := tx.InsertBundle(ctx, rest); err != nil {
		return nil, err
	}
	return rest, nil
}

// scopedBundle loads a bundle and hides bundles of other scopes.
func scopedBundle(ctx context.Context, q Queries, scope ScopeID, id BundleID) (*StockBundle, error) {
	b, err := q.GetBundle(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.ScopeID != scope {
		return nil, notFound("bundle", id)
	}
	return b, nil
}

// staleAs turns a lost compare-and-swap into the domain error the caller
// should see.
func staleAs(err, domain error) error {
	if errors.Is(err, ErrStaleStatus) {
		return fmt.Errorf("%w: %v", domain, err)
	}
	return err
}
