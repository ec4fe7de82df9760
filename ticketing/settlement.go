/*
settlement.go - SettlementEngine: closing and reopening distributions

PURPOSE:
  Closes a distribution by recording the first serial the staff member
  returned unsold. Everything else is derived from that one number:

    ticketsSold = returnedStart - distributedStart
    revenue     = ticketsSold x rate.UnitPrice     (price read now, stored)
    cash        = revenue - electronic             (may go negative)

  The unsold tail of the bundle goes back to stock as a new bundle and the
  revenue is posted to the accounting ledger, all in one transaction.

BOUNDS:
  distributedStart <= returnedStart <= bundleEnd + 1
  returnedStart == bundleEnd + 1 means the whole bundle was sold.

REVERSAL (Unsettle):
  1. Retract the ledger entry by its distribution reference
  2. Delete the remainder bundle, but only while it is still available;
     if anyone has touched it, fail with ErrRemainderAlreadyConsumed
  3. Restore the original bundle to its snapshot end, status distributed
  4. Clear the settlement fields, distribution back to distributed

  Unsettle followed by Settle with the same returned serial reproduces the
  same distribution and ledger state.
*/
package ticketing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SettleInput closes a distribution.
type SettleInput struct {
	ReturnedStart int64
	// Electronic defaults to zero when not set.
	Electronic decimal.NullDecimal
	// Cash, when set, is stored as given instead of revenue - electronic.
	Cash decimal.NullDecimal
	Date time.Time
	User string
}

// SettlementResult is what a settlement produced.
type SettlementResult struct {
	Distribution *Distribution
	Remainder    *StockBundle     // nil when nothing is left over
	Entry        *AccountingEntry // nil when revenue is zero
}

// Settle closes distribution id of scope.
func (e *Engine) Settle(ctx context.Context, scope ScopeID, id DistributionID, in SettleInput) (*SettlementResult, error) {
	tx, err := e.begin(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	d, err := openDistribution(ctx, tx, scope, id)
	if err != nil {
		return nil, err
	}
	rate, err := tx.GetRate(ctx, d.RateID)
	if err != nil {
		return nil, err
	}

	var bundle *StockBundle
	upper := d.End + 1
	if !d.Imported() {
		bundle, err = tx.GetBundle(ctx, d.BundleID)
		if err != nil {
			return nil, err
		}
		upper = bundle.End + 1
	}
	if in.ReturnedStart < d.Start || in.ReturnedStart > upper {
		return nil, &OutOfRangeError{Returned: in.ReturnedStart, Min: d.Start, Max: upper}
	}

	sold := in.ReturnedStart - d.Start
	revenue := rate.UnitPrice.Mul(decimal.NewFromInt(sold))
	electronic := decimal.Zero
	if in.Electronic.Valid {
		electronic = in.Electronic.Decimal
	}
	cash := revenue.Sub(electronic)
	if in.Cash.Valid {
		cash = in.Cash.Decimal
	}
	date := TruncateDate(in.Date)

	settled := *d
	settled.Status = DistributionSettled
	settled.Settlement = &SettlementRecord{
		ReturnedStart: in.ReturnedStart,
		SettledOn:     date,
		TicketsSold:   sold,
		Revenue:       revenue,
		Cash:          cash,
		Electronic:    electronic,
		SettledBy:     in.User,
	}
	result := &SettlementResult{Distribution: &settled}
	if bundle != nil {
		result.Remainder, err = e.splitBundle(ctx, tx, bundle, in.ReturnedStart)
		if err != nil {
			return nil, staleAs(err, ErrAlreadySettled)
		}
		if result.Remainder != nil {
			settled.Settlement.RemainderID = result.Remainder.ID
		}
	}
	if err := tx.TransitionDistribution(ctx, &settled, DistributionDistributed); err != nil {
		return nil, staleAs(err, ErrAlreadySettled)
	}

	if revenue.IsPositive() {
		entry := &AccountingEntry{
			ID:              EntryID(e.newID()),
			ScopeID:         scope,
			Category:        CategoryTicketSales,
			Amount:          revenue,
			TransactionDate: date,
			Reference:       DistributionReference(id),
			Description:     fmt.Sprintf("Ticket sales, distribution %s (%d x %s)", id, sold, rate.UnitPrice),
			UserID:          in.User,
			CreatedAt:       e.now(),
		}
		if err := tx.PostEntry(ctx, entry); err != nil {
			return nil, err
		}
		result.Entry = entry
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	e.log.Info("distribution settled",
		"scope_id", scope,
		"distribution_id", id,
		"returned_start", in.ReturnedStart,
		"tickets_sold", sold,
		"revenue", revenue,
		"cash", cash,
		"electronic", electronic,
	)
	e.emit(ctx, Event{
		Type:           EventDistributionSettled,
		ScopeID:        scope,
		DistributionID: id,
		BundleID:       d.BundleID,
		StaffID:        d.StaffID,
		Tickets:        sold,
		Amount:         revenue,
		User:           in.User,
	})
	return result, nil
}

// Unsettle reverses a settlement and reopens the distribution.
func (e *Engine) Unsettle(ctx context.Context, scope ScopeID, id DistributionID) (*Distribution, error) {
	tx, err := e.begin(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	d, err := scopedDistribution(ctx, tx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := CheckDistributionTransition(d.Status, DistributionDistributed); err != nil {
		return nil, err
	}
	rec := d.Settlement

	if _, err := tx.RetractEntries(ctx, DistributionReference(id)); err != nil {
		return nil, err
	}

	if !d.Imported() {
		if err := e.restoreBundle(ctx, tx, d); err != nil {
			return nil, err
		}
	}

	reopened := *d
	reopened.Status = DistributionDistributed
	reopened.Settlement = nil
	if err := tx.TransitionDistribution(ctx, &reopened, DistributionSettled); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	var revenue decimal.Decimal
	if rec != nil {
		revenue = rec.Revenue
	}
	e.log.Info("distribution unsettled", "scope_id", scope, "distribution_id", id, "revenue_retracted", revenue)
	e.emit(ctx, Event{
		Type:           EventDistributionUnsettled,
		ScopeID:        scope,
		DistributionID: id,
		BundleID:       d.BundleID,
		StaffID:        d.StaffID,
		Amount:         revenue,
	})
	return &reopened, nil
}

// restoreBundle undoes splitBundle for a settled distribution. Only the
// bundle the split created is removed, and only while it is still untouched.
func (e *Engine) restoreBundle(ctx context.Context, tx Tx, d *Distribution) error {
	b, err := tx.GetBundle(ctx, d.BundleID)
	if err != nil {
		return err
	}
	returned := d.Start
	var restID BundleID
	if d.Settlement != nil {
		returned = d.Settlement.ReturnedStart
		restID = d.Settlement.RemainderID
	}

	if returned > d.Start && returned <= d.End {
		if err := removeRemainder(ctx, tx, b, restID, returned, d.End); err != nil {
			return err
		}
	}

	if b.End != d.End {
		if err := tx.ResizeBundle(ctx, b.ID, d.End); err != nil {
			return err
		}
	}
	return tx.TransitionBundle(ctx, b.ID, BundleSettled, BundleDistributed)
}

// removeRemainder deletes remainder id of original if it still covers
// [start, end] at the original price and has never left stock.
func removeRemainder(ctx context.Context, tx Tx, original *StockBundle, id BundleID, start, end int64) error {
	consumed := fmt.Errorf("%w: remainder %d-%d is no longer in stock", ErrRemainderAlreadyConsumed, start, end)
	if id == "" {
		return consumed
	}
	rest, err := tx.GetBundle(ctx, id)
	if IsNotFound(err) {
		return consumed
	}
	if err != nil {
		return err
	}
	if rest.Status != BundleAvailable || rest.ScopeID != original.ScopeID || rest.Color != original.Color ||
		rest.Start != start || rest.End != end || !rest.UnitPrice.Equal(original.UnitPrice) {
		return consumed
	}
	if err := tx.DeleteBundle(ctx, rest.ID, BundleAvailable); err != nil {
		return staleAs(err, ErrRemainderAlreadyConsumed)
	}
	return nil
}
