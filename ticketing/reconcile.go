/*
reconcile.go - StaffCashReconciler: counted cash vs. expected cash

PURPOSE:
  A lagging, aggregate control independent of individual distributions.
  Expected cash is derived from settled distributions since the staff
  member's last cleared count; a count that doesn't match is recorded as a
  short (negative difference) or excess (positive) and later cleared in
  batches once it has been dealt with.

EXPECTED CASH:
  Sum of Cash over settled distributions of staff in scope whose settlement
  date is after the SettlementDate of the most recent cleared record (or
  since the beginning of time) and on or before asOf.
*/
package ticketing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ComputeExpected derives how much cash staff should be holding in scope.
func (e *Engine) ComputeExpected(ctx context.Context, scope ScopeID, staff StaffID, asOf time.Time) (decimal.Decimal, error) {
	if _, err := e.store.GetStaff(ctx, staff); err != nil {
		return decimal.Zero, err
	}

	cleared, err := e.store.ListStaffSettlements(ctx, StaffSettlementFilter{
		ScopeID: scope,
		StaffID: staff,
		Status:  ReconcileSettled,
	})
	if err != nil {
		return decimal.Zero, err
	}

	filter := DistributionFilter{ScopeID: scope, StaffID: staff, Status: DistributionSettled}
	if since, ok := latestSettlementDate(cleared); ok {
		filter.SettledAfter = &since
	}
	through := TruncateDate(asOf)
	filter.SettledThrough = &through

	settled, err := e.store.ListDistributions(ctx, filter)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, d := range settled {
		if d.Settlement != nil {
			total = total.Add(d.Settlement.Cash)
		}
	}
	return total, nil
}

func latestSettlementDate(records []StaffSettlement) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, r := range records {
		if !found || r.SettlementDate.After(latest) {
			latest = r.SettlementDate
			found = true
		}
	}
	return latest, found
}

// RecordInput is a staff cash count.
type RecordInput struct {
	StaffID  StaffID
	Date     time.Time
	Expected decimal.Decimal
	Actual   decimal.Decimal
	Notes    string
}

// RecordSettlement stores a cash count whose difference is non-zero.
// A balanced count has nothing to track and returns nil, nil.
func (e *Engine) RecordSettlement(ctx context.Context, scope ScopeID, in RecordInput) (*StaffSettlement, error) {
	tx, err := e.begin(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.GetStaff(ctx, in.StaffID); err != nil {
		return nil, err
	}
	diff := in.Actual.Sub(in.Expected)
	if diff.IsZero() {
		e.log.Info("staff cash balanced", "scope_id", scope, "staff_id", in.StaffID, "expected", in.Expected)
		return nil, nil
	}
	s := &StaffSettlement{
		ID:             StaffSettlementID(e.newID()),
		StaffID:        in.StaffID,
		ScopeID:        scope,
		SettlementDate: TruncateDate(in.Date),
		Expected:       in.Expected,
		Actual:         in.Actual,
		Difference:     diff,
		Notes:          in.Notes,
		Status:         ReconcileUnsettled,
		CreatedAt:      e.now(),
	}
	if err := tx.InsertStaffSettlement(ctx, s); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	e.log.Info("staff cash difference recorded", "scope_id", scope, "staff_id", in.StaffID, "difference", diff)
	e.emit(ctx, Event{
		Type:              EventStaffSettlementCreated,
		ScopeID:           scope,
		StaffID:           in.StaffID,
		StaffSettlementID: s.ID,
		Amount:            diff,
	})
	return s, nil
}

// ClearBatch marks every unsettled record in ids as settled by user on
// date. Records already settled are left alone. It returns the ids that
// changed; an unknown id or a record of an archived scope aborts the
// whole batch.
func (e *Engine) ClearBatch(ctx context.Context, ids []StaffSettlementID, user string, on time.Time) ([]StaffSettlementID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if user == "" {
		return nil, fmt.Errorf("%w: clearing user is required", ErrInvalidInput)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	day := TruncateDate(on)
	active := make(map[ScopeID]bool)
	var cleared []StaffSettlementID
	var records []*StaffSettlement
	for _, id := range ids {
		rec, err := tx.GetStaffSettlement(ctx, id)
		if err != nil {
			return nil, err
		}
		live, seen := active[rec.ScopeID]
		if !seen {
			scope, err := tx.GetScope(ctx, rec.ScopeID)
			if err != nil {
				return nil, err
			}
			live = scope.Active
			active[rec.ScopeID] = live
		}
		if !live {
			return nil, fmt.Errorf("%w: %s", ErrArchivedScope, rec.ScopeID)
		}
		ok, err := tx.ClearStaffSettlement(ctx, id, user, day)
		if err != nil {
			return nil, err
		}
		if ok {
			cleared = append(cleared, id)
			records = append(records, rec)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	e.log.Info("staff settlements cleared", "requested", len(ids), "cleared", len(cleared), "user", user)
	for _, rec := range records {
		e.emit(ctx, Event{
			Type:              EventStaffSettlementCleared,
			ScopeID:           rec.ScopeID,
			StaffID:           rec.StaffID,
			StaffSettlementID: rec.ID,
			Amount:            rec.Difference,
			User:              user,
		})
	}
	return cleared, nil
}
