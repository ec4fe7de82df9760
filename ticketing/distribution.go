/*
distribution.go - DistributionManager: handing bundles to staff

PURPOSE:
  The only code allowed to move a bundle from available to distributed.
  A distribution freezes the bundle's serial range at hand-out time; the
  snapshot is what settlement and reversal measure against.

ATOMICITY:
  Creating the distribution row and flipping the bundle are one transaction.
  The flip is a compare-and-swap on the bundle status, so when two operators
  hand out the same bundle at once, one wins and the other gets
  ErrNotAvailable.

OPERATIONS:
  Distribute          available bundle -> new distribution
  DistributeImported  legacy distribution with no physical stock
  Cancel              distributed -> cancelled, bundle recalled
  Edit                correct staff/rate/bundle before settlement
*/
package ticketing

import (
	"context"
	"fmt"
	"time"
)

// DistributeInput is a request to hand a bundle to a staff member.
type DistributeInput struct {
	StaffID  StaffID
	RateID   RateID
	BundleID BundleID
	Date     time.Time
}

// Distribute hands an Available bundle to a staff member for one rate.
func (e *Engine) Distribute(ctx context.Context, scope ScopeID, in DistributeInput) (*Distribution, error) {
	tx, err := e.begin(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	d, err := e.distributeTx(ctx, tx, scope, in)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	e.log.Info("bundle distributed",
		"scope_id", scope,
		"distribution_id", d.ID,
		"bundle_id", d.BundleID,
		"staff_id", d.StaffID,
		"start", d.Start,
		"end", d.End,
	)
	e.emit(ctx, Event{
		Type:           EventDistributionCreated,
		ScopeID:        scope,
		DistributionID: d.ID,
		BundleID:       d.BundleID,
		StaffID:        d.StaffID,
		Tickets:        d.End - d.Start + 1,
	})
	return d, nil
}

func (e *Engine) distributeTx(ctx context.Context, tx Tx, scope ScopeID, in DistributeInput) (*Distribution, error) {
	if _, err := lookupStaff(ctx, tx, in.StaffID); err != nil {
		return nil, err
	}
	if _, err := lookupRate(ctx, tx, in.RateID); err != nil {
		return nil, err
	}
	b, err := e.claimBundle(ctx, tx, scope, in.BundleID)
	if err != nil {
		return nil, err
	}

	d := &Distribution{
		ID:            DistributionID(e.newID()),
		ScopeID:       scope,
		StaffID:       in.StaffID,
		RateID:        in.RateID,
		BundleID:      b.ID,
		Start:         b.Start,
		End:           b.End,
		DistributedOn: TruncateDate(in.Date),
		Status:        DistributionDistributed,
		CreatedAt:     e.now(),
	}
	if err := tx.InsertDistribution(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// claimBundle flips an Available bundle of scope to Distributed.
func (e *Engine) claimBundle(ctx context.Context, tx Tx, scope ScopeID, id BundleID) (*StockBundle, error) {
	b, err := scopedBundle(ctx, tx, scope, id)
	if err != nil {
		return nil, err
	}
	if b.Status != BundleAvailable {
		return nil, fmt.Errorf("%w: bundle %s is %s", ErrNotAvailable, id, b.Status)
	}
	if err := tx.TransitionBundle(ctx, id, BundleAvailable, BundleDistributed); err != nil {
		return nil, staleAs(err, ErrNotAvailable)
	}
	b.Status = BundleDistributed
	return b, nil
}

// ImportedInput describes a distribution recorded without physical stock.
type ImportedInput struct {
	StaffID StaffID
	RateID  RateID
	Start   int64
	End     int64
	Date    time.Time
}

// DistributeImported records a distribution whose serials are not tracked
// as stock. It settles like any other distribution but never splits.
func (e *Engine) DistributeImported(ctx context.Context, scope ScopeID, in ImportedInput) (*Distribution, error) {
	if err := checkRange(in.Start, in.End); err != nil {
		return nil, err
	}

	tx, err := e.begin(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := lookupStaff(ctx, tx, in.StaffID); err != nil {
		return nil, err
	}
	if _, err := lookupRate(ctx, tx, in.RateID); err != nil {
		return nil, err
	}
	d := &Distribution{
		ID:            DistributionID(e.newID()),
		ScopeID:       scope,
		StaffID:       in.StaffID,
		RateID:        in.RateID,
		Start:         in.Start,
		End:           in.End,
		DistributedOn: TruncateDate(in.Date),
		Status:        DistributionDistributed,
		CreatedAt:     e.now(),
	}
	if err := tx.InsertDistribution(ctx, d); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	e.log.Info("imported distribution recorded", "scope_id", scope, "distribution_id", d.ID, "start", d.Start, "end", d.End)
	e.emit(ctx, Event{Type: EventDistributionCreated, ScopeID: scope, DistributionID: d.ID, StaffID: d.StaffID, Tickets: d.End - d.Start + 1})
	return d, nil
}

// Cancel voids a distribution that has not been settled and returns its
// bundle to stock.
func (e *Engine) Cancel(ctx context.Context, scope ScopeID, id DistributionID) (*Distribution, error) {
	tx, err := e.begin(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	d, err := openDistribution(ctx, tx, scope, id)
	if err != nil {
		return nil, err
	}
	if !d.Imported() {
		if err := recallBundle(ctx, tx, d.BundleID); err != nil {
			return nil, err
		}
	}
	cancelled := *d
	cancelled.Status = DistributionCancelled
	if err := tx.TransitionDistribution(ctx, &cancelled, DistributionDistributed); err != nil {
		return nil, staleAs(err, ErrAlreadySettled)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	e.log.Info("distribution cancelled", "scope_id", scope, "distribution_id", id, "bundle_id", d.BundleID)
	e.emit(ctx, Event{Type: EventDistributionCancelled, ScopeID: scope, DistributionID: id, BundleID: d.BundleID, StaffID: d.StaffID})
	return &cancelled, nil
}

// EditInput corrects a distribution before settlement. An empty BundleID
// keeps the current bundle.
type EditInput struct {
	StaffID  StaffID
	RateID   RateID
	BundleID BundleID
}

// Edit reassigns staff and rate, and optionally swaps the bundle. Swapping
// recalls the old bundle, claims the new one and re-snapshots the range.
func (e *Engine) Edit(ctx context.Context, scope ScopeID, id DistributionID, in EditInput) (*Distribution, error) {
	tx, err := e.begin(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	d, err := openDistribution(ctx, tx, scope, id)
	if err != nil {
		return nil, err
	}
	if _, err := lookupStaff(ctx, tx, in.StaffID); err != nil {
		return nil, err
	}
	if _, err := lookupRate(ctx, tx, in.RateID); err != nil {
		return nil, err
	}
	d.StaffID = in.StaffID
	d.RateID = in.RateID

	if in.BundleID != "" && in.BundleID != d.BundleID {
		if !d.Imported() {
			if err := recallBundle(ctx, tx, d.BundleID); err != nil {
				return nil, err
			}
		}
		b, err := e.claimBundle(ctx, tx, scope, in.BundleID)
		if err != nil {
			return nil, err
		}
		d.BundleID = b.ID
		d.Start = b.Start
		d.End = b.End
	}

	if err := tx.ReassignDistribution(ctx, d); err != nil {
		return nil, staleAs(err, ErrAlreadySettled)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	e.log.Info("distribution edited", "scope_id", scope, "distribution_id", id, "bundle_id", d.BundleID, "staff_id", d.StaffID)
	e.emit(ctx, Event{Type: EventDistributionEdited, ScopeID: scope, DistributionID: id, BundleID: d.BundleID, StaffID: d.StaffID})
	return d, nil
}

// openDistribution loads a distribution of scope that is still Distributed.
func openDistribution(ctx context.Context, q Queries, scope ScopeID, id DistributionID) (*Distribution, error) {
	d, err := scopedDistribution(ctx, q, scope, id)
	if err != nil {
		return nil, err
	}
	if d.Status != DistributionDistributed {
		return nil, fmt.Errorf("%w: distribution %s is %s", ErrAlreadySettled, id, d.Status)
	}
	return d, nil
}

func scopedDistribution(ctx context.Context, q Queries, scope ScopeID, id DistributionID) (*Distribution, error) {
	d, err := q.GetDistribution(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.ScopeID != scope {
		return nil, notFound("distribution", id)
	}
	return d, nil
}
