package ticketing_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ticket-engine/ticketing"
)

// settleFor distributes a fresh bundle to staff and settles it so that the
// cash side comes to soldx10 - electronic.
func settleFor(t *testing.T, f *fixture, staff ticketing.StaffID, color string, sold int64, electronic string, on int) {
	t.Helper()
	ctx := context.Background()
	b := f.bundle(t, color, 1, 1000)
	d, err := f.engine.Distribute(ctx, f.scope, ticketing.DistributeInput{
		StaffID: staff, RateID: f.rate, BundleID: b.ID, Date: day(on),
	})
	require.NoError(t, err)
	_, err = f.engine.Settle(ctx, f.scope, d.ID, ticketing.SettleInput{
		ReturnedStart: 1 + sold,
		Electronic:    decimal.NewNullDecimal(dec(electronic)),
		Date:          day(on),
	})
	require.NoError(t, err)
}

func TestComputeExpected_SumsCashSinceLastClearedCount(t *testing.T) {
	// GIVEN: Dana settled 300 + 200 cash on July 1-2, was counted on July 2
	//        (cleared), then settled 150 more on July 3
	// WHEN: Computing expected cash as of July 3
	// THEN: Only the July 3 settlement counts

	f := newFixture(t)
	ctx := context.Background()

	settleFor(t, f, f.staff, "red", 40, "100", 1)  // cash 300
	settleFor(t, f, f.staff, "blue", 20, "0", 2)   // cash 200
	settleFor(t, f, f.staff, "green", 20, "50", 3) // cash 150

	expected, err := f.engine.ComputeExpected(ctx, f.scope, f.staff, day(2))
	require.NoError(t, err)
	assertDecimal(t, "500", expected)

	rec, err := f.engine.RecordSettlement(ctx, f.scope, ticketing.RecordInput{
		StaffID: f.staff, Date: day(2), Expected: expected, Actual: dec("490"),
	})
	require.NoError(t, err)
	_, err = f.engine.ClearBatch(ctx, []ticketing.StaffSettlementID{rec.ID}, "supervisor", day(4))
	require.NoError(t, err)

	expected, err = f.engine.ComputeExpected(ctx, f.scope, f.staff, day(3))
	require.NoError(t, err)
	assertDecimal(t, "150", expected)
}

func TestComputeExpected_UnclearedRecordsDoNotReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	settleFor(t, f, f.staff, "red", 40, "100", 1)

	_, err := f.engine.RecordSettlement(ctx, f.scope, ticketing.RecordInput{
		StaffID: f.staff, Date: day(1), Expected: dec("300"), Actual: dec("250"),
	})
	require.NoError(t, err)

	expected, err := f.engine.ComputeExpected(ctx, f.scope, f.staff, day(1))
	require.NoError(t, err)
	assertDecimal(t, "300", expected)
}

func TestComputeExpected_OtherStaffIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	eli, err := f.engine.CreateStaff(ctx, "Eli")
	require.NoError(t, err)

	settleFor(t, f, f.staff, "red", 40, "0", 1)
	settleFor(t, f, eli.ID, "blue", 10, "0", 1)

	expected, err := f.engine.ComputeExpected(ctx, f.scope, eli.ID, day(1))
	require.NoError(t, err)
	assertDecimal(t, "100", expected)

	_, err = f.engine.ComputeExpected(ctx, f.scope, "ghost", day(1))
	assert.True(t, ticketing.IsNotFound(err))
}

func TestRecordSettlement_Short(t *testing.T) {
	// GIVEN: Expected 5000, counted 4800
	// WHEN: Recording the count
	// THEN: A record with difference -200, unsettled

	f := newFixture(t)

	rec, err := f.engine.RecordSettlement(context.Background(), f.scope, ticketing.RecordInput{
		StaffID:  f.staff,
		Date:     day(5),
		Expected: dec("5000"),
		Actual:   dec("4800"),
		Notes:    "counted twice",
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assertDecimal(t, "-200", rec.Difference)
	assert.Equal(t, ticketing.ReconcileUnsettled, rec.Status)

	stored, err := f.store.GetStaffSettlement(context.Background(), rec.ID)
	require.NoError(t, err)
	assertDecimal(t, "-200", stored.Difference)
	assert.Equal(t, "counted twice", stored.Notes)
	assert.Equal(t, day(5), stored.SettlementDate)
	assert.Nil(t, stored.ClearedOn)
}

func TestRecordSettlement_BalancedCountNotStored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.engine.RecordSettlement(ctx, f.scope, ticketing.RecordInput{
		StaffID: f.staff, Date: day(5), Expected: dec("100"), Actual: dec("100.00"),
	})
	require.NoError(t, err)
	assert.Nil(t, rec)

	all, err := f.store.ListStaffSettlements(ctx, ticketing.StaffSettlementFilter{ScopeID: f.scope})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRecordSettlement_BalancedCountStillChecksScopeAndStaff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	balanced := ticketing.RecordInput{StaffID: f.staff, Date: day(5), Expected: dec("100"), Actual: dec("100")}

	_, err := f.engine.RecordSettlement(ctx, "no-such-scope", balanced)
	assert.True(t, ticketing.IsNotFound(err))

	ghost := balanced
	ghost.StaffID = "ghost"
	_, err = f.engine.RecordSettlement(ctx, f.scope, ghost)
	assert.True(t, ticketing.IsNotFound(err))

	next, err := f.engine.CreateScope(ctx, "Winter Fair 2025")
	require.NoError(t, err)
	_, err = f.engine.ActivateScope(ctx, next.ID)
	require.NoError(t, err)
	_, err = f.engine.RecordSettlement(ctx, f.scope, balanced)
	assert.ErrorIs(t, err, ticketing.ErrArchivedScope)
}

func TestClearBatch_Idempotent(t *testing.T) {
	// GIVEN: Two unsettled records
	// WHEN: Clearing both, then clearing one of them again
	// THEN: The second batch changes nothing and keeps the first clearing user

	f := newFixture(t)
	ctx := context.Background()

	var ids []ticketing.StaffSettlementID
	for _, actual := range []string{"90", "120"} {
		rec, err := f.engine.RecordSettlement(ctx, f.scope, ticketing.RecordInput{
			StaffID: f.staff, Date: day(5), Expected: dec("100"), Actual: dec(actual),
		})
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	cleared, err := f.engine.ClearBatch(ctx, ids, "supervisor", day(6))
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, cleared)

	cleared, err = f.engine.ClearBatch(ctx, ids[:1], "someone-else", day(7))
	require.NoError(t, err)
	assert.Empty(t, cleared)

	stored, err := f.store.GetStaffSettlement(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, ticketing.ReconcileSettled, stored.Status)
	assert.Equal(t, "supervisor", stored.ClearedBy)
	require.NotNil(t, stored.ClearedOn)
	assert.Equal(t, day(6), *stored.ClearedOn)
}

func TestClearBatch_UnknownIDAbortsBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec, err := f.engine.RecordSettlement(ctx, f.scope, ticketing.RecordInput{
		StaffID: f.staff, Date: day(5), Expected: dec("100"), Actual: dec("90"),
	})
	require.NoError(t, err)

	_, err = f.engine.ClearBatch(ctx, []ticketing.StaffSettlementID{rec.ID, "ghost"}, "supervisor", day(6))
	assert.True(t, ticketing.IsNotFound(err))

	stored, err := f.store.GetStaffSettlement(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, ticketing.ReconcileUnsettled, stored.Status)

	_, err = f.engine.ClearBatch(ctx, []ticketing.StaffSettlementID{rec.ID}, "", day(6))
	assert.ErrorIs(t, err, ticketing.ErrInvalidInput)
}

func TestClearBatch_ArchivedScopeRejected(t *testing.T) {
	// GIVEN: A short count recorded in a scope that was archived afterwards
	// WHEN: Clearing it
	// THEN: ErrArchivedScope and the record stays unsettled

	f := newFixture(t)
	ctx := context.Background()
	rec, err := f.engine.RecordSettlement(ctx, f.scope, ticketing.RecordInput{
		StaffID: f.staff, Date: day(5), Expected: dec("100"), Actual: dec("90"),
	})
	require.NoError(t, err)

	next, err := f.engine.CreateScope(ctx, "Winter Fair 2025")
	require.NoError(t, err)
	_, err = f.engine.ActivateScope(ctx, next.ID)
	require.NoError(t, err)

	_, err = f.engine.ClearBatch(ctx, []ticketing.StaffSettlementID{rec.ID}, "supervisor", day(6))
	assert.ErrorIs(t, err, ticketing.ErrArchivedScope)

	stored, err := f.store.GetStaffSettlement(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, ticketing.ReconcileUnsettled, stored.Status)
}
