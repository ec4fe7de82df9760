package report_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/ticket-engine/report"
	"github.com/warp/ticket-engine/store/sqlstore"
	"github.com/warp/ticket-engine/ticketing"
)

func TestWorkbook(t *testing.T) {
	// GIVEN: A scope with one partial settlement
	// WHEN: Rendering the workbook and reading it back
	// THEN: Every sheet is present and the figures match the settlement

	store, err := sqlstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	engine := ticketing.New(store)
	ctx := context.Background()

	scope, err := engine.CreateScope(ctx, "Summer Fair")
	require.NoError(t, err)
	staff, err := engine.CreateStaff(ctx, "Dana")
	require.NoError(t, err)
	rate, err := engine.CreateRate(ctx, "Ferris Wheel", decimal.NewFromInt(10))
	require.NoError(t, err)
	b, err := engine.CreateBundle(ctx, scope.ID, ticketing.BundleInput{UnitPrice: decimal.NewFromInt(10), Color: "red", Start: 1, End: 100})
	require.NoError(t, err)
	d, err := engine.Distribute(ctx, scope.ID, ticketing.DistributeInput{StaffID: staff.ID, RateID: rate.ID, BundleID: b.ID, Date: ticketing.Date(2025, 7, 1)})
	require.NoError(t, err)
	_, err = engine.Settle(ctx, scope.ID, d.ID, ticketing.SettleInput{
		ReturnedStart: 61,
		Electronic:    decimal.NewNullDecimal(decimal.NewFromInt(200)),
		Date:          ticketing.Date(2025, 7, 2),
	})
	require.NoError(t, err)

	f, err := report.Workbook(ctx, engine, scope.ID)
	require.NoError(t, err)
	defer f.Close()

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	back, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer back.Close()

	assert.Equal(t, []string{"Summary", "Stock", "Distributions", "Ledger", "Cash Counts"}, back.GetSheetList())

	revenue, err := back.GetCellValue("Summary", "B15")
	require.NoError(t, err)
	assert.Equal(t, "600", revenue)
	balanced, err := back.GetCellValue("Summary", "B19")
	require.NoError(t, err)
	assert.Equal(t, "TRUE", balanced)

	stock, err := back.GetRows("Stock")
	require.NoError(t, err)
	assert.Len(t, stock, 3, "header, settled original, remainder")

	dists, err := back.GetRows("Distributions")
	require.NoError(t, err)
	require.Len(t, dists, 2)
	assert.Equal(t, "Dana", dists[1][2])
	assert.Equal(t, "Ferris Wheel", dists[1][3])
	assert.Equal(t, "60", dists[1][9])
	assert.Equal(t, "400", dists[1][11])

	ledger, err := back.GetRows("Ledger")
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, ticketing.CategoryTicketSales, ledger[1][1])
}

func TestWorkbook_UnknownScope(t *testing.T) {
	store, err := sqlstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = report.Workbook(context.Background(), ticketing.New(store), "missing")
	assert.True(t, ticketing.IsNotFound(err))
}
