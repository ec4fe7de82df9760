// Package report renders a scope as an xlsx workbook for the office.
//
// Sheets:
//
//	Summary        totals from ticketing.Summarize, ledger balance check
//	Stock          every bundle with its status
//	Distributions  every distribution with settlement figures
//	Ledger         Ticket Sales entries of the accounting ledger
//	Cash Counts    staff cash differences
package report

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/ticket-engine/ticketing"
)

const (
	sheetSummary       = "Summary"
	sheetStock         = "Stock"
	sheetDistributions = "Distributions"
	sheetLedger        = "Ledger"
	sheetCashCounts    = "Cash Counts"
)

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Workbook builds the report for scope. The caller closes the file.
func Workbook(ctx context.Context, e *ticketing.Engine, scope ticketing.ScopeID) (*excelize.File, error) {
	q := e.Store()
	s, err := q.GetScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	sum, err := e.Summarize(ctx, scope)
	if err != nil {
		return nil, err
	}
	bundles, err := q.ListBundles(ctx, ticketing.BundleFilter{ScopeID: scope})
	if err != nil {
		return nil, err
	}
	dists, err := q.ListDistributions(ctx, ticketing.DistributionFilter{ScopeID: scope})
	if err != nil {
		return nil, err
	}
	entries, err := q.ListEntries(ctx, ticketing.EntryFilter{ScopeID: scope})
	if err != nil {
		return nil, err
	}
	counts, err := q.ListStaffSettlements(ctx, ticketing.StaffSettlementFilter{ScopeID: scope})
	if err != nil {
		return nil, err
	}
	staff, err := q.ListStaff(ctx)
	if err != nil {
		return nil, err
	}
	rates, err := q.ListRates(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[ticketing.StaffID]string, len(staff))
	for _, st := range staff {
		names[st.ID] = st.Name
	}
	rateNames := make(map[ticketing.RateID]string, len(rates))
	for _, r := range rates {
		rateNames[r.ID] = r.Name
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	w := &writer{f: f}
	w.summary(s, sum)
	w.stock(bundles)
	w.distributions(dists, names, rateNames)
	w.ledger(entries)
	w.cashCounts(counts, names)
	if w.err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to build workbook: %w", w.err)
	}
	f.SetActiveSheet(0)
	return f, nil
}

// writer keeps the first excelize error so the sheet builders stay linear.
type writer struct {
	f   *excelize.File
	err error
}

func (w *writer) sheet(name string) {
	if w.err != nil || name == sheetSummary {
		return
	}
	_, w.err = w.f.NewSheet(name)
}

func (w *writer) row(sheet string, n int, values ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(sheet, cell, &values)
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func (w *writer) summary(s *ticketing.Scope, sum *ticketing.ScopeSummary) {
	rows := [][]any{
		{"Scope", s.Name},
		{"Active", s.Active},
		{},
		{"Bundles available", sum.BundlesByStatus[ticketing.BundleAvailable]},
		{"Bundles distributed", sum.BundlesByStatus[ticketing.BundleDistributed]},
		{"Bundles settled", sum.BundlesByStatus[ticketing.BundleSettled]},
		{"Bundles cancelled", sum.BundlesByStatus[ticketing.BundleCancelled]},
		{"Tickets in stock", sum.TicketsAvailable},
		{},
		{"Distributions open", sum.DistributionsByStatus[ticketing.DistributionDistributed]},
		{"Distributions settled", sum.DistributionsByStatus[ticketing.DistributionSettled]},
		{"Distributions cancelled", sum.DistributionsByStatus[ticketing.DistributionCancelled]},
		{"Tickets sold", sum.TicketsSold},
		{},
		{"Revenue", money(sum.Revenue)},
		{"Cash", money(sum.Cash)},
		{"Electronic", money(sum.Electronic)},
		{"Ledger total", money(sum.LedgerTotal)},
		{"Ledger balanced", sum.Balanced},
	}
	for i, r := range rows {
		w.row(sheetSummary, i+1, r...)
	}
}

func (w *writer) stock(bundles []ticketing.StockBundle) {
	w.sheet(sheetStock)
	w.row(sheetStock, 1, "Bundle", "Color", "Start", "End", "Tickets", "Unit price", "Status")
	for i, b := range bundles {
		w.row(sheetStock, i+2, string(b.ID), b.Color, b.Start, b.End, b.Size(), money(b.UnitPrice), string(b.Status))
	}
}

func (w *writer) distributions(dists []ticketing.Distribution, staff map[ticketing.StaffID]string, rates map[ticketing.RateID]string) {
	w.sheet(sheetDistributions)
	w.row(sheetDistributions, 1,
		"Distribution", "Date", "Staff", "Rate", "Start", "End", "Status",
		"Returned", "Settled on", "Sold", "Revenue", "Cash", "Electronic")
	for i, d := range dists {
		values := []any{
			string(d.ID), d.DistributedOn.Format(ticketing.DateLayout), staff[d.StaffID], rates[d.RateID],
			d.Start, d.End, string(d.Status),
		}
		if s := d.Settlement; s != nil {
			values = append(values,
				s.ReturnedStart, s.SettledOn.Format(ticketing.DateLayout), s.TicketsSold,
				money(s.Revenue), money(s.Cash), money(s.Electronic))
		}
		w.row(sheetDistributions, i+2, values...)
	}
}

func (w *writer) ledger(entries []ticketing.AccountingEntry) {
	w.sheet(sheetLedger)
	w.row(sheetLedger, 1, "Date", "Category", "Amount", "Reference", "Description", "User")
	for i, e := range entries {
		w.row(sheetLedger, i+2,
			e.TransactionDate.Format(ticketing.DateLayout), e.Category, money(e.Amount),
			e.Reference, e.Description, e.UserID)
	}
}

func (w *writer) cashCounts(counts []ticketing.StaffSettlement, staff map[ticketing.StaffID]string) {
	w.sheet(sheetCashCounts)
	w.row(sheetCashCounts, 1, "Date", "Staff", "Expected", "Actual", "Difference", "Status", "Cleared by", "Notes")
	for i, c := range counts {
		w.row(sheetCashCounts, i+2,
			c.SettlementDate.Format(ticketing.DateLayout), staff[c.StaffID],
			money(c.Expected), money(c.Actual), money(c.Difference),
			string(c.Status), c.ClearedBy, c.Notes)
	}
}
