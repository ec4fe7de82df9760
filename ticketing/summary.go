package ticketing

import (
	"context"

	"github.com/shopspring/decimal"
)

// ScopeSummary is a derived view over committed rows. It is what an
// operator looks at to check that the accounting ledger agrees with the
// settled distributions.
type ScopeSummary struct {
	ScopeID ScopeID

	BundlesByStatus       map[BundleStatus]int
	TicketsAvailable      int64
	DistributionsByStatus map[DistributionStatus]int

	TicketsSold int64
	Revenue     decimal.Decimal
	Cash        decimal.Decimal
	Electronic  decimal.Decimal

	LedgerTotal   decimal.Decimal
	LedgerEntries int

	// Balanced is true when LedgerTotal equals Revenue.
	Balanced bool
}

// Summarize reads scope without a transaction.
func (e *Engine) Summarize(ctx context.Context, scope ScopeID) (*ScopeSummary, error) {
	if _, err := e.store.GetScope(ctx, scope); err != nil {
		return nil, err
	}
	bundles, err := e.store.ListBundles(ctx, BundleFilter{ScopeID: scope})
	if err != nil {
		return nil, err
	}
	dists, err := e.store.ListDistributions(ctx, DistributionFilter{ScopeID: scope})
	if err != nil {
		return nil, err
	}
	entries, err := e.store.ListEntries(ctx, EntryFilter{ScopeID: scope})
	if err != nil {
		return nil, err
	}

	s := &ScopeSummary{
		ScopeID:               scope,
		BundlesByStatus:       make(map[BundleStatus]int),
		DistributionsByStatus: make(map[DistributionStatus]int),
		Revenue:               decimal.Zero,
		Cash:                  decimal.Zero,
		Electronic:            decimal.Zero,
		LedgerTotal:           decimal.Zero,
	}
	for _, b := range bundles {
		s.BundlesByStatus[b.Status]++
		if b.Status == BundleAvailable {
			s.TicketsAvailable += b.Size()
		}
	}
	for _, d := range dists {
		s.DistributionsByStatus[d.Status]++
		if d.Settlement == nil {
			continue
		}
		s.TicketsSold += d.Settlement.TicketsSold
		s.Revenue = s.Revenue.Add(d.Settlement.Revenue)
		s.Cash = s.Cash.Add(d.Settlement.Cash)
		s.Electronic = s.Electronic.Add(d.Settlement.Electronic)
	}
	for _, en := range entries {
		if en.Category != CategoryTicketSales {
			continue
		}
		s.LedgerTotal = s.LedgerTotal.Add(en.Amount)
		s.LedgerEntries++
	}
	s.Balanced = s.LedgerTotal.Equal(s.Revenue)
	return s, nil
}
