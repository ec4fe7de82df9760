package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/ticket-engine/ticketing"
)

// reader implements ticketing.Queries over a *sql.DB or *sql.Tx.
type reader struct {
	q querier
}

// =============================================================================
// SCOPES
// =============================================================================

const scopeColumns = `id, name, active, created_at`

func scanScope(row rowScanner) (*ticketing.Scope, error) {
	var s ticketing.Scope
	var created string
	if err := row.Scan(&s.ID, &s.Name, &s.Active, &created); err != nil {
		return nil, err
	}
	s.CreatedAt = parseTimestamp(created)
	return &s, nil
}

func (r reader) GetScope(ctx context.Context, id ticketing.ScopeID) (*ticketing.Scope, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+scopeColumns+` FROM scopes WHERE id = ?`, id)
	v, err := scanScope(row)
	return found(v, err, "scope", id)
}

func (r reader) ActiveScope(ctx context.Context) (*ticketing.Scope, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+scopeColumns+` FROM scopes WHERE active = ? LIMIT 1`, true)
	v, err := scanScope(row)
	return found(v, err, "active scope", "")
}

func (r reader) ListScopes(ctx context.Context) ([]ticketing.Scope, error) {
	return list(ctx, r.q, scanScope, `SELECT `+scopeColumns+` FROM scopes ORDER BY created_at, id`)
}

// =============================================================================
// STAFF
// =============================================================================

const staffColumns = `id, name, active, created_at`

func scanStaff(row rowScanner) (*ticketing.Staff, error) {
	var s ticketing.Staff
	var created string
	if err := row.Scan(&s.ID, &s.Name, &s.Active, &created); err != nil {
		return nil, err
	}
	s.CreatedAt = parseTimestamp(created)
	return &s, nil
}

func (r reader) GetStaff(ctx context.Context, id ticketing.StaffID) (*ticketing.Staff, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff WHERE id = ?`, id)
	v, err := scanStaff(row)
	return found(v, err, "staff", id)
}

func (r reader) StaffByName(ctx context.Context, name string) (*ticketing.Staff, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff WHERE name = ?`, name)
	v, err := scanStaff(row)
	return found(v, err, "staff", name)
}

func (r reader) ListStaff(ctx context.Context) ([]ticketing.Staff, error) {
	return list(ctx, r.q, scanStaff, `SELECT `+staffColumns+` FROM staff ORDER BY name`)
}

// =============================================================================
// RATES
// =============================================================================

const rateColumns = `id, name, unit_price, active, created_at`

func scanRate(row rowScanner) (*ticketing.RateCategory, error) {
	var rc ticketing.RateCategory
	var created string
	if err := row.Scan(&rc.ID, &rc.Name, &rc.UnitPrice, &rc.Active, &created); err != nil {
		return nil, err
	}
	rc.CreatedAt = parseTimestamp(created)
	return &rc, nil
}

func (r reader) GetRate(ctx context.Context, id ticketing.RateID) (*ticketing.RateCategory, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+rateColumns+` FROM rate_categories WHERE id = ?`, id)
	v, err := scanRate(row)
	return found(v, err, "rate", id)
}

func (r reader) RateByName(ctx context.Context, name string) (*ticketing.RateCategory, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+rateColumns+` FROM rate_categories WHERE name = ?`, name)
	v, err := scanRate(row)
	return found(v, err, "rate", name)
}

func (r reader) ListRates(ctx context.Context) ([]ticketing.RateCategory, error) {
	return list(ctx, r.q, scanRate, `SELECT `+rateColumns+` FROM rate_categories ORDER BY name`)
}

// =============================================================================
// BUNDLES
// =============================================================================

const bundleColumns = `id, scope_id, unit_price, color, serial_start, serial_end, status, created_at`

func scanBundle(row rowScanner) (*ticketing.StockBundle, error) {
	var b ticketing.StockBundle
	var created string
	if err := row.Scan(&b.ID, &b.ScopeID, &b.UnitPrice, &b.Color, &b.Start, &b.End, &b.Status, &created); err != nil {
		return nil, err
	}
	b.CreatedAt = parseTimestamp(created)
	return &b, nil
}

func (r reader) GetBundle(ctx context.Context, id ticketing.BundleID) (*ticketing.StockBundle, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+bundleColumns+` FROM stock_bundles WHERE id = ?`, id)
	v, err := scanBundle(row)
	return found(v, err, "bundle", id)
}

func (r reader) ListBundles(ctx context.Context, f ticketing.BundleFilter) ([]ticketing.StockBundle, error) {
	var w where
	if f.ScopeID != "" {
		w.add("scope_id = ?", f.ScopeID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.Color != "" {
		w.add("color = ?", f.Color)
	}
	if f.Start != nil {
		w.add("serial_start = ?", *f.Start)
	}
	return list(ctx, r.q, scanBundle,
		`SELECT `+bundleColumns+` FROM stock_bundles`+w.String()+` ORDER BY color, serial_start, created_at`,
		w.args...)
}

func (r reader) OverlappingBundles(ctx context.Context, scope ticketing.ScopeID, color string, start, end int64) ([]ticketing.StockBundle, error) {
	return list(ctx, r.q, scanBundle, `
		SELECT `+bundleColumns+` FROM stock_bundles
		WHERE scope_id = ? AND color = ? AND status <> ?
		  AND serial_start <= ? AND serial_end >= ?
		ORDER BY serial_start`,
		scope, color, ticketing.BundleCancelled, end, start)
}

// =============================================================================
// DISTRIBUTIONS
// =============================================================================

const distributionColumns = `id, scope_id, staff_id, rate_id, bundle_id, serial_start, serial_end,
	distributed_on, status, returned_start, settled_on, tickets_sold, revenue,
	cash_amount, electronic_amount, settled_by, remainder_id, created_at`

func scanDistribution(row rowScanner) (*ticketing.Distribution, error) {
	var (
		d                         ticketing.Distribution
		bundle, settledOn, by     sql.NullString
		remainder                 sql.NullString
		returned, sold            sql.NullInt64
		revenue, cash, electronic decimal.NullDecimal
		distributedOn, created    string
	)
	if err := row.Scan(
		&d.ID, &d.ScopeID, &d.StaffID, &d.RateID, &bundle, &d.Start, &d.End,
		&distributedOn, &d.Status, &returned, &settledOn, &sold, &revenue,
		&cash, &electronic, &by, &remainder, &created,
	); err != nil {
		return nil, err
	}
	d.BundleID = ticketing.BundleID(bundle.String)
	d.DistributedOn = parseDate(distributedOn)
	d.CreatedAt = parseTimestamp(created)

	if d.Status == ticketing.DistributionSettled {
		d.Settlement = &ticketing.SettlementRecord{
			ReturnedStart: returned.Int64,
			SettledOn:     parseDate(settledOn.String),
			TicketsSold:   sold.Int64,
			Revenue:       revenue.Decimal,
			Cash:          cash.Decimal,
			Electronic:    electronic.Decimal,
			SettledBy:     by.String,
			RemainderID:   ticketing.BundleID(remainder.String),
		}
	}
	return &d, nil
}

func (r reader) GetDistribution(ctx context.Context, id ticketing.DistributionID) (*ticketing.Distribution, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+distributionColumns+` FROM distributions WHERE id = ?`, id)
	v, err := scanDistribution(row)
	return found(v, err, "distribution", id)
}

func (r reader) ListDistributions(ctx context.Context, f ticketing.DistributionFilter) ([]ticketing.Distribution, error) {
	var w where
	if f.ScopeID != "" {
		w.add("scope_id = ?", f.ScopeID)
	}
	if f.StaffID != "" {
		w.add("staff_id = ?", f.StaffID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.SettledAfter != nil {
		w.add("settled_on > ?", date(*f.SettledAfter))
	}
	if f.SettledThrough != nil {
		w.add("settled_on <= ?", date(*f.SettledThrough))
	}
	return list(ctx, r.q, scanDistribution,
		`SELECT `+distributionColumns+` FROM distributions`+w.String()+` ORDER BY distributed_on, created_at, id`,
		w.args...)
}

// =============================================================================
// STAFF SETTLEMENTS
// =============================================================================

const staffSettlementColumns = `id, staff_id, scope_id, settlement_date, expected, actual, difference,
	notes, status, cleared_by, cleared_on, created_at`

func scanStaffSettlement(row rowScanner) (*ticketing.StaffSettlement, error) {
	var (
		s                 ticketing.StaffSettlement
		by, on            sql.NullString
		settledOn, create string
	)
	if err := row.Scan(
		&s.ID, &s.StaffID, &s.ScopeID, &settledOn, &s.Expected, &s.Actual, &s.Difference,
		&s.Notes, &s.Status, &by, &on, &create,
	); err != nil {
		return nil, err
	}
	s.SettlementDate = parseDate(settledOn)
	s.ClearedBy = by.String
	if on.Valid {
		t := parseDate(on.String)
		s.ClearedOn = &t
	}
	s.CreatedAt = parseTimestamp(create)
	return &s, nil
}

func (r reader) GetStaffSettlement(ctx context.Context, id ticketing.StaffSettlementID) (*ticketing.StaffSettlement, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+staffSettlementColumns+` FROM staff_settlements WHERE id = ?`, id)
	v, err := scanStaffSettlement(row)
	return found(v, err, "staff settlement", id)
}

func (r reader) ListStaffSettlements(ctx context.Context, f ticketing.StaffSettlementFilter) ([]ticketing.StaffSettlement, error) {
	var w where
	if f.ScopeID != "" {
		w.add("scope_id = ?", f.ScopeID)
	}
	if f.StaffID != "" {
		w.add("staff_id = ?", f.StaffID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	return list(ctx, r.q, scanStaffSettlement,
		`SELECT `+staffSettlementColumns+` FROM staff_settlements`+w.String()+` ORDER BY settlement_date, created_at, id`,
		w.args...)
}

// =============================================================================
// ACCOUNTING ENTRIES
// =============================================================================

const entryColumns = `id, scope_id, category, amount, transaction_date, reference, description, user_id, created_at`

func scanEntry(row rowScanner) (*ticketing.AccountingEntry, error) {
	var e ticketing.AccountingEntry
	var txDate, created string
	if err := row.Scan(&e.ID, &e.ScopeID, &e.Category, &e.Amount, &txDate, &e.Reference, &e.Description, &e.UserID, &created); err != nil {
		return nil, err
	}
	e.TransactionDate = parseDate(txDate)
	e.CreatedAt = parseTimestamp(created)
	return &e, nil
}

func (r reader) ListEntries(ctx context.Context, f ticketing.EntryFilter) ([]ticketing.AccountingEntry, error) {
	var w where
	if f.ScopeID != "" {
		w.add("scope_id = ?", f.ScopeID)
	}
	if f.Reference != "" {
		w.add("reference = ?", f.Reference)
	}
	return list(ctx, r.q, scanEntry,
		`SELECT `+entryColumns+` FROM accounting_entries`+w.String()+` ORDER BY transaction_date, created_at, id`,
		w.args...)
}

// =============================================================================
// HELPERS
// =============================================================================

// found turns sql.ErrNoRows from a single-row scan into a NotFoundError.
func found[T any](v *T, err error, kind string, id any) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ticketing.NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", kind, err)
	}
	return v, nil
}

func list[T any](ctx context.Context, q querier, scan func(rowScanner) (*T, error), query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}
