package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/ticket-engine/ticketing"
)

// writer implements ticketing.Writes. It is only constructed inside a Tx.
type writer struct {
	reader
}

func (w writer) exec(ctx context.Context, kind, query string, args ...any) (int64, error) {
	res, err := w.q.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s: %v", ticketing.ErrDuplicate, kind, err)
		}
		return 0, fmt.Errorf("failed to write %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", kind, err)
	}
	return n, nil
}

// exists reports whether table has a row with id.
func (w writer) exists(ctx context.Context, table string, id any) (bool, error) {
	var n int
	err := w.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", table, err)
	}
	return n > 0, nil
}

// swapped interprets the row count of a compare-and-swap update.
func (w writer) swapped(ctx context.Context, n int64, table, kind string, id any) error {
	if n > 0 {
		return nil
	}
	ok, err := w.exists(ctx, table, id)
	if err != nil {
		return err
	}
	if !ok {
		return &ticketing.NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
	}
	return fmt.Errorf("%w: %s %v", ticketing.ErrStaleStatus, kind, id)
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (w writer) InsertScope(ctx context.Context, s *ticketing.Scope) error {
	_, err := w.exec(ctx, "scope",
		`INSERT INTO scopes (id, name, active, created_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.Name, s.Active, timestamp(s.CreatedAt))
	return err
}

func (w writer) SetActiveScope(ctx context.Context, id ticketing.ScopeID) error {
	ok, err := w.exists(ctx, "scopes", id)
	if err != nil {
		return err
	}
	if !ok {
		return &ticketing.NotFoundError{Kind: "scope", ID: string(id)}
	}
	_, err = w.exec(ctx, "scope",
		`UPDATE scopes SET active = CASE WHEN id = ? THEN 1 ELSE 0 END`, id)
	return err
}

func (w writer) InsertStaff(ctx context.Context, s *ticketing.Staff) error {
	_, err := w.exec(ctx, "staff",
		`INSERT INTO staff (id, name, active, created_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.Name, s.Active, timestamp(s.CreatedAt))
	return err
}

func (w writer) InsertRate(ctx context.Context, r *ticketing.RateCategory) error {
	_, err := w.exec(ctx, "rate",
		`INSERT INTO rate_categories (id, name, unit_price, active, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.UnitPrice, r.Active, timestamp(r.CreatedAt))
	return err
}

func (w writer) UpdateRate(ctx context.Context, r *ticketing.RateCategory) error {
	n, err := w.exec(ctx, "rate",
		`UPDATE rate_categories SET name = ?, unit_price = ?, active = ? WHERE id = ?`,
		r.Name, r.UnitPrice, r.Active, r.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return &ticketing.NotFoundError{Kind: "rate", ID: string(r.ID)}
	}
	return nil
}

// =============================================================================
// BUNDLES
// =============================================================================

func (w writer) InsertBundle(ctx context.Context, b *ticketing.StockBundle) error {
	if b.Start > b.End {
		return fmt.Errorf("%w: %d > %d", ticketing.ErrInvalidRange, b.Start, b.End)
	}
	_, err := w.exec(ctx, "bundle", `
		INSERT INTO stock_bundles (id, scope_id, unit_price, color, serial_start, serial_end, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ScopeID, b.UnitPrice, b.Color, b.Start, b.End, b.Status, timestamp(b.CreatedAt))
	return err
}

func (w writer) TransitionBundle(ctx context.Context, id ticketing.BundleID, from, to ticketing.BundleStatus) error {
	if err := ticketing.CheckBundleTransition(from, to); err != nil {
		return err
	}
	n, err := w.exec(ctx, "bundle",
		`UPDATE stock_bundles SET status = ? WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return err
	}
	return w.swapped(ctx, n, "stock_bundles", "bundle", id)
}

func (w writer) ResizeBundle(ctx context.Context, id ticketing.BundleID, end int64) error {
	n, err := w.exec(ctx, "bundle",
		`UPDATE stock_bundles SET serial_end = ? WHERE id = ? AND serial_start <= ?`, end, id, end)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	ok, err := w.exists(ctx, "stock_bundles", id)
	if err != nil {
		return err
	}
	if !ok {
		return &ticketing.NotFoundError{Kind: "bundle", ID: string(id)}
	}
	return fmt.Errorf("%w: end %d before start of bundle %s", ticketing.ErrInvalidRange, end, id)
}

// DeleteBundle refuses bundles that a distribution still points at, even a
// cancelled one, the same way it refuses a bundle whose status moved on.
func (w writer) DeleteBundle(ctx context.Context, id ticketing.BundleID, status ticketing.BundleStatus) error {
	n, err := w.exec(ctx, "bundle",
		`DELETE FROM stock_bundles WHERE id = ? AND status = ?`, id, status)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: bundle %s has distribution history", ticketing.ErrStaleStatus, id)
	}
	if err != nil {
		return err
	}
	return w.swapped(ctx, n, "stock_bundles", "bundle", id)
}

// =============================================================================
// DISTRIBUTIONS
// =============================================================================

func (w writer) InsertDistribution(ctx context.Context, d *ticketing.Distribution) error {
	if d.Status != ticketing.DistributionDistributed {
		return fmt.Errorf("%w: new distribution must be %s, got %s",
			ticketing.ErrInvalidInput, ticketing.DistributionDistributed, d.Status)
	}
	_, err := w.exec(ctx, "distribution", `
		INSERT INTO distributions (id, scope_id, staff_id, rate_id, bundle_id, serial_start, serial_end,
			distributed_on, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ScopeID, d.StaffID, d.RateID, nullString(string(d.BundleID)), d.Start, d.End,
		date(d.DistributedOn), d.Status, timestamp(d.CreatedAt))
	return err
}

func (w writer) TransitionDistribution(ctx context.Context, d *ticketing.Distribution, from ticketing.DistributionStatus) error {
	if err := ticketing.CheckDistributionTransition(from, d.Status); err != nil {
		return err
	}
	settled := d.Status == ticketing.DistributionSettled
	if settled != (d.Settlement != nil) {
		return fmt.Errorf("%w: settlement fields must be present exactly when settled", ticketing.ErrInvalidInput)
	}

	var (
		returned, sold            sql.NullInt64
		settledOn, by, remainder  sql.NullString
		revenue, cash, electronic decimal.NullDecimal
	)
	if s := d.Settlement; s != nil {
		returned = sql.NullInt64{Int64: s.ReturnedStart, Valid: true}
		sold = sql.NullInt64{Int64: s.TicketsSold, Valid: true}
		settledOn = sql.NullString{String: date(s.SettledOn), Valid: true}
		by = nullString(s.SettledBy)
		remainder = nullString(string(s.RemainderID))
		revenue = decimal.NewNullDecimal(s.Revenue)
		cash = decimal.NewNullDecimal(s.Cash)
		electronic = decimal.NewNullDecimal(s.Electronic)
	}

	n, err := w.exec(ctx, "distribution", `
		UPDATE distributions SET
			status = ?, returned_start = ?, settled_on = ?, tickets_sold = ?,
			revenue = ?, cash_amount = ?, electronic_amount = ?, settled_by = ?,
			remainder_id = ?
		WHERE id = ? AND status = ?`,
		d.Status, returned, settledOn, sold, revenue, cash, electronic, by, remainder, d.ID, from)
	if err != nil {
		return err
	}
	return w.swapped(ctx, n, "distributions", "distribution", d.ID)
}

func (w writer) ReassignDistribution(ctx context.Context, d *ticketing.Distribution) error {
	n, err := w.exec(ctx, "distribution", `
		UPDATE distributions SET staff_id = ?, rate_id = ?, bundle_id = ?, serial_start = ?, serial_end = ?
		WHERE id = ? AND status = ?`,
		d.StaffID, d.RateID, nullString(string(d.BundleID)), d.Start, d.End,
		d.ID, ticketing.DistributionDistributed)
	if err != nil {
		return err
	}
	return w.swapped(ctx, n, "distributions", "distribution", d.ID)
}

// =============================================================================
// ACCOUNTING LEDGER
// =============================================================================

func (w writer) PostEntry(ctx context.Context, e *ticketing.AccountingEntry) error {
	_, err := w.exec(ctx, "accounting entry", `
		INSERT INTO accounting_entries (id, scope_id, category, amount, transaction_date, reference,
			description, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ScopeID, e.Category, e.Amount, date(e.TransactionDate), e.Reference,
		e.Description, e.UserID, timestamp(e.CreatedAt))
	return err
}

func (w writer) RetractEntries(ctx context.Context, reference string) (int64, error) {
	if reference == "" {
		return 0, fmt.Errorf("%w: empty ledger reference", ticketing.ErrInvalidInput)
	}
	return w.exec(ctx, "accounting entry", `DELETE FROM accounting_entries WHERE reference = ?`, reference)
}

// =============================================================================
// STAFF SETTLEMENTS
// =============================================================================

func (w writer) InsertStaffSettlement(ctx context.Context, s *ticketing.StaffSettlement) error {
	_, err := w.exec(ctx, "staff settlement", `
		INSERT INTO staff_settlements (id, staff_id, scope_id, settlement_date, expected, actual,
			difference, notes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.StaffID, s.ScopeID, date(s.SettlementDate), s.Expected, s.Actual,
		s.Difference, s.Notes, s.Status, timestamp(s.CreatedAt))
	return err
}

func (w writer) ClearStaffSettlement(ctx context.Context, id ticketing.StaffSettlementID, by string, on time.Time) (bool, error) {
	if err := ticketing.CheckReconcileTransition(ticketing.ReconcileUnsettled, ticketing.ReconcileSettled); err != nil {
		return false, err
	}
	n, err := w.exec(ctx, "staff settlement", `
		UPDATE staff_settlements SET status = ?, cleared_by = ?, cleared_on = ?
		WHERE id = ? AND status = ?`,
		ticketing.ReconcileSettled, by, date(on), id, ticketing.ReconcileUnsettled)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	ok, err := w.exists(ctx, "staff_settlements", id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, &ticketing.NotFoundError{Kind: "staff settlement", ID: string(id)}
	}
	return false, nil
}
