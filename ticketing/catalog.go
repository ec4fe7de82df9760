package ticketing

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RateUpdate carries the editable fields of a rate category. Nil fields
// are left unchanged.
type RateUpdate struct {
	Name      *string
	UnitPrice *decimal.Decimal
	Active    *bool
}

// CreateRate adds a sale category with its unit price.
func (e *Engine) CreateRate(ctx context.Context, name string, price decimal.Decimal) (*RateCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: rate name is required", ErrInvalidInput)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("%w: unit price %s is negative", ErrInvalidInput, price)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	r := &RateCategory{
		ID:        RateID(e.newID()),
		Name:      name,
		UnitPrice: price,
		Active:    true,
		CreatedAt: e.now(),
	}
	if err := tx.InsertRate(ctx, r); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	e.log.Info("rate created", "rate_id", r.ID, "name", r.Name, "unit_price", r.UnitPrice)
	return r, nil
}

// UpdateRate edits a rate. Settled revenue keeps the price it was computed
// with; only future settlements see the new price.
func (e *Engine) UpdateRate(ctx context.Context, id RateID, upd RateUpdate) (*RateCategory, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	r, err := tx.GetRate(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: rate name is required", ErrInvalidInput)
		}
		r.Name = name
	}
	if upd.UnitPrice != nil {
		if upd.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: unit price %s is negative", ErrInvalidInput, *upd.UnitPrice)
		}
		r.UnitPrice = *upd.UnitPrice
	}
	if upd.Active != nil {
		r.Active = *upd.Active
	}
	if err := tx.UpdateRate(ctx, r); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

// lookupRate resolves an active rate inside tx.
func lookupRate(ctx context.Context, q Queries, id RateID) (*RateCategory, error) {
	r, err := q.GetRate(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Active {
		return nil, fmt.Errorf("%w: rate %s is inactive", ErrInvalidInput, id)
	}
	return r, nil
}
