package ticketing

import (
	"context"
	"fmt"
	"strings"
)

// =============================================================================
// SCOPES
// =============================================================================

// CreateScope registers a new operating period. The first scope ever
// created becomes active; later ones start archived until activated.
func (e *Engine) CreateScope(ctx context.Context, name string) (*Scope, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: scope name is required", ErrInvalidInput)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	existing, err := tx.ListScopes(ctx)
	if err != nil {
		return nil, err
	}
	s := &Scope{
		ID:        ScopeID(e.newID()),
		Name:      name,
		Active:    len(existing) == 0,
		CreatedAt: e.now(),
	}
	if err := tx.InsertScope(ctx, s); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	e.log.Info("scope created", "scope_id", s.ID, "name", s.Name, "active", s.Active)
	return s, nil
}

// ActivateScope makes id the writable scope and archives every other one.
func (e *Engine) ActivateScope(ctx context.Context, id ScopeID) (*Scope, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	s, err := tx.GetScope(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.SetActiveScope(ctx, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.Active = true
	e.log.Info("scope activated", "scope_id", id)
	return s, nil
}

// =============================================================================
// STAFF DIRECTORY
// =============================================================================

// CreateStaff adds a staff member. Names are unique.
func (e *Engine) CreateStaff(ctx context.Context, name string) (*Staff, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: staff name is required", ErrInvalidInput)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	s := &Staff{
		ID:        StaffID(e.newID()),
		Name:      name,
		Active:    true,
		CreatedAt: e.now(),
	}
	if err := tx.InsertStaff(ctx, s); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s, nil
}

// lookupStaff resolves an active staff member inside tx.
func lookupStaff(ctx context.Context, q Queries, id StaffID) (*Staff, error) {
	s, err := q.GetStaff(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.Active {
		return nil, fmt.Errorf("%w: staff %s is inactive", ErrInvalidInput, id)
	}
	return s, nil
}
