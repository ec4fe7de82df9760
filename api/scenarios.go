/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate a fresh scope with realistic
	stock and activity for demos and for trying the office frontend.

AVAILABLE SCENARIOS:

	opening-day:  Rates, staff and printed stock, nothing handed out yet
	mid-season:   Opening day plus distributions, a partial sale, a full
	              sell-through and a short cash count

HOW SCENARIOS WORK:
 1. Create a new scope named after the scenario and activate it
 2. Reuse or create staff and rate categories by name
 3. Drive the engine exactly as the API would (events, ledger, all of it)

Nothing is reset: previous scopes are archived by the activation, not
deleted.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "mid-season"}

SEE ALSO:
  - handlers.go: Endpoints the loaders mirror
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/ticket-engine/ticketing"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "opening-day",
		Name:        "Opening Day",
		Description: "Three rides, four staff, printed stock in two colors",
	},
	{
		ID:          "mid-season",
		Name:        "Mid-Season",
		Description: "Opening day plus partial settlements, a remainder back in stock and a short cash count",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario into a new active scope.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	var (
		scope *ticketing.Scope
		err   error
	)
	switch req.ScenarioID {
	case "opening-day":
		scope, _, err = h.loadOpeningDay(ctx, "Opening Day")
	case "mid-season":
		scope, err = h.loadMidSeason(ctx)
	default:
		h.writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if err != nil {
		h.fail(w, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusCreated, LoadScenarioResponse{
		Scenario: req.ScenarioID,
		Scope:    toScopeDTO(*scope),
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// demoWorld holds what opening day created, for loaders that build on it.
type demoWorld struct {
	staff   map[string]ticketing.StaffID
	rates   map[string]ticketing.RateID
	bundles []ticketing.StockBundle
}

func (h *Handler) loadOpeningDay(ctx context.Context, title string) (*ticketing.Scope, *demoWorld, error) {
	e := h.Engine
	name := fmt.Sprintf("%s %s", title, h.now().UTC().Format("2006-01-02 15:04:05"))
	scope, err := e.CreateScope(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	if scope, err = e.ActivateScope(ctx, scope.ID); err != nil {
		return nil, nil, err
	}

	world := &demoWorld{
		staff: make(map[string]ticketing.StaffID),
		rates: make(map[string]ticketing.RateID),
	}
	for _, n := range []string{"Dana", "Ilan", "Maya", "Yossi"} {
		st, err := h.ensureStaff(ctx, n)
		if err != nil {
			return nil, nil, err
		}
		world.staff[n] = st.ID
	}
	for n, price := range map[string]int64{"Ferris Wheel": 10, "Carousel": 5, "Bumper Cars": 15} {
		rate, err := h.ensureRate(ctx, n, decimal.NewFromInt(price))
		if err != nil {
			return nil, nil, err
		}
		world.rates[n] = rate.ID
	}

	stock := []ticketing.BundleInput{
		{UnitPrice: decimal.NewFromInt(10), Color: "red", Start: 1, End: 100},
		{UnitPrice: decimal.NewFromInt(10), Color: "red", Start: 101, End: 200},
		{UnitPrice: decimal.NewFromInt(5), Color: "blue", Start: 1, End: 50},
		{UnitPrice: decimal.NewFromInt(15), Color: "blue", Start: 51, End: 150},
	}
	for _, in := range stock {
		b, err := e.CreateBundle(ctx, scope.ID, in)
		if err != nil {
			return nil, nil, err
		}
		world.bundles = append(world.bundles, *b)
	}
	return scope, world, nil
}

func (h *Handler) loadMidSeason(ctx context.Context) (*ticketing.Scope, error) {
	e := h.Engine
	scope, world, err := h.loadOpeningDay(ctx, "Mid-Season")
	if err != nil {
		return nil, err
	}
	day := h.today()

	hand := func(staff, rate string, bundle int) (*ticketing.Distribution, error) {
		return e.Distribute(ctx, scope.ID, ticketing.DistributeInput{
			StaffID:  world.staff[staff],
			RateID:   world.rates[rate],
			BundleID: world.bundles[bundle].ID,
			Date:     day,
		})
	}

	// Dana sells 60 of 100 Ferris Wheel tickets, half paid by card.
	d1, err := hand("Dana", "Ferris Wheel", 0)
	if err != nil {
		return nil, err
	}
	if _, err := e.Settle(ctx, scope.ID, d1.ID, ticketing.SettleInput{
		ReturnedStart: 61,
		Electronic:    decimal.NewNullDecimal(decimal.NewFromInt(300)),
		Date:          day,
		User:          "demo",
	}); err != nil {
		return nil, err
	}

	// Ilan sells out the carousel bundle.
	d2, err := hand("Ilan", "Carousel", 2)
	if err != nil {
		return nil, err
	}
	if _, err := e.Settle(ctx, scope.ID, d2.ID, ticketing.SettleInput{
		ReturnedStart: world.bundles[2].End + 1,
		Date:          day,
		User:          "demo",
	}); err != nil {
		return nil, err
	}

	// Maya is still out with the bumper cars bundle.
	if _, err := hand("Maya", "Bumper Cars", 3); err != nil {
		return nil, err
	}

	// Dana hands in 280 against 300 expected.
	expected, err := e.ComputeExpected(ctx, scope.ID, world.staff["Dana"], day)
	if err != nil {
		return nil, err
	}
	if _, err := e.RecordSettlement(ctx, scope.ID, ticketing.RecordInput{
		StaffID:  world.staff["Dana"],
		Date:     day,
		Expected: expected,
		Actual:   expected.Sub(decimal.NewFromInt(20)),
		Notes:    "demo: short at close",
	}); err != nil {
		return nil, err
	}
	return scope, nil
}

func (h *Handler) ensureStaff(ctx context.Context, name string) (*ticketing.Staff, error) {
	st, err := h.Engine.Store().StaffByName(ctx, name)
	if errors.Is(err, ticketing.ErrNotFound) {
		return h.Engine.CreateStaff(ctx, name)
	}
	return st, err
}

func (h *Handler) ensureRate(ctx context.Context, name string, price decimal.Decimal) (*ticketing.RateCategory, error) {
	rate, err := h.Engine.Store().RateByName(ctx, name)
	if errors.Is(err, ticketing.ErrNotFound) {
		return h.Engine.CreateRate(ctx, name, price)
	}
	return rate, err
}
