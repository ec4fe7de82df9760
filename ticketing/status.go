package ticketing

import "fmt"

// =============================================================================
// STATUS ENUMS
// =============================================================================

// BundleStatus is the lifecycle state of a StockBundle.
type BundleStatus string

const (
	BundleAvailable   BundleStatus = "available"
	BundleDistributed BundleStatus = "distributed"
	BundleSettled     BundleStatus = "settled"
	BundleCancelled   BundleStatus = "cancelled"
)

// DistributionStatus is the lifecycle state of a Distribution.
type DistributionStatus string

const (
	DistributionDistributed DistributionStatus = "distributed"
	DistributionSettled     DistributionStatus = "settled"
	DistributionCancelled   DistributionStatus = "cancelled"
)

// ReconcileStatus is the state of a StaffSettlement.
type ReconcileStatus string

const (
	ReconcileUnsettled ReconcileStatus = "unsettled"
	ReconcileSettled   ReconcileStatus = "settled"
)

// =============================================================================
// TRANSITION TABLES
// =============================================================================
// Every status write in the store goes through one of the Check* functions
// below. An edge missing from a table is illegal.

var bundleEdges = map[BundleStatus][]BundleStatus{
	BundleAvailable:   {BundleDistributed, BundleCancelled},
	BundleDistributed: {BundleAvailable, BundleSettled},
	BundleSettled:     {BundleDistributed},
}

var distributionEdges = map[DistributionStatus][]DistributionStatus{
	DistributionDistributed: {DistributionSettled, DistributionCancelled},
	DistributionSettled:     {DistributionDistributed},
}

var reconcileEdges = map[ReconcileStatus][]ReconcileStatus{
	ReconcileUnsettled: {ReconcileSettled},
}

func (s BundleStatus) Valid() bool {
	switch s {
	case BundleAvailable, BundleDistributed, BundleSettled, BundleCancelled:
		return true
	}
	return false
}

func (s DistributionStatus) Valid() bool {
	switch s {
	case DistributionDistributed, DistributionSettled, DistributionCancelled:
		return true
	}
	return false
}

func (s ReconcileStatus) Valid() bool {
	return s == ReconcileUnsettled || s == ReconcileSettled
}

// CanTransition reports whether from -> to is a legal bundle edge.
func (s BundleStatus) CanTransition(to BundleStatus) bool {
	return hasEdge(bundleEdges, s, to)
}

// CanTransition reports whether from -> to is a legal distribution edge.
func (s DistributionStatus) CanTransition(to DistributionStatus) bool {
	return hasEdge(distributionEdges, s, to)
}

// CanTransition reports whether from -> to is a legal reconciliation edge.
func (s ReconcileStatus) CanTransition(to ReconcileStatus) bool {
	return hasEdge(reconcileEdges, s, to)
}

func hasEdge[S ~string](edges map[S][]S, from, to S) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckBundleTransition returns a *TransitionError if from -> to is illegal.
func CheckBundleTransition(from, to BundleStatus) error {
	if !from.CanTransition(to) {
		return &TransitionError{Kind: "bundle", From: string(from), To: string(to)}
	}
	return nil
}

// CheckDistributionTransition returns a *TransitionError if from -> to is illegal.
func CheckDistributionTransition(from, to DistributionStatus) error {
	if !from.CanTransition(to) {
		return &TransitionError{Kind: "distribution", From: string(from), To: string(to)}
	}
	return nil
}

// CheckReconcileTransition returns a *TransitionError if from -> to is illegal.
func CheckReconcileTransition(from, to ReconcileStatus) error {
	if !from.CanTransition(to) {
		return &TransitionError{Kind: "staff settlement", From: string(from), To: string(to)}
	}
	return nil
}

// =============================================================================
// PARSING (storage and wire values)
// =============================================================================

func ParseBundleStatus(s string) (BundleStatus, error) {
	st := BundleStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown bundle status %q", ErrInvalidInput, s)
	}
	return st, nil
}

func ParseDistributionStatus(s string) (DistributionStatus, error) {
	st := DistributionStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown distribution status %q", ErrInvalidInput, s)
	}
	return st, nil
}

func ParseReconcileStatus(s string) (ReconcileStatus, error) {
	st := ReconcileStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown staff settlement status %q", ErrInvalidInput, s)
	}
	return st, nil
}
