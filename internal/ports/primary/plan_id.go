package primary

import "context"

// PlanIDService defines the primary port for plan ID allocation.
// IDs are unique per project and never handed out twice, even across
// processes reserving at the same time.
type PlanIDService interface {
	// ReservePlanIDs reserves count consecutive IDs above both the stored
	// high-water mark and localMaxObservedID.
	ReservePlanIDs(ctx context.Context, req ReservePlanIDsRequest) (*PlanIDReservation, error)

	// NextPlanID reserves a single ID.
	NextPlanID(ctx context.Context, repositoryID string, localMaxObservedID int) (int, error)

	// HighestPlanID returns the stored high-water mark without reserving.
	HighestPlanID(ctx context.Context, repositoryID string) (int, error)
}

// ReservePlanIDsRequest contains parameters for reserving plan IDs.
type ReservePlanIDsRequest struct {
	RepositoryID       string
	LocalMaxObservedID int
	Count              int
}

// PlanIDReservation is an inclusive range of reserved IDs.
type PlanIDReservation struct {
	StartID int
	EndID   int
}

// IDs expands the reservation into its individual IDs.
func (r PlanIDReservation) IDs() []int {
	ids := make([]int, 0, r.EndID-r.StartID+1)
	for id := r.StartID; id <= r.EndID; id++ {
		ids = append(ids, id)
	}
	return ids
}
