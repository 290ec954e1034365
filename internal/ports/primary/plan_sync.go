package primary

import "context"

// PlanSyncService defines the primary port for reconciling plan files into the store.
type PlanSyncService interface {
	// SyncPlans reconciles a project's plan rows with the given plan metadata.
	SyncPlans(ctx context.Context, repositoryID string, plans []PlanMetadata) (*SyncResult, error)

	// SyncDirectory reads every plan file under dir and syncs them.
	SyncDirectory(ctx context.Context, repositoryID, dir string) (*SyncResult, error)

	// MaxLocalID returns the highest numeric plan ID found under dir.
	MaxLocalID(dir string) (int, error)

	// ListPlans returns the plans stored for a project.
	ListPlans(ctx context.Context, repositoryID string) ([]*Plan, error)
}

// PlanMetadata is what a plan file declares about itself.
type PlanMetadata struct {
	UUID         string
	ID           int
	Title        string
	Status       string
	Parent       int   // Numeric ID of the parent plan
	Dependencies []int // Numeric IDs
	Filename     string
}

// Plan is plan metadata as stored.
type Plan struct {
	UUID         string
	PlanID       int
	Title        string
	Status       string
	ParentUUID   string
	Filename     string
	Dependencies []string
	UpdatedAt    string
}

// SyncResult summarizes a plan sync.
type SyncResult struct {
	Created int
	Updated int
	Removed int
	Skipped int // Entries without a valid UUID
}
