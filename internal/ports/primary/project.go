package primary

import "context"

// ProjectService defines the primary port for projects.
// A project is one repository, identified by a stable repository ID.
type ProjectService interface {
	// EnsureProject returns the project for the repository containing cwd,
	// creating it on first observation.
	EnsureProject(ctx context.Context, cwd string) (*Project, error)

	// GetOrCreate returns the project for repositoryID, creating it if needed.
	GetOrCreate(ctx context.Context, repositoryID string) (*Project, error)

	// GetProject returns a project, or ErrNotFound.
	GetProject(ctx context.Context, repositoryID string) (*Project, error)

	// ListProjects returns all projects.
	ListProjects(ctx context.Context) ([]*Project, error)

	// RemoveProject deletes a project with its workspaces, locks and claims.
	RemoveProject(ctx context.Context, repositoryID string) error
}

// Project is a repository known to the store.
type Project struct {
	ID            int64
	RepositoryID  string
	RemoteURL     string
	LastGitRoot   string
	HighestPlanID int
	CreatedAt     string
	UpdatedAt     string
}
