package primary

import "context"

// WorkspaceService defines the primary port for workspace records.
// Workspaces are checkouts of a project's repository on local disk.
type WorkspaceService interface {
	// RecordWorkspace creates or updates the record for a workspace path.
	RecordWorkspace(ctx context.Context, req RecordWorkspaceRequest) (*Workspace, error)

	// GetWorkspace returns the workspace at path, or ErrNotFound.
	GetWorkspace(ctx context.Context, path string) (*Workspace, error)

	// ListWorkspaces returns a project's workspaces, newest first.
	ListWorkspaces(ctx context.Context, projectID int64) ([]*Workspace, error)

	// UpdateWorkspace changes the metadata of a workspace.
	UpdateWorkspace(ctx context.Context, req UpdateWorkspaceRequest) (*Workspace, error)

	// RemoveWorkspace deletes a workspace record. Its lock goes with it;
	// claims made through it keep their user side.
	RemoveWorkspace(ctx context.Context, path string) error

	// AddIssue links an issue URL to a workspace.
	AddIssue(ctx context.Context, path, issueURL string) error
}

// RecordWorkspaceRequest contains parameters for recording a workspace.
type RecordWorkspaceRequest struct {
	ProjectID            int64
	Path                 string
	TaskID               string
	OriginalPlanFilePath string
	Branch               string
	Name                 string
	Description          string
}

// UpdateWorkspaceRequest contains the fields to change. Nil leaves a field alone.
type UpdateWorkspaceRequest struct {
	Path        string
	Name        *string
	Description *string
	Branch      *string
	PlanID      *string
	PlanTitle   *string
}

// Workspace is a checkout of a project's repository.
type Workspace struct {
	ID                   int64
	ProjectID            int64
	Path                 string
	TaskID               string
	OriginalPlanFilePath string
	Branch               string
	Name                 string
	Description          string
	PlanID               string
	PlanTitle            string
	Issues               []string
	CreatedAt            string
	UpdatedAt            string
}
