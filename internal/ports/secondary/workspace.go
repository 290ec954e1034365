package secondary

import "context"

// RepositoryIdentityResolver resolves the repository a directory belongs to.
type RepositoryIdentityResolver interface {
	// Resolve returns the identity of the repository containing cwd.
	Resolve(ctx context.Context, cwd string) (*RepositoryIdentity, error)
}

// RepositoryIdentity is the key used to find or create a project.
type RepositoryIdentity struct {
	RepositoryID string
	RemoteURL    string // Empty when the repository has no origin remote
	GitRoot      string
}

// WorkspaceProvisioner creates new workspaces on disk.
// It does not touch the store; callers record the result.
type WorkspaceProvisioner interface {
	// Provision clones or copies the repository into a fresh directory.
	Provision(ctx context.Context, req ProvisionRequest) (*ProvisionedWorkspace, error)

	// Exists reports whether a workspace directory is present on disk.
	Exists(path string) bool
}

// ProvisionRequest describes a workspace to create.
type ProvisionRequest struct {
	RepoRoot     string
	TaskID       string
	PlanFilePath string // Optional plan file copied into the workspace
	Config       ProvisionConfig
}

// ProvisionConfig carries the workspace section of the configuration.
type ProvisionConfig struct {
	BaseDir      string   // Directory new workspaces are created under
	CloneMethod  string   // git, cp or worktree
	CloneSource  string   // Optional override of the clone source
	BranchPrefix string   // Prefix of the branch created for the task
	OnCreate     []string // Shell commands run inside the new workspace
}

// ProvisionedWorkspace describes a workspace created on disk.
type ProvisionedWorkspace struct {
	Path         string
	TaskID       string
	Branch       string
	PlanFilePath string // Path of the copied plan file, if any
}

// ProcessProbe reports whether a local process is alive.
type ProcessProbe interface {
	IsAlive(pid int) bool
}

// CleanupRegistry holds callbacks that must run when the process exits,
// keyed by the resource they release.
type CleanupRegistry interface {
	// Register installs fn under key, replacing any previous callback.
	Register(key string, fn func())

	// Deregister removes the callback for key.
	Deregister(key string)

	// RunAll runs and clears every registered callback.
	RunAll()
}

// Prompter asks the operator a yes/no question.
type Prompter interface {
	Confirm(message string, defaultYes bool) (bool, error)
}

// PlanFileReader reads plan metadata from plan files.
type PlanFileReader interface {
	// Read parses the plan file at path.
	Read(path string) (*PlanFile, error)

	// Scan reads every plan file under dir.
	Scan(dir string) ([]*PlanFile, error)
}

// PlanFile is the metadata of one plan file.
type PlanFile struct {
	UUID         string
	ID           int // 0 when the plan has no numeric ID yet
	Title        string
	Status       string
	Parent       int   // Numeric ID of the parent plan, 0 for none
	Dependencies []int // Numeric IDs of plans this one depends on
	Path         string
}
