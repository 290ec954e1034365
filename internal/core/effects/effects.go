// Package effects describes provisioning I/O as plain values. Core planners
// return them; the filesystem adapter carries them out.
package effects

// Effect is one step of a provisioning plan.
type Effect interface {
	EffectType() string
}

// File operations.
const (
	FileMkdir   = "mkdir"
	FileWrite   = "write"
	FileCopy    = "copy"     // one file
	FileCopyDir = "copy_dir" // recursive, keeps the .git directory
)

// Git operations.
const (
	GitClone          = "clone"
	GitWorktreeAdd    = "worktree_add"
	GitCheckoutBranch = "checkout_branch"
)

// LogEffect records progress through the executor's logger.
type LogEffect struct {
	Level   string // debug, info, warn, error
	Message string
	Fields  map[string]any
}

func (e LogEffect) EffectType() string { return "log" }

// FileEffect creates or copies something on disk.
type FileEffect struct {
	Operation string
	Path      string // Destination
	Source    string // For copy operations
	Content   []byte // For write operations
	Mode      uint32
}

func (e FileEffect) EffectType() string { return "file" }

// GitEffect runs git against a repository.
type GitEffect struct {
	Operation string
	RepoPath  string
	Args      []string // clone: target; worktree_add: target, branch; checkout_branch: branch
}

func (e GitEffect) EffectType() string { return "git" }

// CommandEffect runs a workspace.on_create shell command in Dir.
type CommandEffect struct {
	Dir     string
	Command string
}

func (e CommandEffect) EffectType() string { return "command" }

// CompositeEffect runs its effects in order, stopping at the first failure.
type CompositeEffect struct {
	Effects []Effect
}

func (e CompositeEffect) EffectType() string { return "composite" }

// NoEffect does nothing.
type NoEffect struct{}

func (e NoEffect) EffectType() string { return "none" }
