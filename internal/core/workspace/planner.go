// Package workspace contains the pure planning logic for provisioning
// workspaces. The planner turns a request into effects; the filesystem
// adapter executes them.
package workspace

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/example/rig/internal/core/effects"
)

// Clone methods.
const (
	CloneGit      = "git"
	CloneCopy     = "cp"
	CloneWorktree = "worktree"
)

// DefaultBranchPrefix is used when the configuration names none.
const DefaultBranchPrefix = "rig/"

// ProvisionInput describes a workspace to create.
type ProvisionInput struct {
	Source       string // Repository to clone or copy from
	RepoRoot     string // Root of the repository the plan file lives in
	Target       string // Directory to create
	TaskID       string
	CloneMethod  string
	BranchPrefix string
	PlanFilePath string
	OnCreate     []string
}

// ProvisionPlan is the result of planning a workspace.
type ProvisionPlan struct {
	Branch       string
	PlanFileDest string
	Effects      []effects.Effect
}

var unsafeBranchChars = regexp.MustCompile(`[^A-Za-z0-9._/-]+`)

// BranchName builds the branch created for a task.
func BranchName(prefix, taskID string) string {
	if prefix == "" {
		prefix = DefaultBranchPrefix
	}
	slug := strings.Trim(unsafeBranchChars.ReplaceAllString(taskID, "-"), "-")
	return prefix + slug
}

// DirName builds the directory name of a workspace: <repo>-<task>.
func DirName(repoName, taskID string) string {
	slug := strings.Trim(unsafeBranchChars.ReplaceAllString(taskID, "-"), "-")
	slug = strings.ReplaceAll(slug, "/", "-")
	return repoName + "-" + slug
}

// PlanProvision returns the effects that create a workspace.
// Rules:
// - task ID, source and target are required
// - clone method must be git, cp or worktree (empty means git)
// - the plan file keeps its repository-relative path when it lives in the repository
func PlanProvision(in ProvisionInput) (*ProvisionPlan, error) {
	if in.TaskID == "" {
		return nil, fmt.Errorf("task ID is required to provision a workspace")
	}
	if in.Source == "" || in.Target == "" {
		return nil, fmt.Errorf("source and target are required to provision a workspace")
	}

	method := in.CloneMethod
	if method == "" {
		method = CloneGit
	}

	branch := BranchName(in.BranchPrefix, in.TaskID)
	plan := &ProvisionPlan{Branch: branch}

	switch method {
	case CloneGit:
		plan.Effects = append(plan.Effects,
			effects.FileEffect{Operation: effects.FileMkdir, Path: filepath.Dir(in.Target), Mode: 0755},
			effects.GitEffect{Operation: effects.GitClone, RepoPath: in.Source, Args: []string{in.Target}},
			effects.GitEffect{Operation: effects.GitCheckoutBranch, RepoPath: in.Target, Args: []string{branch}},
		)
	case CloneCopy:
		plan.Effects = append(plan.Effects,
			effects.FileEffect{Operation: effects.FileMkdir, Path: filepath.Dir(in.Target), Mode: 0755},
			effects.FileEffect{Operation: effects.FileCopyDir, Source: in.Source, Path: in.Target},
			effects.GitEffect{Operation: effects.GitCheckoutBranch, RepoPath: in.Target, Args: []string{branch}},
		)
	case CloneWorktree:
		plan.Effects = append(plan.Effects,
			effects.FileEffect{Operation: effects.FileMkdir, Path: filepath.Dir(in.Target), Mode: 0755},
			effects.GitEffect{Operation: effects.GitWorktreeAdd, RepoPath: in.Source, Args: []string{in.Target, branch}},
		)
	default:
		return nil, fmt.Errorf("unknown clone method %q (expected git, cp or worktree)", in.CloneMethod)
	}

	if in.PlanFilePath != "" {
		plan.PlanFileDest = planFileDest(in.RepoRoot, in.Target, in.PlanFilePath)
		plan.Effects = append(plan.Effects,
			effects.FileEffect{Operation: effects.FileMkdir, Path: filepath.Dir(plan.PlanFileDest), Mode: 0755},
			effects.FileEffect{Operation: effects.FileCopy, Source: in.PlanFilePath, Path: plan.PlanFileDest, Mode: 0644},
		)
	}

	for _, cmd := range in.OnCreate {
		if strings.TrimSpace(cmd) == "" {
			continue
		}
		plan.Effects = append(plan.Effects, effects.CommandEffect{Dir: in.Target, Command: cmd})
	}

	plan.Effects = append(plan.Effects, effects.LogEffect{
		Level:   "info",
		Message: "workspace provisioned",
		Fields:  map[string]any{"workspace": in.Target, "branch": branch, "method": method},
	})

	return plan, nil
}

func planFileDest(repoRoot, target, planFile string) string {
	if repoRoot != "" {
		if rel, err := filepath.Rel(repoRoot, planFile); err == nil && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel) {
			return filepath.Join(target, rel)
		}
	}
	return filepath.Join(target, filepath.Base(planFile))
}
