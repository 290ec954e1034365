package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/example/rig/internal/ports/primary"
)

// ProjectAdapter renders the repositories known to the store.
type ProjectAdapter struct {
	projects primary.ProjectService
	out      io.Writer
}

// NewProjectAdapter creates a new ProjectAdapter.
func NewProjectAdapter(projects primary.ProjectService, out io.Writer) *ProjectAdapter {
	return &ProjectAdapter{projects: projects, out: out}
}

// List prints every project with its plan ID high-water mark.
func (a *ProjectAdapter) List(ctx context.Context) ([]*primary.Project, error) {
	projects, err := a.projects.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	if len(projects) == 0 {
		fmt.Fprintln(a.out, "No projects found.")
		return projects, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "REPOSITORY\tHIGHEST PLAN\tLAST ROOT")
	fmt.Fprintln(w, "----------\t------------\t---------")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%d\t%s\n", p.RepositoryID, p.HighestPlanID, orDash(p.LastGitRoot))
	}
	w.Flush()
	return projects, nil
}
