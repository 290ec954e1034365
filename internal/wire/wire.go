// Package wire provides dependency injection for the rig application.
// It builds every service from one explicitly opened store handle; nothing
// is held in package-level state.
package wire

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/example/rig/internal/adapters/cleanup"
	"github.com/example/rig/internal/adapters/filesystem"
	"github.com/example/rig/internal/adapters/git"
	"github.com/example/rig/internal/adapters/planfile"
	"github.com/example/rig/internal/adapters/process"
	"github.com/example/rig/internal/adapters/prompt"
	"github.com/example/rig/internal/adapters/sqlite"
	"github.com/example/rig/internal/app"
	"github.com/example/rig/internal/config"
	"github.com/example/rig/internal/db"
	"github.com/example/rig/internal/logging"
	"github.com/example/rig/internal/ports/primary"
	"github.com/example/rig/internal/ports/secondary"
)

// Options control how the application is assembled.
type Options struct {
	// Cwd is the directory commands run against. Defaults to the working directory.
	Cwd string
	// DBPath overrides the configured database path.
	DBPath string
	// RepositoryID skips git-based repository detection.
	RepositoryID string
	// Config is loaded from disk when nil.
	Config *config.Config
	Logger *slog.Logger

	// Prompt streams. Default to stdin and stderr.
	Stdin  io.Reader
	Stderr io.Writer
}

// App holds the assembled services for one process.
type App struct {
	DB       *sql.DB
	Config   *config.Config
	Logger   *slog.Logger
	Cleanup  *cleanup.Registry
	Identity secondary.RepositoryIdentityResolver
	Plans    secondary.PlanFileReader

	Projects    primary.ProjectService
	Workspaces  primary.WorkspaceService
	Locks       primary.WorkspaceLockService
	Assignments primary.AssignmentService
	PlanIDs     primary.PlanIDService
	PlanSync    primary.PlanSyncService
	Selector    primary.WorkspaceSelector

	// RepoRoot is the repository containing Cwd, or "" outside one.
	RepoRoot string
}

// New opens the store and wires every service.
func New(ctx context.Context, opts Options) (*App, error) {
	logger := logging.OrDiscard(opts.Logger)

	cwd := opts.Cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		cwd = wd
	}

	var identity secondary.RepositoryIdentityResolver = git.NewIdentityResolver()
	if opts.RepositoryID != "" {
		identity = git.FixedResolver{RepositoryID: opts.RepositoryID}
	}

	repoRoot := ""
	if id, err := identity.Resolve(ctx, cwd); err == nil {
		repoRoot = id.GitRoot
	} else {
		logger.Debug("not inside a repository", "cwd", cwd, "error", err)
	}

	cfg := opts.Config
	if cfg == nil {
		globalPath, err := config.GlobalPath()
		if err != nil {
			logger.Debug("no global config", "error", err)
		}
		cfg, err = config.Load(globalPath, repoRoot)
		if err != nil {
			return nil, err
		}
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	if dbPath == "" {
		p, err := db.DefaultPath()
		if err != nil {
			return nil, err
		}
		dbPath = p
	}

	database, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("opened store", "path", dbPath)

	stdin, stderr := opts.Stdin, opts.Stderr
	if stdin == nil {
		stdin = os.Stdin
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	// Create repository adapters (secondary ports) with the injected DB
	tx := sqlite.NewTransactor(database)
	projectRepo := sqlite.NewProjectRepository(database)
	workspaceRepo := sqlite.NewWorkspaceRepository(database)
	lockRepo := sqlite.NewWorkspaceLockRepository(database)
	assignmentRepo := sqlite.NewAssignmentRepository(database)
	planRepo := sqlite.NewPlanRepository(database)

	registry := cleanup.NewRegistry(logger)
	reader := planfile.NewReader()
	provisioner := filesystem.NewWorkspaceProvisioner(filesystem.NewEffectExecutor(logger), logger)

	// Create services (primary ports implementation)
	locks := app.NewWorkspaceLockService(tx, workspaceRepo, lockRepo, process.NewProbe(), registry, logger)
	assignments := app.NewAssignmentService(tx, assignmentRepo, workspaceRepo, logger)
	selector := app.NewWorkspaceSelector(identity, projectRepo, workspaceRepo, locks, assignments,
		provisioner, prompt.New(stdin, stderr), app.SelectorConfig{
			PrimaryWorkspace: cfg.Workspace.Primary,
			Provision: secondary.ProvisionConfig{
				BaseDir:      cfg.Workspace.Dir,
				CloneMethod:  cfg.Workspace.CloneMethod,
				CloneSource:  cfg.Workspace.CloneSource,
				BranchPrefix: cfg.Workspace.BranchPrefix,
				OnCreate:     cfg.Workspace.OnCreate,
			},
		}, logger)

	return &App{
		DB:          database,
		Config:      cfg,
		Logger:      logger,
		Cleanup:     registry,
		Identity:    identity,
		Plans:       reader,
		Projects:    app.NewProjectService(tx, projectRepo, identity, logger),
		Workspaces:  app.NewWorkspaceService(tx, workspaceRepo, logger),
		Locks:       locks,
		Assignments: assignments,
		PlanIDs:     app.NewPlanIDService(tx, projectRepo, logger),
		PlanSync:    app.NewPlanSyncService(tx, projectRepo, planRepo, reader, logger),
		Selector:    selector,
		RepoRoot:    repoRoot,
	}, nil
}

// Close runs pending exit callbacks, releasing this process's pid locks,
// and closes the store.
func (a *App) Close() error {
	a.Cleanup.RunAll()
	return a.DB.Close()
}
