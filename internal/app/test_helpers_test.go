package app

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/example/rig/internal/adapters/sqlite"
	"github.com/example/rig/internal/db"
	"github.com/example/rig/internal/ports/secondary"
)

const testPID = 1000

// Ensure fakes implement the interfaces
var (
	_ secondary.ProcessProbe               = (*fakeProbe)(nil)
	_ secondary.CleanupRegistry            = (*fakeCleanup)(nil)
	_ secondary.Prompter                   = (*fakePrompter)(nil)
	_ secondary.RepositoryIdentityResolver = (*fakeIdentity)(nil)
	_ secondary.WorkspaceProvisioner       = (*fakeProvisioner)(nil)
)

// fakeProbe reports the pids in alive as running.
type fakeProbe struct {
	mu    sync.Mutex
	alive map[int]bool
}

func newFakeProbe(pids ...int) *fakeProbe {
	p := &fakeProbe{alive: make(map[int]bool)}
	for _, pid := range pids {
		p.alive[pid] = true
	}
	return p
}

func (p *fakeProbe) IsAlive(pid int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive[pid]
}

func (p *fakeProbe) kill(pid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.alive, pid)
}

// fakeCleanup records callbacks without installing signal handlers.
type fakeCleanup struct {
	mu        sync.Mutex
	callbacks map[string]func()
}

func newFakeCleanup() *fakeCleanup {
	return &fakeCleanup{callbacks: make(map[string]func())}
}

func (c *fakeCleanup) Register(key string, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks[key] = fn
}

func (c *fakeCleanup) Deregister(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.callbacks, key)
}

func (c *fakeCleanup) RunAll() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.callbacks))
	for _, fn := range c.callbacks {
		fns = append(fns, fn)
	}
	c.callbacks = make(map[string]func())
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (c *fakeCleanup) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.callbacks[key]
	return ok
}

// fakePrompter answers every question the same way.
// fakePrompter gives the queued answers in order, then answer.
type fakePrompter struct {
	answer  bool
	answers []bool
	err     error
	asked   []string
}

func (p *fakePrompter) Confirm(message string, defaultYes bool) (bool, error) {
	p.asked = append(p.asked, message)
	if len(p.answers) > 0 {
		a := p.answers[0]
		p.answers = p.answers[1:]
		return a, p.err
	}
	return p.answer, p.err
}

// fakeIdentity resolves every directory to the same repository.
type fakeIdentity struct {
	identity *secondary.RepositoryIdentity
	err      error
}

func (f *fakeIdentity) Resolve(ctx context.Context, cwd string) (*secondary.RepositoryIdentity, error) {
	if f.err != nil {
		return nil, f.err
	}
	id := *f.identity
	return &id, nil
}

// fakeProvisioner pretends to create workspaces under dir.
type fakeProvisioner struct {
	dir      string
	err      error
	requests []secondary.ProvisionRequest
	missing  map[string]bool
}

func (p *fakeProvisioner) Provision(ctx context.Context, req secondary.ProvisionRequest) (*secondary.ProvisionedWorkspace, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &secondary.ProvisionedWorkspace{
		Path:   filepath.Join(p.dir, req.TaskID),
		TaskID: req.TaskID,
		Branch: "rig/" + req.TaskID,
	}, nil
}

func (p *fakeProvisioner) Exists(path string) bool {
	return !p.missing[path]
}

// testEnv wires the services to a real SQLite store.
type testEnv struct {
	db            *sql.DB
	tx            *sqlite.Transactor
	projectRepo   *sqlite.ProjectRepository
	workspaceRepo *sqlite.WorkspaceRepository
	lockRepo      *sqlite.WorkspaceLockRepository
	assignRepo    *sqlite.AssignmentRepository
	planRepo      *sqlite.PlanRepository

	probe   *fakeProbe
	cleanup *fakeCleanup

	locks       *WorkspaceLockServiceImpl
	assignments *AssignmentServiceImpl
	planIDs     *PlanIDServiceImpl
	workspaces  *WorkspaceServiceImpl
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return newEnvOn(conn, newFakeProbe(testPID), testPID)
}

// newFileEnvs opens n independent environments on one database file, the
// way n separate processes would. Process i has pid testPID+i and every
// one of them is alive.
func newFileEnvs(t *testing.T, n int) []*testEnv {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rig.db")
	probe := newFakeProbe()
	envs := make([]*testEnv, n)
	for i := range envs {
		conn, err := db.Open(path)
		if err != nil {
			t.Fatalf("failed to open handle %d: %v", i, err)
		}
		t.Cleanup(func() { conn.Close() })
		probe.alive[testPID+i] = true
		envs[i] = newEnvOn(conn, probe, testPID+i)
	}
	return envs
}

func newEnvOn(conn *sql.DB, probe *fakeProbe, pid int) *testEnv {
	env := &testEnv{
		db:            conn,
		tx:            sqlite.NewTransactor(conn),
		projectRepo:   sqlite.NewProjectRepository(conn),
		workspaceRepo: sqlite.NewWorkspaceRepository(conn),
		lockRepo:      sqlite.NewWorkspaceLockRepository(conn),
		assignRepo:    sqlite.NewAssignmentRepository(conn),
		planRepo:      sqlite.NewPlanRepository(conn),
		probe:         probe,
		cleanup:       newFakeCleanup(),
	}
	env.locks = NewWorkspaceLockService(env.tx, env.workspaceRepo, env.lockRepo, probe, env.cleanup, nil)
	env.locks.pid = func() int { return pid }
	env.locks.hostname = func() (string, error) { return "testhost", nil }
	env.locks.args = []string{"rig", "test"}
	env.assignments = NewAssignmentService(env.tx, env.assignRepo, env.workspaceRepo, nil)
	env.planIDs = NewPlanIDService(env.tx, env.projectRepo, nil)
	env.workspaces = NewWorkspaceService(env.tx, env.workspaceRepo, nil)
	return env
}

func (e *testEnv) project(t *testing.T, repositoryID string) *secondary.ProjectRecord {
	t.Helper()
	p, err := e.projectRepo.GetOrCreate(context.Background(), repositoryID)
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	return p
}

// workspace records a workspace; n orders creation so that higher n is newer.
func (e *testEnv) workspace(t *testing.T, projectID int64, path string, n int) *secondary.WorkspaceRecord {
	t.Helper()
	ws := &secondary.WorkspaceRecord{
		ProjectID:     projectID,
		WorkspacePath: path,
		CreatedAt:     fmt.Sprintf("2025-01-01T00:00:%02d.000Z", n),
	}
	if err := e.workspaceRepo.Create(context.Background(), ws); err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}
	return ws
}

func (e *testEnv) insertLock(t *testing.T, workspaceID int64, lockType string, pid int, startedAt string) {
	t.Helper()
	err := e.lockRepo.Insert(context.Background(), &secondary.WorkspaceLockRecord{
		WorkspaceID: workspaceID,
		LockType:    lockType,
		PID:         pid,
		StartedAt:   startedAt,
		Hostname:    "otherhost",
		Command:     "other",
	})
	if err != nil {
		t.Fatalf("failed to insert lock: %v", err)
	}
}

func (e *testEnv) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	if err := e.db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return n
}
