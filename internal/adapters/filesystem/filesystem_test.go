package filesystem_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/rig/internal/adapters/filesystem"
	"github.com/example/rig/internal/core/effects"
	"github.com/example/rig/internal/ports/secondary"
)

func TestEffectExecutor_FileOperations(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	if err := os.MkdirAll(filepath.Join(src, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "nested", "a.txt"), []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}

	executor := filesystem.NewEffectExecutor(nil)
	dst := filepath.Join(tmp, "dst")
	err := executor.Execute(context.Background(), []effects.Effect{
		effects.CompositeEffect{Effects: []effects.Effect{
			effects.FileEffect{Operation: "copy_dir", Source: src, Path: dst},
			effects.FileEffect{Operation: "write", Path: filepath.Join(dst, "b.txt"), Content: []byte("b")},
		}},
		effects.NoEffect{},
		effects.LogEffect{Level: "debug", Message: "done"},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "nested", "a.txt"))
	if err != nil || string(got) != "hello" {
		t.Errorf("copied file = %q, %v", got, err)
	}
	info, err := os.Stat(filepath.Join(dst, "nested", "a.txt"))
	if err == nil && info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(filepath.Join(dst, "b.txt")); err != nil {
		t.Errorf("written file missing: %v", err)
	}
}

func TestEffectExecutor_UnknownOperation(t *testing.T) {
	err := filesystem.NewEffectExecutor(nil).Execute(context.Background(), []effects.Effect{
		effects.FileEffect{Operation: "chmod", Path: "/nowhere"},
	})
	if err == nil || !strings.Contains(err.Error(), "unknown file operation") {
		t.Errorf("err = %v", err)
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	root := filepath.Join(t.TempDir(), "app")
	if err := os.MkdirAll(filepath.Join(root, "tasks"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("# app\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "tasks", "7.plan.md"), []byte("---\nid: 7\n---\n"), 0644); err != nil {
		t.Fatal(err)
	}
	for _, args := range [][]string{
		{"init", "-q"},
		{"add", "."},
		{"-c", "user.name=Test", "-c", "user.email=test@example.com", "commit", "-q", "-m", "init"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	return root
}

func TestWorkspaceProvisioner_Methods(t *testing.T) {
	for _, method := range []string{"git", "cp", "worktree"} {
		t.Run(method, func(t *testing.T) {
			root := initRepo(t)
			base := filepath.Join(t.TempDir(), "workspaces")
			p := filesystem.NewWorkspaceProvisioner(filesystem.NewEffectExecutor(nil), nil)

			ws, err := p.Provision(context.Background(), secondary.ProvisionRequest{
				RepoRoot:     root,
				TaskID:       "7",
				PlanFilePath: filepath.Join(root, "tasks", "7.plan.md"),
				Config: secondary.ProvisionConfig{
					BaseDir:      base,
					CloneMethod:  method,
					BranchPrefix: "test/",
					OnCreate:     []string{"touch created-marker"},
				},
			})
			if err != nil {
				t.Fatalf("Provision failed: %v", err)
			}

			if ws.Path != filepath.Join(base, "app-7") {
				t.Errorf("Path = %q", ws.Path)
			}
			if ws.Branch != "test/7" {
				t.Errorf("Branch = %q", ws.Branch)
			}
			if !p.Exists(ws.Path) {
				t.Error("workspace directory missing")
			}
			if _, err := os.Stat(filepath.Join(ws.Path, "created-marker")); err != nil {
				t.Errorf("on_create command did not run: %v", err)
			}

			out, err := exec.Command("git", "-C", ws.Path, "rev-parse", "--abbrev-ref", "HEAD").Output()
			if err != nil {
				t.Fatalf("rev-parse: %v", err)
			}
			if strings.TrimSpace(string(out)) != "test/7" {
				t.Errorf("HEAD = %q, want test/7", out)
			}
		})
	}
}

func TestWorkspaceProvisioner_PicksFreeDirectory(t *testing.T) {
	root := initRepo(t)
	base := filepath.Join(t.TempDir(), "workspaces")
	if err := os.MkdirAll(filepath.Join(base, "app-7"), 0755); err != nil {
		t.Fatal(err)
	}
	p := filesystem.NewWorkspaceProvisioner(filesystem.NewEffectExecutor(nil), nil)

	ws, err := p.Provision(context.Background(), secondary.ProvisionRequest{
		RepoRoot: root,
		TaskID:   "7",
		Config:   secondary.ProvisionConfig{BaseDir: base, CloneMethod: "cp", BranchPrefix: "a/"},
	})
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if ws.Path != filepath.Join(base, "app-7-2") {
		t.Errorf("Path = %q, want app-7-2", ws.Path)
	}
}

func TestWorkspaceProvisioner_CleansUpOnFailure(t *testing.T) {
	root := initRepo(t)
	base := filepath.Join(t.TempDir(), "workspaces")
	p := filesystem.NewWorkspaceProvisioner(filesystem.NewEffectExecutor(nil), nil)

	_, err := p.Provision(context.Background(), secondary.ProvisionRequest{
		RepoRoot: root,
		TaskID:   "8",
		Config: secondary.ProvisionConfig{
			BaseDir:     base,
			CloneMethod: "cp",
			OnCreate:    []string{"exit 3"},
		},
	})
	if err == nil {
		t.Fatal("expected failing on_create to fail provisioning")
	}
	if _, statErr := os.Stat(filepath.Join(base, "app-8")); !os.IsNotExist(statErr) {
		t.Errorf("partial workspace left behind: %v", statErr)
	}
}
