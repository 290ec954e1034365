// Package filesystem contains filesystem-based adapter implementations.
package filesystem

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/example/rig/internal/core/effects"
)

// EffectExecutor interprets effects produced by the core planners.
// This is the imperative shell: the only place provisioning I/O happens.
type EffectExecutor struct {
	logger *slog.Logger
}

// NewEffectExecutor creates a new EffectExecutor.
func NewEffectExecutor(logger *slog.Logger) *EffectExecutor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &EffectExecutor{logger: logger}
}

// Execute processes a slice of effects, executing each in sequence.
func (e *EffectExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	for _, eff := range effs {
		if err := e.executeOne(ctx, eff); err != nil {
			return fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err)
		}
	}
	return nil
}

func (e *EffectExecutor) executeOne(ctx context.Context, eff effects.Effect) error {
	switch typed := eff.(type) {
	case effects.FileEffect:
		return e.executeFile(typed)
	case effects.GitEffect:
		return e.executeGit(ctx, typed)
	case effects.CommandEffect:
		return e.executeCommand(ctx, typed)
	case effects.CompositeEffect:
		return e.Execute(ctx, typed.Effects)
	case effects.NoEffect:
		return nil
	case effects.LogEffect:
		e.log(ctx, typed)
		return nil
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}

func (e *EffectExecutor) executeFile(eff effects.FileEffect) error {
	switch eff.Operation {
	case effects.FileMkdir:
		return os.MkdirAll(eff.Path, modeOr(eff.Mode, 0755))
	case effects.FileWrite:
		return writeFile(eff.Path, eff.Content, modeOr(eff.Mode, 0644))
	case effects.FileCopy:
		return copyFile(eff.Source, eff.Path, modeOr(eff.Mode, 0644))
	case effects.FileCopyDir:
		return copyDir(eff.Source, eff.Path)
	default:
		return fmt.Errorf("unknown file operation: %s", eff.Operation)
	}
}

func (e *EffectExecutor) executeGit(ctx context.Context, eff effects.GitEffect) error {
	switch eff.Operation {
	case effects.GitClone:
		if len(eff.Args) != 1 {
			return fmt.Errorf("git clone expects a target, got %v", eff.Args)
		}
		return runCommand(ctx, "", "git", "clone", "--quiet", eff.RepoPath, eff.Args[0])
	case effects.GitWorktreeAdd:
		if len(eff.Args) != 2 {
			return fmt.Errorf("git worktree add expects target and branch, got %v", eff.Args)
		}
		return runCommand(ctx, eff.RepoPath, "git", "worktree", "add", "--quiet", "-b", eff.Args[1], eff.Args[0])
	case effects.GitCheckoutBranch:
		if len(eff.Args) != 1 {
			return fmt.Errorf("git checkout expects a branch, got %v", eff.Args)
		}
		return runCommand(ctx, eff.RepoPath, "git", "checkout", "--quiet", "-b", eff.Args[0])
	default:
		return fmt.Errorf("unknown git operation: %s", eff.Operation)
	}
}

func (e *EffectExecutor) executeCommand(ctx context.Context, eff effects.CommandEffect) error {
	e.logger.Debug("running on_create command", "dir", eff.Dir, "command", eff.Command)
	if runtime.GOOS == "windows" {
		return runCommand(ctx, eff.Dir, "cmd", "/C", eff.Command)
	}
	return runCommand(ctx, eff.Dir, "sh", "-c", eff.Command)
}

func (e *EffectExecutor) log(ctx context.Context, eff effects.LogEffect) {
	level := slog.LevelInfo
	switch eff.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	attrs := make([]any, 0, len(eff.Fields)*2)
	for k, v := range eff.Fields {
		attrs = append(attrs, k, v)
	}
	e.logger.Log(ctx, level, eff.Message, attrs...)
}

func runCommand(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s failed: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(output.String()))
	}
	return nil
}

func modeOr(mode uint32, fallback os.FileMode) os.FileMode {
	if mode == 0 {
		return fallback
	}
	return os.FileMode(mode)
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyDir copies a directory tree, preserving file modes and symlinks.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0700)
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			return nil
		}
	})
}

// writeFile replaces path atomically so a concurrent reader never sees a
// partial file.
func writeFile(path string, content []byte, mode os.FileMode) error {
	if err := atomic.WriteFile(path, bytes.NewReader(content)); err != nil {
		return err
	}
	return os.Chmod(path, mode)
}
