// Package git resolves repository identity from a git checkout.
package git

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/example/rig/internal/ports/secondary"
)

// IdentityResolver implements secondary.RepositoryIdentityResolver using the git CLI.
type IdentityResolver struct{}

// NewIdentityResolver creates a new git identity resolver.
func NewIdentityResolver() *IdentityResolver {
	return &IdentityResolver{}
}

// Resolve finds the repository containing cwd. The repository ID is the
// normalized origin remote (host/owner/repo), or a path-derived local ID
// when there is no origin.
func (r *IdentityResolver) Resolve(ctx context.Context, cwd string) (*secondary.RepositoryIdentity, error) {
	root, err := runGit(ctx, cwd, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("failed to find git root of %s: %w", cwd, err)
	}
	root = filepath.Clean(root)

	// A repository without an origin is still a repository.
	remote, _ := runGit(ctx, root, "remote", "get-url", "origin")

	id := NormalizeRemote(remote)
	if id == "" {
		id = LocalID(root)
	}

	return &secondary.RepositoryIdentity{
		RepositoryID: id,
		RemoteURL:    remote,
		GitRoot:      root,
	}, nil
}

// NormalizeRemote turns a remote URL into host/owner/repo.
// Returns "" for anything it cannot parse.
//
//	git@github.com:acme/app.git       -> github.com/acme/app
//	https://github.com/acme/app       -> github.com/acme/app
//	ssh://git@host:2222/acme/app.git  -> host/acme/app
func NormalizeRemote(remote string) string {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return ""
	}

	var host, path string
	if strings.Contains(remote, "://") {
		u, err := url.Parse(remote)
		if err != nil || u.Hostname() == "" {
			return ""
		}
		host, path = u.Hostname(), u.Path
	} else {
		// scp-like syntax: [user@]host:path
		at := strings.LastIndex(remote, "@")
		colon := strings.Index(remote, ":")
		if colon < 0 || colon < at {
			return ""
		}
		host, path = remote[at+1:colon], remote[colon+1:]
	}

	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	if host == "" || path == "" {
		return ""
	}
	return strings.ToLower(host) + "/" + path
}

// LocalID derives a stable ID for a repository without a remote.
func LocalID(root string) string {
	sum := sha1.Sum([]byte(root))
	return fmt.Sprintf("local/%s-%s", filepath.Base(root), hex.EncodeToString(sum[:])[:8])
}

// FixedResolver always reports the same repository ID, rooted at cwd.
// Used when the operator passes --repo-id.
type FixedResolver struct {
	RepositoryID string
}

// Resolve returns the fixed identity.
func (r FixedResolver) Resolve(ctx context.Context, cwd string) (*secondary.RepositoryIdentity, error) {
	return &secondary.RepositoryIdentity{RepositoryID: r.RepositoryID, GitRoot: filepath.Clean(cwd)}, nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Ensure resolvers implement the interface
var (
	_ secondary.RepositoryIdentityResolver = (*IdentityResolver)(nil)
	_ secondary.RepositoryIdentityResolver = FixedResolver{}
)
