package docs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"ChatDigest/internal/ports"
)

// GitPusher commits a file and pushes the current branch.
type GitPusher struct {
	repoDir string
	remote  string
	branch  string
	run     func(ctx context.Context, dir string, args ...string) (string, error)
}

var _ ports.Pusher = (*GitPusher)(nil)

// NewGitPusher pushes to remote (default "origin"); an empty branch pushes HEAD.
func NewGitPusher(repoDir, remote, branch string) *GitPusher {
	if remote == "" {
		remote = "origin"
	}
	return &GitPusher{repoDir: repoDir, remote: remote, branch: branch, run: runGit}
}

// Push stages path, commits it when it changed and pushes.
func (g *GitPusher) Push(ctx context.Context, path, message string) error {
	if _, err := g.run(ctx, g.repoDir, "add", "--", path); err != nil {
		return fmt.Errorf("git add: %w", err)
	}

	// diff --quiet exits 1 when something is staged.
	if _, err := g.run(ctx, g.repoDir, "diff", "--cached", "--quiet"); err == nil {
		return nil
	}
	if _, err := g.run(ctx, g.repoDir, "commit", "-m", message); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}

	ref := "HEAD"
	if g.branch != "" {
		ref = "HEAD:" + g.branch
	}
	if _, err := g.run(ctx, g.repoDir, "push", g.remote, ref); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return out.String(), fmt.Errorf("exit %d: %s", ee.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return out.String(), fmt.Errorf("exec git: %w", err)
	}
	return out.String(), nil
}
