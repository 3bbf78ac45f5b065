// Package gitops wraps the git and gh command-line tools behind the
// release pipeline's narrow VCS and host-release interfaces.
package gitops

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/releasekit/releasekit/pkg/interfaces"
	"github.com/releasekit/releasekit/pkg/logger"
	"github.com/releasekit/releasekit/pkg/process"
)

// Git runs local git operations through the command seam
type Git struct {
	runner interfaces.CommandRunner
	dir    string
	logger logger.Logger
}

// NewGit creates a git client operating in dir
func NewGit(runner interfaces.CommandRunner, dir string, log logger.Logger) *Git {
	return &Git{runner: runner, dir: dir, logger: log}
}

// IsClean reports whether the working tree has no uncommitted changes
func (g *Git) IsClean(ctx context.Context) (bool, error) {
	out, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out == "", nil
}

// CurrentBranch returns the checked-out branch name
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	return g.run(ctx, "branch", "--show-current")
}

// RemoteStatus returns how many commits the local branch is ahead of and
// behind its upstream
func (g *Git) RemoteStatus(ctx context.Context) (ahead int, behind int, err error) {
	out, err := g.run(ctx, "rev-list", "--left-right", "--count", "HEAD...@{upstream}")
	if err != nil {
		return 0, 0, err
	}

	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected rev-list output: %q", out)
	}

	ahead, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected rev-list output: %q", out)
	}
	behind, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected rev-list output: %q", out)
	}

	return ahead, behind, nil
}

// HeadSHA returns the commit hash at HEAD
func (g *Git) HeadSHA(ctx context.Context) (string, error) {
	return g.run(ctx, "rev-parse", "HEAD")
}

// CommitAll stages the given paths (or everything when paths is empty),
// commits with message, and returns the new commit hash
func (g *Git) CommitAll(ctx context.Context, message string, paths []string) (string, error) {
	if len(paths) == 0 {
		if _, err := g.run(ctx, "add", "-A"); err != nil {
			return "", err
		}
	} else {
		args := append([]string{"add", "--"}, quoteAll(paths)...)
		if _, err := g.run(ctx, args...); err != nil {
			return "", err
		}
	}

	if _, err := g.run(ctx, "commit", "-m", process.Quote(message)); err != nil {
		return "", err
	}

	return g.HeadSHA(ctx)
}

// RevertCommit creates a new commit that undoes hash and returns the new
// commit's hash. Used instead of a reset when the original commit has
// already been pushed.
func (g *Git) RevertCommit(ctx context.Context, hash string) (string, error) {
	if _, err := g.run(ctx, "revert", "--no-edit", process.Quote(hash)); err != nil {
		return "", err
	}
	return g.HeadSHA(ctx)
}

// CheckoutPaths restores the given paths to their committed state
func (g *Git) CheckoutPaths(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"checkout", "--"}, quoteAll(paths)...)
	_, err := g.run(ctx, args...)
	return err
}

// ResetHard moves the current branch to ref, discarding later commits
func (g *Git) ResetHard(ctx context.Context, ref string) error {
	_, err := g.run(ctx, "reset", "--hard", ref)
	return err
}

// TagExists reports whether tag exists locally
func (g *Git) TagExists(ctx context.Context, tag string) (bool, error) {
	out, err := g.run(ctx, "tag", "-l", process.Quote(tag))
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// CreateTag creates an annotated tag. An existing tag is a precondition
// violation, not a silent no-op.
func (g *Git) CreateTag(ctx context.Context, tag string, message string) error {
	exists, err := g.TagExists(ctx, tag)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrTagExists, tag)
	}

	if message == "" {
		message = tag
	}

	_, err = g.run(ctx, "tag", "-a", process.Quote(tag), "-m", process.Quote(message))
	return err
}

// DeleteTag removes a tag locally and from the remote. An already absent
// tag is success; remote cleanup is best effort.
func (g *Git) DeleteTag(ctx context.Context, tag string) error {
	exists, err := g.TagExists(ctx, tag)
	if err != nil {
		return err
	}

	if exists {
		if _, err := g.run(ctx, "tag", "-d", process.Quote(tag)); err != nil {
			return err
		}
	}

	if _, err := g.run(ctx, "push", "origin", ":refs/tags/"+tag); err != nil {
		if g.logger != nil {
			g.logger.Warn("Could not delete remote tag",
				logger.WithField("tag", tag),
				logger.WithField("error", err))
		}
	}

	return nil
}

// PushBranch pushes the current branch to its upstream
func (g *Git) PushBranch(ctx context.Context) error {
	_, err := g.run(ctx, "push")
	return err
}

// PushTag pushes one tag to origin
func (g *Git) PushTag(ctx context.Context, tag string) error {
	_, err := g.run(ctx, "push", "origin", process.Quote(tag))
	return err
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	command := "git " + strings.Join(args, " ")

	result, err := g.runner.Run(ctx, command, g.dir)
	if err != nil {
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}

	if result.ExitCode != 0 {
		detail := strings.TrimSpace(result.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(result.Stdout)
		}
		return "", fmt.Errorf("git %s: exit %d: %s", args[0], result.ExitCode, detail)
	}

	return strings.TrimSpace(result.Stdout), nil
}

func quoteAll(values []string) []string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = process.Quote(v)
	}
	return quoted
}
