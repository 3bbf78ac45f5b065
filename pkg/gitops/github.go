package gitops

import (
	"context"
	"fmt"
	"strings"

	"github.com/releasekit/releasekit/pkg/interfaces"
	"github.com/releasekit/releasekit/pkg/logger"
	"github.com/releasekit/releasekit/pkg/process"
	"github.com/releasekit/releasekit/pkg/types"
)

// GitHub drives the gh CLI for host releases and assets
type GitHub struct {
	runner interfaces.CommandRunner
	dir    string
	logger logger.Logger
}

// NewGitHub creates a host client operating in dir
func NewGitHub(runner interfaces.CommandRunner, dir string, log logger.Logger) *GitHub {
	return &GitHub{runner: runner, dir: dir, logger: log}
}

// ReleaseExists reports whether a release for tag is already published
func (h *GitHub) ReleaseExists(ctx context.Context, tag string) (bool, error) {
	result, err := h.runner.Run(ctx, "gh release view "+process.Quote(tag), h.dir)
	if err != nil {
		return false, fmt.Errorf("gh release view: %w", err)
	}

	if result.ExitCode == 0 {
		return true, nil
	}

	if isNotFound(result) {
		return false, nil
	}

	return false, fmt.Errorf("gh release view: exit %d: %s",
		result.ExitCode, strings.TrimSpace(result.Stderr))
}

// CreateRelease publishes a release for an existing tag. The release URL is
// reported back through the uniform publish-result shape.
func (h *GitHub) CreateRelease(ctx context.Context, release interfaces.HostRelease) types.PublishResult {
	args := []string{
		"gh", "release", "create", process.Quote(release.Tag),
		"--title", process.Quote(release.Title),
		"--notes", process.Quote(release.Notes),
	}
	if release.Prerelease {
		args = append(args, "--prerelease")
	}

	result, err := h.runner.Run(ctx, strings.Join(args, " "), h.dir)
	if err != nil {
		return types.PublishResult{Error: err.Error()}
	}

	if result.ExitCode != 0 {
		return types.PublishResult{
			Output: result.CombinedOutput(),
			Error:  strings.TrimSpace(result.Stderr),
		}
	}

	return types.PublishResult{
		Success: true,
		URL:     strings.TrimSpace(result.Stdout),
		Output:  result.CombinedOutput(),
	}
}

// DeleteRelease removes a release. An already absent release is success;
// this is only invoked during rollback.
func (h *GitHub) DeleteRelease(ctx context.Context, tag string) error {
	result, err := h.runner.Run(ctx, "gh release delete "+process.Quote(tag)+" --yes", h.dir)
	if err != nil {
		return fmt.Errorf("gh release delete: %w", err)
	}

	if result.ExitCode != 0 && !isNotFound(result) {
		return fmt.Errorf("gh release delete: exit %d: %s",
			result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	return nil
}

// AttachAssets uploads files to an existing release
func (h *GitHub) AttachAssets(ctx context.Context, tag string, assets []string) error {
	if len(assets) == 0 {
		return nil
	}

	args := append([]string{"gh", "release", "upload", process.Quote(tag)}, quoteAll(assets)...)
	args = append(args, "--clobber")

	result, err := h.runner.Run(ctx, strings.Join(args, " "), h.dir)
	if err != nil {
		return fmt.Errorf("gh release upload: %w", err)
	}

	if result.ExitCode != 0 {
		return fmt.Errorf("gh release upload: exit %d: %s",
			result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	if h.logger != nil {
		h.logger.Debug("Attached release assets",
			logger.WithField("tag", tag),
			logger.WithField("count", len(assets)))
	}

	return nil
}

func isNotFound(result types.CommandResult) bool {
	text := strings.ToLower(result.CombinedOutput())
	return strings.Contains(text, "not found") || strings.Contains(text, "no release")
}
