// Package publish implements one Publisher per artifact registry plus the
// factory that selects them for a run. Every publisher exposes the same
// four operations: Verify (does the version already exist), Publish,
// DryRun (a local-only equivalent), and Retract (the rollback inverse).
package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/releasekit/releasekit/pkg/interfaces"
	"github.com/releasekit/releasekit/pkg/logger"
	"github.com/releasekit/releasekit/pkg/runctx"
	"github.com/releasekit/releasekit/pkg/types"
)

// NpmPublisher pushes the package to the npm registry
type NpmPublisher struct {
	runner interfaces.CommandRunner
	rc     *runctx.RuntimeContext
	logger logger.Logger
}

// NewNpmPublisher creates the npm publisher
func NewNpmPublisher(runner interfaces.CommandRunner, rc *runctx.RuntimeContext, log logger.Logger) *NpmPublisher {
	return &NpmPublisher{runner: runner, rc: rc, logger: log}
}

// Name implements interfaces.Publisher
func (p *NpmPublisher) Name() types.PublishTarget { return types.PublishTargetNpm }

// Verify reports whether name@version is already visible on the registry
func (p *NpmPublisher) Verify(ctx context.Context, cfg *types.SubmoduleConfig, version types.Version) (bool, error) {
	command := fmt.Sprintf("npm view %s@%s version", cfg.NpmPackageName, version)
	result, err := p.runner.Run(ctx, command, p.rc.ProjectRoot())
	if err != nil {
		return false, err
	}

	// npm view exits non-zero (E404) for versions that do not exist
	if result.ExitCode != 0 {
		return false, nil
	}
	return strings.Contains(result.Stdout, version.String()), nil
}

// Publish runs npm publish in the package directory. Prereleases go to the
// "next" dist-tag so "latest" keeps pointing at the last stable version.
func (p *NpmPublisher) Publish(ctx context.Context, cfg *types.SubmoduleConfig, version types.Version) types.PublishResult {
	command := "npm publish --access public"
	if version.IsPrerelease() {
		command += " --tag next"
	}

	result, err := p.runner.Run(ctx, command, p.dir(cfg))
	if err != nil {
		return types.PublishResult{Error: err.Error()}
	}
	if result.ExitCode != 0 {
		return types.PublishResult{
			Output: result.CombinedOutput(),
			Error:  fmt.Sprintf("npm publish exited %d", result.ExitCode),
		}
	}

	return types.PublishResult{
		Success: true,
		URL:     fmt.Sprintf("https://www.npmjs.com/package/%s/v/%s", cfg.NpmPackageName, version),
		Output:  result.Stdout,
	}
}

// DryRun packs the tarball locally without touching the registry
func (p *NpmPublisher) DryRun(ctx context.Context, cfg *types.SubmoduleConfig, _ types.Version) types.PublishResult {
	result, err := p.runner.Run(ctx, "npm pack", p.dir(cfg))
	if err != nil {
		return types.PublishResult{Error: err.Error()}
	}
	if result.ExitCode != 0 {
		return types.PublishResult{
			Output: result.CombinedOutput(),
			Error:  fmt.Sprintf("npm pack exited %d", result.ExitCode),
		}
	}

	return types.PublishResult{
		Success: true,
		Output:  fmt.Sprintf("packed %s", strings.TrimSpace(result.Stdout)),
	}
}

// Retract unpublishes the specific version
func (p *NpmPublisher) Retract(ctx context.Context, cfg *types.SubmoduleConfig, version types.Version) error {
	command := fmt.Sprintf("npm unpublish %s@%s", cfg.NpmPackageName, version)
	result, err := p.runner.Run(ctx, command, p.rc.ProjectRoot())
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("npm unpublish exited %d: %s", result.ExitCode, strings.TrimSpace(result.CombinedOutput()))
	}

	if p.logger != nil {
		p.logger.Info("Unpublished npm version",
			logger.WithField("package", cfg.NpmPackageName),
			logger.WithField("version", version.String()))
	}
	return nil
}

func (p *NpmPublisher) dir(cfg *types.SubmoduleConfig) string {
	if cfg.PackageDir != "" {
		return p.rc.Path(cfg.PackageDir)
	}
	return p.rc.ProjectRoot()
}
