// Package builder runs a package's test and build commands and produces
// the per-platform binary artifacts attached to the host release.
package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/releasekit/releasekit/pkg/interfaces"
	"github.com/releasekit/releasekit/pkg/logger"
	"github.com/releasekit/releasekit/pkg/runctx"
	"github.com/releasekit/releasekit/pkg/types"
)

// PlatformToken is the placeholder resolved to the target platform inside
// binary build command templates.
const PlatformToken = "{platform}"

// Coordinator implements interfaces.BuildCoordinator over the command seam
type Coordinator struct {
	runner interfaces.CommandRunner
	rc     *runctx.RuntimeContext
	logger logger.Logger
}

// NewCoordinator creates a build coordinator
func NewCoordinator(runner interfaces.CommandRunner, rc *runctx.RuntimeContext, log logger.Logger) *Coordinator {
	return &Coordinator{runner: runner, rc: rc, logger: log}
}

// Test runs the configured test command at the project root
func (c *Coordinator) Test(ctx context.Context, cfg *types.SubmoduleConfig) types.PublishResult {
	return c.runCommand(ctx, cfg.TestCommand, "test")
}

// Build runs the configured build command at the project root
func (c *Coordinator) Build(ctx context.Context, cfg *types.SubmoduleConfig) types.PublishResult {
	return c.runCommand(ctx, cfg.BuildCommand, "build")
}

// BuildBinaries builds one artifact per configured platform, in parallel,
// and packs each platform's dist output into a checksummed tarball under
// dist/. The binary build command runs in the package directory with the
// {platform} and {version} tokens resolved; it is expected to leave its
// output in dist/<platform>/. Artifacts come back ordered by the configured
// platform list regardless of build completion order.
func (c *Coordinator) BuildBinaries(ctx context.Context, cfg *types.SubmoduleConfig, version types.Version) ([]types.BinaryArtifact, error) {
	if !cfg.BuildBinaries || len(cfg.BinaryPlatforms) == 0 {
		return nil, nil
	}
	if cfg.BinaryBuildCommand == "" {
		return nil, fmt.Errorf("buildBinaries is set but no binaryBuildCommand is configured")
	}

	dir := c.packageDir(cfg)
	distDir := filepath.Join(dir, "dist")
	if err := os.MkdirAll(distDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create dist directory: %w", err)
	}

	artifacts := make([]types.BinaryArtifact, len(cfg.BinaryPlatforms))

	group, ctx := NewSafeGroup(ctx, c.logger)
	group.SetLimit(runtime.NumCPU())

	for i, platform := range cfg.BinaryPlatforms {
		group.Go(func() error {
			artifact, err := c.buildPlatform(ctx, cfg, version, platform, dir, distDir)
			if err != nil {
				return fmt.Errorf("%s: %w", platform, err)
			}
			artifacts[i] = artifact
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return artifacts, nil
}

func (c *Coordinator) buildPlatform(ctx context.Context, cfg *types.SubmoduleConfig, version types.Version, platform, dir, distDir string) (types.BinaryArtifact, error) {
	command := strings.ReplaceAll(cfg.BinaryBuildCommand, PlatformToken, platform)
	command = strings.ReplaceAll(command, "{version}", version.String())

	if c.logger != nil {
		c.logger.Info("Building binary",
			logger.WithField("package", cfg.PackageName),
			logger.WithField("platform", platform))
	}

	result, err := c.runner.Run(ctx, command, dir)
	if err != nil {
		return types.BinaryArtifact{}, err
	}
	if result.ExitCode != 0 {
		return types.BinaryArtifact{}, fmt.Errorf("build exited %d: %s",
			result.ExitCode, strings.TrimSpace(result.CombinedOutput()))
	}

	outDir := filepath.Join(distDir, platform)
	if _, err := os.Stat(outDir); err != nil {
		return types.BinaryArtifact{}, fmt.Errorf("no build output at %s: %w", outDir, err)
	}

	archive := filepath.Join(distDir, fmt.Sprintf("%s-%s-%s.tar.gz",
		cfg.PackageName, version, safeName(platform)))
	if err := TarGz(outDir, archive); err != nil {
		return types.BinaryArtifact{}, err
	}

	checksum, err := SHA256File(archive)
	if err != nil {
		return types.BinaryArtifact{}, err
	}

	return types.BinaryArtifact{
		Platform: platform,
		Path:     archive,
		Checksum: checksum,
	}, nil
}

func (c *Coordinator) runCommand(ctx context.Context, command, kind string) types.PublishResult {
	if command == "" {
		return types.PublishResult{Success: true, Output: "no " + kind + " command configured"}
	}

	result, err := c.runner.Run(ctx, command, c.rc.ProjectRoot())
	if err != nil {
		return types.PublishResult{Error: err.Error()}
	}
	if result.ExitCode != 0 {
		return types.PublishResult{
			Output: result.CombinedOutput(),
			Error:  fmt.Sprintf("%s command exited %d", kind, result.ExitCode),
		}
	}

	return types.PublishResult{Success: true, Output: result.Stdout}
}

func (c *Coordinator) packageDir(cfg *types.SubmoduleConfig) string {
	if cfg.PackageDir != "" {
		return c.rc.Path(cfg.PackageDir)
	}
	return c.rc.ProjectRoot()
}
