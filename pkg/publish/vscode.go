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

// VSCodePublisher publishes the extension to the VS Code marketplace
type VSCodePublisher struct {
	runner interfaces.CommandRunner
	rc     *runctx.RuntimeContext
	logger logger.Logger
}

// NewVSCodePublisher creates the marketplace publisher
func NewVSCodePublisher(runner interfaces.CommandRunner, rc *runctx.RuntimeContext, log logger.Logger) *VSCodePublisher {
	return &VSCodePublisher{runner: runner, rc: rc, logger: log}
}

// Name implements interfaces.Publisher
func (p *VSCodePublisher) Name() types.PublishTarget { return types.PublishTargetVSCode }

// Verify reports whether the marketplace already lists this version
func (p *VSCodePublisher) Verify(ctx context.Context, cfg *types.SubmoduleConfig, version types.Version) (bool, error) {
	command := fmt.Sprintf("vsce show %s --json", cfg.VSCodeExtensionName)
	result, err := p.runner.Run(ctx, command, p.rc.ProjectRoot())
	if err != nil {
		return false, err
	}
	if result.ExitCode != 0 {
		return false, nil
	}

	// The listing JSON quotes every published version string
	return containsQuoted(result.Stdout, version.String()), nil
}

// Publish runs vsce publish in the extension directory
func (p *VSCodePublisher) Publish(ctx context.Context, cfg *types.SubmoduleConfig, version types.Version) types.PublishResult {
	command := "vsce publish"
	if version.IsPrerelease() {
		command += " --pre-release"
	}

	result, err := p.runner.Run(ctx, command, p.dir(cfg))
	if err != nil {
		return types.PublishResult{Error: err.Error()}
	}
	if result.ExitCode != 0 {
		return types.PublishResult{
			Output: result.CombinedOutput(),
			Error:  fmt.Sprintf("vsce publish exited %d", result.ExitCode),
		}
	}

	return types.PublishResult{
		Success: true,
		URL:     "https://marketplace.visualstudio.com/items?itemName=" + cfg.VSCodeExtensionName,
		Output:  result.Stdout,
	}
}

// DryRun packages the .vsix locally without publishing
func (p *VSCodePublisher) DryRun(ctx context.Context, cfg *types.SubmoduleConfig, _ types.Version) types.PublishResult {
	result, err := p.runner.Run(ctx, "vsce package", p.dir(cfg))
	if err != nil {
		return types.PublishResult{Error: err.Error()}
	}
	if result.ExitCode != 0 {
		return types.PublishResult{
			Output: result.CombinedOutput(),
			Error:  fmt.Sprintf("vsce package exited %d", result.ExitCode),
		}
	}

	return types.PublishResult{Success: true, Output: "packaged extension locally"}
}

// Retract is unsupported: vsce can only unpublish whole extensions, not a
// single version
func (p *VSCodePublisher) Retract(_ context.Context, cfg *types.SubmoduleConfig, version types.Version) error {
	return fmt.Errorf("%w: %s@%s", ErrNotRetractable, cfg.VSCodeExtensionName, version)
}

func (p *VSCodePublisher) dir(cfg *types.SubmoduleConfig) string {
	if cfg.VSCodeExtensionDir != "" {
		return p.rc.Path(cfg.VSCodeExtensionDir)
	}
	if cfg.PackageDir != "" {
		return p.rc.Path(cfg.PackageDir)
	}
	return p.rc.ProjectRoot()
}

func containsQuoted(s, version string) bool {
	return version != "" && (strings.Contains(s, `"`+version+`"`) || strings.Contains(s, `'`+version+`'`))
}
