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

// DockerPublisher pushes the version-tagged image to its registry
type DockerPublisher struct {
	runner interfaces.CommandRunner
	rc     *runctx.RuntimeContext
	logger logger.Logger
}

// NewDockerPublisher creates the docker publisher
func NewDockerPublisher(runner interfaces.CommandRunner, rc *runctx.RuntimeContext, log logger.Logger) *DockerPublisher {
	return &DockerPublisher{runner: runner, rc: rc, logger: log}
}

// Name implements interfaces.Publisher
func (p *DockerPublisher) Name() types.PublishTarget { return types.PublishTargetDocker }

// Verify reports whether the version tag already exists on the registry
func (p *DockerPublisher) Verify(ctx context.Context, cfg *types.SubmoduleConfig, version types.Version) (bool, error) {
	command := fmt.Sprintf("docker manifest inspect %s", p.image(cfg, version))
	result, err := p.runner.Run(ctx, command, p.rc.ProjectRoot())
	if err != nil {
		return false, err
	}
	return result.ExitCode == 0, nil
}

// Publish pushes the image built during the build stage
func (p *DockerPublisher) Publish(ctx context.Context, cfg *types.SubmoduleConfig, version types.Version) types.PublishResult {
	image := p.image(cfg, version)
	result, err := p.runner.Run(ctx, "docker push "+image, p.rc.ProjectRoot())
	if err != nil {
		return types.PublishResult{Error: err.Error()}
	}
	if result.ExitCode != 0 {
		return types.PublishResult{
			Output: result.CombinedOutput(),
			Error:  fmt.Sprintf("docker push exited %d", result.ExitCode),
		}
	}

	return types.PublishResult{Success: true, URL: image, Output: result.Stdout}
}

// DryRun exports the image to a local tarball instead of pushing, proving
// the tag exists and is exportable
func (p *DockerPublisher) DryRun(ctx context.Context, cfg *types.SubmoduleConfig, version types.Version) types.PublishResult {
	archive := fmt.Sprintf("dist/%s-%s.tar", strings.ReplaceAll(cfg.DockerImageName, "/", "-"), version)
	command := fmt.Sprintf("docker save -o %s %s", archive, p.image(cfg, version))

	result, err := p.runner.Run(ctx, command, p.rc.ProjectRoot())
	if err != nil {
		return types.PublishResult{Error: err.Error()}
	}
	if result.ExitCode != 0 {
		return types.PublishResult{
			Output: result.CombinedOutput(),
			Error:  fmt.Sprintf("docker save exited %d", result.ExitCode),
		}
	}

	return types.PublishResult{Success: true, Output: "saved image to " + archive}
}

// Retract is unsupported: registries do not reliably allow tag deletion, so
// rollback surfaces a manual-cleanup warning instead
func (p *DockerPublisher) Retract(_ context.Context, cfg *types.SubmoduleConfig, version types.Version) error {
	return fmt.Errorf("%w: %s", ErrNotRetractable, p.image(cfg, version))
}

func (p *DockerPublisher) image(cfg *types.SubmoduleConfig, version types.Version) string {
	return fmt.Sprintf("%s:%s", cfg.DockerImageName, version)
}
