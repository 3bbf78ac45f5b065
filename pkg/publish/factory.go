package publish

import (
	"github.com/releasekit/releasekit/pkg/interfaces"
	"github.com/releasekit/releasekit/pkg/logger"
	"github.com/releasekit/releasekit/pkg/runctx"
	"github.com/releasekit/releasekit/pkg/types"
)

// Factory selects the publishers a run needs from the package's artifact
// flags and the run options
type Factory struct {
	runner interfaces.CommandRunner
	rc     *runctx.RuntimeContext
	logger logger.Logger
}

// NewFactory creates a publisher factory
func NewFactory(runner interfaces.CommandRunner, rc *runctx.RuntimeContext, log logger.Logger) *Factory {
	return &Factory{runner: runner, rc: rc, logger: log}
}

// PublishersFor returns the publishers for one release run in publish
// order. Docker requires both the config artifact flag and the explicit
// --docker option. Binaries have no publisher: they are built during the
// build stage and attached to the host release.
func (f *Factory) PublishersFor(cfg *types.SubmoduleConfig, opts types.ReleaseOptions) []interfaces.Publisher {
	artifacts := cfg.ArtifactSet()

	var publishers []interfaces.Publisher
	if artifacts.Npm {
		publishers = append(publishers, NewNpmPublisher(f.runner, f.rc, f.logger))
	}
	if artifacts.Docker && opts.IncludeDocker {
		publishers = append(publishers, NewDockerPublisher(f.runner, f.rc, f.logger))
	}
	if artifacts.VSCode {
		publishers = append(publishers, NewVSCodePublisher(f.runner, f.rc, f.logger))
	}
	return publishers
}
