package pipeline

import (
	"time"

	"github.com/releasekit/releasekit/pkg/builder"
	"github.com/releasekit/releasekit/pkg/gitops"
	"github.com/releasekit/releasekit/pkg/interfaces"
	"github.com/releasekit/releasekit/pkg/journal"
	"github.com/releasekit/releasekit/pkg/logger"
	"github.com/releasekit/releasekit/pkg/manifest"
	"github.com/releasekit/releasekit/pkg/notifier"
	"github.com/releasekit/releasekit/pkg/preflight"
	"github.com/releasekit/releasekit/pkg/process"
	"github.com/releasekit/releasekit/pkg/publish"
	"github.com/releasekit/releasekit/pkg/runctx"
	"github.com/releasekit/releasekit/pkg/state"
	"github.com/releasekit/releasekit/pkg/syncer"
	"github.com/releasekit/releasekit/pkg/types"
)

// DependencyFactory wires the default collaborator implementations for one
// release run. Tests and embedders swap individual pieces through
// CreateWithOverrides.
type DependencyFactory struct {
	rc            *runctx.RuntimeContext
	logger        logger.Logger
	cfg           *types.SubmoduleConfig
	notifications bool
}

// NewDependencyFactory creates a dependency factory
func NewDependencyFactory(rc *runctx.RuntimeContext, log logger.Logger, cfg *types.SubmoduleConfig, notifications bool) *DependencyFactory {
	return &DependencyFactory{
		rc:            rc,
		logger:        log,
		cfg:           cfg,
		notifications: notifications,
	}
}

// CreateDefaults builds the full production dependency set. The journal is
// opened here and teed into the command runner so every external command's
// output lands in the release transcript.
func (f *DependencyFactory) CreateDefaults() (interfaces.ReleaseDependencies, error) {
	jrnl, err := journal.New(f.rc, f.cfg.PackageName)
	if err != nil {
		return interfaces.ReleaseDependencies{}, err
	}

	var timeout time.Duration
	if f.cfg.CommandTimeout != nil {
		timeout = time.Duration(*f.cfg.CommandTimeout) * time.Second
	}

	runner := process.NewRunner(f.logger, f.rc.Environ(), timeout, jrnl)
	git := gitops.NewGit(runner, f.rc.ProjectRoot(), f.logger)
	buildCoord := builder.NewCoordinator(runner, f.rc, f.logger)

	return interfaces.ReleaseDependencies{
		Runner:       runner,
		Git:          git,
		Host:         gitops.NewGitHub(runner, f.rc.ProjectRoot(), f.logger),
		Syncer:       syncer.NewEngine(f.rc, f.logger),
		Preflight:    preflight.NewValidator(git, buildCoord, runner, f.rc, f.logger),
		Builder:      buildCoord,
		Publishers:   publish.NewFactory(runner, f.rc, f.logger),
		StateManager: state.NewStateManager(f.rc, f.logger),
		Manifest:     manifest.NewWriter(f.rc, f.logger),
		Notifier:     notifier.New(f.notifications && f.cfg.NotificationsEnabled(), f.logger),
		Journal:      jrnl,
	}, nil
}

// CreateWithOverrides builds the defaults and replaces every non-nil field
// from overrides
func (f *DependencyFactory) CreateWithOverrides(overrides interfaces.ReleaseDependencies) (interfaces.ReleaseDependencies, error) {
	deps, err := f.CreateDefaults()
	if err != nil {
		return deps, err
	}

	if overrides.Runner != nil {
		deps.Runner = overrides.Runner
	}
	if overrides.Git != nil {
		deps.Git = overrides.Git
	}
	if overrides.Host != nil {
		deps.Host = overrides.Host
	}
	if overrides.Syncer != nil {
		deps.Syncer = overrides.Syncer
	}
	if overrides.Preflight != nil {
		deps.Preflight = overrides.Preflight
	}
	if overrides.Builder != nil {
		deps.Builder = overrides.Builder
	}
	if overrides.Publishers != nil {
		deps.Publishers = overrides.Publishers
	}
	if overrides.StateManager != nil {
		deps.StateManager = overrides.StateManager
	}
	if overrides.Manifest != nil {
		deps.Manifest = overrides.Manifest
	}
	if overrides.Notifier != nil {
		deps.Notifier = overrides.Notifier
	}
	if overrides.Journal != nil {
		deps.Journal = overrides.Journal
	}

	return deps, nil
}
