// Package interfaces provides abstractions for dependency injection and testability
package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/releasekit/releasekit/pkg/manifest"
	"github.com/releasekit/releasekit/pkg/state"
	"github.com/releasekit/releasekit/pkg/types"
)

// CommandRunner abstracts external tool invocation. It is the single seam
// through which package managers, container tools, and VCS clients run.
type CommandRunner interface {
	Run(ctx context.Context, command string, dir string) (types.CommandResult, error)
}

// GitClient abstracts local git operations
type GitClient interface {
	IsClean(ctx context.Context) (bool, error)
	CurrentBranch(ctx context.Context) (string, error)
	RemoteStatus(ctx context.Context) (ahead int, behind int, err error)
	HeadSHA(ctx context.Context) (string, error)
	CommitAll(ctx context.Context, message string, paths []string) (string, error)
	RevertCommit(ctx context.Context, hash string) (string, error)
	CheckoutPaths(ctx context.Context, paths []string) error
	ResetHard(ctx context.Context, ref string) error
	TagExists(ctx context.Context, tag string) (bool, error)
	CreateTag(ctx context.Context, tag string, message string) error
	DeleteTag(ctx context.Context, tag string) error
	PushBranch(ctx context.Context) error
	PushTag(ctx context.Context, tag string) error
}

// HostRelease describes a release to create on the hosting service
type HostRelease struct {
	Tag        string
	Title      string
	Notes      string
	Prerelease bool
}

// HostClient abstracts the repository hosting service (releases, assets)
type HostClient interface {
	ReleaseExists(ctx context.Context, tag string) (bool, error)
	CreateRelease(ctx context.Context, release HostRelease) types.PublishResult
	DeleteRelease(ctx context.Context, tag string) error
	AttachAssets(ctx context.Context, tag string, assets []string) error
}

// VersionSyncer applies and verifies a target version across declared files
type VersionSyncer interface {
	Sync(cfg *types.SubmoduleConfig, version types.Version) (types.SyncResult, error)
	Verify(cfg *types.SubmoduleConfig, version types.Version) (bool, error)
}

// PreflightRunner executes the readiness check battery
type PreflightRunner interface {
	RunChecks(ctx context.Context, cfg *types.SubmoduleConfig, opts types.ReleaseOptions) types.PreflightReport
}

// BuildCoordinator runs the package's test and build commands
type BuildCoordinator interface {
	Test(ctx context.Context, cfg *types.SubmoduleConfig) types.PublishResult
	Build(ctx context.Context, cfg *types.SubmoduleConfig) types.PublishResult
	BuildBinaries(ctx context.Context, cfg *types.SubmoduleConfig, version types.Version) ([]types.BinaryArtifact, error)
}

// Publisher pushes one artifact kind to its registry. Verify reports
// whether the version already exists at the target so publish can be
// skipped; DryRun substitutes a local-only equivalent; Retract is the
// best-effort rollback inverse.
type Publisher interface {
	Name() types.PublishTarget
	Verify(ctx context.Context, cfg *types.SubmoduleConfig, version types.Version) (bool, error)
	Publish(ctx context.Context, cfg *types.SubmoduleConfig, version types.Version) types.PublishResult
	DryRun(ctx context.Context, cfg *types.SubmoduleConfig, version types.Version) types.PublishResult
	Retract(ctx context.Context, cfg *types.SubmoduleConfig, version types.Version) error
}

// PublisherFactory selects the publishers for a package and run options
type PublisherFactory interface {
	PublishersFor(cfg *types.SubmoduleConfig, opts types.ReleaseOptions) []Publisher
}

// ConfigResolver loads, defaults, and validates package release configs
type ConfigResolver interface {
	Resolve(packageName string) (*types.SubmoduleConfig, error)
	Validate(cfg *types.SubmoduleConfig) error
	DefaultConfig(packageName string) *types.SubmoduleConfig
	Discover() ([]string, error)
}

// StateManager handles the persisted per-package run ledger and run lock
type StateManager interface {
	InitializeRun(cfg *types.SubmoduleConfig, version types.Version, opts types.ReleaseOptions) (*state.RunRecord, error)
	ReadRun(packageName string) (*state.RunRecord, error)
	UpdateStage(packageName string, stage types.PipelineStage) error
	RecordError(packageName string, message string) error
	FinishRun(packageName string, stage types.PipelineStage) error
	IsLocked(packageName string) (bool, error)
	DiscoverRuns() (map[string]*state.RunRecord, error)
	Cleanup() error
}

// ManifestWriter records the final outcome of a release run
type ManifestWriter interface {
	Write(m *manifest.Manifest) (string, error)
}

// ReleaseNotifier surfaces terminal release states to the operator
type ReleaseNotifier interface {
	NotifyReleaseStart(pkg string, version string)
	NotifyReleaseSuccess(pkg string, version string, duration time.Duration)
	NotifyReleaseFailure(pkg string, version string, err error)
	NotifyRollback(pkg string, version string, undone int)
}

// Journal is the append-only release transcript. Writes stream raw command
// output; Printf appends one timestamped line.
type Journal interface {
	io.Writer
	Printf(format string, args ...interface{})
	Path() string
	Close() error
}

// ReleaseDependencies contains all injectable dependencies
type ReleaseDependencies struct {
	Runner       CommandRunner
	Git          GitClient
	Host         HostClient
	Syncer       VersionSyncer
	Preflight    PreflightRunner
	Builder      BuildCoordinator
	Publishers   PublisherFactory
	StateManager StateManager
	Manifest     ManifestWriter
	Notifier     ReleaseNotifier
	Journal      Journal
}
