package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/releasekit/releasekit/internal/pipeline"
	"github.com/releasekit/releasekit/pkg/interfaces"
	"github.com/releasekit/releasekit/pkg/mocks"
	"github.com/releasekit/releasekit/pkg/runctx"
	"github.com/releasekit/releasekit/pkg/state"
	"github.com/releasekit/releasekit/pkg/types"
)

type testDeps struct {
	git       *mocks.MockGitClient
	host      *mocks.MockHostClient
	syncer    *mocks.MockSyncer
	preflight *mocks.MockPreflight
	builder   *mocks.MockBuilder
	publisher *mocks.MockPublisher
	states    *mocks.MockStateManager
	manifests *mocks.MockManifestWriter
	notifier  *mocks.MockNotifier
	journal   *mocks.MockJournal
}

func newTestDeps() *testDeps {
	return &testDeps{
		git:       mocks.NewMockGitClient(),
		host:      mocks.NewMockHostClient(),
		syncer:    mocks.NewMockSyncer(),
		preflight: mocks.NewMockPreflight(),
		builder:   mocks.NewMockBuilder(),
		publisher: mocks.NewMockPublisher(types.PublishTargetNpm),
		states:    mocks.NewMockStateManager(),
		manifests: mocks.NewMockManifestWriter(),
		notifier:  mocks.NewMockNotifier(),
		journal:   mocks.NewMockJournal(),
	}
}

func (d *testDeps) wire() interfaces.ReleaseDependencies {
	return interfaces.ReleaseDependencies{
		Runner:       mocks.NewMockCommandRunner(),
		Git:          d.git,
		Host:         d.host,
		Syncer:       d.syncer,
		Preflight:    d.preflight,
		Builder:      d.builder,
		Publishers:   mocks.NewMockPublisherFactory(d.publisher),
		StateManager: d.states,
		Manifest:     d.manifests,
		Notifier:     d.notifier,
		Journal:      d.journal,
	}
}

func testConfig() *types.SubmoduleConfig {
	return &types.SubmoduleConfig{
		PackageName:    "mcp-test",
		PackageDir:     "packages/mcp-test",
		NpmPackageName: "@acme/mcp-test",
		BuildCommand:   "nx build mcp-test",
		TestCommand:    "nx test mcp-test",
		FilesToSync: []types.VersionSyncFile{
			{Path: "packages/mcp-test/package.json", Pattern: `"version":\s*"[^"]*"`, Replacement: `"version": "{version}"`},
		},
		Artifacts: &types.ArtifactFlags{Npm: true},
	}
}

func version(t *testing.T, s string) types.Version {
	t.Helper()

	v, err := types.ParseVersion(s)
	if err != nil {
		t.Fatalf("failed to parse version %s: %v", s, err)
	}
	return v
}

func newOrchestrator(t *testing.T, deps *testDeps, opts types.ReleaseOptions) *pipeline.Orchestrator {
	t.Helper()

	rc := runctx.NewWithEnv(t.TempDir(), nil)
	return pipeline.NewOrchestrator(testConfig(), version(t, "1.2.3"), opts, rc, deps.wire(), nil)
}

func TestFullReleaseSucceeds(t *testing.T) {
	deps := newTestDeps()
	o := newOrchestrator(t, deps, types.ReleaseOptions{})

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	if deps.publisher.PublishCalls != 1 {
		t.Errorf("publish called %d times, want 1", deps.publisher.PublishCalls)
	}
	if len(deps.git.Commits) != 1 || !strings.Contains(deps.git.Commits[0], "1.2.3") {
		t.Errorf("expected one version-bump commit, got %v", deps.git.Commits)
	}
	if len(deps.git.CreatedTags) != 1 || deps.git.CreatedTags[0] != "mcp-test-v1.2.3" {
		t.Errorf("expected tag mcp-test-v1.2.3, got %v", deps.git.CreatedTags)
	}
	if len(deps.git.PushedTags) != 1 {
		t.Errorf("tag never pushed: %v", deps.git.PushedTags)
	}
	if len(deps.host.Created) != 1 || deps.host.Created[0] != "mcp-test-v1.2.3" {
		t.Errorf("expected one host release, got %v", deps.host.Created)
	}

	m := deps.manifests.Written
	if m == nil {
		t.Fatal("no manifest written")
	}
	if m.State != types.StageDone {
		t.Errorf("manifest state = %s, want %s", m.State, types.StageDone)
	}
	if m.PublishedURLs["npm"] == "" {
		t.Error("manifest missing npm publish URL")
	}
	if len(m.Rollback) != 0 {
		t.Errorf("successful run recorded rollback actions: %v", m.Rollback)
	}

	// publish verification ran once up front, once post-release
	if deps.publisher.VerifyCalls != 2 {
		t.Errorf("verify called %d times, want 2", deps.publisher.VerifyCalls)
	}

	stages := deps.states.Stages["mcp-test"]
	want := []types.PipelineStage{
		types.StageInit, types.StagePreflight, types.StageVersionSync,
		types.StageBuild, types.StagePublish, types.StageTag,
		types.StageHostRelease, types.StageVerify, types.StageDone,
	}
	if len(stages) != len(want) {
		t.Fatalf("stage transitions = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, stages[i], want[i])
		}
	}
}

func TestDryRunSubstitutesLocalEffects(t *testing.T) {
	deps := newTestDeps()
	o := newOrchestrator(t, deps, types.ReleaseOptions{DryRun: true})

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("dry run failed: %v", err)
	}

	// Sync and build still execute so artifacts are validated
	if deps.syncer.SyncCalls != 1 {
		t.Errorf("sync called %d times, want 1", deps.syncer.SyncCalls)
	}
	if deps.builder.BuildCalls != 1 {
		t.Errorf("build called %d times, want 1", deps.builder.BuildCalls)
	}

	// Remote effects are substituted or skipped entirely
	if deps.publisher.PublishCalls != 0 {
		t.Errorf("real publish ran %d times during dry run", deps.publisher.PublishCalls)
	}
	if deps.publisher.DryRunCalls != 1 {
		t.Errorf("local publish equivalent ran %d times, want 1", deps.publisher.DryRunCalls)
	}
	if len(deps.git.CreatedTags) != 0 {
		t.Errorf("dry run created tags: %v", deps.git.CreatedTags)
	}
	if len(deps.git.Commits) != 0 {
		t.Errorf("dry run committed: %v", deps.git.Commits)
	}
	if len(deps.host.Created) != 0 {
		t.Errorf("dry run created host releases: %v", deps.host.Created)
	}
	if !deps.preflight.LastOpts.DryRun {
		t.Error("preflight not told about dry run, credential checks would run")
	}

	// Synced files restored so the tree is left clean
	if len(deps.git.CheckedOut) != 1 {
		t.Errorf("synced files not restored: %v", deps.git.CheckedOut)
	}
}

func TestAlreadyPublishedTargetIsSkipped(t *testing.T) {
	deps := newTestDeps()
	deps.publisher.Exists = true
	o := newOrchestrator(t, deps, types.ReleaseOptions{})

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	if deps.publisher.PublishCalls != 0 {
		t.Errorf("publish re-invoked %d times for an existing version", deps.publisher.PublishCalls)
	}

	found := false
	for _, stage := range o.State().Stages {
		if stage.Name == "publish-npm" {
			found = true
			if !stage.Passed || !strings.Contains(stage.Message, "already published") {
				t.Errorf("existing version not reported as already satisfied: %+v", stage)
			}
		}
	}
	if !found {
		t.Error("no publish-npm stage result recorded")
	}

	// This run created nothing on the registry, so nothing to roll back
	for _, action := range deps.manifests.Written.Rollback {
		if action.Kind == types.ActionRegistryPublished {
			t.Errorf("rollback action recorded for a pre-existing publish: %+v", action)
		}
	}
}

func TestPreflightFailureStopsBeforeMutation(t *testing.T) {
	deps := newTestDeps()
	deps.preflight.Report = types.PreflightReport{
		Passed: false,
		Checks: []types.StageResult{
			{Name: "clean-working-tree", Passed: false, Message: "working tree has uncommitted changes"},
			{Name: "release-branch", Passed: true},
		},
	}
	o := newOrchestrator(t, deps, types.ReleaseOptions{})

	err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected a preflight failure")
	}
	if !errors.Is(err, pipeline.ErrPreflightFailed) {
		t.Errorf("error = %v, want ErrPreflightFailed", err)
	}

	if deps.syncer.SyncCalls != 0 {
		t.Error("version sync ran despite failed preflight")
	}
	if deps.manifests.Written.State != types.StageFailed {
		t.Errorf("terminal state = %s, want %s", deps.manifests.Written.State, types.StageFailed)
	}
}

func TestRollbackRunsInReverseCreationOrder(t *testing.T) {
	deps := newTestDeps()
	deps.host.AssetErr = errors.New("upload rejected")
	cfg := testConfig()
	cfg.BuildBinaries = true
	cfg.BinaryPlatforms = []string{"linux-x64"}
	cfg.BinaryBuildCommand = "build {platform}"
	deps.builder.Artifacts = []types.BinaryArtifact{{Platform: "linux-x64", Path: "dist/a.tar.gz", Checksum: "abcdef123456"}}

	rc := runctx.NewWithEnv(t.TempDir(), nil)
	o := pipeline.NewOrchestrator(cfg, version(t, "1.2.3"), types.ReleaseOptions{}, rc, deps.wire(), nil)

	err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected the asset upload failure to be fatal")
	}

	undone := deps.manifests.Written.Rollback
	want := []types.RollbackActionKind{
		types.ActionReleaseCreated,
		types.ActionTagCreated,
		types.ActionCommitMade,
		types.ActionRegistryPublished,
	}
	if len(undone) != len(want) {
		t.Fatalf("undid %d actions (%v), want %d", len(undone), undone, len(want))
	}
	for i, kind := range want {
		if undone[i].Kind != kind {
			t.Errorf("rollback step %d = %s, want %s", i, undone[i].Kind, kind)
		}
	}

	if len(deps.host.Deleted) != 1 {
		t.Errorf("host release not deleted: %v", deps.host.Deleted)
	}
	if len(deps.git.DeletedTags) != 1 {
		t.Errorf("tag not deleted: %v", deps.git.DeletedTags)
	}
	// The bump commit was pushed, so it is reverted rather than reset away
	if len(deps.git.Reverted) != 1 {
		t.Errorf("pushed commit not reverted: %v", deps.git.Reverted)
	}
	if len(deps.publisher.Retracted) != 1 {
		t.Errorf("registry publish not retracted: %v", deps.publisher.Retracted)
	}

	if deps.manifests.Written.State != types.StageRolledBack {
		t.Errorf("terminal state = %s, want %s", deps.manifests.Written.State, types.StageRolledBack)
	}

	foundRollbackEvent := false
	for _, event := range deps.notifier.Events {
		if strings.HasPrefix(event, "rollback:mcp-test:1.2.3") {
			foundRollbackEvent = true
		}
	}
	if !foundRollbackEvent {
		t.Errorf("no rollback notification in %v", deps.notifier.Events)
	}
}

func TestPublishFailureBeforeCommitRestoresWorkingTree(t *testing.T) {
	deps := newTestDeps()
	deps.publisher.PublishResult = types.PublishResult{Error: "registry exploded"}
	o := newOrchestrator(t, deps, types.ReleaseOptions{})

	if err := o.Run(context.Background()); err == nil {
		t.Fatal("expected the publish failure to be fatal")
	}

	if len(deps.git.Commits) != 0 {
		t.Errorf("version bump committed despite failed publish: %v", deps.git.Commits)
	}
	if len(deps.git.CheckedOut) != 1 {
		t.Errorf("uncommitted sync edits not restored: %v", deps.git.CheckedOut)
	}
	if len(deps.git.CreatedTags) != 0 {
		t.Errorf("tag created after failed publish: %v", deps.git.CreatedTags)
	}
}

func TestAuthFailureCarriesLoginHint(t *testing.T) {
	deps := newTestDeps()
	deps.publisher.PublishResult = types.PublishResult{
		Output: "npm ERR! code E401\nnpm ERR! 401 Unauthorized - PUT https://registry.npmjs.org/@acme%2fmcp-test",
		Error:  "npm publish exited 1",
	}
	o := newOrchestrator(t, deps, types.ReleaseOptions{})

	err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected the publish failure to be fatal")
	}

	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("error %T is not a StageError", err)
	}
	if stageErr.Hint != "npm login" {
		t.Errorf("hint = %q, want %q", stageErr.Hint, "npm login")
	}
	if !strings.Contains(err.Error(), "npm login") {
		t.Errorf("remediation missing from message: %v", err)
	}
	if !strings.Contains(err.Error(), string(types.FailureAuthRequired)) {
		t.Errorf("classification missing from message: %v", err)
	}
}

func TestInterruptSkipsRollback(t *testing.T) {
	deps := newTestDeps()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newOrchestrator(t, deps, types.ReleaseOptions{})

	err := o.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}

	if len(deps.publisher.Retracted) != 0 || len(deps.git.DeletedTags) != 0 {
		t.Error("interrupt triggered rollback actions")
	}
	if deps.manifests.Written == nil || deps.manifests.Written.State != types.StageFailed {
		t.Error("interrupted run did not record a failed terminal state")
	}
}

func TestConcurrentRunRefused(t *testing.T) {
	deps := newTestDeps()
	deps.states.Locked = true
	o := newOrchestrator(t, deps, types.ReleaseOptions{})

	err := o.Run(context.Background())
	if !errors.Is(err, state.ErrRunInProgress) {
		t.Fatalf("error = %v, want ErrRunInProgress", err)
	}
	if deps.preflight.Calls != 0 {
		t.Error("pipeline stages ran despite a held run lock")
	}
}
