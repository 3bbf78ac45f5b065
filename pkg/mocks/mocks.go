// Package mocks provides hand-written test doubles for the release
// pipeline's collaborator interfaces.
package mocks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/releasekit/releasekit/pkg/interfaces"
	"github.com/releasekit/releasekit/pkg/manifest"
	"github.com/releasekit/releasekit/pkg/state"
	"github.com/releasekit/releasekit/pkg/types"
)

// RunnerCall records one command sent through the MockCommandRunner
type RunnerCall struct {
	Command string
	Dir     string
}

type runnerStub struct {
	match  string
	result types.CommandResult
	err    error
}

// MockCommandRunner answers commands from an ordered stub list. Commands
// matching no stub succeed with empty output.
type MockCommandRunner struct {
	mu    sync.Mutex
	stubs []runnerStub
	Calls []RunnerCall
}

// NewMockCommandRunner creates an empty command runner mock
func NewMockCommandRunner() *MockCommandRunner {
	return &MockCommandRunner{}
}

// On registers a stub for any command containing match
func (m *MockCommandRunner) On(match string, result types.CommandResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, runnerStub{match: match, result: result, err: err})
}

// Run implements interfaces.CommandRunner
func (m *MockCommandRunner) Run(_ context.Context, command string, dir string) (types.CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, RunnerCall{Command: command, Dir: dir})
	for _, s := range m.stubs {
		if strings.Contains(command, s.match) {
			return s.result, s.err
		}
	}
	return types.CommandResult{}, nil
}

// Called reports whether any recorded command contains match
func (m *MockCommandRunner) Called(match string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.Calls {
		if strings.Contains(c.Command, match) {
			return true
		}
	}
	return false
}

// MockGitClient is a scriptable GitClient. NewMockGitClient returns one
// primed for the happy path: clean tree, on main, in sync with the remote.
type MockGitClient struct {
	mu sync.Mutex

	Clean  bool
	Branch string
	Ahead  int
	Behind int
	Head   string
	Tags   map[string]bool

	CleanErr  error
	BranchErr error
	RemoteErr error
	CommitErr error
	TagErr    error
	PushErr   error

	Commits     []string
	Reverted    []string
	CreatedTags []string
	DeletedTags []string
	PushedTags  []string
	ResetRefs   []string
	CheckedOut  [][]string
	BranchPush  int
}

// NewMockGitClient creates a git mock primed for a clean main checkout
func NewMockGitClient() *MockGitClient {
	return &MockGitClient{
		Clean:  true,
		Branch: "main",
		Head:   "abc1234",
		Tags:   make(map[string]bool),
	}
}

func (m *MockGitClient) IsClean(_ context.Context) (bool, error) {
	return m.Clean, m.CleanErr
}

func (m *MockGitClient) CurrentBranch(_ context.Context) (string, error) {
	return m.Branch, m.BranchErr
}

func (m *MockGitClient) RemoteStatus(_ context.Context) (int, int, error) {
	return m.Ahead, m.Behind, m.RemoteErr
}

func (m *MockGitClient) HeadSHA(_ context.Context) (string, error) {
	return m.Head, nil
}

func (m *MockGitClient) CommitAll(_ context.Context, message string, _ []string) (string, error) {
	if m.CommitErr != nil {
		return "", m.CommitErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commits = append(m.Commits, message)
	return m.Head, nil
}

func (m *MockGitClient) RevertCommit(_ context.Context, hash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reverted = append(m.Reverted, hash)
	return "revert-" + hash, nil
}

func (m *MockGitClient) CheckoutPaths(_ context.Context, paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CheckedOut = append(m.CheckedOut, paths)
	return nil
}

func (m *MockGitClient) ResetHard(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetRefs = append(m.ResetRefs, ref)
	return nil
}

func (m *MockGitClient) TagExists(_ context.Context, tag string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Tags[tag], nil
}

func (m *MockGitClient) CreateTag(_ context.Context, tag string, _ string) error {
	if m.TagErr != nil {
		return m.TagErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Tags[tag] {
		return fmt.Errorf("tag already exists: %s", tag)
	}
	m.Tags[tag] = true
	m.CreatedTags = append(m.CreatedTags, tag)
	return nil
}

func (m *MockGitClient) DeleteTag(_ context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Tags, tag)
	m.DeletedTags = append(m.DeletedTags, tag)
	return nil
}

func (m *MockGitClient) PushBranch(_ context.Context) error {
	if m.PushErr != nil {
		return m.PushErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.BranchPush++
	return nil
}

func (m *MockGitClient) PushTag(_ context.Context, tag string) error {
	if m.PushErr != nil {
		return m.PushErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.PushedTags = append(m.PushedTags, tag)
	return nil
}

// MockHostClient is a scriptable host-release client
type MockHostClient struct {
	mu sync.Mutex

	Releases     map[string]bool
	CreateResult *types.PublishResult
	ExistsErr    error
	AssetErr     error

	Created  []string
	Deleted  []string
	Attached map[string][]string
}

// NewMockHostClient creates a host mock with no existing releases
func NewMockHostClient() *MockHostClient {
	return &MockHostClient{
		Releases: make(map[string]bool),
		Attached: make(map[string][]string),
	}
}

func (m *MockHostClient) ReleaseExists(_ context.Context, tag string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Releases[tag], m.ExistsErr
}

func (m *MockHostClient) CreateRelease(_ context.Context, release interfaces.HostRelease) types.PublishResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateResult != nil {
		return *m.CreateResult
	}

	m.Releases[release.Tag] = true
	m.Created = append(m.Created, release.Tag)
	return types.PublishResult{
		Success: true,
		URL:     "https://github.com/acme/repo/releases/tag/" + release.Tag,
	}
}

func (m *MockHostClient) DeleteRelease(_ context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Releases, tag)
	m.Deleted = append(m.Deleted, tag)
	return nil
}

func (m *MockHostClient) AttachAssets(_ context.Context, tag string, assets []string) error {
	if m.AssetErr != nil {
		return m.AssetErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Attached[tag] = append(m.Attached[tag], assets...)
	return nil
}

// MockSyncer is a scriptable VersionSyncer
type MockSyncer struct {
	SyncResult  types.SyncResult
	SyncErr     error
	VerifyOK    bool
	VerifyErr   error
	SyncCalls   int
	VerifyCalls int
}

// NewMockSyncer creates a syncer mock that updates one file and verifies
func NewMockSyncer() *MockSyncer {
	return &MockSyncer{
		SyncResult: types.SyncResult{FilesUpdated: []string{"package.json"}},
		VerifyOK:   true,
	}
}

func (m *MockSyncer) Sync(_ *types.SubmoduleConfig, _ types.Version) (types.SyncResult, error) {
	m.SyncCalls++
	return m.SyncResult, m.SyncErr
}

func (m *MockSyncer) Verify(_ *types.SubmoduleConfig, _ types.Version) (bool, error) {
	m.VerifyCalls++
	return m.VerifyOK, m.VerifyErr
}

// MockPreflight returns a fixed report
type MockPreflight struct {
	Report   types.PreflightReport
	Calls    int
	LastOpts types.ReleaseOptions
}

// NewMockPreflight creates a preflight mock that passes
func NewMockPreflight() *MockPreflight {
	return &MockPreflight{
		Report: types.PreflightReport{
			Passed: true,
			Checks: []types.StageResult{{Name: "clean-working-tree", Passed: true}},
		},
	}
}

func (m *MockPreflight) RunChecks(_ context.Context, _ *types.SubmoduleConfig, opts types.ReleaseOptions) types.PreflightReport {
	m.Calls++
	m.LastOpts = opts
	return m.Report
}

// MockBuilder is a scriptable BuildCoordinator
type MockBuilder struct {
	TestResult  types.PublishResult
	BuildResult types.PublishResult
	Artifacts   []types.BinaryArtifact
	BinariesErr error

	TestCalls     int
	BuildCalls    int
	BinariesCalls int
}

// NewMockBuilder creates a builder mock whose test and build succeed
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{
		TestResult:  types.PublishResult{Success: true},
		BuildResult: types.PublishResult{Success: true},
	}
}

func (m *MockBuilder) Test(_ context.Context, _ *types.SubmoduleConfig) types.PublishResult {
	m.TestCalls++
	return m.TestResult
}

func (m *MockBuilder) Build(_ context.Context, _ *types.SubmoduleConfig) types.PublishResult {
	m.BuildCalls++
	return m.BuildResult
}

func (m *MockBuilder) BuildBinaries(_ context.Context, _ *types.SubmoduleConfig, _ types.Version) ([]types.BinaryArtifact, error) {
	m.BinariesCalls++
	return m.Artifacts, m.BinariesErr
}

// MockPublisher is a scriptable Publisher
type MockPublisher struct {
	Target        types.PublishTarget
	Exists        bool
	VerifyErr     error
	PublishResult types.PublishResult
	DryRunResult  types.PublishResult
	RetractErr    error

	VerifyCalls  int
	PublishCalls int
	DryRunCalls  int
	Retracted    []string
}

// NewMockPublisher creates a publisher mock that publishes successfully
func NewMockPublisher(target types.PublishTarget) *MockPublisher {
	return &MockPublisher{
		Target:        target,
		PublishResult: types.PublishResult{Success: true, URL: "https://registry.example/" + string(target)},
		DryRunResult:  types.PublishResult{Success: true, Output: "packed locally"},
	}
}

func (m *MockPublisher) Name() types.PublishTarget { return m.Target }

func (m *MockPublisher) Verify(_ context.Context, _ *types.SubmoduleConfig, _ types.Version) (bool, error) {
	m.VerifyCalls++
	return m.Exists, m.VerifyErr
}

func (m *MockPublisher) Publish(_ context.Context, _ *types.SubmoduleConfig, _ types.Version) types.PublishResult {
	m.PublishCalls++
	return m.PublishResult
}

func (m *MockPublisher) DryRun(_ context.Context, _ *types.SubmoduleConfig, _ types.Version) types.PublishResult {
	m.DryRunCalls++
	return m.DryRunResult
}

func (m *MockPublisher) Retract(_ context.Context, _ *types.SubmoduleConfig, version types.Version) error {
	m.Retracted = append(m.Retracted, version.String())
	return m.RetractErr
}

// MockPublisherFactory hands out a fixed publisher list
type MockPublisherFactory struct {
	Publishers []*MockPublisher
}

// NewMockPublisherFactory creates a factory returning the given publishers
func NewMockPublisherFactory(publishers ...*MockPublisher) *MockPublisherFactory {
	return &MockPublisherFactory{Publishers: publishers}
}

func (m *MockPublisherFactory) PublishersFor(_ *types.SubmoduleConfig, _ types.ReleaseOptions) []interfaces.Publisher {
	out := make([]interfaces.Publisher, len(m.Publishers))
	for i, p := range m.Publishers {
		out[i] = p
	}
	return out
}

// MockStateManager keeps run records in memory
type MockStateManager struct {
	mu      sync.Mutex
	records map[string]*state.RunRecord

	InitErr   error
	UpdateErr error
	Locked    bool

	Stages map[string][]types.PipelineStage
}

// NewMockStateManager creates an empty in-memory state manager
func NewMockStateManager() *MockStateManager {
	return &MockStateManager{
		records: make(map[string]*state.RunRecord),
		Stages:  make(map[string][]types.PipelineStage),
	}
}

func (m *MockStateManager) InitializeRun(cfg *types.SubmoduleConfig, version types.Version, opts types.ReleaseOptions) (*state.RunRecord, error) {
	if m.InitErr != nil {
		return nil, m.InitErr
	}
	if m.Locked {
		return nil, fmt.Errorf("%w: %s", state.ErrRunInProgress, cfg.PackageName)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record := &state.RunRecord{
		PackageName: cfg.PackageName,
		Version:     version.String(),
		RunID:       "run_mock",
		Stage:       types.StageInit,
		DryRun:      opts.DryRun,
		ProcessID:   os.Getpid(),
		StartedAt:   time.Now(),
		Heartbeat:   time.Now(),
	}
	m.records[cfg.PackageName] = record
	m.Stages[cfg.PackageName] = append(m.Stages[cfg.PackageName], types.StageInit)
	return record, nil
}

func (m *MockStateManager) ReadRun(packageName string) (*state.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[packageName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", state.ErrRunNotFound, packageName)
	}
	return record, nil
}

func (m *MockStateManager) UpdateStage(packageName string, stage types.PipelineStage) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if record, ok := m.records[packageName]; ok {
		record.Stage = stage
	}
	m.Stages[packageName] = append(m.Stages[packageName], stage)
	return nil
}

func (m *MockStateManager) RecordError(packageName string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record, ok := m.records[packageName]; ok {
		record.LastError = message
	}
	return nil
}

func (m *MockStateManager) FinishRun(packageName string, stage types.PipelineStage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record, ok := m.records[packageName]; ok {
		now := time.Now()
		record.Stage = stage
		record.FinishedAt = &now
		record.ProcessID = 0
	}
	m.Stages[packageName] = append(m.Stages[packageName], stage)
	return nil
}

func (m *MockStateManager) IsLocked(_ string) (bool, error) {
	return m.Locked, nil
}

func (m *MockStateManager) DiscoverRuns() (map[string]*state.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]*state.RunRecord, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out, nil
}

func (m *MockStateManager) Cleanup() error { return nil }

// MockManifestWriter records the manifest it was asked to write
type MockManifestWriter struct {
	Written *manifest.Manifest
	Err     error
}

// NewMockManifestWriter creates a manifest writer mock
func NewMockManifestWriter() *MockManifestWriter {
	return &MockManifestWriter{}
}

func (m *MockManifestWriter) Write(mf *manifest.Manifest) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.Written = mf
	return "/tmp/" + mf.Package + "-" + mf.Version + ".json", nil
}

// MockNotifier records notification events as "kind:pkg:version" strings
type MockNotifier struct {
	mu     sync.Mutex
	Events []string
}

// NewMockNotifier creates a notifier mock
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) record(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

func (m *MockNotifier) NotifyReleaseStart(pkg string, version string) {
	m.record("start:" + pkg + ":" + version)
}

func (m *MockNotifier) NotifyReleaseSuccess(pkg string, version string, _ time.Duration) {
	m.record("success:" + pkg + ":" + version)
}

func (m *MockNotifier) NotifyReleaseFailure(pkg string, version string, _ error) {
	m.record("failure:" + pkg + ":" + version)
}

func (m *MockNotifier) NotifyRollback(pkg string, version string, undone int) {
	m.record(fmt.Sprintf("rollback:%s:%s:%d", pkg, version, undone))
}

// MockJournal buffers transcript writes in memory
type MockJournal struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	Closed bool
}

// NewMockJournal creates a journal mock
func NewMockJournal() *MockJournal {
	return &MockJournal{}
}

func (m *MockJournal) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.Write(p)
}

func (m *MockJournal) Printf(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintf(&m.buf, format+"\n", args...)
}

func (m *MockJournal) Path() string { return "mock.log" }

func (m *MockJournal) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Contents returns everything written so far
func (m *MockJournal) Contents() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.String()
}
