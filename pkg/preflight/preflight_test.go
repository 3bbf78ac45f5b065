package preflight_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/releasekit/releasekit/pkg/mocks"
	"github.com/releasekit/releasekit/pkg/preflight"
	"github.com/releasekit/releasekit/pkg/runctx"
	"github.com/releasekit/releasekit/pkg/types"
)

type fixture struct {
	git     *mocks.MockGitClient
	builder *mocks.MockBuilder
	runner  *mocks.MockCommandRunner
	v       *preflight.Validator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	git := mocks.NewMockGitClient()
	builder := mocks.NewMockBuilder()
	runner := mocks.NewMockCommandRunner()
	rc := runctx.NewWithEnv(t.TempDir(), nil)

	return &fixture{
		git:     git,
		builder: builder,
		runner:  runner,
		v:       preflight.NewValidator(git, builder, runner, rc, nil),
	}
}

func testConfig() *types.SubmoduleConfig {
	return &types.SubmoduleConfig{
		PackageName:  "mcp-test",
		TestCommand:  "nx test mcp-test",
		BuildCommand: "nx build mcp-test",
	}
}

func checkByName(t *testing.T, report types.PreflightReport, name string) types.StageResult {
	t.Helper()

	for _, check := range report.Checks {
		if check.Name == name {
			return check
		}
	}
	t.Fatalf("check %s not in report: %+v", name, checkNames(report))
	return types.StageResult{}
}

func hasCheck(report types.PreflightReport, name string) bool {
	for _, check := range report.Checks {
		if check.Name == name {
			return true
		}
	}
	return false
}

func checkNames(report types.PreflightReport) []string {
	names := make([]string, len(report.Checks))
	for i, check := range report.Checks {
		names[i] = check.Name
	}
	return names
}

func TestRunChecks_AllPass(t *testing.T) {
	f := newFixture(t)

	report := f.v.RunChecks(context.Background(), testConfig(), types.ReleaseOptions{})

	if !report.Passed {
		t.Fatalf("expected pass, got failures: %+v", report.Checks)
	}

	want := []string{
		"clean-working-tree",
		"release-branch",
		"remote-sync",
		"tests",
		"build",
		"npm-credentials",
		"github-credentials",
	}
	got := checkNames(report)
	if len(got) != len(want) {
		t.Fatalf("checks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("check %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRunChecks_NeverShortCircuits(t *testing.T) {
	f := newFixture(t)
	f.git.Clean = false
	f.builder.TestResult = types.PublishResult{Success: false, Error: "2 tests failed"}
	f.runner.On("npm whoami", types.CommandResult{Stderr: "npm ERR! need auth", ExitCode: 1}, nil)

	report := f.v.RunChecks(context.Background(), testConfig(), types.ReleaseOptions{})

	if report.Passed {
		t.Fatal("expected failure")
	}

	// Every failure must be visible in a single invocation.
	if checkByName(t, report, "clean-working-tree").Passed {
		t.Error("dirty tree must fail")
	}
	if checkByName(t, report, "tests").Passed {
		t.Error("failing tests must fail")
	}
	if checkByName(t, report, "npm-credentials").Passed {
		t.Error("missing credentials must fail")
	}
	if !checkByName(t, report, "build").Passed {
		t.Error("build check should still have run and passed")
	}
}

func TestRunChecks_BranchValidation(t *testing.T) {
	tests := []struct {
		name     string
		branch   string
		allowed  []string
		wantPass bool
	}{
		{name: "main allowed by default", branch: "main", wantPass: true},
		{name: "master allowed by default", branch: "master", wantPass: true},
		{name: "feature branch rejected", branch: "feat/new-parser", wantPass: false},
		{name: "custom release branch", branch: "release/2.x", allowed: []string{"release/2.x"}, wantPass: true},
		{name: "main rejected when overridden", branch: "main", allowed: []string{"release/2.x"}, wantPass: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.git.Branch = tt.branch

			cfg := testConfig()
			cfg.ReleaseBranches = tt.allowed

			report := f.v.RunChecks(context.Background(), cfg, types.ReleaseOptions{DryRun: true})
			check := checkByName(t, report, "release-branch")
			if check.Passed != tt.wantPass {
				t.Errorf("passed = %v, want %v (%s)", check.Passed, tt.wantPass, check.Message)
			}
		})
	}
}

func TestRunChecks_RemoteSync(t *testing.T) {
	f := newFixture(t)
	f.git.Ahead = 2
	f.git.Behind = 1

	report := f.v.RunChecks(context.Background(), testConfig(), types.ReleaseOptions{DryRun: true})

	check := checkByName(t, report, "remote-sync")
	if check.Passed {
		t.Error("diverged branch must fail")
	}
	if !strings.Contains(check.Message, "2 ahead") || !strings.Contains(check.Message, "1 behind") {
		t.Errorf("message should name the divergence: %q", check.Message)
	}
}

func TestRunChecks_SkipOptionsExcludeChecks(t *testing.T) {
	f := newFixture(t)

	report := f.v.RunChecks(context.Background(), testConfig(), types.ReleaseOptions{
		SkipTests: true,
		SkipBuild: true,
	})

	if hasCheck(report, "tests") {
		t.Error("skip-tests must exclude the tests check, not fake a pass")
	}
	if hasCheck(report, "build") {
		t.Error("skip-build must exclude the build check")
	}
	if f.builder.TestCalls != 0 || f.builder.BuildCalls != 0 {
		t.Error("skipped checks must not invoke the builder")
	}
	if !report.Passed {
		t.Error("remaining checks all pass, report must pass")
	}
}

func TestRunChecks_DryRunSkipsCredentials(t *testing.T) {
	f := newFixture(t)

	report := f.v.RunChecks(context.Background(), testConfig(), types.ReleaseOptions{DryRun: true})

	for _, name := range []string{"npm-credentials", "github-credentials", "docker-credentials"} {
		if hasCheck(report, name) {
			t.Errorf("dry run must exclude %s", name)
		}
	}
	if f.runner.Called("npm whoami") || f.runner.Called("gh auth status") {
		t.Error("dry run must not shell out for credentials")
	}
}

func TestRunChecks_DockerCredentialsNeedFlagAndOption(t *testing.T) {
	cfg := testConfig()
	cfg.Artifacts = &types.ArtifactFlags{Npm: true, Docker: true}

	tests := []struct {
		name string
		opts types.ReleaseOptions
		want bool
	}{
		{name: "config flag alone", opts: types.ReleaseOptions{}, want: false},
		{name: "flag and option", opts: types.ReleaseOptions{IncludeDocker: true}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			report := f.v.RunChecks(context.Background(), cfg, tt.opts)
			if hasCheck(report, "docker-credentials") != tt.want {
				t.Errorf("docker-credentials included = %v, want %v", !tt.want, tt.want)
			}
		})
	}
}

func TestRunChecks_CredentialFailureCarriesHint(t *testing.T) {
	f := newFixture(t)
	f.runner.On("gh auth status", types.CommandResult{
		Stderr:   "You are not logged into any GitHub hosts.",
		ExitCode: 1,
	}, nil)

	report := f.v.RunChecks(context.Background(), testConfig(), types.ReleaseOptions{})

	check := checkByName(t, report, "github-credentials")
	if check.Passed {
		t.Fatal("expected credential failure")
	}
	if !strings.Contains(check.Message, "gh auth login") {
		t.Errorf("message should carry the login hint: %q", check.Message)
	}
}

func TestRunChecks_GitErrorsSurfaceInResults(t *testing.T) {
	f := newFixture(t)
	f.git.CleanErr = fmt.Errorf("not a git repository")

	report := f.v.RunChecks(context.Background(), testConfig(), types.ReleaseOptions{DryRun: true})

	check := checkByName(t, report, "clean-working-tree")
	if check.Passed {
		t.Fatal("git errors must fail the check")
	}
	if !strings.Contains(check.Error, "not a git repository") {
		t.Errorf("error not propagated: %q", check.Error)
	}
}

func TestRunChecks_EmptyCommandsPass(t *testing.T) {
	f := newFixture(t)

	cfg := testConfig()
	cfg.TestCommand = ""
	cfg.BuildCommand = ""

	report := f.v.RunChecks(context.Background(), cfg, types.ReleaseOptions{DryRun: true})

	if !checkByName(t, report, "tests").Passed {
		t.Error("missing test command should pass with a note")
	}
	if !checkByName(t, report, "build").Passed {
		t.Error("missing build command should pass with a note")
	}
	if f.builder.TestCalls != 0 || f.builder.BuildCalls != 0 {
		t.Error("builder must not run empty commands")
	}
}
