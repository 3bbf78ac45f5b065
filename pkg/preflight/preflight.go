// Package preflight runs the release readiness battery: repository
// hygiene, test and build health, and registry credentials. Checks are
// independent and all applicable checks run to completion, so one
// invocation reports every problem at once.
package preflight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/releasekit/releasekit/pkg/interfaces"
	"github.com/releasekit/releasekit/pkg/logger"
	"github.com/releasekit/releasekit/pkg/publish"
	"github.com/releasekit/releasekit/pkg/runctx"
	"github.com/releasekit/releasekit/pkg/types"
)

// Validator implements interfaces.PreflightRunner
type Validator struct {
	git     interfaces.GitClient
	builder interfaces.BuildCoordinator
	runner  interfaces.CommandRunner
	rc      *runctx.RuntimeContext
	logger  logger.Logger
}

// NewValidator creates a preflight validator
func NewValidator(git interfaces.GitClient, builder interfaces.BuildCoordinator, runner interfaces.CommandRunner, rc *runctx.RuntimeContext, log logger.Logger) *Validator {
	return &Validator{
		git:     git,
		builder: builder,
		runner:  runner,
		rc:      rc,
		logger:  log,
	}
}

// RunChecks executes every check applicable to this run, in a fixed order,
// without short-circuiting. Skip options change which checks are included,
// never how an included check passes or fails. Credential checks are
// excluded entirely in dry-run since no remote operation will happen.
func (v *Validator) RunChecks(ctx context.Context, cfg *types.SubmoduleConfig, opts types.ReleaseOptions) types.PreflightReport {
	if v.logger != nil {
		v.logger.Info("Running preflight checks", logger.WithField("package", cfg.PackageName))
	}

	checks := []types.StageResult{
		v.checkCleanTree(ctx),
		v.checkReleaseBranch(ctx, cfg),
		v.checkRemoteSync(ctx),
	}

	if !opts.SkipTests {
		checks = append(checks, v.checkTests(ctx, cfg))
	}
	if !opts.SkipBuild {
		checks = append(checks, v.checkBuild(ctx, cfg))
	}

	if !opts.DryRun {
		artifacts := cfg.ArtifactSet()
		if artifacts.Npm {
			checks = append(checks, v.checkCredentials(ctx, "npm-credentials", "npm whoami", "npm"))
		}
		checks = append(checks, v.checkCredentials(ctx, "github-credentials", "gh auth status", "github"))
		if opts.IncludeDocker && artifacts.Docker {
			checks = append(checks, v.checkCredentials(ctx, "docker-credentials", "docker info", "docker"))
		}
	}

	report := types.PreflightReport{Passed: true, Checks: checks}
	for _, check := range checks {
		if !check.Passed {
			report.Passed = false
			if v.logger != nil {
				v.logger.Warn("Preflight check failed",
					logger.WithField("check", check.Name),
					logger.WithField("message", check.Message))
			}
		}
	}

	return report
}

func (v *Validator) checkCleanTree(ctx context.Context) types.StageResult {
	result := types.StageResult{Name: "clean-working-tree"}

	clean, err := v.git.IsClean(ctx)
	if err != nil {
		result.Error = err.Error()
		result.Message = "could not inspect working tree"
		return result
	}
	if !clean {
		result.Message = "working tree has uncommitted changes"
		return result
	}

	result.Passed = true
	result.Message = "working tree clean"
	return result
}

func (v *Validator) checkReleaseBranch(ctx context.Context, cfg *types.SubmoduleConfig) types.StageResult {
	result := types.StageResult{Name: "release-branch"}

	branch, err := v.git.CurrentBranch(ctx)
	if err != nil {
		result.Error = err.Error()
		result.Message = "could not determine current branch"
		return result
	}

	allowed := cfg.AllowedBranches()
	for _, candidate := range allowed {
		if branch == candidate {
			result.Passed = true
			result.Message = fmt.Sprintf("on release branch %s", branch)
			return result
		}
	}

	result.Message = fmt.Sprintf("on %s, releases start from %s", branch, strings.Join(allowed, " or "))
	return result
}

func (v *Validator) checkRemoteSync(ctx context.Context) types.StageResult {
	result := types.StageResult{Name: "remote-sync"}

	ahead, behind, err := v.git.RemoteStatus(ctx)
	if err != nil {
		result.Error = err.Error()
		result.Message = "could not compare against upstream"
		return result
	}
	if ahead != 0 || behind != 0 {
		result.Message = fmt.Sprintf("branch is %d ahead, %d behind upstream", ahead, behind)
		return result
	}

	result.Passed = true
	result.Message = "in sync with upstream"
	return result
}

func (v *Validator) checkTests(ctx context.Context, cfg *types.SubmoduleConfig) types.StageResult {
	result := types.StageResult{Name: "tests"}
	if cfg.TestCommand == "" {
		result.Passed = true
		result.Message = "no test command configured"
		return result
	}

	start := time.Now()
	outcome := v.builder.Test(ctx, cfg)
	result.Duration = time.Since(start)
	result.Passed = outcome.Success
	result.Output = outcome.Output
	result.Error = outcome.Error

	if outcome.Success {
		result.Message = "tests passed"
	} else {
		result.Message = "tests failed"
	}
	return result
}

func (v *Validator) checkBuild(ctx context.Context, cfg *types.SubmoduleConfig) types.StageResult {
	result := types.StageResult{Name: "build"}
	if cfg.BuildCommand == "" {
		result.Passed = true
		result.Message = "no build command configured"
		return result
	}

	start := time.Now()
	outcome := v.builder.Build(ctx, cfg)
	result.Duration = time.Since(start)
	result.Passed = outcome.Success
	result.Output = outcome.Output
	result.Error = outcome.Error

	if outcome.Success {
		result.Message = "build succeeded"
	} else {
		result.Message = "build failed"
	}
	return result
}

func (v *Validator) checkCredentials(ctx context.Context, name, command, tool string) types.StageResult {
	result := types.StageResult{Name: name}

	start := time.Now()
	outcome, err := v.runner.Run(ctx, command, v.rc.ProjectRoot())
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = err.Error()
		result.Message = fmt.Sprintf("could not run %q", command)
		return result
	}
	if outcome.ExitCode != 0 {
		result.Output = outcome.CombinedOutput()
		result.Message = fmt.Sprintf("not authenticated, run %q first", publish.RemediationHint(tool))
		return result
	}

	result.Passed = true
	result.Message = "authenticated"
	return result
}
