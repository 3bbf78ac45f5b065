// Package pipeline drives the release state machine: it sequences
// preflight, version sync, build, publish, tag, host release, and
// verification, records every stage outcome, and unwinds confirmed
// side effects in LIFO order when a stage fails.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/releasekit/releasekit/pkg/gitops"
	"github.com/releasekit/releasekit/pkg/interfaces"
	"github.com/releasekit/releasekit/pkg/logger"
	"github.com/releasekit/releasekit/pkg/manifest"
	"github.com/releasekit/releasekit/pkg/publish"
	"github.com/releasekit/releasekit/pkg/runctx"
	"github.com/releasekit/releasekit/pkg/types"
)

// Orchestrator owns one release run. It is single-use: construct, Run once,
// inspect, discard.
type Orchestrator struct {
	cfg     *types.SubmoduleConfig
	version types.Version
	opts    types.ReleaseOptions
	rc      *runctx.RuntimeContext
	deps    interfaces.ReleaseDependencies
	logger  logger.Logger

	state      *types.ReleaseState
	publishers []interfaces.Publisher
	tag        string

	syncedPaths  []string
	committed    bool
	artifacts    []types.BinaryArtifact
	published    map[string]string
	verification []types.VerificationResult
	changelog    string

	undone       []types.RollbackAction
	rollbackErrs []string
	manifestPath string
}

// NewOrchestrator creates an orchestrator for one package release
func NewOrchestrator(cfg *types.SubmoduleConfig, version types.Version, opts types.ReleaseOptions, rc *runctx.RuntimeContext, deps interfaces.ReleaseDependencies, log logger.Logger) *Orchestrator {
	if log != nil {
		log = log.WithPackage(cfg.PackageName)
	}
	return &Orchestrator{
		cfg:       cfg,
		version:   version,
		opts:      opts,
		rc:        rc,
		deps:      deps,
		logger:    log,
		published: make(map[string]string),
	}
}

// State returns the accumulated release state. Valid after Run.
func (o *Orchestrator) State() *types.ReleaseState { return o.state }

// ManifestPath returns where the release manifest was written, or ""
func (o *Orchestrator) ManifestPath() string { return o.manifestPath }

// Run executes the pipeline to a terminal state. On any fatal stage error
// the rollback stack is unwound before Run returns; the returned error is
// the original stage failure, never a rollback error. An interrupt
// (context cancellation) aborts without rollback so a re-invocation can
// resume safely.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.state = types.NewReleaseState(o.cfg.PackageName, o.version)
	o.publishers = o.deps.Publishers.PublishersFor(o.cfg, o.opts)

	if _, err := o.deps.StateManager.InitializeRun(o.cfg, o.version, o.opts); err != nil {
		return err
	}
	defer o.deps.StateManager.Cleanup()

	if hb, ok := o.deps.StateManager.(interface {
		StartHeartbeat(context.Context)
		StopHeartbeat()
	}); ok {
		hb.StartHeartbeat(ctx)
		defer hb.StopHeartbeat()
	}

	mode := ""
	if o.opts.DryRun {
		mode = " (dry run)"
	}
	o.deps.Journal.Printf("=== release %s v%s%s [%s] ===", o.cfg.PackageName, o.version, mode, o.rc.RunID())
	o.deps.Notifier.NotifyReleaseStart(o.cfg.PackageName, o.version.String())

	err := o.execute(ctx)
	if err == nil {
		o.finish(types.StageDone)
		o.deps.Notifier.NotifyReleaseSuccess(o.cfg.PackageName, o.version.String(), o.state.Elapsed())
		if o.logger != nil {
			o.logger.Success(fmt.Sprintf("Released v%s in %s", o.version, o.state.Elapsed().Round(time.Millisecond)))
		}
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		o.deps.Journal.Printf("interrupted at stage %s; nothing rolled back, re-invoke to resume", o.state.Stage)
		if o.logger != nil {
			o.logger.Warn("Release interrupted; re-invoke to resume",
				logger.WithField("stage", o.state.Stage))
		}
		o.finish(types.StageFailed)
		return err
	}

	o.deps.Journal.Printf("FATAL at stage %s: %v", o.state.Stage, err)
	if recErr := o.deps.StateManager.RecordError(o.cfg.PackageName, err.Error()); recErr != nil && o.logger != nil {
		o.logger.Debug("Could not record failure", logger.WithField("error", recErr))
	}

	terminal := types.StageFailed
	if o.rollbackAll(context.WithoutCancel(ctx)) > 0 {
		terminal = types.StageRolledBack
		o.deps.Notifier.NotifyRollback(o.cfg.PackageName, o.version.String(), len(o.undone))
	} else {
		o.deps.Notifier.NotifyReleaseFailure(o.cfg.PackageName, o.version.String(), err)
	}

	o.finish(terminal)
	return err
}

// execute walks the linear stage sequence. Each stage starts only after
// the previous one succeeded.
func (o *Orchestrator) execute(ctx context.Context) error {
	stages := []func(context.Context) error{
		o.runPreflight,
		o.runVersionSync,
		o.runBuild,
		o.runPublish,
	}

	if !o.opts.DryRun {
		stages = append(stages,
			o.commitVersionBump,
			o.runTag,
			o.runHostRelease,
		)
		if !o.opts.SkipVerify {
			stages = append(stages, o.runVerify)
		}
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := stage(ctx); err != nil {
			return err
		}
	}

	if o.opts.DryRun {
		o.finishDryRun(ctx)
	}

	return nil
}

func (o *Orchestrator) runPreflight(ctx context.Context) error {
	o.transition(types.StagePreflight)

	report := o.deps.Preflight.RunChecks(ctx, o.cfg, o.opts)
	for _, check := range report.Checks {
		o.state.Record(check)
		status := "ok"
		if !check.Passed {
			status = "FAILED"
		}
		o.deps.Journal.Printf("  check %-22s %s  %s", check.Name, status, check.Message)
	}

	if !report.Passed {
		failed := 0
		for _, check := range report.Checks {
			if !check.Passed {
				failed++
			}
		}
		return stageError(types.StagePreflight, ErrPreflightFailed, "%d of %d checks failed", failed, len(report.Checks))
	}

	return nil
}

func (o *Orchestrator) runVersionSync(ctx context.Context) error {
	o.transition(types.StageVersionSync)
	start := time.Now()

	result, err := o.deps.Syncer.Sync(o.cfg, o.version)
	if err != nil {
		return stageError(types.StageVersionSync, err, "version sync rejected: %v", err)
	}

	o.syncedPaths = result.FilesUpdated
	for _, path := range result.FilesUpdated {
		o.deps.Journal.Printf("  synced %s", path)
	}

	if result.HasErrors() {
		o.record(types.StageResult{
			Name:     "version-sync",
			Message:  fmt.Sprintf("%d file(s) failed", len(result.Errors)),
			Error:    strings.Join(result.Errors, "; "),
			Duration: time.Since(start),
		})
		return stageError(types.StageVersionSync, nil, "sync files missing or unwritable: %s", strings.Join(result.Errors, "; "))
	}

	ok, err := o.deps.Syncer.Verify(o.cfg, o.version)
	if err != nil {
		return stageError(types.StageVersionSync, err, "sync verification errored: %v", err)
	}
	if !ok {
		return stageError(types.StageVersionSync, nil, "synced files do not all contain v%s", o.version)
	}

	o.record(types.StageResult{
		Name:     "version-sync",
		Passed:   true,
		Message:  fmt.Sprintf("%d file(s) updated", len(result.FilesUpdated)),
		Duration: time.Since(start),
	})
	return nil
}

func (o *Orchestrator) runBuild(ctx context.Context) error {
	o.transition(types.StageBuild)

	if o.opts.SkipBuild {
		o.deps.Journal.Printf("  build command skipped by --skip-build")
	} else {
		start := time.Now()
		result := o.deps.Builder.Build(ctx, o.cfg)
		o.record(types.StageResult{
			Name:     "build",
			Passed:   result.Success,
			Message:  buildMessage(result),
			Output:   result.Output,
			Error:    result.Error,
			Duration: time.Since(start),
		})
		if !result.Success {
			return stageError(types.StageBuild, resultErr(ctx, result), "build command failed: %s", result.Error)
		}
	}

	if o.cfg.BuildBinaries {
		start := time.Now()
		artifacts, err := o.deps.Builder.BuildBinaries(ctx, o.cfg, o.version)
		if err != nil {
			o.record(types.StageResult{
				Name:     "binary-build",
				Error:    err.Error(),
				Message:  "binary matrix failed",
				Duration: time.Since(start),
			})
			return stageError(types.StageBuild, err, "binary build failed: %v", err)
		}

		o.artifacts = artifacts
		o.record(types.StageResult{
			Name:     "binary-build",
			Passed:   true,
			Message:  fmt.Sprintf("%d platform artifact(s)", len(artifacts)),
			Duration: time.Since(start),
		})
		for _, artifact := range artifacts {
			o.deps.Journal.Printf("  built %s (%s)", artifact.Path, artifact.Checksum[:12])
		}
	}

	return nil
}

func (o *Orchestrator) runPublish(ctx context.Context) error {
	o.transition(types.StagePublish)

	for _, p := range o.publishers {
		name := "publish-" + string(p.Name())
		start := time.Now()

		exists, err := p.Verify(ctx, o.cfg, o.version)
		if err != nil {
			return stageError(types.StagePublish, err, "%s: registry check failed: %v", p.Name(), err)
		}
		if exists {
			o.record(types.StageResult{
				Name:     name,
				Passed:   true,
				Message:  fmt.Sprintf("v%s already published, skipping", o.version),
				Duration: time.Since(start),
			})
			o.deps.Journal.Printf("  %s: v%s already present, not re-publishing", p.Name(), o.version)
			continue
		}

		var result types.PublishResult
		if o.opts.DryRun {
			result = p.DryRun(ctx, o.cfg, o.version)
		} else {
			result = p.Publish(ctx, o.cfg, o.version)
		}

		o.record(types.StageResult{
			Name:     name,
			Passed:   result.Success,
			Message:  publishMessage(result, o.opts.DryRun),
			Output:   result.Output,
			Error:    result.Error,
			Duration: time.Since(start),
		})

		if !result.Success {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			perr := publish.NewError(p.Name(), result.Output+"\n"+result.Error)
			return &StageError{
				Stage:   types.StagePublish,
				Message: fmt.Sprintf("%s publish failed (%s)", p.Name(), perr.Class),
				Hint:    perr.Hint,
				Err:     perr,
			}
		}

		if result.URL != "" {
			o.published[string(p.Name())] = result.URL
		}
		if !o.opts.DryRun {
			// Only effects this run created get a rollback entry
			o.state.Push(types.RegistryPublished(p.Name(), o.version.String()))
		}
	}

	return nil
}

// commitVersionBump commits and pushes the synced files. Deferred until
// after publish so a failed publish leaves nothing to revert in history.
func (o *Orchestrator) commitVersionBump(ctx context.Context) error {
	if len(o.syncedPaths) == 0 {
		o.deps.Journal.Printf("  no sync changes, skipping version commit")
		return nil
	}

	start := time.Now()
	message := fmt.Sprintf("chore(release): %s v%s", o.cfg.PackageName, o.version)

	hash, err := o.deps.Git.CommitAll(ctx, message, o.syncedPaths)
	if err != nil {
		return stageError(types.StagePublish, err, "could not commit version bump: %v", err)
	}
	o.committed = true
	o.state.Push(types.CommitMade(hash, false))
	o.deps.Journal.Printf("  committed version bump %s", hash)

	if err := o.deps.Git.PushBranch(ctx); err != nil {
		o.record(types.StageResult{
			Name:     "version-commit",
			Error:    err.Error(),
			Message:  "commit created but push failed",
			Duration: time.Since(start),
		})
		return stageError(types.StagePublish, err, "could not push version bump: %v", err)
	}
	o.state.Rollback[len(o.state.Rollback)-1].Pushed = true

	o.record(types.StageResult{
		Name:     "version-commit",
		Passed:   true,
		Message:  fmt.Sprintf("committed and pushed %s", hash),
		Duration: time.Since(start),
	})
	return nil
}

func (o *Orchestrator) runTag(ctx context.Context) error {
	o.transition(types.StageTag)
	start := time.Now()

	o.tag = gitops.FormatTag(o.cfg.PackageName, o.version)

	if err := o.deps.Git.CreateTag(ctx, o.tag, fmt.Sprintf("Release %s v%s", o.cfg.Display(), o.version)); err != nil {
		o.record(types.StageResult{Name: "tag", Error: err.Error(), Message: "tag creation failed", Duration: time.Since(start)})
		return stageError(types.StageTag, err, "could not create tag %s: %v", o.tag, err)
	}
	o.state.Push(types.TagCreated(o.tag))

	if err := o.deps.Git.PushTag(ctx, o.tag); err != nil {
		o.record(types.StageResult{Name: "tag", Error: err.Error(), Message: "tag push failed", Duration: time.Since(start)})
		return stageError(types.StageTag, err, "could not push tag %s: %v", o.tag, err)
	}

	o.record(types.StageResult{
		Name:     "tag",
		Passed:   true,
		Message:  fmt.Sprintf("created and pushed %s", o.tag),
		Duration: time.Since(start),
	})
	return nil
}

func (o *Orchestrator) runHostRelease(ctx context.Context) error {
	o.transition(types.StageHostRelease)
	start := time.Now()

	exists, err := o.deps.Host.ReleaseExists(ctx, o.tag)
	if err != nil {
		return stageError(types.StageHostRelease, err, "could not check for release %s: %v", o.tag, err)
	}

	if !exists {
		result := o.deps.Host.CreateRelease(ctx, interfaces.HostRelease{
			Tag:        o.tag,
			Title:      fmt.Sprintf("%s v%s", o.cfg.Display(), o.version),
			Notes:      o.releaseNotes(),
			Prerelease: o.version.IsPrerelease(),
		})
		if !result.Success {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			o.record(types.StageResult{
				Name: "host-release", Error: result.Error, Output: result.Output,
				Message: "release creation failed", Duration: time.Since(start),
			})
			class := publish.Classify(result.Output + "\n" + result.Error)
			hint := ""
			if class == types.FailureAuthRequired {
				hint = publish.RemediationHint("github")
			}
			return &StageError{
				Stage:   types.StageHostRelease,
				Message: fmt.Sprintf("release creation failed (%s): %s", class, result.Error),
				Hint:    hint,
			}
		}

		o.state.Push(types.ReleaseCreated(o.tag))
		if result.URL != "" {
			o.published["github"] = result.URL
		}
	} else {
		o.deps.Journal.Printf("  release %s already exists, attaching assets only", o.tag)
	}

	if len(o.artifacts) > 0 {
		assets := make([]string, 0, len(o.artifacts))
		for _, artifact := range o.artifacts {
			assets = append(assets, artifact.Path)
		}
		if err := o.deps.Host.AttachAssets(ctx, o.tag, assets); err != nil {
			return stageError(types.StageHostRelease, err, "could not attach %d asset(s): %v", len(assets), err)
		}
	}

	o.record(types.StageResult{
		Name:     "host-release",
		Passed:   true,
		Message:  fmt.Sprintf("release %s with %d asset(s)", o.tag, len(o.artifacts)),
		Duration: time.Since(start),
	})
	return nil
}

// runVerify probes each registry for the published version. Failures are
// recorded as warnings, never as fatal errors: a fresh artifact may still
// be propagating.
func (o *Orchestrator) runVerify(ctx context.Context) error {
	o.transition(types.StageVerify)

	for _, p := range o.publishers {
		ok, err := p.Verify(ctx, o.cfg, o.version)

		result := types.VerificationResult{Target: p.Name(), Passed: ok && err == nil}
		switch {
		case err != nil:
			result.Message = err.Error()
		case !ok:
			result.Message = "version not yet visible, may still be propagating"
		default:
			result.Message = "artifact reachable"
		}
		o.verification = append(o.verification, result)

		o.deps.Journal.Printf("  verify %-10s %v  %s", p.Name(), result.Passed, result.Message)
		if !result.Passed && o.logger != nil {
			o.logger.Warn("Post-publish verification failed",
				logger.WithField("target", p.Name()),
				logger.WithField("message", result.Message))
		}
	}

	return nil
}

// finishDryRun restores the working tree so a dry run leaves no residue
func (o *Orchestrator) finishDryRun(ctx context.Context) {
	o.deps.Journal.Printf("dry run: skipping commit, tag, and host release")

	if len(o.syncedPaths) > 0 {
		if err := o.deps.Git.CheckoutPaths(ctx, o.syncedPaths); err != nil {
			if o.logger != nil {
				o.logger.Warn("Could not restore synced files after dry run",
					logger.WithField("error", err))
			}
		} else {
			o.deps.Journal.Printf("restored %d synced file(s)", len(o.syncedPaths))
		}
	}
}

func (o *Orchestrator) transition(stage types.PipelineStage) {
	o.state.Stage = stage
	o.deps.Journal.Printf("stage %s", stage)

	if err := o.deps.StateManager.UpdateStage(o.cfg.PackageName, stage); err != nil && o.logger != nil {
		o.logger.Debug("Could not persist stage transition", logger.WithField("error", err))
	}
	if o.logger != nil {
		o.logger.Info("Stage "+string(stage), logger.WithField("version", o.version.String()))
	}
}

func (o *Orchestrator) record(result types.StageResult) {
	o.state.Record(result)
}

// finish stamps the terminal stage, releases the run lock, and writes the
// release manifest. Manifest problems are logged, never fatal.
func (o *Orchestrator) finish(terminal types.PipelineStage) {
	o.state.Stage = terminal
	o.state.FinishedAt = time.Now()

	if err := o.deps.StateManager.FinishRun(o.cfg.PackageName, terminal); err != nil && o.logger != nil {
		o.logger.Debug("Could not finalize run record", logger.WithField("error", err))
	}

	checksums := make(map[string]string, len(o.artifacts))
	for _, artifact := range o.artifacts {
		checksums[artifact.Platform] = artifact.Checksum
	}

	path, err := o.deps.Manifest.Write(&manifest.Manifest{
		Package:             o.cfg.PackageName,
		Version:             o.version.String(),
		Tag:                 o.tag,
		RunID:               o.rc.RunID(),
		State:               terminal,
		DryRun:              o.opts.DryRun,
		StartedAt:           o.state.StartedAt,
		FinishedAt:          o.state.FinishedAt,
		PublishedURLs:       o.published,
		VerificationResults: o.verification,
		Checksums:           checksums,
		ChangelogExcerpt:    o.changelog,
		Stages:              o.state.Stages,
		Rollback:            o.undone,
		RollbackErrors:      o.rollbackErrs,
	})
	if err != nil {
		if o.logger != nil {
			o.logger.Warn("Could not write release manifest", logger.WithField("error", err))
		}
		return
	}

	o.manifestPath = path
	o.deps.Journal.Printf("manifest written to %s", path)
	o.deps.Journal.Printf("=== %s ===", terminal)
}

// releaseNotes renders the configured release template, filling the
// {package}, {version}, {tag}, and {changelog} tokens
func (o *Orchestrator) releaseNotes() string {
	template := o.cfg.GithubReleaseTemplate
	if template == "" {
		template = "## {package} v{version}\n\n{changelog}"
	}

	o.changelog = o.changelogExcerpt()

	notes := strings.ReplaceAll(template, "{package}", o.cfg.Display())
	notes = strings.ReplaceAll(notes, "{version}", o.version.String())
	notes = strings.ReplaceAll(notes, "{tag}", o.tag)
	notes = strings.ReplaceAll(notes, "{changelog}", o.changelog)
	return strings.TrimSpace(notes)
}

func (o *Orchestrator) changelogExcerpt() string {
	candidates := []string{
		o.rc.Path(o.cfg.PackageDir, "CHANGELOG.md"),
		o.rc.Path("CHANGELOG.md"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		excerpt, err := manifest.ExtractChangelog(path, o.version.String())
		if err != nil && o.logger != nil {
			o.logger.Debug("Could not read changelog", logger.WithField("path", path))
			continue
		}
		if excerpt != "" {
			return excerpt
		}
	}

	return ""
}

func buildMessage(result types.PublishResult) string {
	if result.Success {
		return "build succeeded"
	}
	return "build failed"
}

func publishMessage(result types.PublishResult, dryRun bool) string {
	switch {
	case !result.Success:
		return "publish failed"
	case dryRun:
		return "packaged locally (dry run)"
	case result.URL != "":
		return result.URL
	default:
		return "published"
	}
}

// resultErr surfaces context cancellation hidden inside a command result
func resultErr(ctx context.Context, result types.PublishResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if result.Error != "" {
		return errors.New(result.Error)
	}
	return nil
}
