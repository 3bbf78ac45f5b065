// Package types provides core types and configurations for Releasekit
package types

import (
	"time"
)

// PipelineStage identifies one state of the release pipeline state machine
type PipelineStage string

const (
	StageInit        PipelineStage = "init"
	StagePreflight   PipelineStage = "preflight"
	StageVersionSync PipelineStage = "version-sync"
	StageBuild       PipelineStage = "build"
	StagePublish     PipelineStage = "publish"
	StageTag         PipelineStage = "tag"
	StageHostRelease PipelineStage = "host-release"
	StageVerify      PipelineStage = "verify"
	StageDone        PipelineStage = "done"
	StageFailed      PipelineStage = "failed"
	StageRolledBack  PipelineStage = "rolled-back"
)

// PublishTarget identifies an artifact destination
type PublishTarget string

const (
	PublishTargetNpm      PublishTarget = "npm"
	PublishTargetDocker   PublishTarget = "docker"
	PublishTargetVSCode   PublishTarget = "vscode"
	PublishTargetBinaries PublishTarget = "binaries"
)

// FailureClass classifies a failed external operation
type FailureClass string

const (
	FailureAuthRequired FailureClass = "auth-required"
	FailureGeneric      FailureClass = "generic"
)

// RollbackActionKind tags a reversible-action descriptor
type RollbackActionKind string

const (
	ActionTagCreated        RollbackActionKind = "tag-created"
	ActionReleaseCreated    RollbackActionKind = "release-created"
	ActionRegistryPublished RollbackActionKind = "registry-published"
	ActionCommitMade        RollbackActionKind = "commit-made"
)

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Repository identifies the hosting repository for a package
type Repository struct {
	Owner string `json:"owner" yaml:"owner"`
	Name  string `json:"name" yaml:"name"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
}

// VersionSyncFile declares one file whose content carries the package
// version. Pattern is a regular expression matched against the file content;
// Replacement is a template in which {version} resolves to the target
// version and $1-style references expand capture groups.
type VersionSyncFile struct {
	Path        string `json:"path" yaml:"path"`
	Pattern     string `json:"pattern" yaml:"pattern"`
	Replacement string `json:"replacement" yaml:"replacement"`
	Optional    *bool  `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// IsOptional reports whether a missing file is tolerated for this entry
func (f VersionSyncFile) IsOptional() bool {
	return f.Optional != nil && *f.Optional
}

// ArtifactFlags selects which publish targets a package releases to
type ArtifactFlags struct {
	Npm      bool `json:"npm" yaml:"npm"`
	Docker   bool `json:"docker" yaml:"docker"`
	VSCode   bool `json:"vscode" yaml:"vscode"`
	Binaries bool `json:"binaries" yaml:"binaries"`
}

// SubmoduleConfig is the release configuration for one package. It is
// immutable once resolved and owned by the orchestrator for the duration of
// a single release run.
type SubmoduleConfig struct {
	PackageName           string            `json:"packageName" yaml:"packageName"`
	DisplayName           string            `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Repository            *Repository       `json:"repository,omitempty" yaml:"repository,omitempty"`
	PackageDir            string            `json:"packageDir" yaml:"packageDir"`
	NpmPackageName        string            `json:"npmPackageName" yaml:"npmPackageName"`
	DockerImageName       string            `json:"dockerImageName" yaml:"dockerImageName"`
	VSCodeExtensionName   string            `json:"vscodeExtensionName" yaml:"vscodeExtensionName"`
	VSCodeExtensionDir    string            `json:"vscodeExtensionDir" yaml:"vscodeExtensionDir"`
	BuildCommand          string            `json:"buildCommand" yaml:"buildCommand"`
	TestCommand           string            `json:"testCommand" yaml:"testCommand"`
	BuildBinaries         bool              `json:"buildBinaries" yaml:"buildBinaries"`
	BinaryPlatforms       []string          `json:"binaryPlatforms,omitempty" yaml:"binaryPlatforms,omitempty"`
	BinaryBuildCommand    string            `json:"binaryBuildCommand,omitempty" yaml:"binaryBuildCommand,omitempty"`
	FilesToSync           []VersionSyncFile `json:"filesToSync" yaml:"filesToSync"`
	GithubReleaseTemplate string            `json:"githubReleaseTemplate" yaml:"githubReleaseTemplate"`
	ReleaseBranches       []string          `json:"releaseBranches,omitempty" yaml:"releaseBranches,omitempty"`
	Artifacts             *ArtifactFlags    `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	CommandTimeout        *int              `json:"commandTimeout,omitempty" yaml:"commandTimeout,omitempty"`
	Notifications         *bool             `json:"notifications,omitempty" yaml:"notifications,omitempty"`
}

// Display returns the human-facing package name
func (c *SubmoduleConfig) Display() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.PackageName
}

// AllowedBranches returns the branches a release may start from
func (c *SubmoduleConfig) AllowedBranches() []string {
	if len(c.ReleaseBranches) > 0 {
		return c.ReleaseBranches
	}
	return []string{"main", "master"}
}

// ArtifactSet returns the effective artifact flags; absent flags default to
// npm-only
func (c *SubmoduleConfig) ArtifactSet() ArtifactFlags {
	if c.Artifacts != nil {
		flags := *c.Artifacts
		if c.BuildBinaries {
			flags.Binaries = true
		}
		return flags
	}
	return ArtifactFlags{Npm: true, Binaries: c.BuildBinaries}
}

// NotificationsEnabled reports whether terminal-state notifications fire
func (c *SubmoduleConfig) NotificationsEnabled() bool {
	return c.Notifications == nil || *c.Notifications
}

// ReleaseOptions carries the per-run flags supplied on the command line
type ReleaseOptions struct {
	DryRun         bool   `json:"dryRun"`
	SkipTests      bool   `json:"skipTests"`
	SkipBuild      bool   `json:"skipBuild"`
	IncludeDocker  bool   `json:"includeDocker"`
	NonInteractive bool   `json:"nonInteractive"`
	SkipVerify     bool   `json:"skipVerify"`
	LogFile        string `json:"logFile,omitempty"`
}

// StageResult is the uniform outcome shape shared by preflight checks and
// pipeline stages
type StageResult struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Message  string        `json:"message,omitempty"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// CommandResult captures one external command invocation through the
// process seam
type CommandResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

// CombinedOutput returns stdout followed by stderr
func (r CommandResult) CombinedOutput() string {
	if r.Stdout == "" {
		return r.Stderr
	}
	if r.Stderr == "" {
		return r.Stdout
	}
	return r.Stdout + "\n" + r.Stderr
}

// PublishResult is the uniform shape reported by publish, build, and host
// operations
type PublishResult struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SyncResult reports the outcome of one version-sync pass
type SyncResult struct {
	FilesUpdated []string `json:"filesUpdated"`
	Errors       []string `json:"errors"`
}

// HasErrors reports whether any per-file error was recorded
func (r SyncResult) HasErrors() bool { return len(r.Errors) > 0 }

// PreflightReport aggregates the results of one validator invocation
type PreflightReport struct {
	Passed bool          `json:"passed"`
	Checks []StageResult `json:"checks"`
}

// BinaryArtifact describes one packaged platform binary
type BinaryArtifact struct {
	Platform string `json:"platform"`
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
}

// VerificationResult records one post-publish reachability probe
type VerificationResult struct {
	Target  PublishTarget `json:"target"`
	Passed  bool          `json:"passed"`
	Message string        `json:"message,omitempty"`
}
