package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/releasekit/releasekit/pkg/types"
)

// Level represents finding severity
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// FieldError describes one configuration finding
type FieldError struct {
	Package string
	Field   string
	Message string
	Level   Level
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("[%s] %s.%s: %s", e.Level, e.Package, e.Field, e.Message)
}

// Result aggregates validation findings for one config
type Result struct {
	Valid  bool
	Errors []FieldError
}

// Add records a finding
func (r *Result) Add(pkg, field, message string, level Level) {
	r.Errors = append(r.Errors, FieldError{
		Package: pkg,
		Field:   field,
		Message: message,
		Level:   level,
	})
	if level == LevelError {
		r.Valid = false
	}
}

// Warnings returns the warning-level findings
func (r *Result) Warnings() []FieldError {
	var out []FieldError
	for _, fe := range r.Errors {
		if fe.Level == LevelWarning {
			out = append(out, fe)
		}
	}
	return out
}

// Err converts the error-level findings into a single error, nil when valid
func (r *Result) Err() error {
	if r.Valid {
		return nil
	}

	var msgs []string
	for _, fe := range r.Errors {
		if fe.Level == LevelError {
			msgs = append(msgs, fe.Error())
		}
	}

	return fmt.Errorf("%w:\n  %s", ErrInvalidConfig, strings.Join(msgs, "\n  "))
}

// check runs every field validation and returns the aggregated result
func (r *Resolver) check(cfg *types.SubmoduleConfig) *Result {
	result := &Result{Valid: true}
	name := cfg.PackageName

	if name == "" {
		result.Add("", "packageName", "package name is required", LevelError)
		return result
	}
	if strings.Contains(name, " ") {
		result.Add(name, "packageName", "package name cannot contain spaces", LevelError)
	}

	if cfg.PackageDir == "" {
		result.Add(name, "packageDir", "package directory is required", LevelError)
	}
	if cfg.BuildCommand == "" {
		result.Add(name, "buildCommand", "build command is required", LevelError)
	}
	if cfg.TestCommand == "" {
		result.Add(name, "testCommand", "test command is required", LevelError)
	}

	artifacts := cfg.ArtifactSet()
	if artifacts.Npm && cfg.NpmPackageName == "" {
		result.Add(name, "npmPackageName", "npm package name is required for npm publishing", LevelError)
	}
	if artifacts.Docker && cfg.DockerImageName == "" {
		result.Add(name, "dockerImageName", "docker image name is required for docker publishing", LevelError)
	}
	if artifacts.VSCode {
		if cfg.VSCodeExtensionName == "" {
			result.Add(name, "vscodeExtensionName", "extension name is required for vscode publishing", LevelError)
		}
		if cfg.VSCodeExtensionDir == "" {
			result.Add(name, "vscodeExtensionDir", "extension directory is required for vscode publishing", LevelError)
		}
	}

	if cfg.BuildBinaries {
		if len(cfg.BinaryPlatforms) == 0 {
			result.Add(name, "binaryPlatforms", "at least one platform is required when buildBinaries is set", LevelError)
		}
		if cfg.BinaryBuildCommand != "" && !strings.Contains(cfg.BinaryBuildCommand, "{platform}") {
			result.Add(name, "binaryBuildCommand", "binary build command must contain the {platform} token", LevelError)
		}
	} else if len(cfg.BinaryPlatforms) > 0 {
		result.Add(name, "binaryPlatforms", "platforms listed but buildBinaries is disabled", LevelWarning)
	}

	if len(cfg.FilesToSync) == 0 {
		result.Add(name, "filesToSync", "at least one version sync file is required", LevelError)
	}
	for i, f := range cfg.FilesToSync {
		field := fmt.Sprintf("filesToSync[%d]", i)
		if f.Path == "" {
			result.Add(name, field+".path", "sync file path is required", LevelError)
		}
		if f.Pattern == "" {
			result.Add(name, field+".pattern", "sync pattern is required", LevelError)
		} else if _, err := regexp.Compile(f.Pattern); err != nil {
			result.Add(name, field+".pattern", fmt.Sprintf("invalid pattern: %v", err), LevelError)
		}
		if f.Replacement == "" {
			result.Add(name, field+".replacement", "sync replacement is required", LevelError)
		} else if !strings.Contains(f.Replacement, "{version}") {
			result.Add(name, field+".replacement", "replacement must contain the {version} token", LevelError)
		}
	}

	if cfg.GithubReleaseTemplate == "" {
		result.Add(name, "githubReleaseTemplate", "no release template, using the built-in default", LevelWarning)
	}

	for i, branch := range cfg.AllowedBranches() {
		if branch == "" {
			result.Add(name, fmt.Sprintf("releaseBranches[%d]", i), "empty branch name", LevelError)
		}
	}

	if cfg.CommandTimeout != nil && *cfg.CommandTimeout <= 0 {
		result.Add(name, "commandTimeout", "timeout must be positive", LevelError)
	}

	return result
}

// IsInvalidConfig reports whether err stems from config validation
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
