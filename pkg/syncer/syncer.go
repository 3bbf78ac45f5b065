// Package syncer propagates a target version string across the files
// declared in a package's release configuration.
package syncer

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/releasekit/releasekit/pkg/logger"
	"github.com/releasekit/releasekit/pkg/runctx"
	"github.com/releasekit/releasekit/pkg/types"
)

// VersionToken is the placeholder resolved to the target version inside
// replacement templates.
const VersionToken = "{version}"

// Engine applies and verifies version strings across configured files
type Engine struct {
	rc     *runctx.RuntimeContext
	logger logger.Logger
}

// NewEngine creates a version sync engine
func NewEngine(rc *runctx.RuntimeContext, log logger.Logger) *Engine {
	return &Engine{rc: rc, logger: log}
}

// Sync rewrites every configured file so its version pattern carries the
// target version. The version must already be validated; an unset version
// fails before any file is touched. Per-file problems are collected as
// error strings and never abort the remaining files. Files whose content is
// already at the target version are not reported as updated.
func (e *Engine) Sync(cfg *types.SubmoduleConfig, version types.Version) (types.SyncResult, error) {
	var result types.SyncResult

	if version.IsZero() {
		return result, fmt.Errorf("%w: empty version", ErrInvalidVersion)
	}

	for _, entry := range cfg.FilesToSync {
		path := e.rc.Path(entry.Path)

		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				if entry.IsOptional() {
					continue
				}
				result.Errors = append(result.Errors, fmt.Sprintf("%s: file not found", entry.Path))
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.Path, err))
			continue
		}

		pattern, err := regexp.Compile(entry.Pattern)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: invalid pattern: %v", entry.Path, err))
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.Path, err))
			continue
		}

		content := string(data)
		replacement := strings.ReplaceAll(entry.Replacement, VersionToken, version.String())
		updated := pattern.ReplaceAllString(content, replacement)

		if updated == content {
			continue
		}

		if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.Path, err))
			continue
		}

		result.FilesUpdated = append(result.FilesUpdated, entry.Path)
		if e.logger != nil {
			e.logger.Debug("Synced version",
				logger.WithField("file", entry.Path),
				logger.WithField("version", version.String()))
		}
	}

	return result, nil
}

// Verify re-reads every configured file and reports whether each one
// contains the target version string. Missing non-optional files fail
// verification. An empty file list verifies vacuously.
func (e *Engine) Verify(cfg *types.SubmoduleConfig, version types.Version) (bool, error) {
	if version.IsZero() {
		return false, fmt.Errorf("%w: empty version", ErrInvalidVersion)
	}

	target := version.String()

	for _, entry := range cfg.FilesToSync {
		data, err := os.ReadFile(e.rc.Path(entry.Path))
		if err != nil {
			if os.IsNotExist(err) && entry.IsOptional() {
				continue
			}
			return false, nil
		}

		if !strings.Contains(string(data), target) {
			return false, nil
		}
	}

	return true, nil
}
