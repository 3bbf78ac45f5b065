// Package manifest writes the per-release artifact manifest
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/releasekit/releasekit/pkg/logger"
	"github.com/releasekit/releasekit/pkg/runctx"
	"github.com/releasekit/releasekit/pkg/types"
)

// Manifest is the durable record of one release run. It is written once,
// after the run reaches a terminal stage, next to the state ledger.
type Manifest struct {
	Package             string                     `json:"package"`
	Version             string                     `json:"version"`
	Tag                 string                     `json:"tag,omitempty"`
	RunID               string                     `json:"runId"`
	State               types.PipelineStage        `json:"state"`
	DryRun              bool                       `json:"dryRun,omitempty"`
	StartedAt           time.Time                  `json:"startedAt"`
	FinishedAt          time.Time                  `json:"finishedAt"`
	PublishedURLs       map[string]string          `json:"publishedUrls,omitempty"`
	VerificationResults []types.VerificationResult `json:"verificationResults,omitempty"`
	Checksums           map[string]string          `json:"checksums,omitempty"`
	ChangelogExcerpt    string                     `json:"changelogExcerpt,omitempty"`
	Stages              []types.StageResult        `json:"stages,omitempty"`
	Rollback            []types.RollbackAction     `json:"rollback,omitempty"`
	RollbackErrors      []string                   `json:"rollbackErrors,omitempty"`
}

// Writer persists manifests under the project state directory
type Writer struct {
	dir    string
	logger logger.Logger
}

// NewWriter creates a manifest writer rooted at the runtime context's
// state directory
func NewWriter(rc *runctx.RuntimeContext, log logger.Logger) *Writer {
	return &Writer{
		dir:    filepath.Join(rc.StateDir(), "manifests"),
		logger: log,
	}
}

// Path returns the manifest location for a package version
func (w *Writer) Path(packageName, version string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.json", packageName, version))
}

// Write persists the manifest atomically and returns its path
func (w *Writer) Write(m *Manifest) (string, error) {
	if m.Package == "" || m.Version == "" {
		return "", fmt.Errorf("manifest requires package and version")
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := w.Path(m.Package, m.Version)
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename manifest: %w", err)
	}

	if w.logger != nil {
		w.logger.Debug("Wrote release manifest", logger.WithField("path", path))
	}

	return path, nil
}

// Load reads a manifest back from disk
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return &m, nil
}
