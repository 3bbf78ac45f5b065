// Package runctx carries the immutable per-run runtime context: the project
// root, an environment snapshot taken at startup, and the run identifier.
// Components read environment values from the snapshot instead of calling
// os.Getenv at use sites.
package runctx

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RuntimeContext is constructed once at CLI startup and threaded into every
// component. It is never mutated after construction.
type RuntimeContext struct {
	projectRoot string
	env         map[string]string
	runID       string
	startedAt   time.Time
}

// New resolves projectRoot to an absolute path and snapshots the process
// environment. An empty projectRoot means the current working directory.
func New(projectRoot string) (*RuntimeContext, error) {
	if projectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		projectRoot = wd
	}

	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root %q: %w", projectRoot, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("project root %q: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %q is not a directory", abs)
	}

	return &RuntimeContext{
		projectRoot: abs,
		env:         snapshotEnviron(os.Environ()),
		runID:       GenerateRunID(),
		startedAt:   time.Now(),
	}, nil
}

// NewWithEnv builds a context with an explicit environment, for tests
func NewWithEnv(projectRoot string, env map[string]string) *RuntimeContext {
	snapshot := make(map[string]string, len(env))
	for k, v := range env {
		snapshot[k] = v
	}
	return &RuntimeContext{
		projectRoot: projectRoot,
		env:         snapshot,
		runID:       GenerateRunID(),
		startedAt:   time.Now(),
	}
}

func snapshotEnviron(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	return env
}

// ProjectRoot returns the absolute project root
func (rc *RuntimeContext) ProjectRoot() string { return rc.projectRoot }

// RunID returns the unique identifier of this run
func (rc *RuntimeContext) RunID() string { return rc.runID }

// StartedAt returns when the context was constructed
func (rc *RuntimeContext) StartedAt() time.Time { return rc.startedAt }

// Getenv returns the snapshotted value for key, or ""
func (rc *RuntimeContext) Getenv(key string) string { return rc.env[key] }

// LookupEnv returns the snapshotted value and whether it was present
func (rc *RuntimeContext) LookupEnv(key string) (string, bool) {
	v, ok := rc.env[key]
	return v, ok
}

// Environ returns a copy of the environment snapshot
func (rc *RuntimeContext) Environ() map[string]string {
	env := make(map[string]string, len(rc.env))
	for k, v := range rc.env {
		env[k] = v
	}
	return env
}

// Path joins elements under the project root
func (rc *RuntimeContext) Path(elem ...string) string {
	return filepath.Join(append([]string{rc.projectRoot}, elem...)...)
}

// StateDir returns the releasekit state directory under the project root
func (rc *RuntimeContext) StateDir() string {
	return rc.Path(".releasekit")
}

// GenerateRunID creates a new unique run ID
func GenerateRunID() string {
	return "run_" + uuid.New().String()
}
