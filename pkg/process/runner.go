// Package process executes external commands behind a single narrow seam
// so every package-manager, container, and VCS invocation can be faked in
// tests.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/releasekit/releasekit/pkg/logger"
	"github.com/releasekit/releasekit/pkg/types"
)

// Runner executes commands on the host. It is the only place in the
// codebase that reaches for os/exec.
type Runner struct {
	logger     logger.Logger
	env        []string
	timeout    time.Duration
	transcript io.Writer
}

// NewRunner creates a runner. env is the immutable environment snapshot
// commands run with; timeout bounds each command (zero means unbounded);
// transcript receives a tee of every command header and its output (nil to
// disable).
func NewRunner(log logger.Logger, env map[string]string, timeout time.Duration, transcript io.Writer) *Runner {
	environ := make([]string, 0, len(env))
	for k, v := range env {
		environ = append(environ, fmt.Sprintf("%s=%s", k, v))
	}
	return &Runner{
		logger:     log,
		env:        environ,
		timeout:    timeout,
		transcript: transcript,
	}
}

// Run executes command in dir and returns the captured result. A non-zero
// exit is reported through the result's ExitCode, not through err; err is
// reserved for commands that could not start and for context cancellation.
func (r *Runner) Run(ctx context.Context, command string, dir string) (types.CommandResult, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := createCommand(ctx, command)
	cmd.Dir = dir
	if len(r.env) > 0 {
		cmd.Env = r.env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if r.transcript != nil {
		fmt.Fprintf(r.transcript, "$ %s\n", command)
		cmd.Stdout = io.MultiWriter(&stdout, r.transcript)
		cmd.Stderr = io.MultiWriter(&stderr, r.transcript)
	}

	if r.logger != nil {
		r.logger.Debug("Executing command",
			logger.WithField("command", command),
			logger.WithField("dir", dir))
	}

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := types.CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.note("aborted after %s: %v\n", duration, ctxErr)
			return result, ctxErr
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			r.note("exit %d after %s\n", result.ExitCode, duration)
			return result, nil
		}

		r.note("failed to start: %v\n", err)
		return result, fmt.Errorf("failed to run %q: %w", command, err)
	}

	r.note("exit 0 after %s\n", duration)
	return result, nil
}

func (r *Runner) note(format string, args ...interface{}) {
	if r.transcript != nil {
		fmt.Fprintf(r.transcript, format, args...)
	}
}

// createCommand creates an exec.Cmd from a command string
func createCommand(ctx context.Context, command string) *exec.Cmd {
	// Parse command with shell
	var cmd *exec.Cmd
	if strings.ContainsAny(command, "|;><'\"") || strings.Contains(command, "&&") {
		// Complex command - use shell
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	} else {
		// Simple command - parse directly
		parts := strings.Fields(command)
		if len(parts) > 0 {
			cmd = exec.CommandContext(ctx, parts[0], parts[1:]...)
		} else {
			cmd = exec.CommandContext(ctx, "sh", "-c", command)
		}
	}

	return cmd
}

// ErrToolNotFound indicates a required executable is missing from PATH.
var ErrToolNotFound = errors.New("required tool not found")

// LookPath reports whether an executable is resolvable on the host PATH
func LookPath(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%w: %q is not on PATH", ErrToolNotFound, name)
	}
	return nil
}

// Quote makes s safe to embed as one argument in a command string. Values
// without shell-significant characters pass through unchanged.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\"'\\$&|;<>(){}[]*?#~`!") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
