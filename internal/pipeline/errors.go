package pipeline

import (
	"errors"
	"fmt"

	"github.com/releasekit/releasekit/pkg/types"
)

// ErrPreflightFailed indicates one or more readiness checks did not pass
var ErrPreflightFailed = errors.New("preflight checks failed")

// StageError is the fatal error of one pipeline stage. Hint carries the
// remediation step shown to the operator; Err preserves the underlying
// cause for errors.Is/As.
type StageError struct {
	Stage   types.PipelineStage
	Message string
	Hint    string
	Err     error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s stage failed: %s", e.Stage, e.Message)
	if e.Hint != "" {
		msg += fmt.Sprintf(" (try: %s)", e.Hint)
	}
	return msg
}

func (e *StageError) Unwrap() error { return e.Err }

// stageError builds a StageError for the orchestrator's current stage
func stageError(stage types.PipelineStage, err error, format string, args ...interface{}) *StageError {
	return &StageError{
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
