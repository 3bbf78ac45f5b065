package publish

import (
	"errors"
	"fmt"

	"github.com/releasekit/releasekit/pkg/types"
)

// ErrNotRetractable marks registries that cannot take back a published
// version. Rollback records these as warnings instead of failing.
var ErrNotRetractable = errors.New("published artifact cannot be retracted")

// Error is a classified publish failure
type Error struct {
	Target types.PublishTarget
	Class  types.FailureClass
	Output string
	Hint   string
}

// NewError classifies output and attaches the matching remediation hint
func NewError(target types.PublishTarget, output string) *Error {
	class := Classify(output)
	hint := ""
	if class == types.FailureAuthRequired {
		hint = RemediationHint(string(target))
	}
	return &Error{Target: target, Class: class, Output: output, Hint: hint}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s publish failed (%s)", e.Target, e.Class)
}
