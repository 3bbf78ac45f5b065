package types

import (
	"fmt"
	"time"
)

// RollbackAction describes one confirmed reversible side effect. An action
// is pushed only after the effect is known to have succeeded; a failed
// effect is never pushed.
type RollbackAction struct {
	Kind    RollbackActionKind `json:"kind"`
	Tag     string             `json:"tag,omitempty"`
	Target  PublishTarget      `json:"target,omitempty"`
	Version string             `json:"version,omitempty"`
	Commit  string             `json:"commit,omitempty"`
	Pushed  bool               `json:"pushed,omitempty"`
}

// TagCreated records a local+remote tag creation
func TagCreated(tag string) RollbackAction {
	return RollbackAction{Kind: ActionTagCreated, Tag: tag}
}

// ReleaseCreated records a host release creation
func ReleaseCreated(tag string) RollbackAction {
	return RollbackAction{Kind: ActionReleaseCreated, Tag: tag}
}

// RegistryPublished records a successful registry publish
func RegistryPublished(target PublishTarget, version string) RollbackAction {
	return RollbackAction{Kind: ActionRegistryPublished, Target: target, Version: version}
}

// CommitMade records the version-bump commit; Pushed marks whether the
// commit reached the remote
func CommitMade(hash string, pushed bool) RollbackAction {
	return RollbackAction{Kind: ActionCommitMade, Commit: hash, Pushed: pushed}
}

// Describe returns a short human-readable summary of the action
func (a RollbackAction) Describe() string {
	switch a.Kind {
	case ActionTagCreated:
		return fmt.Sprintf("tag %s", a.Tag)
	case ActionReleaseCreated:
		return fmt.Sprintf("release %s", a.Tag)
	case ActionRegistryPublished:
		return fmt.Sprintf("%s publish of %s", a.Target, a.Version)
	case ActionCommitMade:
		return fmt.Sprintf("commit %s", a.Commit)
	default:
		return string(a.Kind)
	}
}

// ReleaseState accumulates stage results and the rollback stack for one
// release run. It is created at pipeline start, owned exclusively by the
// orchestrator, and never shared across runs.
type ReleaseState struct {
	Package    string           `json:"package"`
	Version    string           `json:"version"`
	Stage      PipelineStage    `json:"stage"`
	Stages     []StageResult    `json:"stages"`
	Rollback   []RollbackAction `json:"rollback,omitempty"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
}

// NewReleaseState starts tracking a run at the init stage
func NewReleaseState(pkg string, version Version) *ReleaseState {
	return &ReleaseState{
		Package:   pkg,
		Version:   version.String(),
		Stage:     StageInit,
		StartedAt: time.Now(),
	}
}

// Record appends a stage result
func (s *ReleaseState) Record(result StageResult) {
	s.Stages = append(s.Stages, result)
}

// Push adds a confirmed reversible action to the rollback stack
func (s *ReleaseState) Push(action RollbackAction) {
	s.Rollback = append(s.Rollback, action)
}

// Pop removes and returns the most recently pushed action. The second
// return is false when the stack is empty.
func (s *ReleaseState) Pop() (RollbackAction, bool) {
	if len(s.Rollback) == 0 {
		return RollbackAction{}, false
	}
	action := s.Rollback[len(s.Rollback)-1]
	s.Rollback = s.Rollback[:len(s.Rollback)-1]
	return action, true
}

// PendingRollback returns the stack depth
func (s *ReleaseState) PendingRollback() int { return len(s.Rollback) }

// Elapsed returns the wall-clock duration of the run so far
func (s *ReleaseState) Elapsed() time.Duration {
	if !s.FinishedAt.IsZero() {
		return s.FinishedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}
