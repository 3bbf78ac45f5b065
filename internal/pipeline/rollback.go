package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/releasekit/releasekit/pkg/interfaces"
	"github.com/releasekit/releasekit/pkg/logger"
	"github.com/releasekit/releasekit/pkg/publish"
	"github.com/releasekit/releasekit/pkg/types"
)

// rollbackAll unwinds the rollback stack in strict LIFO order and reverts
// any uncommitted version-sync edits. Each inverse is best-effort: one
// failed undo is reported and the remaining actions are still attempted.
// Returns how many actions were undone.
func (o *Orchestrator) rollbackAll(ctx context.Context) int {
	if len(o.syncedPaths) > 0 && !o.committed && !o.opts.DryRun {
		if err := o.deps.Git.CheckoutPaths(ctx, o.syncedPaths); err != nil {
			o.rollbackErrs = append(o.rollbackErrs, fmt.Sprintf("restore synced files: %v", err))
		} else {
			o.deps.Journal.Printf("rollback: restored %d uncommitted synced file(s)", len(o.syncedPaths))
		}
	}

	if o.state.PendingRollback() == 0 {
		return 0
	}

	o.deps.Journal.Printf("rolling back %d confirmed action(s), newest first", o.state.PendingRollback())
	if o.logger != nil {
		o.logger.Warn("Rolling back release",
			logger.WithField("actions", o.state.PendingRollback()))
	}

	for {
		action, ok := o.state.Pop()
		if !ok {
			break
		}

		o.deps.Journal.Printf("rollback: undoing %s", action.Describe())

		if err := o.undo(ctx, action); err != nil {
			message := fmt.Sprintf("%s: %v", action.Describe(), err)
			o.rollbackErrs = append(o.rollbackErrs, message)

			if errors.Is(err, publish.ErrNotRetractable) {
				o.deps.Journal.Printf("rollback: %s cannot be retracted, manual action required", action.Describe())
			}
			if o.logger != nil {
				o.logger.Error("Rollback step failed; manual cleanup may be needed",
					logger.WithField("action", action.Describe()),
					logger.WithField("error", err))
			}
			continue
		}

		o.undone = append(o.undone, action)
		o.deps.Journal.Printf("rollback: undone %s", action.Describe())
	}

	return len(o.undone)
}

// undo executes the inverse of one confirmed action
func (o *Orchestrator) undo(ctx context.Context, action types.RollbackAction) error {
	switch action.Kind {
	case types.ActionReleaseCreated:
		return o.deps.Host.DeleteRelease(ctx, action.Tag)

	case types.ActionTagCreated:
		return o.deps.Git.DeleteTag(ctx, action.Tag)

	case types.ActionCommitMade:
		if action.Pushed {
			// The commit is public; history rewrites are off the table
			if _, err := o.deps.Git.RevertCommit(ctx, action.Commit); err != nil {
				return err
			}
			return o.deps.Git.PushBranch(ctx)
		}
		return o.deps.Git.ResetHard(ctx, action.Commit+"~1")

	case types.ActionRegistryPublished:
		p := o.publisherFor(action.Target)
		if p == nil {
			return fmt.Errorf("no publisher for target %s", action.Target)
		}
		return p.Retract(ctx, o.cfg, o.version)

	default:
		return fmt.Errorf("unknown rollback action %q", action.Kind)
	}
}

func (o *Orchestrator) publisherFor(target types.PublishTarget) interfaces.Publisher {
	for _, p := range o.publishers {
		if p.Name() == target {
			return p
		}
	}
	return nil
}
