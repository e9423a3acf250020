package control

import (
	"context"
	"time"

	"steward/internal/api"
	"steward/pkg/logging"
)

// PollInterval is how often WaitForState re-reads the state store.
const PollInterval = time.Second

// WaitForState polls the state store once per PollInterval, at most
// timeoutSeconds times, until the resource reaches a terminal state of op.
// There is no sleep after the final poll.
// STOP is satisfied by a clean stop or a forced stop. It returns false when
// the polls run out or ctx is done; the underlying command is never
// cancelled. Operations without terminal states return false at once.
func (o *Orchestrator) WaitForState(ctx context.Context, ref api.ResourceRef, op api.ControlOperation, timeoutSeconds int) bool {
	terminal := ref.Kind.Profile().TerminalStates(op)
	if len(terminal) == 0 {
		return false
	}

	for i := 0; i < timeoutSeconds; i++ {
		current := o.deps.Store.StateOf(ref)
		for _, st := range terminal {
			if current == st {
				return true
			}
		}
		if i == timeoutSeconds-1 {
			break
		}
		if !o.sleep(ctx, PollInterval) {
			logging.Debug("Control", "Stopped waiting for %s to %s: %v", ref, op, ctx.Err())
			return false
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
