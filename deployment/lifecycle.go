package deployment

import (
	"fmt"
	"sync/atomic"

	"github.com/blockberries/bboard"
)

// LifecycleGuard enforces the deployment state machine:
//
//	InProgress -> Deployed
//	InProgress -> Failed
//
// Exactly one terminal transition succeeds; a terminal state is never
// left.
type LifecycleGuard struct {
	state atomic.Uint32
}

// NewLifecycleGuard creates a guard in the InProgress state.
func NewLifecycleGuard() *LifecycleGuard {
	g := &LifecycleGuard{}
	g.state.Store(uint32(bboard.DeploymentInProgress))
	return g
}

// Status returns the current lifecycle state.
func (g *LifecycleGuard) Status() bboard.DeploymentStatus {
	return bboard.DeploymentStatus(g.state.Load())
}

// Finish transitions InProgress to status. It fails if status is not
// terminal or the guard has already finished.
func (g *LifecycleGuard) Finish(status bboard.DeploymentStatus) error {
	if status == bboard.DeploymentInProgress {
		return fmt.Errorf("deployment: cannot finish as %s", status)
	}
	if !g.state.CompareAndSwap(uint32(bboard.DeploymentInProgress), uint32(status)) {
		return fmt.Errorf("deployment: finished as %s in state %s (expected %s)",
			status, g.Status(), bboard.DeploymentInProgress)
	}
	return nil
}
