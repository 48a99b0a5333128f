// internal/service/cooldown.go
package service

import (
	"time"

	"github.com/memberhub/campaign-engine/internal/repository"
)

// CooldownGuard limits how often a given action kind may start a new
// campaign. It is consulted before campaign creation and is deliberately
// decoupled from the per-type exclusivity check.
type CooldownGuard struct {
	ActionLog repository.ActionLogRepositoryInterface
	Window    time.Duration

	now func() time.Time // test seam
}

func NewCooldownGuard(actionLog repository.ActionLogRepositoryInterface, window time.Duration) *CooldownGuard {
	return &CooldownGuard{
		ActionLog: actionLog,
		Window:    window,
		now:       time.Now,
	}
}

// CanStart reports whether the action kind may start now. When denied,
// nextAvailableAt is the end of the current cooldown window.
func (g *CooldownGuard) CanStart(kind string) (bool, time.Time, error) {
	last, err := g.ActionLog.LastRun(kind)
	if err != nil {
		return false, time.Time{}, err
	}
	if last == nil {
		return true, time.Time{}, nil
	}

	nextAvailableAt := last.Add(g.Window)
	if g.now().Before(nextAvailableAt) {
		return false, nextAvailableAt, nil
	}
	return true, time.Time{}, nil
}

// RecordStart logs that the action kind started a campaign now.
func (g *CooldownGuard) RecordStart(kind string) error {
	return g.ActionLog.Record(kind, g.now())
}
