package model

import (
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
)

// PasswordPolicy maps a days-until-expiration delta to a lifecycle state
type PasswordPolicy struct {
	GraciousPeriod   int
	NotificationDays []int
}

// Validate checks the policy is usable
func (p *PasswordPolicy) Validate() error {
	if p.GraciousPeriod < 0 {
		return goerr.New("gracious period must not be negative", goerr.V("gracious_period", p.GraciousPeriod))
	}
	if len(p.NotificationDays) == 0 {
		return goerr.New("at least one notification day is required")
	}
	for _, d := range p.NotificationDays {
		if d < 0 {
			return goerr.New("notification day must not be negative", goerr.V("day", d))
		}
	}
	return nil
}

// Window is the widest notification window in days
func (p *PasswordPolicy) Window() int {
	if len(p.NotificationDays) == 0 {
		return 0
	}
	return slices.Max(p.NotificationDays)
}

// TriggerDay is the delta at which a reminder is sent: the earliest point in
// time among the configured days, which is the largest delta.
func (p *PasswordPolicy) TriggerDay() int {
	return p.Window()
}

// Classify maps delta (expiration date minus today, in days) to a state
func (p *PasswordPolicy) Classify(delta int) types.PasswordState {
	switch {
	case delta > p.Window():
		return types.PasswordStateActive
	case delta >= 0:
		return types.PasswordStateExpiring
	case delta >= -p.GraciousPeriod:
		return types.PasswordStateExpiredWithinGrace
	default:
		return types.PasswordStateExpiredBeyondGrace
	}
}

// ShouldNotify reports whether a reminder is due at delta given the days the
// user was already reminded at.
func (p *PasswordPolicy) ShouldNotify(delta int, notified []int) bool {
	if p.Classify(delta) != types.PasswordStateExpiring {
		return false
	}
	return delta == p.TriggerDay() && !slices.Contains(notified, delta)
}
