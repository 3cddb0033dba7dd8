package flow

import "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"

// ReplaceHandler swaps the handler of step.
func (m *Machine) ReplaceHandler(step domain.Step, h func(domain.Session, domain.Event, Facts) Result) {
	m.handlers[step] = h
}

// Move returns an accepted result that puts s at step.
func (m *Machine) Move(s domain.Session, step domain.Step) Result {
	return m.to(s, step, "moved")
}
