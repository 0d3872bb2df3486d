package app

import (
	"fmt"

	"alpharia-assessment/internal/domain"
)

// Flow is the guided, forward-only traversal of a fixed number of sections.
type Flow struct {
	state domain.FlowState
	index int
	count int
}

// NewFlow returns an idle flow over count sections.
func NewFlow(count int) *Flow {
	return &Flow{state: domain.FlowIdle, count: count}
}

func (f *Flow) State() domain.FlowState { return f.state }
func (f *Flow) Index() int              { return f.index }
func (f *Flow) Count() int              { return f.count }

// Locked reports whether free navigation is disabled.
func (f *Flow) Locked() bool {
	return f.state == domain.FlowInSection || f.state == domain.FlowShowingSectionReport
}

// Start enters the first section.
func (f *Flow) Start() error {
	if f.state != domain.FlowIdle {
		return f.invalid("start")
	}
	if f.count == 0 {
		return domain.ErrEmptyCategory
	}
	f.state = domain.FlowInSection
	f.index = 0
	return nil
}

// FinishSection moves from the last item of a section to its report.
func (f *Flow) FinishSection() error {
	if f.state != domain.FlowInSection {
		return f.invalid("finish section")
	}
	f.state = domain.FlowShowingSectionReport
	return nil
}

// Acknowledge leaves a section report for the next section, or completes the flow.
func (f *Flow) Acknowledge() error {
	if f.state != domain.FlowShowingSectionReport {
		return f.invalid("acknowledge")
	}
	if f.index+1 < f.count {
		f.index++
		f.state = domain.FlowInSection
		return nil
	}
	f.state = domain.FlowComplete
	return nil
}

// Expire force-completes a running flow.
func (f *Flow) Expire() bool {
	if !f.Locked() {
		return false
	}
	f.state = domain.FlowComplete
	return true
}

// Reset returns the flow to Idle at the first section.
func (f *Flow) Reset() {
	f.state = domain.FlowIdle
	f.index = 0
}

func (f *Flow) invalid(action string) error {
	return fmt.Errorf("%w: %s from %s", domain.ErrInvalidTransition, action, f.state)
}
