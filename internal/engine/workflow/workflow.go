// Package workflow evaluates status transitions against a project's
// configured state machine.
package workflow

import (
	"fmt"

	"planup/internal/domain"
)

type UnknownStatusError struct {
	Status   string
	Workflow string
}

func (e UnknownStatusError) Error() string {
	return fmt.Sprintf("status %q is not part of workflow %q", e.Status, e.Workflow)
}

type InvalidTransitionError struct {
	From     string
	To       string
	Workflow string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("workflow %q does not allow moving from %q to %q", e.Workflow, e.From, e.To)
}

// HasStatus reports whether a status is listed in the workflow.
func HasStatus(w domain.Workflow, status string) bool {
	for _, s := range w.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Initial returns the status new issues start in: the first listed status.
func Initial(w domain.Workflow) string {
	if len(w.Statuses) == 0 {
		return ""
	}
	return w.Statuses[0]
}

// Terminal returns the status that marks completion: the last listed status.
func Terminal(w domain.Workflow) string {
	if len(w.Statuses) == 0 {
		return ""
	}
	return w.Statuses[len(w.Statuses)-1]
}

// Validate checks a requested move. The target status must be listed.
// Moving to the current status is always legal. When the current status
// has no outgoing transitions declared, the workflow is open from there
// and any listed status is reachable; otherwise the move must match a
// declared transition.
func Validate(w domain.Workflow, from, to string) error {
	if !HasStatus(w, to) {
		return UnknownStatusError{Status: to, Workflow: w.Name}
	}
	if from == to {
		return nil
	}
	declared := false
	for _, t := range w.Transitions {
		if t.FromStatus != from {
			continue
		}
		declared = true
		if t.ToStatus == to {
			return nil
		}
	}
	if !declared {
		return nil
	}
	return InvalidTransitionError{From: from, To: to, Workflow: w.Name}
}

// CanTransition is the boolean form of Validate.
func CanTransition(w domain.Workflow, from, to string) bool {
	return Validate(w, from, to) == nil
}
