package workflow

import (
	"errors"
	"testing"

	"planup/internal/domain"
)

func board() domain.Workflow {
	return domain.Workflow{
		Name:     "board",
		Statuses: []string{"To Do", "In Progress", "In Review", "Done"},
		Transitions: []domain.WorkflowTransition{
			{FromStatus: "To Do", ToStatus: "In Progress", Label: "Start Work"},
			{FromStatus: "In Progress", ToStatus: "In Review", Label: "Submit for Review"},
			{FromStatus: "In Progress", ToStatus: "To Do", Label: "Stop Work"},
			{FromStatus: "In Review", ToStatus: "Done", Label: "Complete"},
			{FromStatus: "In Review", ToStatus: "In Progress", Label: "Request Changes"},
			{FromStatus: "Done", ToStatus: "To Do", Label: "Reopen"},
		},
	}
}

func TestValidateTransitions(t *testing.T) {
	w := board()
	cases := []struct {
		from, to string
		ok       bool
	}{
		{"To Do", "In Progress", true},
		{"To Do", "Done", false},
		{"To Do", "In Review", false},
		{"In Progress", "In Review", true},
		{"In Progress", "To Do", true},
		{"In Progress", "Done", false},
		{"In Review", "Done", true},
		{"In Review", "In Progress", true},
		{"Done", "To Do", true},
		{"Done", "In Review", false},
	}
	for _, c := range cases {
		if got := CanTransition(w, c.from, c.to); got != c.ok {
			t.Errorf("CanTransition(%q -> %q) = %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestValidateSelfMove(t *testing.T) {
	w := board()
	for _, s := range w.Statuses {
		if err := Validate(w, s, s); err != nil {
			t.Errorf("Validate(%q -> %q) = %v, want nil", s, s, err)
		}
	}
}

func TestValidateUnknownStatus(t *testing.T) {
	w := board()
	err := Validate(w, "To Do", "Cancelled")
	var unknown UnknownStatusError
	if !errors.As(err, &unknown) {
		t.Fatalf("Validate to unknown status = %v, want UnknownStatusError", err)
	}
	if unknown.Status != "Cancelled" {
		t.Errorf("unknown.Status = %q", unknown.Status)
	}
}

func TestValidateInvalidTransitionError(t *testing.T) {
	w := board()
	err := Validate(w, "To Do", "Done")
	var invalid InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("Validate = %v, want InvalidTransitionError", err)
	}
	if invalid.From != "To Do" || invalid.To != "Done" {
		t.Errorf("invalid = %+v", invalid)
	}
}

func TestOpenWorkflowAllowsAnyListedStatus(t *testing.T) {
	w := domain.Workflow{Name: "open", Statuses: []string{"New", "Doing", "Closed"}}
	if err := Validate(w, "New", "Closed"); err != nil {
		t.Fatalf("open workflow move failed: %v", err)
	}
	if err := Validate(w, "Closed", "New"); err != nil {
		t.Fatalf("open workflow reopen failed: %v", err)
	}
	if err := Validate(w, "New", "Missing"); err == nil {
		t.Fatal("move to unlisted status should fail even on an open workflow")
	}
}

func TestStatusWithNoOutgoingTransitionsIsOpen(t *testing.T) {
	// Only "A" declares transitions; "B" has none, so anything listed
	// is reachable from it.
	w := domain.Workflow{
		Name:     "partial",
		Statuses: []string{"A", "B", "C"},
		Transitions: []domain.WorkflowTransition{
			{FromStatus: "A", ToStatus: "B"},
		},
	}
	if err := Validate(w, "A", "C"); err == nil {
		t.Fatal("A declares transitions, so A -> C should be rejected")
	}
	if err := Validate(w, "B", "A"); err != nil {
		t.Fatalf("B has no declared transitions, B -> A should pass: %v", err)
	}
	if err := Validate(w, "B", "C"); err != nil {
		t.Fatalf("B has no declared transitions, B -> C should pass: %v", err)
	}
}

func TestInitialAndTerminal(t *testing.T) {
	w := board()
	if got := Initial(w); got != "To Do" {
		t.Errorf("Initial = %q", got)
	}
	if got := Terminal(w); got != "Done" {
		t.Errorf("Terminal = %q", got)
	}
}
