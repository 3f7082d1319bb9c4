package engine

import "fmt"

type SelfLinkError struct {
	IssueID string
}

func (e SelfLinkError) Error() string {
	return fmt.Sprintf("issue %s cannot link to itself", e.IssueID)
}

type DuplicateLinkError struct {
	SourceIssueID string
	TargetIssueID string
	LinkType      string
}

func (e DuplicateLinkError) Error() string {
	return fmt.Sprintf("link %s %s %s already exists", e.SourceIssueID, e.LinkType, e.TargetIssueID)
}

type CycleError struct {
	ParentID string
	ChildID  string
}

func (e CycleError) Error() string {
	return fmt.Sprintf("parent-of link %s -> %s would create a cycle", e.ParentID, e.ChildID)
}

type UnknownLinkTypeError struct {
	LinkType string
}

func (e UnknownLinkTypeError) Error() string {
	return fmt.Sprintf("unknown link type %q", e.LinkType)
}

type InvalidDurationError struct {
	Hours float64
}

func (e InvalidDurationError) Error() string {
	return fmt.Sprintf("logged hours must be positive, got %v", e.Hours)
}

type UnknownTimeCategoryError struct {
	Category string
}

func (e UnknownTimeCategoryError) Error() string {
	return fmt.Sprintf("time category %q is not in the configured catalog", e.Category)
}

type CrossProjectError struct {
	IssueID string
	Field   string
}

func (e CrossProjectError) Error() string {
	return fmt.Sprintf("issue %s cannot reference a %s from another project", e.IssueID, e.Field)
}
