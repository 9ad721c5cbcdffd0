package domain

import "github.com/google/uuid"

// Conflict describes a collision between a transformed guest entity and an
// existing account entity.
type Conflict struct {
	EntityType EntityType
	Type       ConflictType
	GuestID    string
	ExistingID string
	Detail     string
}

// Resolution records the action taken for one guest entity, with a
// human-readable reason. One per guest entity, conflicting or not.
type Resolution struct {
	EntityType EntityType
	EntityID   string
	Action     ResolutionAction
	Reason     string
}

// ValidationIssue is a single finding from a validation stage.
type ValidationIssue struct {
	Field    string
	Message  string
	Critical bool
}

// IntegrityCheck is one of the five weighted post-migration checks.
type IntegrityCheck struct {
	Name     string
	Passed   bool
	Weight   int
	Critical bool
	Detail   string
}

// ValidationResult is the verdict of one validation stage. Score is
// 100 minus 10 per error minus 2 per warning, floored at 0; the
// post-migration stage instead subtracts the weights of failed checks.
type ValidationResult struct {
	Stage    ValidationStage
	Errors   []ValidationIssue
	Warnings []ValidationIssue
	Checks   []IntegrityCheck
	Score    int
	Passed   bool
}

// FailedChecks returns the names of integrity checks that did not pass.
func (r *ValidationResult) FailedChecks() []string {
	var names []string
	for _, c := range r.Checks {
		if !c.Passed {
			names = append(names, c.Name)
		}
	}
	return names
}

// MigrationReport is returned to the caller after every attempt,
// successful or not.
type MigrationReport struct {
	Success           bool
	GuestID           string
	AccountID         uuid.UUID
	Strategy          Strategy
	MigratedItems     int
	RestoredItems     int
	Errors            []string
	Warnings          []string
	IntegrityScore    int
	Resolutions       []Resolution
	CheckpointID      *uuid.UUID
	RollbackPerformed bool
	RollbackSucceeded bool
}
