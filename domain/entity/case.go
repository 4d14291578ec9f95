package entity

import (
	"fmt"
	"time"
)

// Workflow stages for the security/compliance case lifecycle. The main flow is
// the mandatory linear sequence; side states are conditional and never part of it.
const (
	StatusIntake        = "INTAKE"
	StatusTriage        = "TRIAGE"
	StatusAssignment    = "ASSIGNMENT"
	StatusInvestigation = "INVESTIGATION"
	StatusCustomerWait  = "CUSTOMER_WAIT"
	StatusReviewQA      = "REVIEW_QA"
	StatusResolved      = "RESOLVED"

	StatusReopened  = "REOPENED"
	StatusEscalated = "ESCALATED"
	StatusCancelled = "CANCELLED"
)

// MainFlow lists the mandatory workflow stages in order.
var MainFlow = []string{
	StatusIntake,
	StatusTriage,
	StatusAssignment,
	StatusInvestigation,
	StatusCustomerWait,
	StatusReviewQA,
	StatusResolved,
}

// SideStates lists the conditional side states.
var SideStates = []string{StatusReopened, StatusEscalated, StatusCancelled}

// TZInconsistent is the timezone label assigned to events whose timestamp was
// corrupted by the storage-as-UTC defect.
const TZInconsistent = "INCONSISTENT"

// DuplicateSuffix marks retry copies of an event produced by the duplication defect.
const DuplicateSuffix = "_dup"

// CaseID formats a 1-based sequence number as a case identifier. Zero-padding
// keeps lexicographic and numeric order identical.
func CaseID(seq int) string {
	return fmt.Sprintf("C%09d", seq)
}

// CaseRecord represents a single security review case. A case is created once
// at intake and never mutated afterwards; case_id values are unique across the
// full run and sort in global intake order.
type CaseRecord struct {
	CaseID   string    `db:"case_id" json:"case_id"`
	IntakeTS time.Time `db:"intake_ts" json:"intake_ts"`
	CaseType string    `db:"case_type" json:"case_type"`
	Tier     string    `db:"tier" json:"tier"`
	TeamTZ   string    `db:"team_tz" json:"team_tz"`
}

// EventRecord represents one row of the case event log. EventTS is nil when the
// authoritative event time was lost (the row remains present and keeps its
// ingestion time). After defect injection, event ids are no longer globally
// unique and stored order may diverge from logical order; both are modeled
// properties of the dataset, not errors.
type EventRecord struct {
	EventID       string     `db:"event_id" json:"event_id"`
	CaseID        string     `db:"case_id" json:"case_id"`
	Status        string     `db:"status" json:"status"`
	EventTS       *time.Time `db:"event_ts" json:"event_ts,omitempty"`
	IngestionTS   time.Time  `db:"ingestion_ts" json:"ingestion_ts"`
	EventTZ       string     `db:"event_tz" json:"event_tz"`
	IsLateArrival bool       `db:"is_late_arriving" json:"is_late_arriving"`
	IsDuplicate   bool       `db:"is_duplicate" json:"is_duplicate"`
}

// Clone returns a deep copy of the event, including its nullable timestamp.
func (e EventRecord) Clone() EventRecord {
	c := e
	if e.EventTS != nil {
		ts := *e.EventTS
		c.EventTS = &ts
	}
	return c
}
