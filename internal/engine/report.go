package engine

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// PassReport summarizes one scheduling pass. Partial progress is normal:
// some rules may have materialized while others errored or were deferred.
type PassReport struct {
	StartedAt    time.Time    `json:"startedAt"`
	RulesDue     int          `json:"rulesDue"`
	Materialized int          `json:"materialized"`
	Truncations  []Truncation `json:"truncations,omitempty"`
	Errors       []RuleError  `json:"errors,omitempty"`
}

// Truncation reports a rule whose backlog exceeded the catch-up cap. The
// skipped occurrences are never materialized; the rule resumes at ResumedAt.
type Truncation struct {
	RuleID    uuid.UUID `json:"ruleID"`
	Skipped   int       `json:"skipped"`
	ResumedAt time.Time `json:"resumedAt"`
}

// RuleError is a per-rule failure that did not abort the pass. Stage "sink"
// means the ledger append failed after the rule was already advanced: that
// occurrence is permanently skipped and must reach the user.
type RuleError struct {
	RuleID     uuid.UUID  `json:"ruleID"`
	Stage      string     `json:"stage"`
	Occurrence *time.Time `json:"occurrence,omitempty"`
	Message    string     `json:"message"`
}
