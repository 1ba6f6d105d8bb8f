package rulestore

import (
	"context"
	"errors"
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/aarondl/opt/omitnull"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/recurring-server/internal/recurrence"
)

// ErrVersionConflict is returned by CommitAdvance when another writer has
// already advanced the rule past the expected version.
var ErrVersionConflict = errors.New("rule version conflict")

// RuleType distinguishes income from expense rules.
type RuleType int16

const (
	RuleTypeIncome RuleType = iota
	RuleTypeExpense
)

func (t RuleType) String() string {
	switch t {
	case RuleTypeIncome:
		return "income"
	case RuleTypeExpense:
		return "expense"
	}
	return "unknown"
}

// RuleStatus is derived, never stored.
type RuleStatus string

const (
	StatusActive  RuleStatus = "active"
	StatusPaused  RuleStatus = "paused"
	StatusExpired RuleStatus = "expired"
)

// RecurringRule is one user-defined recurrence series together with its
// schedule state. The scheduler advances NextExecution/LastMaterialized/
// Version; everything else is owned by the authoring surface.
type RecurringRule struct {
	ID               uuid.UUID
	Name             string
	AmountMinorUnits int64
	CategoryID       uuid.UUID
	AccountID        uuid.UUID
	Type             RuleType
	Frequency        recurrence.Frequency
	Interval         int
	AnchorDate       time.Time
	EndDate          *time.Time
	Note             string
	IsActive         bool
	NextExecution    time.Time
	LastMaterialized *time.Time
	Version          int64
	CreatedAt        time.Time
}

// Status derives the rule's lifecycle state. A rule whose NextExecution has
// moved past its end date is expired regardless of IsActive.
func (r *RecurringRule) Status() RuleStatus {
	if r.EndDate != nil && r.NextExecution.After(*r.EndDate) {
		return StatusExpired
	}
	if !r.IsActive {
		return StatusPaused
	}
	return StatusActive
}

// RuleCreate is the input for creating a new rule. NextExecution is seeded
// by the caller (service layer), not derived here.
type RuleCreate struct {
	Name             string
	AmountMinorUnits int64
	CategoryID       uuid.UUID
	AccountID        uuid.UUID
	Type             RuleType
	Frequency        recurrence.Frequency
	Interval         int
	AnchorDate       time.Time
	EndDate          *time.Time
	Note             string
	NextExecution    time.Time
}

// RuleUpdate carries partial edits. Unset fields are left untouched;
// EndDate may additionally be set to null to clear it.
type RuleUpdate struct {
	Name             omit.Val[string]
	AmountMinorUnits omit.Val[int64]
	CategoryID       omit.Val[uuid.UUID]
	AccountID        omit.Val[uuid.UUID]
	Type             omit.Val[RuleType]
	Frequency        omit.Val[recurrence.Frequency]
	Interval         omit.Val[int]
	AnchorDate       omit.Val[time.Time]
	EndDate          omitnull.Val[time.Time]
	Note             omit.Val[string]

	// NextExecution is re-seeded by the service when the schedule shape
	// changes. Bumps the version like any other write.
	NextExecution omit.Val[time.Time]
}

// RuleFilter specifies filters for listing rules.
type RuleFilter struct {
	Limit  int
	Offset int
}

// IRuleStore defines the persistence contract the engine and the authoring
// surface consume. The abstraction allows swapping the implementation
// without changing callers.
type IRuleStore interface {
	// LoadDueRules returns active rules with NextExecution <= now that have
	// not expired, oldest first.
	LoadDueRules(ctx context.Context, now time.Time) ([]*RecurringRule, error)

	// CommitAdvance moves the rule's schedule state forward if and only if
	// its stored version still equals expectedVersion. Returns
	// ErrVersionConflict otherwise.
	CommitAdvance(ctx context.Context, id uuid.UUID, expectedVersion int64, newNext time.Time, newLast *time.Time) error

	FindByID(ctx context.Context, id uuid.UUID) (*RecurringRule, error)
	Insert(ctx context.Context, create *RuleCreate) (uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, update *RuleUpdate) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	List(ctx context.Context, filter *RuleFilter) ([]*RecurringRule, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
