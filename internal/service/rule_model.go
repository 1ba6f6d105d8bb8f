package service

import (
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/aarondl/opt/omitnull"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/recurring-server/internal/recurrence"
	"github.com/carson-networks/recurring-server/internal/storage/rulestore"
)

// Rule is the service-layer view of a recurring rule, enriched with the
// derived status and a rendered schedule.
type Rule struct {
	ID               uuid.UUID
	Name             string
	AmountMinorUnits int64
	CategoryID       uuid.UUID
	AccountID        uuid.UUID
	Type             rulestore.RuleType
	Frequency        recurrence.Frequency
	Interval         int
	AnchorDate       time.Time
	EndDate          *time.Time
	Note             string
	Status           rulestore.RuleStatus
	Schedule         string
	RRule            string
	NextExecution    time.Time
	LastMaterialized *time.Time
	CreatedAt        time.Time
}

// CreateRule is the input for defining a new rule.
type CreateRule struct {
	Name             string
	AmountMinorUnits int64
	CategoryID       uuid.UUID
	AccountID        uuid.UUID
	Type             rulestore.RuleType
	Frequency        recurrence.Frequency
	Interval         int
	AnchorDate       time.Time
	EndDate          *time.Time
	Note             string
}

// UpdateRule carries partial edits; unset fields keep their stored value.
type UpdateRule struct {
	Name             omit.Val[string]
	AmountMinorUnits omit.Val[int64]
	CategoryID       omit.Val[uuid.UUID]
	AccountID        omit.Val[uuid.UUID]
	Type             omit.Val[rulestore.RuleType]
	Frequency        omit.Val[recurrence.Frequency]
	Interval         omit.Val[int]
	AnchorDate       omit.Val[time.Time]
	EndDate          omitnull.Val[time.Time]
	Note             omit.Val[string]
}

// RuleCursor identifies a position in a paginated rule listing.
type RuleCursor struct {
	Position int
	Limit    int
}
