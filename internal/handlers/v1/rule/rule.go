package rule

import (
	"time"

	"github.com/carson-networks/recurring-server/internal/service"
)

// Rule is the API response model for a recurring rule.
// It is used only for responses, not for request bodies.
type Rule struct {
	ID               string  `json:"id" doc:"Rule UUID"`
	Name             string  `json:"name" doc:"Display name, used as the default transaction name"`
	AmountMinorUnits int64   `json:"amountMinorUnits" doc:"Amount in minor currency units, always positive"`
	CategoryID       string  `json:"categoryID" doc:"Category UUID"`
	AccountID        string  `json:"accountID" doc:"Account UUID"`
	Type             string  `json:"type" enum:"income,expense" doc:"Whether occurrences credit or debit the account"`
	Frequency        string  `json:"frequency" doc:"Recurrence unit: DAILY, WEEKLY, MONTHLY or YEARLY"`
	Interval         int     `json:"interval" doc:"Number of frequency units between occurrences"`
	AnchorDate       string  `json:"anchorDate" doc:"RFC3339 instant the series is anchored to"`
	EndDate          *string `json:"endDate,omitempty" doc:"RFC3339 inclusive end of the series, absent for open-ended rules"`
	Note             string  `json:"note,omitempty" doc:"Note copied onto materialized transactions"`
	Status           string  `json:"status" enum:"active,paused,expired" doc:"Derived rule status"`
	Schedule         string  `json:"schedule" doc:"Human-readable schedule, e.g. \"every 2 weeks\""`
	RRule            string  `json:"rrule,omitempty" doc:"RFC 5545 rendering of the schedule"`
	NextExecution    string  `json:"nextExecution" doc:"RFC3339 instant of the next pending occurrence"`
	LastMaterialized *string `json:"lastMaterialized,omitempty" doc:"RFC3339 instant of the last materialized occurrence"`
	CreatedAt        string  `json:"createdAt" doc:"RFC3339 creation time"`
}

func toAPIRule(r *service.Rule) Rule {
	out := Rule{
		ID:               r.ID.String(),
		Name:             r.Name,
		AmountMinorUnits: r.AmountMinorUnits,
		CategoryID:       r.CategoryID.String(),
		AccountID:        r.AccountID.String(),
		Type:             r.Type.String(),
		Frequency:        string(r.Frequency),
		Interval:         r.Interval,
		AnchorDate:       r.AnchorDate.Format(time.RFC3339),
		Note:             r.Note,
		Status:           string(r.Status),
		Schedule:         r.Schedule,
		RRule:            r.RRule,
		NextExecution:    r.NextExecution.Format(time.RFC3339),
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
	}
	if r.EndDate != nil {
		formatted := r.EndDate.Format(time.RFC3339)
		out.EndDate = &formatted
	}
	if r.LastMaterialized != nil {
		formatted := r.LastMaterialized.Format(time.RFC3339)
		out.LastMaterialized = &formatted
	}
	return out
}
