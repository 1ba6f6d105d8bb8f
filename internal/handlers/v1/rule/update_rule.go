package rule

import (
	"context"
	"net/http"
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/aarondl/opt/omitnull"
	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/recurring-server/internal/recurrence"
	"github.com/carson-networks/recurring-server/internal/service"
)

// UpdateRuleBody is the request body for editing a rule. All fields are
// optional; omitted fields keep their stored value. Setting clearEndDate
// removes the end date and makes the rule open-ended again.
type UpdateRuleBody struct {
	Name             *string `json:"name,omitempty" doc:"Display name"`
	AmountMinorUnits *int64  `json:"amountMinorUnits,omitempty" minimum:"1" doc:"Amount in minor currency units"`
	CategoryID       *string `json:"categoryID,omitempty" doc:"Category UUID"`
	AccountID        *string `json:"accountID,omitempty" doc:"Account UUID"`
	Type             *string `json:"type,omitempty" enum:"income,expense" doc:"Whether occurrences credit or debit the account"`
	Frequency        *string `json:"frequency,omitempty" doc:"Recurrence unit: DAILY, WEEKLY, MONTHLY or YEARLY"`
	Interval         *int    `json:"interval,omitempty" minimum:"1" doc:"Number of frequency units between occurrences"`
	AnchorDate       *string `json:"anchorDate,omitempty" doc:"RFC3339 instant the series is anchored to"`
	EndDate          *string `json:"endDate,omitempty" doc:"RFC3339 inclusive end of the series"`
	ClearEndDate     bool    `json:"clearEndDate,omitempty" doc:"Remove the end date, making the rule open-ended"`
	Note             *string `json:"note,omitempty" doc:"Note copied onto materialized transactions"`
}

// UpdateRuleInput is the Huma input for editing a rule.
type UpdateRuleInput struct {
	ID   string `path:"id" doc:"Rule UUID"`
	Body UpdateRuleBody
}

// UpdateRuleOutput is the Huma output for editing a rule.
type UpdateRuleOutput struct {
	Body Rule
}

// ruleUpdater is the interface for editing rules.
type ruleUpdater interface {
	UpdateRule(ctx context.Context, id uuid.UUID, update service.UpdateRule) (*service.Rule, error)
}

// UpdateRuleHandler handles PATCH /v1/rules/{id}.
type UpdateRuleHandler struct {
	RuleService ruleUpdater
}

// NewUpdateRuleHandler creates a new UpdateRuleHandler.
func NewUpdateRuleHandler(svc ruleUpdater) *UpdateRuleHandler {
	return &UpdateRuleHandler{RuleService: svc}
}

// Register registers the update rule endpoint with the Huma API.
func (h *UpdateRuleHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "update-rule",
		Method:      http.MethodPatch,
		Path:        "/v1/rules/{id}",
		Summary:     "Update rule",
		Description: "Applies a partial edit to a recurring rule. Edits to the schedule shape recompute the next pending occurrence.",
		Tags:        []string{"Rules"},
	}, h.handle)
}

// parseUpdateRuleInput parses and validates the API input.
func parseUpdateRuleInput(input *UpdateRuleInput) (*service.UpdateRule, error) {
	update := &service.UpdateRule{}

	if input.Body.Name != nil {
		update.Name = omit.From(*input.Body.Name)
	}
	if input.Body.AmountMinorUnits != nil {
		update.AmountMinorUnits = omit.From(*input.Body.AmountMinorUnits)
	}
	if input.Body.CategoryID != nil {
		categoryID, err := uuid.FromString(*input.Body.CategoryID)
		if err != nil {
			return nil, huma.NewError(http.StatusBadRequest, "invalid categoryID", err)
		}
		update.CategoryID = omit.From(categoryID)
	}
	if input.Body.AccountID != nil {
		accountID, err := uuid.FromString(*input.Body.AccountID)
		if err != nil {
			return nil, huma.NewError(http.StatusBadRequest, "invalid accountID", err)
		}
		update.AccountID = omit.From(accountID)
	}
	if input.Body.Type != nil {
		ruleType, err := parseRuleType(*input.Body.Type)
		if err != nil {
			return nil, huma.NewError(http.StatusBadRequest, "invalid type", err)
		}
		update.Type = omit.From(ruleType)
	}
	if input.Body.Frequency != nil {
		frequency, err := recurrence.ParseFrequency(*input.Body.Frequency)
		if err != nil {
			return nil, huma.NewError(http.StatusBadRequest, "invalid frequency", err)
		}
		update.Frequency = omit.From(frequency)
	}
	if input.Body.Interval != nil {
		update.Interval = omit.From(*input.Body.Interval)
	}
	if input.Body.AnchorDate != nil {
		anchorDate, err := time.Parse(time.RFC3339, *input.Body.AnchorDate)
		if err != nil {
			return nil, huma.NewError(http.StatusBadRequest, "invalid anchorDate", err)
		}
		update.AnchorDate = omit.From(anchorDate)
	}
	if input.Body.ClearEndDate {
		update.EndDate = omitnull.FromPtr[time.Time](nil)
	} else if input.Body.EndDate != nil {
		endDate, err := time.Parse(time.RFC3339, *input.Body.EndDate)
		if err != nil {
			return nil, huma.NewError(http.StatusBadRequest, "invalid endDate", err)
		}
		update.EndDate = omitnull.From(endDate)
	}
	if input.Body.Note != nil {
		update.Note = omit.From(*input.Body.Note)
	}

	return update, nil
}

func (h *UpdateRuleHandler) handle(ctx context.Context, input *UpdateRuleInput) (*UpdateRuleOutput, error) {
	id, err := uuid.FromString(input.ID)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid rule ID", err)
	}

	update, err := parseUpdateRuleInput(input)
	if err != nil {
		return nil, err
	}

	updated, err := h.RuleService.UpdateRule(ctx, id, *update)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "failed to update rule", err)
	}

	return &UpdateRuleOutput{Body: toAPIRule(updated)}, nil
}
