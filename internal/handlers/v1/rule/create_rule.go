package rule

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/recurring-server/internal/recurrence"
	"github.com/carson-networks/recurring-server/internal/service"
	"github.com/carson-networks/recurring-server/internal/storage/rulestore"
)

// CreateRuleBody is the request body for defining a recurring rule.
type CreateRuleBody struct {
	Name             string `json:"name" required:"true" doc:"Display name, used as the default transaction name"`
	AmountMinorUnits int64  `json:"amountMinorUnits" required:"true" minimum:"1" doc:"Amount in minor currency units, always positive"`
	CategoryID       string `json:"categoryID" required:"true" doc:"Category UUID"`
	AccountID        string `json:"accountID" required:"true" doc:"Account UUID"`
	Type             string `json:"type" required:"true" enum:"income,expense" doc:"Whether occurrences credit or debit the account"`
	Frequency        string `json:"frequency" required:"true" doc:"Recurrence unit: DAILY, WEEKLY, MONTHLY or YEARLY"`
	Interval         int    `json:"interval,omitempty" minimum:"1" doc:"Number of frequency units between occurrences, defaults to 1"`
	AnchorDate       string `json:"anchorDate" required:"true" doc:"RFC3339 instant the series is anchored to"`
	EndDate          string `json:"endDate,omitempty" doc:"RFC3339 inclusive end of the series"`
	Note             string `json:"note,omitempty" doc:"Note copied onto materialized transactions"`
}

// CreateRuleInput is the Huma input for creating a rule.
type CreateRuleInput struct {
	Body CreateRuleBody
}

// CreateRuleResponseBody is the response body for creating a rule.
type CreateRuleResponseBody struct {
	ID string `json:"id" doc:"UUID of the created rule"`
}

// CreateRuleOutput is the Huma output for creating a rule.
type CreateRuleOutput struct {
	Status int
	Body   CreateRuleResponseBody
}

// ruleCreator is the interface for defining rules.
type ruleCreator interface {
	CreateRule(ctx context.Context, create service.CreateRule) (uuid.UUID, error)
}

// CreateRuleHandler handles POST /v1/rules.
type CreateRuleHandler struct {
	RuleService ruleCreator
}

// NewCreateRuleHandler creates a new CreateRuleHandler.
func NewCreateRuleHandler(svc ruleCreator) *CreateRuleHandler {
	return &CreateRuleHandler{RuleService: svc}
}

// Register registers the create rule endpoint with the Huma API.
func (h *CreateRuleHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-rule",
		Method:        http.MethodPost,
		Path:          "/v1/rules",
		Summary:       "Create rule",
		Description:   "Defines a new recurring transaction rule.",
		Tags:          []string{"Rules"},
		DefaultStatus: http.StatusCreated,
	}, h.handle)
}

func parseRuleType(s string) (rulestore.RuleType, error) {
	switch s {
	case "income":
		return rulestore.RuleTypeIncome, nil
	case "expense":
		return rulestore.RuleTypeExpense, nil
	}
	return 0, fmt.Errorf("unknown rule type %q", s)
}

// parseCreateRuleInput parses and validates the API input.
func parseCreateRuleInput(input *CreateRuleInput) (*service.CreateRule, error) {
	categoryID, err := uuid.FromString(input.Body.CategoryID)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid categoryID", err)
	}
	accountID, err := uuid.FromString(input.Body.AccountID)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid accountID", err)
	}
	ruleType, err := parseRuleType(input.Body.Type)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid type", err)
	}
	frequency, err := recurrence.ParseFrequency(input.Body.Frequency)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid frequency", err)
	}
	anchorDate, err := time.Parse(time.RFC3339, input.Body.AnchorDate)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid anchorDate", err)
	}

	var endDate *time.Time
	if input.Body.EndDate != "" {
		parsed, parseErr := time.Parse(time.RFC3339, input.Body.EndDate)
		if parseErr != nil {
			return nil, huma.NewError(http.StatusBadRequest, "invalid endDate", parseErr)
		}
		endDate = &parsed
	}

	interval := input.Body.Interval
	if interval == 0 {
		interval = 1
	}

	return &service.CreateRule{
		Name:             input.Body.Name,
		AmountMinorUnits: input.Body.AmountMinorUnits,
		CategoryID:       categoryID,
		AccountID:        accountID,
		Type:             ruleType,
		Frequency:        frequency,
		Interval:         interval,
		AnchorDate:       anchorDate,
		EndDate:          endDate,
		Note:             input.Body.Note,
	}, nil
}

func (h *CreateRuleHandler) handle(ctx context.Context, input *CreateRuleInput) (*CreateRuleOutput, error) {
	create, err := parseCreateRuleInput(input)
	if err != nil {
		return nil, err
	}

	id, err := h.RuleService.CreateRule(ctx, *create)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "failed to create rule", err)
	}

	return &CreateRuleOutput{
		Status: http.StatusCreated,
		Body:   CreateRuleResponseBody{ID: id.String()},
	}, nil
}
