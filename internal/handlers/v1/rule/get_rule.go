package rule

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/recurring-server/internal/service"
)

// GetRuleInput is the Huma input for fetching a single rule.
type GetRuleInput struct {
	ID string `path:"id" doc:"Rule UUID"`
}

// GetRuleOutput is the Huma output for fetching a single rule.
type GetRuleOutput struct {
	Body Rule
}

// ruleGetter is the interface for fetching a rule by ID.
type ruleGetter interface {
	GetRule(ctx context.Context, id uuid.UUID) (*service.Rule, error)
}

// GetRuleHandler handles GET /v1/rules/{id}.
type GetRuleHandler struct {
	RuleService ruleGetter
}

// NewGetRuleHandler creates a new GetRuleHandler.
func NewGetRuleHandler(svc ruleGetter) *GetRuleHandler {
	return &GetRuleHandler{RuleService: svc}
}

// Register registers the get rule endpoint with the Huma API.
func (h *GetRuleHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-rule",
		Method:      http.MethodGet,
		Path:        "/v1/rules/{id}",
		Summary:     "Get rule",
		Description: "Returns a single recurring rule by ID.",
		Tags:        []string{"Rules"},
	}, h.handle)
}

func (h *GetRuleHandler) handle(ctx context.Context, input *GetRuleInput) (*GetRuleOutput, error) {
	id, err := uuid.FromString(input.ID)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid rule ID", err)
	}

	rule, err := h.RuleService.GetRule(ctx, id)
	if err != nil {
		return nil, huma.NewError(http.StatusNotFound, "rule not found", err)
	}

	return &GetRuleOutput{Body: toAPIRule(rule)}, nil
}
