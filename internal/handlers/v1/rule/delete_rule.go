package rule

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"
)

// DeleteRuleInput is the Huma input for deleting a rule.
type DeleteRuleInput struct {
	ID string `path:"id" doc:"Rule UUID"`
}

// DeleteRuleOutput is the Huma output for deleting a rule.
type DeleteRuleOutput struct {
	Status int
}

// ruleDeleter is the interface for deleting rules.
type ruleDeleter interface {
	DeleteRule(ctx context.Context, id uuid.UUID) error
}

// DeleteRuleHandler handles DELETE /v1/rules/{id}. Transactions already
// materialized from the rule are kept.
type DeleteRuleHandler struct {
	RuleService ruleDeleter
}

// NewDeleteRuleHandler creates a new DeleteRuleHandler.
func NewDeleteRuleHandler(svc ruleDeleter) *DeleteRuleHandler {
	return &DeleteRuleHandler{RuleService: svc}
}

// Register registers the delete rule endpoint with the Huma API.
func (h *DeleteRuleHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "delete-rule",
		Method:      http.MethodDelete,
		Path:        "/v1/rules/{id}",
		Summary:     "Delete rule",
		Description: "Deletes a recurring rule. Previously materialized transactions are untouched.",
		Tags:        []string{"Rules"},
	}, h.handle)
}

func (h *DeleteRuleHandler) handle(ctx context.Context, input *DeleteRuleInput) (*DeleteRuleOutput, error) {
	id, err := uuid.FromString(input.ID)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid rule ID", err)
	}
	if err := h.RuleService.DeleteRule(ctx, id); err != nil {
		return nil, huma.NewError(http.StatusInternalServerError, "failed to delete rule", err)
	}
	return &DeleteRuleOutput{Status: http.StatusNoContent}, nil
}
