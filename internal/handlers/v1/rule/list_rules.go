package rule

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/recurring-server/internal/logging"
	"github.com/carson-networks/recurring-server/internal/service"
)

// ListRulesCursor represents a pagination cursor in request and response bodies.
type ListRulesCursor struct {
	Position int `json:"position" minimum:"0" doc:"Numeric offset position for the next page"`
	Limit    int `json:"limit" minimum:"1" maximum:"100" doc:"Page size used for this cursor"`
}

// ListRulesBody is the request body for listing rules.
type ListRulesBody struct {
	Cursor *ListRulesCursor `json:"cursor,omitempty" doc:"Cursor from a previous response to fetch the next page"`
}

// ListRulesInput is the Huma input for listing rules.
type ListRulesInput struct {
	Body ListRulesBody
}

// ListRulesResponseBody is the response body for listing rules.
type ListRulesResponseBody struct {
	Rules      []Rule           `json:"rules" doc:"Page of rules"`
	NextCursor *ListRulesCursor `json:"nextCursor,omitempty" doc:"Cursor to fetch the next page, absent on the last page"`
}

// ListRulesOutput is the Huma output for listing rules.
type ListRulesOutput struct {
	Body ListRulesResponseBody
}

// ruleLister is the interface for listing rules.
type ruleLister interface {
	ListRules(ctx context.Context, cursor *service.RuleCursor) ([]service.Rule, *service.RuleCursor, error)
}

// ListRulesHandler handles POST /v1/rules/list.
type ListRulesHandler struct {
	RuleService ruleLister
}

// NewListRulesHandler creates a new ListRulesHandler.
func NewListRulesHandler(svc ruleLister) *ListRulesHandler {
	return &ListRulesHandler{RuleService: svc}
}

// Register registers the list rules endpoint with the Huma API.
func (h *ListRulesHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-rules",
		Method:      http.MethodPost,
		Path:        "/v1/rules/list",
		Summary:     "List rules",
		Description: "Returns a paginated list of recurring rules using cursor-based pagination.",
		Tags:        []string{"Rules"},
	}, h.handle)
}

func parseListRulesInput(input *ListRulesInput) (*service.RuleCursor, error) {
	if input.Body.Cursor == nil {
		return nil, nil
	}
	if input.Body.Cursor.Position < 0 {
		return nil, huma.NewError(http.StatusBadRequest, "cursor position must be non-negative")
	}
	return &service.RuleCursor{
		Position: input.Body.Cursor.Position,
		Limit:    input.Body.Cursor.Limit,
	}, nil
}

func (h *ListRulesHandler) handle(ctx context.Context, input *ListRulesInput) (*ListRulesOutput, error) {
	logData := logging.GetLogData(ctx)
	requestCursor, err := parseListRulesInput(input)
	if err != nil {
		return nil, err
	}

	var stopTimer func()
	if logData != nil {
		stopTimer = logData.AddTiming("listRulesMs")
	}
	rules, nextCursor, err := h.RuleService.ListRules(ctx, requestCursor)
	if stopTimer != nil {
		stopTimer()
	}
	if err != nil {
		return nil, huma.NewError(http.StatusInternalServerError, "failed to list rules", err)
	}

	if logData != nil {
		logData.AddData("ruleCount", len(rules))
	}

	resp := ListRulesResponseBody{
		Rules: make([]Rule, len(rules)),
	}
	for i := range rules {
		resp.Rules[i] = toAPIRule(&rules[i])
	}
	if nextCursor != nil {
		resp.NextCursor = &ListRulesCursor{
			Position: nextCursor.Position,
			Limit:    nextCursor.Limit,
		}
	}

	return &ListRulesOutput{Body: resp}, nil
}
