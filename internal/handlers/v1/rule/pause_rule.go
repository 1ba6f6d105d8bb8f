package rule

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"
)

// PauseRuleInput is the Huma input for pausing or resuming a rule.
type PauseRuleInput struct {
	ID string `path:"id" doc:"Rule UUID"`
}

// PauseRuleOutput is the Huma output for pausing or resuming a rule.
type PauseRuleOutput struct {
	Status int
}

// rulePauser is the interface for pausing and resuming rules.
type rulePauser interface {
	PauseRule(ctx context.Context, id uuid.UUID) error
	ResumeRule(ctx context.Context, id uuid.UUID) error
}

// PauseRuleHandler handles POST /v1/rules/{id}/pause and
// POST /v1/rules/{id}/resume. Pausing freezes the schedule in place;
// resuming picks it back up, catching up overdue occurrences on the
// next scheduler pass.
type PauseRuleHandler struct {
	RuleService rulePauser
}

// NewPauseRuleHandler creates a new PauseRuleHandler.
func NewPauseRuleHandler(svc rulePauser) *PauseRuleHandler {
	return &PauseRuleHandler{RuleService: svc}
}

// Register registers the pause and resume endpoints with the Huma API.
func (h *PauseRuleHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "pause-rule",
		Method:      http.MethodPost,
		Path:        "/v1/rules/{id}/pause",
		Summary:     "Pause rule",
		Description: "Freezes the rule's schedule without losing its position in the series.",
		Tags:        []string{"Rules"},
	}, h.handlePause)
	huma.Register(api, huma.Operation{
		OperationID: "resume-rule",
		Method:      http.MethodPost,
		Path:        "/v1/rules/{id}/resume",
		Summary:     "Resume rule",
		Description: "Reactivates a paused rule at its frozen position.",
		Tags:        []string{"Rules"},
	}, h.handleResume)
}

func (h *PauseRuleHandler) handlePause(ctx context.Context, input *PauseRuleInput) (*PauseRuleOutput, error) {
	id, err := uuid.FromString(input.ID)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid rule ID", err)
	}
	if err := h.RuleService.PauseRule(ctx, id); err != nil {
		return nil, huma.NewError(http.StatusInternalServerError, "failed to pause rule", err)
	}
	return &PauseRuleOutput{Status: http.StatusNoContent}, nil
}

func (h *PauseRuleHandler) handleResume(ctx context.Context, input *PauseRuleInput) (*PauseRuleOutput, error) {
	id, err := uuid.FromString(input.ID)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid rule ID", err)
	}
	if err := h.RuleService.ResumeRule(ctx, id); err != nil {
		return nil, huma.NewError(http.StatusInternalServerError, "failed to resume rule", err)
	}
	return &PauseRuleOutput{Status: http.StatusNoContent}, nil
}
