package rule

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"
)

// UpcomingInput is the Huma input for previewing upcoming occurrences.
type UpcomingInput struct {
	ID    string `path:"id" doc:"Rule UUID"`
	Count int    `query:"count" minimum:"1" maximum:"60" doc:"Number of occurrences to preview, defaults to 12"`
}

// UpcomingResponseBody is the response body for the occurrence preview.
type UpcomingResponseBody struct {
	Occurrences []string `json:"occurrences" doc:"RFC3339 instants of the next pending occurrences, oldest first"`
}

// UpcomingOutput is the Huma output for previewing upcoming occurrences.
type UpcomingOutput struct {
	Body UpcomingResponseBody
}

// rulePreviewer is the interface for previewing occurrences.
type rulePreviewer interface {
	UpcomingOccurrences(ctx context.Context, id uuid.UUID, count int) ([]time.Time, error)
}

// UpcomingHandler handles GET /v1/rules/{id}/upcoming.
type UpcomingHandler struct {
	RuleService rulePreviewer
}

// NewUpcomingHandler creates a new UpcomingHandler.
func NewUpcomingHandler(svc rulePreviewer) *UpcomingHandler {
	return &UpcomingHandler{RuleService: svc}
}

// Register registers the upcoming occurrences endpoint with the Huma API.
func (h *UpcomingHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "upcoming-occurrences",
		Method:      http.MethodGet,
		Path:        "/v1/rules/{id}/upcoming",
		Summary:     "Preview upcoming occurrences",
		Description: "Returns the rule's next pending occurrence instants without materializing anything.",
		Tags:        []string{"Rules"},
	}, h.handle)
}

func (h *UpcomingHandler) handle(ctx context.Context, input *UpcomingInput) (*UpcomingOutput, error) {
	id, err := uuid.FromString(input.ID)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid rule ID", err)
	}

	count := input.Count
	if count == 0 {
		count = 12
	}

	occurrences, err := h.RuleService.UpcomingOccurrences(ctx, id, count)
	if err != nil {
		return nil, huma.NewError(http.StatusNotFound, "rule not found", err)
	}

	resp := UpcomingResponseBody{Occurrences: make([]string, len(occurrences))}
	for i, occ := range occurrences {
		resp.Occurrences[i] = occ.Format(time.RFC3339)
	}
	return &UpcomingOutput{Body: resp}, nil
}
