package scheduler

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/recurring-server/internal/engine"
)

// RunPassInput is the Huma input for triggering a scheduler pass.
type RunPassInput struct{}

// RunPassOutput is the Huma output for triggering a scheduler pass.
type RunPassOutput struct {
	Body engine.PassReport
}

// passRunner is the interface for running a scheduler pass on demand.
type passRunner interface {
	RunPassNow(ctx context.Context) (*engine.PassReport, error)
}

// RunPassHandler handles POST /v1/scheduler/run. The pass executes on the
// scheduler's worker, so a manual trigger never races the background loop.
type RunPassHandler struct {
	Operator passRunner
}

// NewRunPassHandler creates a new RunPassHandler.
func NewRunPassHandler(op passRunner) *RunPassHandler {
	return &RunPassHandler{Operator: op}
}

// Register registers the run pass endpoint with the Huma API.
func (h *RunPassHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "run-scheduler-pass",
		Method:      http.MethodPost,
		Path:        "/v1/scheduler/run",
		Summary:     "Run scheduler pass",
		Description: "Runs a materialization pass immediately and returns its report.",
		Tags:        []string{"Scheduler"},
	}, h.handle)
}

func (h *RunPassHandler) handle(ctx context.Context, _ *RunPassInput) (*RunPassOutput, error) {
	report, err := h.Operator.RunPassNow(ctx)
	if err != nil {
		return nil, huma.NewError(http.StatusInternalServerError, "scheduler pass failed", err)
	}
	return &RunPassOutput{Body: *report}, nil
}
