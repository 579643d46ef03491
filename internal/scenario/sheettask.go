package scenario

import (
	"context"
	"encoding/json"
	"fmt"

	"remote-browser-env/internal/entity"
	"remote-browser-env/internal/evaluate"
	"remote-browser-env/internal/setup"
	"remote-browser-env/pkg/apperr"
)

// complete-sheet-task points the agent at an existing spreadsheet and checks
// expected cell values afterwards.
type completeSheetHandler struct{}

type completeSheetArgs struct {
	Prompt           string            `json:"prompt"`
	SheetURL         string            `json:"sheet_url"`
	ExpectedCells    map[string]string `json:"expected_cells"`
	PartialRewarding *bool             `json:"partial_rewarding,omitempty"`
}

type completeSheetInstance struct {
	args    completeSheetArgs
	partial bool
}

func (h *completeSheetHandler) Name() string {
	return "complete-sheet-task"
}

func (h *completeSheetHandler) NewInstance(raw json.RawMessage) (Instance, error) {
	const op = "complete-sheet-task.NewInstance"

	var args completeSheetArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return nil, err
	}

	if args.Prompt == "" {
		return nil, apperr.InvalidReqError(op, "prompt", fmt.Errorf("prompt is required"))
	}
	if args.SheetURL == "" {
		return nil, apperr.InvalidReqError(op, "sheet_url", fmt.Errorf("sheet_url is required"))
	}
	if len(args.ExpectedCells) == 0 {
		return nil, apperr.InvalidReqError(op, "expected_cells", fmt.Errorf("expected_cells must not be empty"))
	}

	partial := true
	if args.PartialRewarding != nil {
		partial = *args.PartialRewarding
	}

	return &completeSheetInstance{args: args, partial: partial}, nil
}

func (i *completeSheetInstance) Prompt() string {
	return i.args.Prompt
}

func (i *completeSheetInstance) Setup(ctx context.Context, env *Env) error {
	return setup.OpenSheet(ctx, env.Session, i.args.SheetURL)
}

func (i *completeSheetInstance) Evaluate(ctx context.Context, env *Env, _ string) *entity.EvaluationResult {
	return scoreSheetCells(ctx, env, i.args.ExpectedCells, i.partial)
}

// scoreSheetCells reads the grid through the clipboard, preferring the
// ANSWER tab when the document has one, and scores the expected cells.
func scoreSheetCells(ctx context.Context, env *Env, expected map[string]string, partial bool) *entity.EvaluationResult {
	if _, err := env.Session.ActivateSheetTab(ctx, "ANSWER"); err != nil {
		return evaluate.Failure(apperr.StageEvaluation, err)
	}

	gridText, err := env.Session.GridText(ctx)
	if err != nil {
		return evaluate.Failure(apperr.StageEvaluation, err)
	}

	return evaluate.CellValues(gridText, expected, partial)
}
