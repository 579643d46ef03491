package scenario

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"remote-browser-env/internal/entity"
	"remote-browser-env/internal/evaluate"
	"remote-browser-env/internal/setup"
	"remote-browser-env/pkg/apperr"
)

// sheet-from-file converts an uploaded XLSX into a fresh shared Google Sheet
// and asks the agent to work inside it.
type sheetFromFileHandler struct{}

type sheetFromFileArgs struct {
	Prompt        string            `json:"prompt"`
	FileURL       string            `json:"file_url,omitempty"`
	FileBytes     string            `json:"file_bytes,omitempty"`
	SheetName     string            `json:"sheet_name,omitempty"`
	ExpectedCells map[string]string `json:"expected_cells,omitempty"`
	ExpectedText  []string          `json:"expected_text,omitempty"`
}

type sheetFromFileInstance struct {
	args sheetFromFileArgs

	sheetURL string
}

func (h *sheetFromFileHandler) Name() string {
	return "sheet-from-file"
}

func (h *sheetFromFileHandler) NewInstance(raw json.RawMessage) (Instance, error) {
	const op = "sheet-from-file.NewInstance"

	var args sheetFromFileArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return nil, err
	}

	if args.Prompt == "" {
		return nil, apperr.InvalidReqError(op, "prompt", fmt.Errorf("prompt is required"))
	}
	if args.FileURL == "" && args.FileBytes == "" {
		return nil, apperr.InvalidReqError(op, "file_url",
			fmt.Errorf("either file_url or file_bytes is required"))
	}
	if len(args.ExpectedCells) == 0 && len(args.ExpectedText) == 0 {
		return nil, apperr.InvalidReqError(op, "expected_cells",
			fmt.Errorf("either expected_cells or expected_text is required"))
	}
	if args.SheetName == "" {
		args.SheetName = "Worksheet"
	}

	return &sheetFromFileInstance{args: args}, nil
}

func (i *sheetFromFileInstance) Prompt() string {
	return i.args.Prompt
}

func (i *sheetFromFileInstance) Setup(ctx context.Context, env *Env) error {
	const op = "sheet-from-file.Setup"

	var (
		data []byte
		err  error
	)

	if i.args.FileBytes != "" {
		data, err = base64.StdEncoding.DecodeString(i.args.FileBytes)
		if err != nil {
			return apperr.InvalidReqError(op, "file_bytes", err)
		}
	} else {
		data, err = setup.FetchXLSX(ctx, i.args.FileURL)
		if err != nil {
			return err
		}
	}

	sheetURL, err := env.Sheets.CreateFromXLSX(ctx, data, i.args.SheetName)
	if err != nil {
		return err
	}
	i.sheetURL = sheetURL

	return setup.OpenSheet(ctx, env.Session, sheetURL)
}

// Evaluate takes the weaker of the cell check and the contains check when
// both expectations are present.
func (i *sheetFromFileInstance) Evaluate(ctx context.Context, env *Env, _ string) *entity.EvaluationResult {
	var cellResult, textResult *entity.EvaluationResult

	if len(i.args.ExpectedCells) > 0 {
		cellResult = scoreSheetCells(ctx, env, i.args.ExpectedCells, true)
	}

	if len(i.args.ExpectedText) > 0 {
		gridText, err := env.Session.GridText(ctx)
		if err != nil {
			textResult = evaluate.Failure(apperr.StageEvaluation, err)
		} else {
			textResult = evaluate.SheetContains(gridText, i.args.ExpectedText, true)
		}
	}

	result := minResult(cellResult, textResult)
	if result.Detail == nil {
		result.Detail = map[string]any{}
	}
	result.Detail["sheet_url"] = i.sheetURL

	return result
}

func minResult(a, b *entity.EvaluationResult) *entity.EvaluationResult {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Reward <= b.Reward:
		return a
	default:
		return b
	}
}
