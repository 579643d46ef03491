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

// fill-record asks the agent to fill a form; scoring reads each verified
// input back and gives partial credit for the matched fraction.
type fillRecordHandler struct{}

type fillRecordArgs struct {
	URL     string            `json:"url"`
	Prompt  string            `json:"prompt"`
	Fields  map[string]string `json:"fields,omitempty"`
	Verify  map[string]string `json:"verify"`
	Cookies []entity.Cookie   `json:"cookies,omitempty"`
}

type fillRecordInstance struct {
	args fillRecordArgs
}

func (h *fillRecordHandler) Name() string {
	return "fill-record"
}

func (h *fillRecordHandler) NewInstance(raw json.RawMessage) (Instance, error) {
	const op = "fill-record.NewInstance"

	var args fillRecordArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return nil, err
	}

	if args.URL == "" {
		return nil, apperr.InvalidReqError(op, "url", fmt.Errorf("url is required"))
	}
	if args.Prompt == "" {
		return nil, apperr.InvalidReqError(op, "prompt", fmt.Errorf("prompt is required"))
	}
	if len(args.Verify) == 0 {
		return nil, apperr.InvalidReqError(op, "verify", fmt.Errorf("verify must not be empty"))
	}

	return &fillRecordInstance{args: args}, nil
}

func (i *fillRecordInstance) Prompt() string {
	return i.args.Prompt
}

func (i *fillRecordInstance) Setup(ctx context.Context, env *Env) error {
	if len(i.args.Cookies) > 0 {
		if err := setup.SetCookies(ctx, env.Session, i.args.Cookies); err != nil {
			return err
		}
	}

	return setup.Navigate(ctx, env.Session, i.args.URL)
}

func (i *fillRecordInstance) Evaluate(ctx context.Context, env *Env, _ string) *entity.EvaluationResult {
	values := make(map[string]string, len(i.args.Verify))
	for selector := range i.args.Verify {
		value, err := env.Session.InputValue(ctx, selector)
		if err != nil {
			// A missing field counts as a mismatch, not an abort.
			value = ""
		}
		values[selector] = value
	}

	return evaluate.FillFields(values, i.args.Verify)
}
