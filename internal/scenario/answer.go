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

// answer asks the agent a question about a page and compares its final
// answer against the expectation.
type answerHandler struct{}

type answerArgs struct {
	URL         string          `json:"url"`
	Prompt      string          `json:"prompt"`
	Expected    string          `json:"expected,omitempty"`
	CompareMode string          `json:"compare_mode,omitempty"`
	Cookies     []entity.Cookie `json:"cookies,omitempty"`
}

type answerInstance struct {
	args answerArgs
}

func (h *answerHandler) Name() string {
	return "answer"
}

func (h *answerHandler) NewInstance(raw json.RawMessage) (Instance, error) {
	const op = "answer.NewInstance"

	var args answerArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return nil, err
	}

	if args.URL == "" {
		return nil, apperr.InvalidReqError(op, "url", fmt.Errorf("url is required"))
	}
	if args.Prompt == "" {
		return nil, apperr.InvalidReqError(op, "prompt", fmt.Errorf("prompt is required"))
	}

	switch args.CompareMode {
	case "", "exact", "contains", "json", "numeric", "regex":
	default:
		return nil, apperr.InvalidReqError(op, "compare_mode",
			fmt.Errorf("unknown compare_mode %q", args.CompareMode))
	}

	return &answerInstance{args: args}, nil
}

func (i *answerInstance) Prompt() string {
	return i.args.Prompt
}

func (i *answerInstance) Setup(ctx context.Context, env *Env) error {
	if len(i.args.Cookies) > 0 {
		if err := setup.SetCookies(ctx, env.Session, i.args.Cookies); err != nil {
			return err
		}
	}

	return setup.Navigate(ctx, env.Session, i.args.URL)
}

func (i *answerInstance) Evaluate(ctx context.Context, env *Env, answer string) *entity.EvaluationResult {
	if i.args.Expected == "" {
		if answer == "" {
			return entity.FailedResult("no_answer", nil)
		}

		return &entity.EvaluationResult{
			Reward: 1, Success: true,
			Detail: map[string]any{"answer": answer},
		}
	}

	return evaluate.CompareAnswers(answer, i.args.Expected, i.args.CompareMode)
}
