package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"remote-browser-env/internal/entity"
	"remote-browser-env/internal/evaluate"
	"remote-browser-env/internal/setup"
	"remote-browser-env/pkg/apperr"
)

const defaultMaxClicks = 10

// wiki-speedrun drops the agent on a Wikipedia article and scores how few
// link clicks it needs to reach the target article.
type wikiSpeedrunHandler struct{}

type wikiSpeedrunArgs struct {
	StartPage  string `json:"start_page"`
	TargetPage string `json:"target_page"`
	MaxClicks  int    `json:"max_clicks,omitempty"`
	Prompt     string `json:"prompt,omitempty"`
}

type wikiSpeedrunInstance struct {
	args wikiSpeedrunArgs
}

func (h *wikiSpeedrunHandler) Name() string {
	return "wiki-speedrun"
}

func (h *wikiSpeedrunHandler) NewInstance(raw json.RawMessage) (Instance, error) {
	const op = "wiki-speedrun.NewInstance"

	var args wikiSpeedrunArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return nil, err
	}

	if args.StartPage == "" {
		return nil, apperr.InvalidReqError(op, "start_page", fmt.Errorf("start_page is required"))
	}
	if args.TargetPage == "" {
		return nil, apperr.InvalidReqError(op, "target_page", fmt.Errorf("target_page is required"))
	}
	if args.MaxClicks < 0 {
		return nil, apperr.InvalidReqError(op, "max_clicks", fmt.Errorf("max_clicks must not be negative"))
	}
	if args.MaxClicks == 0 {
		args.MaxClicks = defaultMaxClicks
	}

	return &wikiSpeedrunInstance{args: args}, nil
}

func (i *wikiSpeedrunInstance) Prompt() string {
	if i.args.Prompt != "" {
		return i.args.Prompt
	}

	return fmt.Sprintf(
		"Starting from the Wikipedia article %q, reach the article %q by clicking links only. Use as few clicks as possible (budget: %d).",
		i.args.StartPage, i.args.TargetPage, i.args.MaxClicks)
}

func (i *wikiSpeedrunInstance) Setup(ctx context.Context, env *Env) error {
	return setup.Navigate(ctx, env.Session, "https://en.wikipedia.org/wiki/"+wikiSlug(i.args.StartPage))
}

func (i *wikiSpeedrunInstance) Evaluate(ctx context.Context, env *Env, _ string) *entity.EvaluationResult {
	current := strings.ToLower(env.Session.CurrentURL())
	target := "/wiki/" + strings.ToLower(wikiSlug(i.args.TargetPage))
	reached := strings.Contains(current, target)

	clicks := env.Session.History().ClickCount()

	result := evaluate.ClickCountScore(clicks, i.args.MaxClicks, reached)
	if result.Detail == nil {
		result.Detail = map[string]any{}
	}
	result.Detail["target"] = i.args.TargetPage
	result.Detail["url"] = env.Session.CurrentURL()

	return result
}

func wikiSlug(title string) string {
	return strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
}
