// Package scenario defines the evaluation scenarios an agent can be run
// against and the task lifecycle that drives them.
package scenario

import (
	"context"
	"encoding/json"
	"fmt"

	"remote-browser-env/internal/entity"
	"remote-browser-env/internal/ports"
	"remote-browser-env/internal/sheets"
	"remote-browser-env/pkg/apperr"
)

// Env is what a scenario instance may touch while setting up or scoring.
type Env struct {
	Session ports.BrowserSession
	Sheets  *sheets.Service
}

// Handler validates raw task arguments into a ready Instance. One handler per
// scenario name; registered at startup.
type Handler interface {
	Name() string
	NewInstance(args json.RawMessage) (Instance, error)
}

// Instance is a single parameterized run of a scenario. Setup prepares the
// browser before the agent starts; Evaluate scores the end state exactly
// once. Evaluate must not return an error for scoring failures, only convert
// them into failed results.
type Instance interface {
	Prompt() string
	Setup(ctx context.Context, env *Env) error
	Evaluate(ctx context.Context, env *Env, answer string) *entity.EvaluationResult
}

// Registry maps scenario names to handlers. Construction fails on duplicate
// or empty names so a bad handler set is caught at startup, not at task time.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() (*Registry, error) {
	const op = "NewRegistry"

	all := []Handler{
		&answerHandler{},
		&fillRecordHandler{},
		&wikiSpeedrunHandler{},
		&completeSheetHandler{},
		&sheetFromFileHandler{},
	}

	handlers := make(map[string]Handler, len(all))
	for _, h := range all {
		name := h.Name()
		if name == "" {
			return nil, apperr.WrapErrorWithReason(op, apperr.CodeInternal, "handler_without_name")
		}
		if _, dup := handlers[name]; dup {
			return nil, apperr.Wrap(op, apperr.CodeInternal,
				fmt.Errorf("duplicate scenario %q", name),
				map[string]any{apperr.MetaReason: "duplicate_scenario"})
		}
		handlers[name] = h
	}

	return &Registry{handlers: handlers}, nil
}

func (r *Registry) Get(name string) (Handler, error) {
	const op = "Get"

	h, ok := r.handlers[name]
	if !ok {
		return nil, apperr.Wrap(op, apperr.CodeValidation,
			fmt.Errorf("unknown scenario %q", name),
			map[string]any{
				apperr.MetaReason:   "unknown_scenario",
				apperr.MetaScenario: name,
			})
	}

	return h, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}

	return names
}

func decodeArgs(op string, raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return apperr.InvalidReqError(op, "args", fmt.Errorf("args are required"))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.InvalidReqError(op, "args", err)
	}

	return nil
}
