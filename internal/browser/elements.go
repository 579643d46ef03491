package browser

import (
	"context"
	"time"

	"remote-browser-env/internal/entity"
	"remote-browser-env/pkg/apperr"
	"remote-browser-env/pkg/logg"
	"remote-browser-env/pkg/tracing"

	"go.uber.org/zap"
)

func (s *Session) GetElements(ctx context.Context) (elements []entity.Element, err error) {
	const op = "GetElements"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if err = s.ensurePage(); err != nil {
		return nil, err
	}

	raw, err := s.page.Evaluate(interactiveElementsScript)
	if err != nil {
		return nil, apperr.WrapWithReason(op, apperr.CodeActionFailed, err, "elements_script_failed")
	}

	items, ok := raw.([]interface{})
	if !ok {
		return nil, nil
	}

	elements = make([]entity.Element, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		elements = append(elements, decodeElement(obj))
	}

	logger.Debug("Collected page elements", zap.Int("count", len(elements)))

	return elements, nil
}

func (s *Session) PageState(ctx context.Context) (state *entity.PageState, err error) {
	const op = "PageState"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if err = s.ensurePage(); err != nil {
		return nil, err
	}

	title, err := s.page.Title()
	if err != nil {
		title = ""
	}

	elements, err := s.GetElements(ctx)
	if err != nil {
		logger.Warn("Element collection failed, returning bare page state", zap.Error(err))
		elements = nil
		err = nil
	}

	return &entity.PageState{
		URL:       s.page.URL(),
		Title:     title,
		Elements:  elements,
		Timestamp: time.Now(),
	}, nil
}

func decodeElement(obj map[string]interface{}) entity.Element {
	el := entity.Element{
		Tag:       stringFromAny(obj["tag"]),
		Text:      stringFromAny(obj["text"]),
		Selector:  stringFromAny(obj["selector"]),
		Visible:   boolFromAny(obj["visible"]),
		Clickable: boolFromAny(obj["clickable"]),
		BoundingBox: entity.BoundingBox{
			X:      floatFromAny(obj["x"]),
			Y:      floatFromAny(obj["y"]),
			Width:  floatFromAny(obj["width"]),
			Height: floatFromAny(obj["height"]),
		},
	}

	if attrs, ok := obj["attributes"].(map[string]interface{}); ok && len(attrs) > 0 {
		el.Attributes = make(map[string]string, len(attrs))
		for k, v := range attrs {
			el.Attributes[k] = stringFromAny(v)
		}
	}

	return el
}

func stringFromAny(v any) string {
	s, _ := v.(string)

	return s
}

func boolFromAny(v any) bool {
	b, _ := v.(bool)

	return b
}

func floatFromAny(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
