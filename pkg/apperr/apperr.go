package apperr

import (
	"errors"
	"fmt"
)

const (
	MetaReason   = "reason"
	MetaStage    = "stage"
	MetaField    = "field"
	MetaTaskID   = "task_id"
	MetaScenario = "scenario"
	MetaProvider = "provider"
	MetaSelector = "selector"
	MetaURL      = "url"
	MetaCell     = "cell"
	MetaSheet    = "sheet"

	StageStartup     = "startup"
	StageProvider    = "provider"
	StageProxy       = "proxy"
	StageBrowser     = "browser"
	StageSetup       = "setup"
	StageNavigation  = "navigation"
	StageInteraction = "interaction"
	StageScreenshot  = "screenshot"
	StageEvaluation  = "evaluation"
	StageSheets      = "sheets"

	CodeInternal        = "internal"
	CodeConfiguration   = "configuration"
	CodeConnection      = "connection"
	CodeValidation      = "validation"
	CodeActionFailed    = "action_failed"
	CodeEvaluation      = "evaluation"
	CodeTimeout         = "timeout"
	CodeNotFound        = "not_found"
	CodeBrowserNotReady = "browser_not_ready"
	CodeTaskConflict    = "task_conflict"
)

type Error struct {
	Op       string
	Code     string
	Err      error
	Metadata map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(op, code string, err error, metadata map[string]any) error {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	return &Error{
		Op:       op,
		Code:     code,
		Err:      err,
		Metadata: metadata,
	}
}

func WrapWithReason(op, code string, err error, reason string) error {
	return Wrap(op, code, err, map[string]any{
		MetaReason: reason,
	})
}

func WrapErrorWithReason(op, code, reason string) error {
	return Wrap(op, code, errors.New(reason), map[string]any{
		MetaReason: reason,
	})
}

func InvalidReqError(op, field string, err error) error {
	return Wrap(op, CodeValidation, err, map[string]any{
		MetaField:  field,
		MetaReason: "invalid_request",
	})
}

func NotFoundError(op string, err error) error {
	return Wrap(op, CodeNotFound, err, map[string]any{
		MetaReason: "not_found",
	})
}

// Code returns the error code of the outermost *Error in err's chain, or
// CodeInternal for foreign errors.
func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	return CodeInternal
}

// Reason returns the reason metadata of the outermost *Error in err's chain.
func Reason(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		if r, ok := appErr.Metadata[MetaReason].(string); ok {
			return r
		}
	}

	return ""
}

func IsCode(err error, code string) bool {
	return Code(err) == code
}
