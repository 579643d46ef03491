package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task is one concrete instantiation of a scenario. It is created per
// evaluation request and its arguments are read-only once constructed; only
// Status and Result mutate as the task moves through its lifecycle.
type Task struct {
	ID          uuid.UUID         `json:"id"`
	Env         string            `json:"env"`
	Scenario    string            `json:"scenario"`
	Args        json.RawMessage   `json:"args"`
	Status      TaskStatus        `json:"status"`
	Prompt      string            `json:"prompt,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	EvaluatedAt *time.Time        `json:"evaluated_at,omitempty"`
	Result      *EvaluationResult `json:"result,omitempty"`
}

type TaskStatus string

const (
	TaskStatusCreated    TaskStatus = "created"
	TaskStatusSetup      TaskStatus = "setup"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusEvaluated  TaskStatus = "evaluated"
	TaskStatusDone       TaskStatus = "done"
)

// TaskRequest is the wire format of a task definition:
// {"env": {"name": <slug>}, "scenario": <name>, "args": {...}}
type TaskRequest struct {
	Env      TaskEnv         `json:"env"`
	Scenario string          `json:"scenario"`
	Args     json.RawMessage `json:"args"`
}

type TaskEnv struct {
	Name string `json:"name"`
}

// EvaluationResult is produced once per task. Reward is in [0, 1].
type EvaluationResult struct {
	Reward  float64        `json:"reward"`
	Success bool           `json:"success"`
	Reason  string         `json:"reason,omitempty"`
	Detail  map[string]any `json:"detail,omitempty"`
}

func FailedResult(reason string, detail map[string]any) *EvaluationResult {
	return &EvaluationResult{
		Reward:  0,
		Success: false,
		Reason:  reason,
		Detail:  detail,
	}
}

type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	URL      string  `json:"url,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
}

type PageState struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Elements  []Element `json:"elements,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Element struct {
	Tag         string            `json:"tag"`
	Text        string            `json:"text"`
	Selector    string            `json:"selector"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Visible     bool              `json:"visible"`
	Clickable   bool              `json:"clickable"`
	BoundingBox BoundingBox       `json:"bounding_box"`
}

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// History records everything the agent did against the session. Evaluators
// read it for click-count and action-order checks; it is cleared on session
// reset so each task starts from a clean slate.
type History struct {
	Navigations []NavigationRecord `json:"navigations"`
	Actions     []ActionRecord     `json:"actions"`
	Selectors   []string           `json:"selectors"`
}

type NavigationRecord struct {
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

type ActionRecord struct {
	Type      string         `json:"type"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (h *History) RecordNavigation(url string) {
	h.Navigations = append(h.Navigations, NavigationRecord{URL: url, Timestamp: time.Now()})
}

func (h *History) RecordAction(actionType string, details map[string]any) {
	h.Actions = append(h.Actions, ActionRecord{Type: actionType, Details: details, Timestamp: time.Now()})
}

func (h *History) RecordSelector(selector string) {
	h.Selectors = append(h.Selectors, selector)
}

func (h *History) LastAction() *ActionRecord {
	if len(h.Actions) == 0 {
		return nil
	}

	return &h.Actions[len(h.Actions)-1]
}

// ClickCount counts navigations after the initial page load. The setup
// navigation itself is not a click.
func (h *History) ClickCount() int {
	if len(h.Navigations) <= 1 {
		return 0
	}

	return len(h.Navigations) - 1
}

func (h *History) Clear() {
	h.Navigations = nil
	h.Actions = nil
	h.Selectors = nil
}

// Telemetry describes the live provider session for the state server.
type Telemetry struct {
	Provider   string `json:"provider"`
	Status     string `json:"status"`
	LiveURL    string `json:"live_url,omitempty"`
	CDPURL     string `json:"cdp_url,omitempty"`
	InstanceID string `json:"instance_id,omitempty"`
	Timestamp  string `json:"timestamp"`
}
