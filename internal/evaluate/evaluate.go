// Package evaluate scores finished tasks. Every helper is a pure function
// over already-extracted state (page content, grid text, history, cookies) so
// results are idempotent and unit-testable without a browser.
package evaluate

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"remote-browser-env/internal/entity"
)

// URLMatch checks whether the target fragment occurs in the current URL.
// Scheme and host are compared case-insensitively; a full-URL target is
// normalized the same way.
func URLMatch(currentURL, target string) *entity.EvaluationResult {
	if target == "" {
		return entity.FailedResult("empty_target_url", nil)
	}

	current := normalizeURL(currentURL)
	fragment := normalizeURL(target)

	if strings.Contains(current, fragment) {
		return &entity.EvaluationResult{
			Reward:  1,
			Success: true,
			Detail:  map[string]any{"url": currentURL},
		}
	}

	return entity.FailedResult("url_mismatch", map[string]any{
		"url":    currentURL,
		"target": target,
	})
}

// normalizeURL lowercases the scheme and host and leaves the rest of the URL
// alone; paths are case-sensitive on most sites.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	return u.String()
}

// PageContains scores how many of the expected terms occur in the page
// content. With partial credit off, any miss fails the whole check.
func PageContains(content string, terms []string, caseInsensitive, partial bool) *entity.EvaluationResult {
	if len(terms) == 0 {
		return entity.FailedResult("no_terms", nil)
	}

	haystack := content
	if caseInsensitive {
		haystack = strings.ToLower(content)
	}

	var missing []string
	matched := 0
	for _, term := range terms {
		needle := term
		if caseInsensitive {
			needle = strings.ToLower(term)
		}
		if strings.Contains(haystack, needle) {
			matched++
		} else {
			missing = append(missing, term)
		}
	}

	detail := map[string]any{"matched": matched, "total": len(terms)}
	if len(missing) > 0 {
		detail["missing"] = missing
	}

	if matched == len(terms) {
		return &entity.EvaluationResult{Reward: 1, Success: true, Detail: detail}
	}

	if partial && matched > 0 {
		return &entity.EvaluationResult{
			Reward: float64(matched) / float64(len(terms)),
			Reason: "partial_match",
			Detail: detail,
		}
	}

	return entity.FailedResult("terms_missing", detail)
}

// ClickCountScore implements the speedrun reward curve: reaching the target
// in the minimum number of clicks is worth 1.0, each extra click costs
// 1/maxClicks, and any successful run is floored at 0.1.
func ClickCountScore(clicks, maxClicks int, reached bool) *entity.EvaluationResult {
	detail := map[string]any{"clicks": clicks, "max_clicks": maxClicks}

	if !reached {
		return entity.FailedResult("target_not_reached", detail)
	}

	if maxClicks <= 0 {
		maxClicks = 10
	}

	score := 1.0 - float64(clicks-1)/float64(maxClicks)
	score = math.Max(0.1, score)

	return &entity.EvaluationResult{
		Reward:  score,
		Success: true,
		Detail:  detail,
	}
}

// CompareAnswers compares the agent's final answer to the expected value
// under the requested mode. An unknown mode is an argument problem and scores
// zero.
func CompareAnswers(answer, expected, mode string) *entity.EvaluationResult {
	if mode == "" {
		mode = "exact"
	}

	detail := map[string]any{"answer": answer, "expected": expected, "mode": mode}

	var matched bool
	switch mode {
	case "exact":
		matched = strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(expected))

	case "contains":
		matched = strings.Contains(strings.ToLower(answer), strings.ToLower(expected))

	case "json":
		var got, want any
		if err := json.Unmarshal([]byte(answer), &got); err != nil {
			return entity.FailedResult("answer_not_json", detail)
		}
		if err := json.Unmarshal([]byte(expected), &want); err != nil {
			return entity.FailedResult("expected_not_json", detail)
		}
		matched = reflect.DeepEqual(got, want)

	case "numeric":
		// Answers arrive as prose; the first number in each string is what
		// gets compared.
		got, okA := firstNumber(answer)
		want, okB := firstNumber(expected)
		if !okA || !okB {
			return entity.FailedResult("not_numeric", detail)
		}
		matched = math.Abs(got-want) < 1e-6

	case "regex":
		re, err := regexp.Compile("(?i)" + expected)
		if err != nil {
			return entity.FailedResult("invalid_pattern", detail)
		}
		matched = re.MatchString(answer)

	default:
		return entity.FailedResult("unknown_compare_mode", detail)
	}

	if matched {
		return &entity.EvaluationResult{Reward: 1, Success: true, Detail: detail}
	}

	return entity.FailedResult("answer_mismatch", detail)
}

var numberPattern = regexp.MustCompile(`-?\d+\.?\d*`)

// firstNumber extracts the leading numeric value from free text, so "The
// answer is 42" compares as 42.
func firstNumber(s string) (float64, bool) {
	match := numberPattern.FindString(s)
	if match == "" {
		return 0, false
	}

	n, err := strconv.ParseFloat(strings.TrimSuffix(match, "."), 64)
	if err != nil {
		return 0, false
	}

	return n, true
}

// FillFields checks each selector's input value against the expectation and
// gives partial credit for the matched fraction.
func FillFields(values map[string]string, verify map[string]string) *entity.EvaluationResult {
	if len(verify) == 0 {
		return entity.FailedResult("nothing_to_verify", nil)
	}

	matched := 0
	mismatches := map[string]any{}
	for selector, expected := range verify {
		got, ok := values[selector]
		if ok && strings.TrimSpace(got) == strings.TrimSpace(expected) {
			matched++
		} else {
			mismatches[selector] = map[string]any{"expected": expected, "got": got}
		}
	}

	detail := map[string]any{"matched": matched, "total": len(verify)}
	if len(mismatches) > 0 {
		detail["mismatches"] = mismatches
	}

	if matched == len(verify) {
		return &entity.EvaluationResult{Reward: 1, Success: true, Detail: detail}
	}

	return &entity.EvaluationResult{
		Reward: float64(matched) / float64(len(verify)),
		Reason: "fields_mismatch",
		Detail: detail,
	}
}

func CookieExists(cookies []entity.Cookie, name string) *entity.EvaluationResult {
	for _, c := range cookies {
		if c.Name == name {
			return &entity.EvaluationResult{Reward: 1, Success: true}
		}
	}

	return entity.FailedResult("cookie_missing", map[string]any{"name": name})
}

func CookieMatch(cookies []entity.Cookie, name, value string) *entity.EvaluationResult {
	for _, c := range cookies {
		if c.Name == name {
			if c.Value == value {
				return &entity.EvaluationResult{Reward: 1, Success: true}
			}

			return entity.FailedResult("cookie_value_mismatch", map[string]any{
				"name": name, "expected": value, "got": c.Value,
			})
		}
	}

	return entity.FailedResult("cookie_missing", map[string]any{"name": name})
}

func HistoryLength(h *entity.History, min int) *entity.EvaluationResult {
	count := len(h.Actions)
	if count >= min {
		return &entity.EvaluationResult{
			Reward: 1, Success: true,
			Detail: map[string]any{"actions": count, "min": min},
		}
	}

	return entity.FailedResult("too_few_actions", map[string]any{"actions": count, "min": min})
}

// SelectorHistory checks that the agent interacted with the given selector at
// some point during the task.
func SelectorHistory(h *entity.History, selector string) *entity.EvaluationResult {
	for _, s := range h.Selectors {
		if s == selector {
			return &entity.EvaluationResult{Reward: 1, Success: true}
		}
	}

	return entity.FailedResult("selector_not_used", map[string]any{"selector": selector})
}

func LastActionIs(h *entity.History, actionType string) *entity.EvaluationResult {
	last := h.LastAction()
	if last == nil {
		return entity.FailedResult("no_actions", nil)
	}

	if last.Type == actionType {
		return &entity.EvaluationResult{Reward: 1, Success: true}
	}

	return entity.FailedResult("last_action_mismatch", map[string]any{
		"expected": actionType,
		"got":      last.Type,
	})
}

// Failure converts an evaluation-time error into a failed result so tasks
// always produce a score.
func Failure(stage string, err error) *entity.EvaluationResult {
	return entity.FailedResult("evaluation_error", map[string]any{
		"stage": stage,
		"error": fmt.Sprint(err),
	})
}
