package evaluate

import (
	"testing"

	"remote-browser-env/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLMatchContainment(t *testing.T) {
	tests := []struct {
		name    string
		current string
		target  string
		match   bool
	}{
		{"exact", "https://example.com/page", "https://example.com/page", true},
		{"fragment", "https://en.wikipedia.org/wiki/Go_(programming_language)", "/wiki/Go_(programming_language)", true},
		{"host case", "https://EXAMPLE.com/page", "https://example.com/page", true},
		{"path case differs", "https://example.com/Page", "https://example.com/page", false},
		{"query preserved", "https://example.com/search?q=go", "q=go", true},
		{"different host", "https://example.org/page", "https://example.com/page", false},
		{"empty target", "https://example.com", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := URLMatch(tt.current, tt.target)
			assert.Equal(t, tt.match, result.Success)
			if tt.match {
				assert.Equal(t, 1.0, result.Reward)
			} else {
				assert.Equal(t, 0.0, result.Reward)
			}
		})
	}
}

func TestPageContainsPartialCredit(t *testing.T) {
	content := "The quick brown fox jumps over the lazy dog"

	result := PageContains(content, []string{"quick", "lazy"}, false, true)
	assert.True(t, result.Success)
	assert.Equal(t, 1.0, result.Reward)

	result = PageContains(content, []string{"quick", "missing"}, false, true)
	assert.False(t, result.Success)
	assert.InDelta(t, 0.5, result.Reward, 1e-9)

	result = PageContains(content, []string{"quick", "missing"}, false, false)
	assert.False(t, result.Success)
	assert.Equal(t, 0.0, result.Reward)
}

func TestPageContainsCaseInsensitive(t *testing.T) {
	result := PageContains("Hello World", []string{"hello", "WORLD"}, true, false)
	assert.True(t, result.Success)

	result = PageContains("Hello World", []string{"hello"}, false, false)
	assert.False(t, result.Success)
}

func TestClickCountScoreMonotonicity(t *testing.T) {
	const maxClicks = 10

	prev := 2.0
	for clicks := 1; clicks <= 25; clicks++ {
		result := ClickCountScore(clicks, maxClicks, true)
		require.True(t, result.Success)
		assert.LessOrEqual(t, result.Reward, prev, "clicks=%d", clicks)
		assert.GreaterOrEqual(t, result.Reward, 0.1, "clicks=%d", clicks)
		prev = result.Reward
	}
}

func TestClickCountScoreValues(t *testing.T) {
	result := ClickCountScore(1, 10, true)
	assert.Equal(t, 1.0, result.Reward)

	result = ClickCountScore(6, 10, true)
	assert.InDelta(t, 0.5, result.Reward, 1e-9)

	// Over budget but reached still pays the floor.
	result = ClickCountScore(30, 10, true)
	assert.Equal(t, 0.1, result.Reward)
	assert.True(t, result.Success)

	result = ClickCountScore(1, 10, false)
	assert.Equal(t, 0.0, result.Reward)
	assert.False(t, result.Success)
}

func TestCompareAnswersModes(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		expected string
		mode     string
		match    bool
	}{
		{"exact match", " 42 ", "42", "exact", true},
		{"exact ignores case", "Paris", "paris", "exact", true},
		{"exact mismatch", "42", "43", "exact", false},
		{"default mode is exact", "yes", "YES", "", true},
		{"contains", "The answer is Paris, France", "paris", "contains", true},
		{"contains missing", "London", "paris", "contains", false},
		{"json equal", `{"a":1,"b":[2,3]}`, `{"b":[2,3],"a":1}`, "json", true},
		{"json different", `{"a":1}`, `{"a":2}`, "json", false},
		{"numeric formatting", "15", "15.0", "numeric", true},
		{"numeric in prose", "The answer is 42", "42", "numeric", true},
		{"numeric first wins", "42 out of 100", "42", "numeric", true},
		{"numeric negative", "about -3.5 degrees", "-3.5", "numeric", true},
		{"numeric different", "15", "16", "numeric", false},
		{"regex", "order #12345 shipped", `#\d{5}`, "regex", true},
		{"regex ignores case", "ORDER #12345", `order #\d+`, "regex", true},
		{"regex no match", "order shipped", `#\d{5}`, "regex", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CompareAnswers(tt.answer, tt.expected, tt.mode)
			assert.Equal(t, tt.match, result.Success)
		})
	}
}

func TestCompareAnswersBadInputs(t *testing.T) {
	result := CompareAnswers("not json", `{"a":1}`, "json")
	assert.False(t, result.Success)
	assert.Equal(t, "answer_not_json", result.Reason)

	result = CompareAnswers("abc", "42", "numeric")
	assert.Equal(t, "not_numeric", result.Reason)

	result = CompareAnswers("x", "(", "regex")
	assert.Equal(t, "invalid_pattern", result.Reason)

	result = CompareAnswers("x", "x", "fuzzy")
	assert.Equal(t, "unknown_compare_mode", result.Reason)
}

func TestCompareAnswersIdempotent(t *testing.T) {
	first := CompareAnswers("42", "42", "exact")
	second := CompareAnswers("42", "42", "exact")
	assert.Equal(t, first, second)
}

func TestFillFields(t *testing.T) {
	verify := map[string]string{
		"#name":  "Ada",
		"#email": "ada@example.com",
	}

	result := FillFields(map[string]string{"#name": "Ada", "#email": "ada@example.com"}, verify)
	assert.True(t, result.Success)
	assert.Equal(t, 1.0, result.Reward)

	result = FillFields(map[string]string{"#name": "Ada", "#email": "wrong"}, verify)
	assert.False(t, result.Success)
	assert.InDelta(t, 0.5, result.Reward, 1e-9)
}

func TestCookieHelpers(t *testing.T) {
	cookies := []entity.Cookie{
		{Name: "session", Value: "abc"},
		{Name: "theme", Value: "dark"},
	}

	assert.True(t, CookieExists(cookies, "session").Success)
	assert.False(t, CookieExists(cookies, "missing").Success)

	assert.True(t, CookieMatch(cookies, "theme", "dark").Success)

	result := CookieMatch(cookies, "theme", "light")
	assert.False(t, result.Success)
	assert.Equal(t, "cookie_value_mismatch", result.Reason)
}

func TestHistoryHelpers(t *testing.T) {
	h := &entity.History{}
	h.RecordAction("navigate", nil)
	h.RecordAction("click", nil)
	h.RecordSelector("#submit")

	assert.True(t, HistoryLength(h, 2).Success)
	assert.False(t, HistoryLength(h, 3).Success)

	assert.True(t, SelectorHistory(h, "#submit").Success)
	assert.False(t, SelectorHistory(h, "#cancel").Success)

	assert.True(t, LastActionIs(h, "click").Success)
	assert.False(t, LastActionIs(h, "navigate").Success)

	empty := &entity.History{}
	assert.Equal(t, "no_actions", LastActionIs(empty, "click").Reason)
}

func TestClickCountFromHistory(t *testing.T) {
	h := &entity.History{}
	assert.Equal(t, 0, h.ClickCount())

	h.RecordNavigation("https://en.wikipedia.org/wiki/Start")
	assert.Equal(t, 0, h.ClickCount())

	h.RecordNavigation("https://en.wikipedia.org/wiki/Middle")
	h.RecordNavigation("https://en.wikipedia.org/wiki/Target")
	assert.Equal(t, 2, h.ClickCount())
}
