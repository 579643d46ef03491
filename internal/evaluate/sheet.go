package evaluate

import (
	"math"
	"strconv"
	"strings"

	"remote-browser-env/internal/entity"

	"github.com/xuri/excelize/v2"
)

// ParseGrid splits copied spreadsheet text into rows and columns. The
// clipboard format is rows separated by newlines and cells by tabs.
func ParseGrid(text string) [][]string {
	text = strings.TrimRight(text, "\r\n")
	if text == "" {
		return nil
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	grid := make([][]string, len(lines))
	for i, line := range lines {
		grid[i] = strings.Split(line, "\t")
	}

	return grid
}

// CellValues compares expected cell references ("A1", "C12") against the
// copied grid. Numbers match across formatting differences, so "15" equals
// "15.0".
func CellValues(gridText string, expected map[string]string, partial bool) *entity.EvaluationResult {
	if len(expected) == 0 {
		return entity.FailedResult("no_expected_cells", nil)
	}

	grid := ParseGrid(gridText)
	if len(grid) == 0 {
		return entity.FailedResult("empty_grid", nil)
	}

	matched := 0
	mismatches := map[string]any{}
	for ref, want := range expected {
		got, err := cellAt(grid, ref)
		if err != nil {
			mismatches[ref] = map[string]any{"expected": want, "error": err.Error()}

			continue
		}

		if cellEqual(got, want) {
			matched++
		} else {
			mismatches[ref] = map[string]any{"expected": want, "got": got}
		}
	}

	detail := map[string]any{"matched": matched, "total": len(expected)}
	if len(mismatches) > 0 {
		detail["mismatches"] = mismatches
	}

	if matched == len(expected) {
		return &entity.EvaluationResult{Reward: 1, Success: true, Detail: detail}
	}

	if partial && matched > 0 {
		return &entity.EvaluationResult{
			Reward: float64(matched) / float64(len(expected)),
			Reason: "cells_mismatch",
			Detail: detail,
		}
	}

	return entity.FailedResult("cells_mismatch", detail)
}

// SheetContains checks the copied grid for expected fragments, ignoring
// case, with partial credit for a subset.
func SheetContains(gridText string, terms []string, partial bool) *entity.EvaluationResult {
	return PageContains(gridText, terms, true, partial)
}

func cellAt(grid [][]string, ref string) (string, error) {
	col, row, err := excelize.CellNameToCoordinates(ref)
	if err != nil {
		return "", err
	}

	if row-1 >= len(grid) {
		return "", nil
	}

	cells := grid[row-1]
	if col-1 >= len(cells) {
		return "", nil
	}

	return cells[col-1], nil
}

// cellEqual matches trimmed strings exactly, and numerically when both sides
// parse as numbers.
func cellEqual(got, want string) bool {
	got = strings.TrimSpace(got)
	want = strings.TrimSpace(want)

	if got == want {
		return true
	}

	g, errG := strconv.ParseFloat(strings.ReplaceAll(got, ",", ""), 64)
	w, errW := strconv.ParseFloat(strings.ReplaceAll(want, ",", ""), 64)
	if errG == nil && errW == nil {
		return math.Abs(g-w) < 1e-9
	}

	return strings.EqualFold(got, want)
}
