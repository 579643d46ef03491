package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGrid = "Name\tQ1\tQ2\nWidgets\t15\t20\nGadgets\t7.5\t12\n"

func TestParseGrid(t *testing.T) {
	grid := ParseGrid(sampleGrid)
	require.Len(t, grid, 3)
	assert.Equal(t, []string{"Name", "Q1", "Q2"}, grid[0])
	assert.Equal(t, "15", grid[1][1])

	assert.Nil(t, ParseGrid(""))
	assert.Nil(t, ParseGrid("\r\n"))
}

func TestCellValuesNumericTolerance(t *testing.T) {
	result := CellValues(sampleGrid, map[string]string{"B2": "15.0"}, true)
	assert.True(t, result.Success, "15 should match 15.0")

	result = CellValues(sampleGrid, map[string]string{"B2": "15"}, true)
	assert.True(t, result.Success)

	result = CellValues(sampleGrid, map[string]string{"B2": "16"}, true)
	assert.False(t, result.Success)
	assert.Equal(t, 0.0, result.Reward)
}

func TestCellValuesPartialCredit(t *testing.T) {
	expected := map[string]string{
		"B2": "15",
		"C2": "20",
		"B3": "999",
	}

	result := CellValues(sampleGrid, expected, true)
	assert.False(t, result.Success)
	assert.InDelta(t, 2.0/3.0, result.Reward, 1e-9)
	assert.Equal(t, "cells_mismatch", result.Reason)

	result = CellValues(sampleGrid, expected, false)
	assert.Equal(t, 0.0, result.Reward)
}

func TestCellValuesOutOfRange(t *testing.T) {
	result := CellValues(sampleGrid, map[string]string{"Z99": "anything"}, true)
	assert.False(t, result.Success)

	result = CellValues(sampleGrid, map[string]string{"bogus!": "x"}, true)
	assert.False(t, result.Success)
}

func TestCellValuesEmptyInputs(t *testing.T) {
	assert.Equal(t, "no_expected_cells", CellValues(sampleGrid, nil, true).Reason)
	assert.Equal(t, "empty_grid", CellValues("", map[string]string{"A1": "x"}, true).Reason)
}

func TestCellValuesIdempotent(t *testing.T) {
	expected := map[string]string{"A2": "Widgets", "B2": "15"}

	first := CellValues(sampleGrid, expected, true)
	second := CellValues(sampleGrid, expected, true)
	assert.Equal(t, first, second)
}

func TestSheetContains(t *testing.T) {
	result := SheetContains(sampleGrid, []string{"widgets", "GADGETS"}, true)
	assert.True(t, result.Success)

	result = SheetContains(sampleGrid, []string{"widgets", "sprockets"}, true)
	assert.False(t, result.Success)
	assert.InDelta(t, 0.5, result.Reward, 1e-9)
}

func TestCellEqual(t *testing.T) {
	assert.True(t, cellEqual(" 15 ", "15"))
	assert.True(t, cellEqual("15", "15.0"))
	assert.True(t, cellEqual("1,500", "1500"))
	assert.True(t, cellEqual("Total", "total"))
	assert.False(t, cellEqual("15", "15.1"))
	assert.False(t, cellEqual("abc", "def"))
}
