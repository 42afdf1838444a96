// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package collect

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCellCounts = `Time,Superficial,Wing,Basal,Stem
0,50,80,100,10
100,50,80,100,10
500,50,80,100,10
600,30,40,40,10
700,35,55,80,10
800,40,70,96,10
900,45,78,99,10
`

func TestParseCellCounts(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cell_count_7501.csv", sampleCellCounts)

	counts, err := ParseCellCounts(path)
	require.NoError(t, err)

	assert.Len(t, counts["Time"], 7)
	assert.Equal(t, []float64{50, 50, 50, 30, 35, 40, 45}, counts["Superficial"])
	assert.Equal(t, 100.0, counts["Basal"][0])
	assert.Equal(t, 10.0, counts["Stem"][6])
}

func TestParseCellCountsRejectsNonNumeric(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cell_count_1.csv", "Time,Basal\n0,many\n")

	_, err := ParseCellCounts(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Basal")
}

func TestParseCellCountsNoData(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cell_count_1.csv", "Time,Basal\n")

	_, err := ParseCellCounts(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data rows")
}

func TestParseCellCountsMissingFile(t *testing.T) {
	_, err := ParseCellCounts(filepath.Join(t.TempDir(), "cell_count_1.csv"))
	require.Error(t, err)
}

func TestHealingTime(t *testing.T) {
	counts := map[string][]float64{
		"Time":  {0, 100, 500, 600, 700, 800, 900},
		"Basal": {100, 100, 100, 40, 80, 96, 99},
	}

	t.Run("no injury heals in zero time", func(t *testing.T) {
		got := HealingTime(counts, false, 500)
		require.NotNil(t, got)
		assert.Equal(t, 0.0, *got)
	})

	t.Run("recovers at 95% of pre-injury basal", func(t *testing.T) {
		got := HealingTime(counts, true, 500)
		require.NotNil(t, got)
		assert.Equal(t, 300.0, *got)
	})

	t.Run("never recovers", func(t *testing.T) {
		low := map[string][]float64{
			"Time":  {0, 500, 600, 700},
			"Basal": {100, 100, 40, 60},
		}
		assert.Nil(t, HealingTime(low, true, 500))
	})

	t.Run("missing columns", func(t *testing.T) {
		assert.Nil(t, HealingTime(map[string][]float64{}, true, 500))
	})

	t.Run("baseline is last pre-injury sample", func(t *testing.T) {
		grown := map[string][]float64{
			"Time":  {0, 500, 600, 700},
			"Basal": {50, 200, 100, 191},
		}
		// Threshold is 190, not 47.5: the count at t=500 governs.
		got := HealingTime(grown, true, 500)
		require.NotNil(t, got)
		assert.Equal(t, 200.0, *got)
	})
}

func TestResults(t *testing.T) {
	output := t.TempDir()
	writeFile(t, output, "cell_count_7501.csv", sampleCellCounts)
	writeFile(t, output, "thickness_rep_7501.parquet", "parquet-bytes")

	c := NewCollector(&MockLogger{})
	res, err := c.Results(output, 7500, true, 500, 1)

	require.NoError(t, err)
	assert.Equal(t, "cell_count_7501.csv", res.CellCountFile)
	assert.Equal(t, "thickness_rep_7501.parquet", res.ThicknessFile)
	require.NotNil(t, res.HealingTime)
	assert.Equal(t, 300.0, *res.HealingTime)
	assert.Len(t, res.CellCounts["Time"], 7)
}

func TestResultsWildcardFallback(t *testing.T) {
	output := t.TempDir()
	writeFile(t, output, "cell_count_999.csv", sampleCellCounts)

	c := NewCollector(&MockLogger{})
	res, err := c.Results(output, 7500, false, 0, 1)

	require.NoError(t, err)
	assert.Equal(t, "cell_count_999.csv", res.CellCountFile)
	require.NotNil(t, res.HealingTime)
	assert.Equal(t, 0.0, *res.HealingTime)
}

func TestResultsMissingCellCounts(t *testing.T) {
	output := t.TempDir()
	writeFile(t, output, "thickness_rep_7501.parquet", "parquet-bytes")

	c := NewCollector(&MockLogger{})
	res, err := c.Results(output, 7500, true, 500, 2)

	var warning *CollectionWarning
	require.ErrorAs(t, err, &warning)
	assert.Equal(t, 2, warning.ReplicateID)
	assert.Equal(t, "thickness_rep_7501.parquet", res.ThicknessFile)
	assert.Empty(t, res.CellCountFile)
	assert.Nil(t, res.HealingTime)
}

func TestResultsSkipsEmptyFiles(t *testing.T) {
	output := t.TempDir()
	writeFile(t, output, "thickness_rep_7501.parquet", "")
	writeFile(t, output, "cell_count_7501.csv", sampleCellCounts)

	c := NewCollector(&MockLogger{})
	res, err := c.Results(output, 7500, false, 0, 1)

	require.NoError(t, err)
	assert.Empty(t, res.ThicknessFile)
	assert.Equal(t, "cell_count_7501.csv", res.CellCountFile)
}

func TestResultsWarnsWhenInjuredAndUnrecovered(t *testing.T) {
	output := t.TempDir()
	writeFile(t, output, "cell_count_7501.csv", "Time,Basal\n0,100\n600,40\n")

	log := &MockLogger{}
	c := NewCollector(log)
	res, err := c.Results(output, 7500, true, 500, 3)

	require.NoError(t, err)
	assert.Nil(t, res.HealingTime)
	require.Len(t, log.Warnings(), 1)
	assert.Contains(t, log.Warnings()[0], "did not recover")
}
