package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentileRanks(t *testing.T) {
	t.Run("empty population", func(t *testing.T) {
		assert.Empty(t, PercentileRanks(nil))
		assert.Empty(t, PercentileRanks(map[string]int{}))
	})

	t.Run("single gene ranks full", func(t *testing.T) {
		ranks := PercentileRanks(map[string]int{"PKD1": 7})
		assert.InDelta(t, 1.0, ranks["PKD1"], 1e-12)
	})

	t.Run("rank counts at-or-below population share", func(t *testing.T) {
		ranks := PercentileRanks(map[string]int{
			"PKD1":   100,
			"PKD2":   50,
			"NPHS1":  50,
			"COL4A5": 1,
		})
		require.Len(t, ranks, 4)
		assert.InDelta(t, 1.0, ranks["PKD1"], 1e-12)
		assert.InDelta(t, 0.75, ranks["PKD2"], 1e-12)
		assert.InDelta(t, 0.75, ranks["NPHS1"], 1e-12)
		assert.InDelta(t, 0.25, ranks["COL4A5"], 1e-12)
	})

	t.Run("recomputation is idempotent", func(t *testing.T) {
		counts := map[string]int{"A": 3, "B": 9, "C": 9, "D": 1, "E": 27}
		first := PercentileRanks(counts)
		second := PercentileRanks(counts)
		assert.Equal(t, first, second)
	})
}

func TestPercentileRanksFloat(t *testing.T) {
	t.Run("ties share rank", func(t *testing.T) {
		ranks := PercentileRanksFloat(map[string]float64{"A": 1.5, "B": 1.5})
		assert.InDelta(t, 1.0, ranks["A"], 1e-12)
		assert.InDelta(t, 1.0, ranks["B"], 1e-12)
	})

	t.Run("all ranks in unit interval", func(t *testing.T) {
		ranks := PercentileRanksFloat(map[string]float64{"A": 0.1, "B": 2.4, "C": 0.0, "D": 17.9})
		for gene, r := range ranks {
			assert.Greater(t, r, 0.0, "gene %s", gene)
			assert.LessOrEqual(t, r, 1.0, "gene %s", gene)
		}
	})
}
