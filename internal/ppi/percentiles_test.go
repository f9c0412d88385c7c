package ppi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nephroseq/genevidence-cli/internal/cache"
)

func newTestPercentiles(t *testing.T, minGap time.Duration) *Percentiles {
	t.Helper()
	return NewPercentiles(cache.New(8, time.Hour), minGap, zap.NewNop())
}

func TestPercentilesLookupBeforePublish(t *testing.T) {
	p := newTestPercentiles(t, 0)

	assert.Nil(t, p.Current(), "nothing published yet")
	assert.Nil(t, p.Lookup("PKD1"), "missing map must read as unknown, not zero")
}

func TestPercentilesRecompute(t *testing.T) {
	p := newTestPercentiles(t, 0)

	ok := p.Recompute(map[string]float64{"PKD1": 30.0, "PKD2": 20.0, "NPHS1": 10.0})
	require.True(t, ok)

	top := p.Lookup("PKD1")
	require.NotNil(t, top)
	assert.InDelta(t, 1.0, *top, 1e-12)

	bottom := p.Lookup("NPHS1")
	require.NotNil(t, bottom)
	assert.InDelta(t, 1.0/3.0, *bottom, 1e-12)

	assert.Nil(t, p.Lookup("ABSENT"))
}

func TestPercentilesRateLimit(t *testing.T) {
	p := newTestPercentiles(t, time.Hour)

	require.True(t, p.Recompute(map[string]float64{"PKD1": 1.0}))
	assert.False(t, p.Recompute(map[string]float64{"PKD1": 2.0, "PKD2": 3.0}),
		"second run inside the gap is skipped")

	// The skipped run must not have replaced the published map.
	m := p.Current()
	require.NotNil(t, m)
	assert.Len(t, m, 1)

	// Aging out the last run reopens the gate.
	p.lastRun = time.Now().Add(-2 * time.Hour)
	assert.True(t, p.Recompute(map[string]float64{"PKD1": 2.0, "PKD2": 3.0}))
	assert.Len(t, p.Current(), 2)
}
