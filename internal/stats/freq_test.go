package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateCounterMeasuresRate(t *testing.T) {
	c := NewRateCounter(50 * time.Millisecond)
	require.Zero(t, c.Hz())

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for i := 0; i < 30; i++ {
		<-ticker.C
		c.Tick()
	}

	// ~200 Hz nominal, generous bounds for scheduler jitter
	require.Greater(t, c.Hz(), 50.0)
	require.Less(t, c.Hz(), 400.0)
}

func TestRateCounterWindowDefault(t *testing.T) {
	c := NewRateCounter(0)
	require.Equal(t, time.Second, c.window)
}
