package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolMetricsObserveWriteTracksExactMinMaxAverage(t *testing.T) {
	m := NewPoolMetrics("metrics_test_observe_write")

	m.ObserveWrite("p", 30*time.Millisecond)
	m.ObserveWrite("p", 10*time.Millisecond)
	m.ObserveWrite("p", 20*time.Millisecond)

	assert.Equal(t, 10*time.Millisecond, m.MinWriteTime())
	assert.Equal(t, 30*time.Millisecond, m.MaxWriteTime())
	assert.Equal(t, 20*time.Millisecond, m.AverageWriteTime())
}

func TestPoolMetricsAverageWriteTimeZeroBeforeAnyObservation(t *testing.T) {
	m := NewPoolMetrics("metrics_test_observe_write_empty")
	assert.Equal(t, time.Duration(0), m.AverageWriteTime())
	assert.Equal(t, time.Duration(0), m.MinWriteTime())
	assert.Equal(t, time.Duration(0), m.MaxWriteTime())
}
