package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newDetectorAt(start time.Time) (*ActivityDetector, *time.Time) {
	cur := start
	a := NewActivityDetector()
	a.now = func() time.Time { return cur }
	return a, &cur
}

func TestActivityDetector_LowRateWhenIdle(t *testing.T) {
	a, _ := newDetectorAt(time.Now())
	assert.Equal(t, IntensityLow, a.Intensity())
	assert.False(t, a.SuspendProcessing())
}

func TestActivityDetector_HighIntensityAboveThreshold(t *testing.T) {
	start := time.Now()
	a, cur := newDetectorAt(start)
	for i := 0; i < 60; i++ {
		*cur = start.Add(time.Duration(i) * 100 * time.Millisecond)
		a.RecordEvent()
	}
	assert.Equal(t, IntensityHigh, a.Intensity())
}

func TestActivityDetector_SuspendsAboveThreshold(t *testing.T) {
	start := time.Now()
	a, cur := newDetectorAt(start)
	for i := 0; i < 250; i++ {
		*cur = start.Add(time.Duration(i) * 10 * time.Millisecond)
		a.RecordEvent()
	}
	assert.True(t, a.SuspendProcessing())
}

func TestActivityDetector_EventsOutsideWindowAreExcluded(t *testing.T) {
	start := time.Now()
	a, cur := newDetectorAt(start)
	a.RecordEvent()
	*cur = start.Add(activityWindow + time.Second)
	assert.Equal(t, 0.0, a.Rate())
}
