package embedpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdaptiveSizer_DefaultsMatchSpec(t *testing.T) {
	s := NewAdaptiveSizer(0)
	assert.Equal(t, defaultCurrent, s.Current)
	assert.Equal(t, defaultMin, s.Min)
	assert.Equal(t, defaultMax, s.Max)
	assert.Equal(t, defaultStep, s.Step)
	assert.Equal(t, defaultFailureRecoverySize, s.FailureRecoverySize)
}

func TestAdaptiveSizer_HeapPressureShrinksImmediately(t *testing.T) {
	s := NewAdaptiveSizer(1000)
	before := s.Current
	s.RecordSuccess(400, 2*time.Second, 900) // 90% of limit
	assert.Less(t, s.Current, before)
	assert.Equal(t, dirDown, s.Direction)
}

func TestAdaptiveSizer_FailureRecoveryShrinksOnSecondFailure(t *testing.T) {
	s := NewAdaptiveSizer(0)
	s.RecordFailure(400)
	assert.Equal(t, 1, s.ConsecutiveFailures)
	assert.Equal(t, defaultCurrent, s.Current) // no shrink yet

	s.RecordFailure(400)
	assert.Equal(t, 2, s.ConsecutiveFailures)
	assert.Equal(t, defaultFailureRecoverySize, s.Current)
}

func TestAdaptiveSizer_RepeatedFailureHalvesRecoveryFloor(t *testing.T) {
	s := NewAdaptiveSizer(0)
	s.RecordFailure(400)
	s.RecordFailure(400)
	s.RecordFailure(400)
	assert.Equal(t, defaultFailureRecoverySize/2, s.FailureRecoverySize)
}

func TestAdaptiveSizer_SuccessResetsFailureCount(t *testing.T) {
	s := NewAdaptiveSizer(0)
	s.RecordFailure(400)
	s.RecordSuccess(400, time.Second, 0)
	assert.Equal(t, 0, s.ConsecutiveFailures)
}

func TestAdaptiveSizer_NeverExceedsMaxOrMin(t *testing.T) {
	s := NewAdaptiveSizer(0)
	s.Current = s.Max
	s.clampCurrent()
	assert.Equal(t, s.Max, s.Current)

	s.Current = s.Min - 50
	s.clampCurrent()
	assert.Equal(t, s.Min, s.Current)
}

func TestAdaptiveSizer_OscillationConverges(t *testing.T) {
	s := NewAdaptiveSizer(0)
	throughputs := []float64{100, 10, 100, 10, 100, 10}
	for _, tp := range throughputs {
		s.pushConvergence(tp)
	}
	assert.True(t, s.detectOscillation())
}
