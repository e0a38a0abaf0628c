package embedpool

import "time"

// direction is the adaptive sizer's current trend.
type direction string

const (
	dirNone direction = "none"
	dirUp   direction = "up"
	dirDown direction = "down"
)

// batchSample records the outcome of a single dispatched batch.
type batchSample struct {
	size          int
	duration      time.Duration
	heapUsedAfter int64
	throughput    float64 // size / seconds
	success       bool
}

// AdaptiveSizer implements the batch-size state machine from spec §4.4:
// it grows or shrinks the next batch size based on recent throughput,
// backs off on heap pressure, converges when stable or oscillating, and
// recovers from worker failures by temporarily shrinking hard.
type AdaptiveSizer struct {
	Current int
	Min     int
	Max     int
	Step    int

	Optimal         bool
	Direction       direction
	StableCount     int
	History         []batchSample
	ConvergenceHist []float64 // throughput samples used for oscillation detection

	ConsecutiveFailures int
	FailureRecoverySize int

	heapLimitBytes int64
	lastAdjustedAt time.Time
	now            func() time.Time
}

const (
	defaultCurrent             = 400
	defaultMin                 = 200
	defaultMax                 = 800
	defaultStep                = 100
	defaultFailureRecoverySize = 50
	minFailureRecoverySize     = 10
	maxHistory                 = 20
	maxConvergenceHistory      = 10
	adjustInterval             = 5 * time.Second
	heapPressureThreshold      = 0.85
	hysteresisReverse          = 0.10
	hysteresisSame             = 0.05
	stableConvergeCount        = 5
)

// NewAdaptiveSizer creates a sizer with spec-mandated defaults.
func NewAdaptiveSizer(heapLimitBytes int64) *AdaptiveSizer {
	return &AdaptiveSizer{
		Current:             defaultCurrent,
		Min:                 defaultMin,
		Max:                 defaultMax,
		Step:                defaultStep,
		Direction:           dirNone,
		FailureRecoverySize: defaultFailureRecoverySize,
		heapLimitBytes:      heapLimitBytes,
		now:                 time.Now,
	}
}

// RecordSuccess records a successful batch and may adjust Current.
func (a *AdaptiveSizer) RecordSuccess(size int, duration time.Duration, heapUsedAfter int64) {
	throughput := 0.0
	if duration > 0 {
		throughput = float64(size) / duration.Seconds()
	}
	a.record(batchSample{size: size, duration: duration, heapUsedAfter: heapUsedAfter, throughput: throughput, success: true})
	a.ConsecutiveFailures = 0

	a.pushConvergence(throughput)
	if a.detectOscillation() {
		a.converge()
		return
	}
	a.maybeAdjust(heapUsedAfter)
}

// RecordFailure records a timeout or worker crash. On the second
// consecutive failure it shrinks hard for recovery; on repeated failure it
// halves the recovery floor again (never below minFailureRecoverySize).
func (a *AdaptiveSizer) RecordFailure(size int) {
	a.record(batchSample{size: size, success: false})
	a.ConsecutiveFailures++

	if a.ConsecutiveFailures >= 2 {
		a.Current = a.FailureRecoverySize
		a.Direction = dirDown
		a.StableCount = 0
		if a.ConsecutiveFailures > 2 {
			a.FailureRecoverySize /= 2
			if a.FailureRecoverySize < minFailureRecoverySize {
				a.FailureRecoverySize = minFailureRecoverySize
			}
		}
	}
}

func (a *AdaptiveSizer) record(s batchSample) {
	a.History = append(a.History, s)
	if len(a.History) > maxHistory {
		a.History = a.History[len(a.History)-maxHistory:]
	}
}

func (a *AdaptiveSizer) pushConvergence(throughput float64) {
	a.ConvergenceHist = append(a.ConvergenceHist, throughput)
	if len(a.ConvergenceHist) > maxConvergenceHistory {
		a.ConvergenceHist = a.ConvergenceHist[len(a.ConvergenceHist)-maxConvergenceHistory:]
	}
}

// detectOscillation inspects the last six convergence samples for at least
// three local extrema (a point strictly greater or less than both
// neighbors), a signal that the sizer is thrashing rather than converging.
func (a *AdaptiveSizer) detectOscillation() bool {
	n := len(a.ConvergenceHist)
	if n < 6 {
		return false
	}
	window := a.ConvergenceHist[n-6:]
	extrema := 0
	for i := 1; i < len(window)-1; i++ {
		prev, cur, next := window[i-1], window[i], window[i+1]
		if (cur > prev && cur > next) || (cur < prev && cur < next) {
			extrema++
		}
	}
	return extrema >= 3
}

func (a *AdaptiveSizer) converge() {
	a.Optimal = true
	a.Direction = dirNone
	a.StableCount = 0
}

// maybeAdjust applies the adjustment policy, at most once per adjustInterval.
func (a *AdaptiveSizer) maybeAdjust(heapUsedAfter int64) {
	now := a.timeNow()
	if !a.lastAdjustedAt.IsZero() && now.Sub(a.lastAdjustedAt) < adjustInterval {
		return
	}

	if a.heapLimitBytes > 0 {
		if ratio := float64(heapUsedAfter) / float64(a.heapLimitBytes); ratio > heapPressureThreshold {
			dec := a.Step
			if fifth := int(float64(a.Current) * 0.20); fifth > dec {
				dec = fifth
			}
			a.Current -= dec
			a.clampCurrent()
			a.Direction = dirDown
			a.StableCount = 0
			a.lastAdjustedAt = now
			return
		}
	}

	successCount := 0
	for _, s := range a.History {
		if s.success {
			successCount++
		}
	}
	if successCount < 3 {
		return
	}

	recentThroughput, priorThroughput := a.weightedThroughputs()
	if priorThroughput == 0 {
		return
	}
	change := (recentThroughput - priorThroughput) / priorThroughput

	threshold := hysteresisSame
	if a.Direction != dirNone && ((change > 0 && a.Direction == dirDown) || (change < 0 && a.Direction == dirUp)) {
		threshold = hysteresisReverse
	}

	switch {
	case change > threshold:
		a.Current += a.Step
		a.clampCurrent()
		if a.Direction == dirUp {
			a.StableCount++
		} else {
			a.StableCount = 0
		}
		a.Direction = dirUp
		a.lastAdjustedAt = now
	case change < -threshold:
		a.Current -= a.Step
		a.clampCurrent()
		if a.Direction == dirDown {
			a.StableCount++
			if a.StableCount >= 2 {
				a.converge()
			}
		} else {
			a.StableCount = 0
		}
		a.Direction = dirDown
		a.lastAdjustedAt = now
	default:
		a.StableCount++
		if a.StableCount >= stableConvergeCount {
			a.converge()
		}
	}
}

// weightedThroughputs splits History into two halves (older/newer) and
// returns their weighted averages, recent samples weighing more via a
// simple linear ramp.
func (a *AdaptiveSizer) weightedThroughputs() (recent, prior float64) {
	successes := make([]batchSample, 0, len(a.History))
	for _, s := range a.History {
		if s.success {
			successes = append(successes, s)
		}
	}
	if len(successes) < 2 {
		return 0, 0
	}
	mid := len(successes) / 2
	prior = weightedAvg(successes[:mid])
	recent = weightedAvg(successes[mid:])
	return recent, prior
}

func weightedAvg(samples []batchSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum, weightSum float64
	for i, s := range samples {
		weight := float64(i + 1)
		sum += s.throughput * weight
		weightSum += weight
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}

func (a *AdaptiveSizer) clampCurrent() {
	if a.Current < a.Min {
		a.Current = a.Min
	}
	if a.Current > a.Max {
		a.Current = a.Max
	}
}

func (a *AdaptiveSizer) timeNow() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}
