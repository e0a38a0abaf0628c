package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexlabs/cortex-core/internal/model"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	batches []Batch
	done    chan struct{}
}

func newRecordingDispatcher(expect int) *recordingDispatcher {
	return &recordingDispatcher{done: make(chan struct{}, expect)}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, b Batch) error {
	d.mu.Lock()
	d.batches = append(d.batches, b)
	d.mu.Unlock()
	d.done <- struct{}{}
	return nil
}

func (d *recordingDispatcher) snapshot() []Batch {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Batch, len(d.batches))
	copy(out, d.batches)
	return out
}

func event(relPath string, priority model.IndexingPriority, importance int, ts time.Time) model.ChangeEvent {
	return model.ChangeEvent{
		RelativePath:     relPath,
		Kind:             model.ChangeUpdate,
		Timestamp:        ts,
		IndexingPriority: priority,
		ContentAnalysis:  &model.ContentAnalysis{EstimatedImportance: importance},
		ShouldIndex:      true,
	}
}

func TestProcessor_CollapsesRapidEventsIntoOneBatch(t *testing.T) {
	d := newRecordingDispatcher(1)
	p := NewProcessor(NewActivityDetector(), d)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	base := time.Now()
	for i := 0; i < 5; i++ {
		p.Enqueue(event("a.go", model.PriorityMedium, 10, base.Add(time.Duration(i)*time.Millisecond)))
	}

	select {
	case <-d.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}

	batches := d.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, 5, len(batches[0].Events))
	assert.Equal(t, 50, batches[0].SummedImportance)
}

func TestProcessor_SuspendedActivityDropsEvents(t *testing.T) {
	d := newRecordingDispatcher(0)
	activity := NewActivityDetector()
	// Drive the detector past suspendThreshold: 250 events at one instant
	// over the 10s window is 25 events/sec, so it suspends (a bare
	// suspended=true would be recomputed by Enqueue's own RecordEvent).
	fixed := time.Now()
	activity.now = func() time.Time { return fixed }
	for i := 0; i < 250; i++ {
		activity.RecordEvent()
	}
	require.True(t, activity.SuspendProcessing())
	p := NewProcessor(activity, d)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	p.Enqueue(event("skip.go", model.PriorityHigh, 50, time.Now()))

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, d.snapshot())
	assert.Equal(t, 1, p.Stats().TotalSkipped)
}

func TestProcessor_OverflowDropsLowestPriorityTail(t *testing.T) {
	d := newRecordingDispatcher(0)
	p := NewProcessor(nil, d)
	p.maxQueueSize = 2

	now := time.Now()
	p.Enqueue(event("low.go", model.PriorityLow, 5, now))
	p.Enqueue(event("crit.go", model.PriorityCritical, 90, now))
	p.Enqueue(event("another.go", model.PriorityHigh, 40, now))

	p.mu.Lock()
	_, lowStillQueued := p.queue["low.go"]
	_, critStillQueued := p.queue["crit.go"]
	p.mu.Unlock()

	assert.False(t, lowStillQueued)
	assert.True(t, critStillQueued)
	assert.Equal(t, 1, p.Stats().TotalOverflowed)
}

func TestProcessor_CriticalPriorityDispatchesSerially(t *testing.T) {
	d := newRecordingDispatcher(1)
	p := NewProcessor(NewActivityDetector(), d)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	p.Enqueue(event("crit.go", model.PriorityCritical, 90, time.Now()))

	select {
	case <-d.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for critical dispatch")
	}

	batches := d.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, model.PriorityCritical, batches[0].HighestPriority)
}

func TestDebounceInterval_ClampedToBounds(t *testing.T) {
	p := NewProcessor(NewActivityDetector(), nil)
	d := p.debounceInterval(model.PriorityLow)
	assert.GreaterOrEqual(t, d, minDebounce)
	assert.LessOrEqual(t, d, maxDebounce)
}

func TestCollapse_RecordsHighestPriorityAndLatestEvent(t *testing.T) {
	base := time.Now()
	events := []model.ChangeEvent{
		event("a.go", model.PriorityLow, 5, base),
		event("a.go", model.PriorityCritical, 90, base.Add(time.Millisecond)),
		event("a.go", model.PriorityMedium, 10, base.Add(2*time.Millisecond)),
	}
	batch := collapse(events)
	assert.Equal(t, model.PriorityCritical, batch.HighestPriority)
	assert.Equal(t, 105, batch.SummedImportance)
	assert.Equal(t, events[2].Timestamp, batch.Latest.Timestamp)
}
