package watch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cortexlabs/cortex-core/internal/logging"
	"github.com/cortexlabs/cortex-core/internal/model"
)

// defaultMaxQueueSize, defaultMaxConcurrentFiles and baseDebounce are the
// Change Processor's spec §4.10 defaults.
const (
	defaultMaxQueueSize       = 100
	defaultMaxConcurrentFiles = 5
	baseDebounce              = 500 * time.Millisecond
	minDebounce               = 100 * time.Millisecond
	maxDebounce               = 10 * time.Second
)

var priorityOrder = map[model.IndexingPriority]int{
	model.PriorityCritical: 0,
	model.PriorityHigh:     1,
	model.PriorityMedium:   2,
	model.PriorityLow:      3,
	model.PrioritySkip:     4,
}

// Batch is a collapsed, debounced set of changes ready for dispatch to the
// indexer (spec §4.10: "collapse to latest by timestamp, importance summed,
// highest priority recorded").
type Batch struct {
	RelativePath     string
	Events           []model.ChangeEvent
	Latest           model.ChangeEvent
	SummedImportance int
	HighestPriority  model.IndexingPriority
}

// Dispatcher reindexes a dispatched batch. critical batches are dispatched
// one at a time (serial); everything else is dispatched across a
// max_concurrent_files-capped worker set (spec §4.10).
type Dispatcher interface {
	Dispatch(ctx context.Context, batch Batch) error
}

// Stats mirrors the live-pipeline counters spec §7/§8 require for
// observability: total handled, dropped for overflow, and skipped while
// suspended.
type Stats struct {
	TotalDispatched int
	TotalOverflowed int
	TotalSkipped    int
}

// queueItem pairs a file's pending events with its per-file debounce timer.
type queueItem struct {
	relPath string
	events  []model.ChangeEvent
	timer   *time.Timer
}

// Processor implements the Change Processor (spec §4.10): a bounded
// per-file debounce queue, activity-aware backpressure, and a dispatch
// policy keyed on the batch's highest priority.
type Processor struct {
	mu       sync.Mutex
	queue    map[string]*queueItem
	order    []string // insertion order, for overflow tail-dropping
	activity *ActivityDetector
	dispatch Dispatcher
	log      *logging.Logger

	maxQueueSize       int
	maxConcurrentFiles int

	flushCh chan string
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once

	statsMu sync.Mutex
	stats   Stats

	sem chan struct{}
}

// NewProcessor creates a Processor backed by the given activity detector
// and dispatcher, using the spec's default queue size and concurrency cap.
func NewProcessor(activity *ActivityDetector, dispatch Dispatcher) *Processor {
	return &Processor{
		queue:              make(map[string]*queueItem),
		activity:           activity,
		dispatch:           dispatch,
		log:                logging.New("watch"),
		maxQueueSize:       defaultMaxQueueSize,
		maxConcurrentFiles: defaultMaxConcurrentFiles,
		flushCh:            make(chan string, defaultMaxQueueSize),
		stopCh:             make(chan struct{}),
		doneCh:             make(chan struct{}),
		sem:                make(chan struct{}, defaultMaxConcurrentFiles),
	}
}

// Start runs the dispatch loop in a background goroutine.
func (p *Processor) Start(ctx context.Context) {
	go p.run(ctx)
}

// Stop halts the dispatch loop and waits for it to exit.
func (p *Processor) Stop() {
	p.once.Do(func() {
		close(p.stopCh)
		<-p.doneCh
	})
}

// Stats returns a snapshot of the processor's counters.
func (p *Processor) Stats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}

// Enqueue admits a change event onto its file's debounce queue, resetting
// the per-file timer. If activity is currently suspended the event is
// dropped and counted as skipped; if the queue is already at capacity the
// lowest-priority tail entry is evicted to make room.
func (p *Processor) Enqueue(e model.ChangeEvent) {
	if p.activity != nil {
		p.activity.RecordEvent()
		if p.activity.SuspendProcessing() {
			p.statsMu.Lock()
			p.stats.TotalSkipped++
			p.statsMu.Unlock()
			return
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	item, exists := p.queue[e.RelativePath]
	if !exists {
		if len(p.queue) >= p.maxQueueSize {
			evicted := p.evictLowestPriorityLocked()
			p.statsMu.Lock()
			p.stats.TotalOverflowed++
			p.statsMu.Unlock()
			if !evicted {
				return
			}
		}
		item = &queueItem{relPath: e.RelativePath}
		p.queue[e.RelativePath] = item
		p.order = append(p.order, e.RelativePath)
	}
	item.events = append(item.events, e)

	interval := p.debounceInterval(e.IndexingPriority)
	if item.timer != nil {
		item.timer.Stop()
	}
	relPath := e.RelativePath
	item.timer = time.AfterFunc(interval, func() {
		select {
		case p.flushCh <- relPath:
		case <-p.stopCh:
		}
	})
}

// evictLowestPriorityLocked drops the queued file whose highest queued
// event priority is the lowest (spec §4.10: "queue overflow drops the lowest
// priority tail"). Reports whether an entry was evicted.
func (p *Processor) evictLowestPriorityLocked() bool {
	worstPath := ""
	worstRank := -1
	for _, relPath := range p.order {
		item, ok := p.queue[relPath]
		if !ok {
			continue
		}
		rank := priorityOrder[latestPriority(item.events)]
		if rank > worstRank {
			worstRank = rank
			worstPath = relPath
		}
	}
	if worstPath == "" {
		return false
	}
	if item, ok := p.queue[worstPath]; ok && item.timer != nil {
		item.timer.Stop()
	}
	delete(p.queue, worstPath)
	p.removeFromOrderLocked(worstPath)
	return true
}

func (p *Processor) removeFromOrderLocked(relPath string) {
	for i, rp := range p.order {
		if rp == relPath {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}

// debounceInterval computes spec §4.10's per-file debounce formula:
// base × activity-intensity weight × priority weight, clamped to
// [100ms, 10s].
func (p *Processor) debounceInterval(priority model.IndexingPriority) time.Duration {
	intensity := IntensityLow
	if p.activity != nil {
		intensity = p.activity.Intensity()
	}

	activityWeight := 0.8
	switch intensity {
	case IntensityHigh:
		activityWeight = 3
	case IntensityMedium:
		activityWeight = 1.5
	}

	priorityWeight := 1.0
	switch priority {
	case model.PriorityCritical:
		priorityWeight = 0.5
	case model.PriorityLow:
		priorityWeight = 2
	}

	d := time.Duration(float64(baseDebounce) * activityWeight * priorityWeight)
	if d < minDebounce {
		d = minDebounce
	}
	if d > maxDebounce {
		d = maxDebounce
	}
	return d
}

func (p *Processor) run(ctx context.Context) {
	defer close(p.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case relPath := <-p.flushCh:
			p.flush(ctx, relPath)
		}
	}
}

// flush collapses a file's queued events into one batch and dispatches it
// per the highest-priority dispatch policy: critical reindexes are serial,
// everything else runs through the concurrency-capped semaphore.
func (p *Processor) flush(ctx context.Context, relPath string) {
	p.mu.Lock()
	item, ok := p.queue[relPath]
	if ok {
		delete(p.queue, relPath)
		p.removeFromOrderLocked(relPath)
	}
	p.mu.Unlock()
	if !ok || len(item.events) == 0 {
		return
	}

	batch := collapse(item.events)

	p.statsMu.Lock()
	p.stats.TotalDispatched++
	p.statsMu.Unlock()

	if batch.HighestPriority == model.PriorityCritical {
		if err := p.dispatch.Dispatch(ctx, batch); err != nil {
			p.log.Printf("dispatch failed for %s: %v", relPath, err)
		}
		return
	}

	p.sem <- struct{}{}
	go func() {
		defer func() { <-p.sem }()
		if err := p.dispatch.Dispatch(ctx, batch); err != nil {
			p.log.Printf("dispatch failed for %s: %v", relPath, err)
		}
	}()
}

// collapse reduces a file's queued events to the latest by timestamp,
// summing importance and recording the highest priority seen (spec §4.10).
func collapse(events []model.ChangeEvent) Batch {
	sorted := make([]model.ChangeEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	latest := sorted[len(sorted)-1]
	summed := 0
	for _, e := range sorted {
		if e.ContentAnalysis != nil {
			summed += e.ContentAnalysis.EstimatedImportance
		}
	}

	return Batch{
		RelativePath:     latest.RelativePath,
		Events:           sorted,
		Latest:           latest,
		SummedImportance: summed,
		HighestPriority:  latestPriority(sorted),
	}
}

func latestPriority(events []model.ChangeEvent) model.IndexingPriority {
	best := model.PrioritySkip
	bestRank := priorityOrder[best]
	for _, e := range events {
		if rank, ok := priorityOrder[e.IndexingPriority]; ok && rank < bestRank {
			bestRank = rank
			best = e.IndexingPriority
		}
	}
	return best
}
