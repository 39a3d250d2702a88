package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/veloxi/forge-api/internal/events"
	"github.com/veloxi/forge-api/internal/provider"
)

// ErrUnknownLane is returned when a task is enqueued on a lane the
// orchestrator does not run.
var ErrUnknownLane = fmt.Errorf("unknown worker lane")

// Orchestrator owns the polling lanes: one queue and one worker
// goroutine per lane. Enqueue is safe to call before Start; queued tasks
// are picked up once the workers run.
type Orchestrator struct {
	deps    Deps
	workers map[string]*laneWorker

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates an orchestrator running the given lanes.
// Lane names must be unique and every FollowUpLane must name another
// configured lane.
func NewOrchestrator(deps Deps, lanes ...Lane) (*Orchestrator, error) {
	o := &Orchestrator{
		deps:    deps,
		workers: make(map[string]*laneWorker, len(lanes)),
	}

	for _, lane := range lanes {
		if lane.Name == "" {
			return nil, fmt.Errorf("lane name cannot be empty")
		}
		if lane.Adapter == nil {
			return nil, fmt.Errorf("lane %s has no adapter", lane.Name)
		}
		if _, exists := o.workers[lane.Name]; exists {
			return nil, fmt.Errorf("duplicate lane name %s", lane.Name)
		}
		o.workers[lane.Name] = &laneWorker{
			lane:    lane,
			queue:   NewQueue(),
			deps:    deps,
			logger:  deps.Logger.With("component", "worker", "lane", lane.Name),
			enqueue: o.Enqueue,
		}
	}

	for name, w := range o.workers {
		if follow := w.lane.FollowUpLane; follow != "" {
			if _, exists := o.workers[follow]; !exists {
				return nil, fmt.Errorf("lane %s chains into unknown lane %s", name, follow)
			}
		}
	}

	return o, nil
}

// Enqueue places taskID on the named lane's queue and publishes a queued
// event. Re-enqueueing a task already queued or in flight is a silent
// no-op.
func (o *Orchestrator) Enqueue(lane, taskID string) error {
	w, exists := o.workers[lane]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownLane, lane)
	}

	if !w.queue.Enqueue(taskID) {
		w.logger.Debug("task already tracked, enqueue skipped", "task_id", taskID)
		return nil
	}

	o.deps.Notifier.Publish(taskID, events.StatusQueued, "Task accepted for processing.")
	return nil
}

// Start launches one worker goroutine per lane. Calling Start twice is
// an error.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return fmt.Errorf("orchestrator already started")
	}
	o.started = true

	ctx, o.cancel = context.WithCancel(ctx)
	for _, w := range o.workers {
		o.wg.Add(1)
		go func(w *laneWorker) {
			defer o.wg.Done()
			w.run(ctx)
		}(w)
	}

	o.deps.Logger.Info("worker orchestrator started", "lane_count", len(o.workers))
	return nil
}

// Stop cancels the workers and waits for the current tasks to unwind.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.started || o.cancel == nil {
		return
	}
	o.cancel()
	o.wg.Wait()
	o.started = false
	o.deps.Logger.Info("worker orchestrator stopped")
}

// Standard lane timing. Intervals and budgets follow each provider's
// observed completion profile.
const (
	previewInterval    = 1 * time.Second
	refineInterval     = 1 * time.Second
	compositeInterval  = 3 * time.Second
	generativeInterval = 5 * time.Second
	audioInterval      = 1 * time.Second

	previewBudget    = 5 * time.Minute
	refineBudget     = 10 * time.Minute
	compositeBudget  = 8 * time.Minute
	generativeBudget = 10 * time.Minute
	audioBudget      = 7 * time.Minute

	transportGrace = 60 * time.Second
)

// StandardLanes builds the five production lanes around the given
// adapters. The preview lane chains into the refine lane.
func StandardLanes(
	preview *provider.MeshyPreviewAdapter,
	refine *provider.MeshyRefineAdapter,
	composite *provider.MasterpieceAdapter,
	generative *provider.RodinAdapter,
	audio *provider.SonicAdapter,
) []Lane {
	return []Lane{
		{
			Name:         provider.LaneMeshPreview,
			Adapter:      preview,
			Interval:     previewInterval,
			Budget:       previewBudget,
			FollowUpLane: provider.LaneMeshRefine,
		},
		{
			Name:     provider.LaneMeshRefine,
			Adapter:  refine,
			Interval: refineInterval,
			Budget:   refineBudget,
		},
		{
			Name:     provider.LaneMeshComposite,
			Adapter:  composite,
			Interval: compositeInterval,
			Budget:   compositeBudget,
		},
		{
			Name:           provider.LaneMeshGenerative,
			Adapter:        generative,
			Interval:       generativeInterval,
			Budget:         generativeBudget,
			FatalGrace:     transportGrace,
			PersistTimeout: true,
		},
		{
			Name:       provider.LaneAudio,
			Adapter:    audio,
			Interval:   audioInterval,
			Budget:     audioBudget,
			FatalGrace: transportGrace,
		},
	}
}
