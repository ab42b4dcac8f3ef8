package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rotblauer/routecat/events"
	"github.com/rotblauer/routecat/geo/sindex"
	"github.com/rotblauer/routecat/params"
	detect "github.com/rotblauer/routecat/section"
	"github.com/rotblauer/routecat/state"
	"github.com/rotblauer/routecat/types/section"
)

var ErrDetectionRunning = errors.New("engine: detection already running")

// TaskState is the lifecycle of a background detection run.
type TaskState string

const (
	TaskRunning  TaskState = "running"
	TaskComplete TaskState = "complete"

	// TaskIdle means the run was canceled; previously detected
	// sections are untouched.
	TaskIdle  TaskState = "idle"
	TaskError TaskState = "error"
)

// Progress reports position within the current detection phase.
type Progress struct {
	Phase string `json:"phase"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

// TaskStatus is a Poll snapshot.
type TaskStatus struct {
	State    TaskState `json:"state"`
	Progress Progress  `json:"progress"`
	Err      error     `json:"-"`
	Error    string    `json:"error,omitempty"`
}

// DetectionTask is a handle on one background detection run.
type DetectionTask struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	state    TaskState
	progress Progress
	err      error
}

// Poll reports the task's current state and progress.
func (t *DetectionTask) Poll() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := TaskStatus{State: t.state, Progress: t.progress, Err: t.err}
	if t.err != nil {
		st.Error = t.err.Error()
	}
	return st
}

// Cancel stops the run. Idempotent; a canceled run discards its
// results, leaving previously detected sections intact.
func (t *DetectionTask) Cancel() {
	t.cancel()
}

func (t *DetectionTask) wait() {
	<-t.done
}

func (t *DetectionTask) setProgress(phase string, done, total int) {
	t.mu.Lock()
	t.progress = Progress{Phase: phase, Done: done, Total: total}
	t.mu.Unlock()
}

func (t *DetectionTask) finish(state TaskState, err error) {
	t.mu.Lock()
	t.state = state
	t.err = err
	t.mu.Unlock()
	close(t.done)
}

// StartDetection begins section detection in the background. Only one
// run at a time; ErrDetectionRunning otherwise. Inputs are snapshotted
// at start, mutations after that land in the next run.
func (e *Engine) StartDetection(ctx context.Context) (*DetectionTask, error) {
	e.mu.Lock()
	if e.task != nil {
		e.mu.Unlock()
		return nil, ErrDetectionRunning
	}
	inputs, err := e.detectionInputsLocked()
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	task := &DetectionTask{
		cancel: cancel,
		done:   make(chan struct{}),
		state:  TaskRunning,
	}
	e.task = task
	e.mu.Unlock()

	go e.runDetection(ctx, task, inputs)
	return task, nil
}

func (e *Engine) runDetection(ctx context.Context, task *DetectionTask, inputs []*detect.Input) {
	detector := detect.NewDetector(e.cfg.Detection, task.setProgress)
	result := detector.Detect(ctx, inputs)

	e.mu.Lock()
	e.task = nil
	if result == nil || ctx.Err() != nil {
		e.mu.Unlock()
		task.finish(TaskIdle, nil)
		return
	}
	task.setProgress("persist", 0, 1)
	err := e.applyDetectionLocked(result)
	task.setProgress("persist", 1, 1)
	e.mu.Unlock()

	if err != nil {
		task.finish(TaskError, err)
		return
	}
	events.SectionsDetected.Send(result)
	task.finish(TaskComplete, nil)
}

// detectLocked recomputes sections synchronously, for lazy query-time
// refresh.
func (e *Engine) detectLocked() error {
	inputs, err := e.detectionInputsLocked()
	if err != nil {
		return err
	}
	detector := detect.NewDetector(e.cfg.Detection, nil)
	return e.applyDetectionLocked(detector.Detect(context.Background(), inputs))
}

func (e *Engine) detectionInputsLocked() ([]*detect.Input, error) {
	inputs := make([]*detect.Input, 0, len(e.metas))
	for id, meta := range e.metas {
		track, err := e.track(id)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, &detect.Input{
			ID:        id,
			Sport:     meta.Sport,
			Track:     track,
			StartTime: meta.StartTime,
		})
	}
	return inputs, nil
}

func (e *Engine) applyDetectionLocked(result *section.MultiScaleResult) error {
	e.sections = result.Sections
	e.potentials = result.Potentials

	for _, s := range e.sections {
		s.RouteIDs = e.routeIDsForLocked(s.ActivityIDs)
	}
	e.applyNamesLocked()

	e.sidx = sindex.New()
	for _, s := range e.sections {
		e.sidx.Insert(s.ID, s.Bound)
	}

	if err := e.persistSectionsLocked(); err != nil {
		return err
	}
	e.sectionsDirty = false
	if err := state.PutJSON(e.store, params.MetaBucket, metaKeySectionsDirty, false); err != nil {
		return err
	}
	e.lastDetection = time.Now().UTC()
	return state.PutJSON(e.store, params.MetaBucket, metaKeyLastDetection, e.lastDetection)
}

// routeIDsForLocked returns the sorted distinct group ids of a section
// membership.
func (e *Engine) routeIDsForLocked(activityIDs []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range activityIDs {
		gid := e.routeIDLocked(id)
		if gid == "" || seen[gid] {
			continue
		}
		seen[gid] = true
		out = append(out, gid)
	}
	sort.Strings(out)
	return out
}
