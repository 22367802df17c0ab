package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/sources"
)

// heldFetch pauses one Fetch after it has copied the remote collection.
type heldFetch struct {
	copied  chan struct{}
	release chan struct{}
}

// fakeAdapter keeps its "remote" collection in memory. Gates, when set, make
// Fetch or Dispatch block until the test releases them.
type fakeAdapter struct {
	origin models.Origin
	caps   models.CapabilitySet

	mu           sync.Mutex
	remote       []models.Task
	failIDs      map[string]error
	fetchErr     error
	imports      []models.Task
	dispatched   []string
	fetchGate    chan struct{}
	dispatchGate chan struct{}
	heldFetch    *heldFetch
	created      int

	fetches    int32
	dispatches int32
}

func newFakeAdapter(origin models.Origin, tasks ...models.Task) *fakeAdapter {
	caps := models.NewCapabilitySet(models.CapUpdateStatus, models.CapUpdateFields, models.CapImport)
	if origin == models.OriginNative {
		caps = models.NewCapabilitySet(models.CapUpdateStatus, models.CapUpdateFields, models.CapCreate,
			models.CapDelete, models.CapMutateSubtasks, models.CapComment, models.CapAttach)
	}
	return &fakeAdapter{origin: origin, caps: caps, remote: tasks, failIDs: map[string]error{}}
}

func (f *fakeAdapter) Origin() models.Origin              { return f.origin }
func (f *fakeAdapter) Capabilities() models.CapabilitySet { return f.caps }
func (f *fakeAdapter) Columns() []models.Column           { return models.ColumnsFor(f.origin) }
func (f *fakeAdapter) DefaultStatus() models.Status       { return models.StatusTodo }

func (f *fakeAdapter) Fetch(ctx context.Context) ([]models.Task, error) {
	atomic.AddInt32(&f.fetches, 1)
	f.mu.Lock()
	gate := f.fetchGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	if f.fetchErr != nil {
		f.mu.Unlock()
		return nil, f.fetchErr
	}
	out := make([]models.Task, len(f.remote))
	for i, t := range f.remote {
		out[i] = t.Clone()
	}
	held := f.heldFetch
	f.heldFetch = nil
	f.mu.Unlock()

	if held != nil {
		close(held.copied)
		<-held.release
	}
	return out, nil
}

func (f *fakeAdapter) Dispatch(ctx context.Context, id string, patch models.TaskPatch) (sources.Ack, error) {
	atomic.AddInt32(&f.dispatches, 1)
	f.mu.Lock()
	gate := f.dispatchGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, id)
	if err := f.failIDs[id]; err != nil {
		return sources.Ack{}, err
	}
	for i, t := range f.remote {
		if t.ID == id {
			f.remote[i] = patch.ApplyTo(t)
			return sources.Ack{TaskID: id, AcceptedAt: time.Now()}, nil
		}
	}
	return sources.Ack{}, &apierrors.DispatchError{Origin: string(f.origin), Op: "update", TaskID: id, Reason: apierrors.ReasonNotFound}
}

func (f *fakeAdapter) Create(_ context.Context, draft models.Task) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	t := draft.Clone()
	t.ID = fmt.Sprintf("created-%d", f.created)
	f.remote = append(f.remote, t)
	return t, nil
}

func (f *fakeAdapter) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.remote {
		if t.ID == id {
			f.remote = append(f.remote[:i], f.remote[i+1:]...)
			return nil
		}
	}
	return &apierrors.DispatchError{Origin: string(f.origin), Op: "delete", TaskID: id, Reason: apierrors.ReasonNotFound}
}

func (f *fakeAdapter) Import(context.Context, sources.ImportRequest) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Task(nil), f.imports...), nil
}

func (f *fakeAdapter) gateDispatch() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatchGate = make(chan struct{})
	return f.dispatchGate
}

func (f *fakeAdapter) gateFetch() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchGate = make(chan struct{})
	return f.fetchGate
}

// holdNextFetch makes the next Fetch block after copying the remote state
// until release is closed.
func (f *fakeAdapter) holdNextFetch() *heldFetch {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heldFetch = &heldFetch{copied: make(chan struct{}), release: make(chan struct{})}
	return f.heldFetch
}

func (f *fakeAdapter) failDispatch(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failIDs[id] = err
}

func (f *fakeAdapter) remoteTask(id string) (models.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.remote {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return models.Task{}, false
}

func task(id string, origin models.Origin, status models.Status) models.Task {
	t := models.Task{
		ID:          id,
		WorkspaceID: 1,
		Title:       "Task " + id,
		Status:      status,
		Priority:    models.PriorityMedium,
		Origin:      origin,
		Assignees:   []string{},
		Tags:        []string{},
		Subtasks:    []models.Subtask{},
		Comments:    []models.Comment{},
		Attachments: []models.Attachment{},
	}
	if origin.IsTracker() {
		t.ExternalRef = "https://tracker.example.com/browse/" + id
	}
	return t
}

func networkError(id string) error {
	return &apierrors.DispatchError{
		Origin: "fake",
		Op:     "update",
		TaskID: id,
		Reason: apierrors.ReasonNetwork,
		Err:    fmt.Errorf("connection refused"),
	}
}
