// Package store keeps the canonical task collection of one origin in memory
// and runs the optimistic mutation protocol against its source adapter.
//
// Every change is applied locally first, then dispatched to the origin in the
// background. A dispatch failing with a DispatchError discards the optimistic
// change by reloading the authoritative collection. Mutations on the same task id are not
// serialized: whichever dispatch completes last decides what a later failure
// reconciles against.
package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/sources"
	"golang.org/x/sync/singleflight"
)

const loadKey = "load"

// inflight is an optimistic patch the collection must keep showing: its
// dispatch is outstanding, or it was confirmed while an older load was still
// fetching.
type inflight struct {
	seq   uint64
	patch models.TaskPatch

	// confirmed is the newest load ticket issued when the origin accepted the
	// patch, zero while the dispatch is outstanding. Loads holding that ticket
	// or an older one may have fetched the task before the change.
	confirmed uint64

	// before and loadedAt allow a local rollback when nothing has touched the
	// task since the mutation.
	before   models.Task
	loadedAt uint64
}

// Store owns the items of one origin within one workspace.
type Store struct {
	adapter sources.Adapter
	log     *slog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	items     map[string]models.Task
	order     []string
	version   uint64
	loaded    bool
	pending   map[string][]inflight
	lastWrite map[string]uint64
	seq       uint64
	tickets   uint64
	lastLoad  uint64
	fetching  int

	loads      singleflight.Group
	background sync.WaitGroup
}

func New(adapter sources.Adapter, log *slog.Logger) *Store {
	return &Store{
		adapter:   adapter,
		log:       log.With("origin", adapter.Origin()),
		now:       time.Now,
		items:     make(map[string]models.Task),
		pending:   make(map[string][]inflight),
		lastWrite: make(map[string]uint64),
	}
}

func (s *Store) Origin() models.Origin              { return s.adapter.Origin() }
func (s *Store) Capabilities() models.CapabilitySet { return s.adapter.Capabilities() }
func (s *Store) Columns() []models.Column           { return s.adapter.Columns() }

// Version increases on every local change to the collection.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Loaded reports whether at least one Load has completed.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Snapshot returns a copy of the collection in insertion order.
func (s *Store) Snapshot() ([]models.Task, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	return out, s.version
}

func (s *Store) Get(id string) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.items[id]
	if !ok {
		return models.Task{}, false
	}
	return t.Clone(), true
}

// Load replaces the collection with the origin's current state. Concurrent
// calls share a single fetch. On failure the previous collection is kept.
func (s *Store) Load(ctx context.Context) error {
	_, err, _ := s.loads.Do(loadKey, func() (any, error) {
		return nil, s.load(ctx)
	})
	return err
}

func (s *Store) load(ctx context.Context) error {
	s.mu.Lock()
	s.tickets++
	ticket := s.tickets
	s.fetching++
	s.mu.Unlock()

	tasks, err := s.adapter.Fetch(ctx)
	if err != nil {
		s.mu.Lock()
		s.fetching--
		s.mu.Unlock()
		s.log.Error("load failed", "error", err)
		return err
	}

	items := make(map[string]models.Task, len(tasks))
	order := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if violations := models.Validate(t); len(violations) > 0 {
			s.log.Warn("excluding invalid task", "task_id", t.ID, "violations", violations)
			continue
		}
		if _, dup := items[t.ID]; dup {
			s.log.Warn("excluding duplicate task", "task_id", t.ID)
			continue
		}
		items[t.ID] = t
		order = append(order, t.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetching--
	if ticket < s.lastLoad {
		// a newer load already committed
		return nil
	}
	for id, patches := range s.pending {
		kept := make([]inflight, 0, len(patches))
		t, ok := items[id]
		for _, p := range patches {
			if p.confirmed != 0 && p.confirmed < ticket {
				// fetched after the origin accepted it
				continue
			}
			kept = append(kept, p)
			if ok {
				t = p.patch.ApplyTo(t)
			}
		}
		if ok {
			items[id] = t
		}
		if len(kept) == 0 {
			delete(s.pending, id)
		} else {
			s.pending[id] = kept
		}
	}
	s.items = items
	s.order = order
	s.lastLoad = ticket
	s.loaded = true
	s.version++
	s.log.Debug("loaded", "count", len(order), "version", s.version)
	return nil
}

// reconcile forces a fresh fetch instead of joining one that may have started
// before the failed dispatch was discarded.
func (s *Store) reconcile(ctx context.Context) {
	s.loads.Forget(loadKey)
	if err := s.Load(ctx); err != nil {
		s.log.Error("reconciliation failed", "error", err)
	}
}

// Create persists draft at the origin and inserts the task the origin
// returns. Nothing is inserted before the origin confirms.
func (s *Store) Create(ctx context.Context, draft models.Task) (models.Task, error) {
	if err := sources.RequireCapabilities(s.adapter, models.CapCreate); err != nil {
		return models.Task{}, err
	}
	draft = draft.Clone()
	draft.Origin = s.adapter.Origin()
	if draft.Status == "" {
		draft.Status = s.adapter.DefaultStatus()
	}
	if draft.Priority == "" {
		draft.Priority = models.PriorityMedium
	}
	if err := apierrors.NewValidationError(models.ValidateDraft(draft)); err != nil {
		return models.Task{}, err
	}

	created, err := s.adapter.Create(ctx, draft)
	if err != nil {
		return models.Task{}, err
	}
	if err := models.Check(created); err != nil {
		s.log.Warn("origin returned an invalid task, reloading", "task_id", created.ID, "error", err)
		s.goReconcile(ctx)
		return created, nil
	}

	s.mu.Lock()
	if _, exists := s.items[created.ID]; !exists {
		s.order = append(s.order, created.ID)
	}
	s.items[created.ID] = created
	s.version++
	s.mu.Unlock()
	return created.Clone(), nil
}

// Delete removes the task at the origin, then locally.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := sources.RequireCapabilities(s.adapter, models.CapDelete); err != nil {
		return err
	}
	if _, ok := s.Get(id); !ok {
		return fmt.Errorf("%w: %s", apierrors.ErrTaskNotFound, id)
	}
	if err := s.adapter.Delete(ctx, id); err != nil {
		var dispErr *apierrors.DispatchError
		if stderrors.As(err, &dispErr) && dispErr.Reason == apierrors.ReasonNotFound {
			s.goReconcile(ctx)
		}
		return err
	}

	s.mu.Lock()
	s.remove(id)
	s.version++
	s.mu.Unlock()
	return nil
}

// Import mirrors external items and inserts the ones not already present.
// It returns the number of new tasks.
func (s *Store) Import(ctx context.Context, req sources.ImportRequest) (int, error) {
	if err := sources.RequireCapabilities(s.adapter, models.CapImport); err != nil {
		return 0, err
	}
	tasks, err := s.adapter.Import(ctx, req)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, t := range tasks {
		if _, exists := s.items[t.ID]; exists {
			continue
		}
		if violations := models.Validate(t); len(violations) > 0 {
			s.log.Warn("skipping invalid imported task", "task_id", t.ID, "violations", violations)
			continue
		}
		s.items[t.ID] = t
		s.order = append(s.order, t.ID)
		added++
	}
	if added > 0 {
		s.version++
	}
	s.log.Info("import finished", "received", len(tasks), "added", added)
	return added, nil
}

// Drain blocks until every background dispatch and reconciliation has finished.
func (s *Store) Drain() {
	s.background.Wait()
}

func (s *Store) goReconcile(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.reconcile(ctx)
	}()
}

// remove drops id from the collection. Callers hold mu.
func (s *Store) remove(id string) {
	delete(s.items, id)
	delete(s.pending, id)
	delete(s.lastWrite, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
