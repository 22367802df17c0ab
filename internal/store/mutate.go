package store

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/sources"
)

// Pending is the outcome of a dispatched mutation. The optimistic change is
// already visible when the handle is returned.
type Pending struct {
	TaskID string

	done       chan struct{}
	reconciled chan struct{}
	err        error
}

func newPending(taskID string) *Pending {
	return &Pending{
		TaskID:     taskID,
		done:       make(chan struct{}),
		reconciled: make(chan struct{}),
	}
}

// Done is closed once the dispatch has resolved.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Reconciled is closed once state is authoritative again: right after a
// successful dispatch, or after the corrective load of a failed one.
func (p *Pending) Reconciled() <-chan struct{} { return p.reconciled }

// Err is the dispatch error. Only meaningful after Done is closed.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the dispatch resolves and returns its error.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Mutate applies patch to the task immediately and dispatches it to the
// origin in the background. Unsupported kinds and invalid results fail
// before anything changes.
func (s *Store) Mutate(ctx context.Context, id string, patch models.TaskPatch) (*Pending, error) {
	kinds := patch.Kinds()
	if len(kinds) == 0 {
		return nil, apierrors.NewValidationError([]apierrors.Violation{{Field: "patch", Message: "changes nothing"}})
	}
	if err := sources.RequireCapabilities(s.adapter, kinds...); err != nil {
		return nil, err
	}
	patch = s.withChildIDs(patch)

	s.mu.Lock()
	current, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", apierrors.ErrTaskNotFound, id)
	}
	next := patch.ApplyTo(current)
	if err := models.Check(next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.items[id] = next
	s.version++
	s.seq++
	seq := s.seq
	s.pending[id] = append(s.pending[id], inflight{seq: seq, patch: patch, before: current, loadedAt: s.lastLoad})
	s.lastWrite[id] = seq
	s.mu.Unlock()

	p := newPending(id)
	s.background.Add(1)
	go s.dispatch(context.WithoutCancel(ctx), id, seq, patch, p)
	return p, nil
}

func (s *Store) dispatch(ctx context.Context, id string, seq uint64, patch models.TaskPatch, p *Pending) {
	defer s.background.Done()

	_, err := s.adapter.Dispatch(ctx, id, patch)

	var dispErr *apierrors.DispatchError
	reload := false
	s.mu.Lock()
	switch {
	case err == nil:
		s.confirm(id, seq)
		if s.adapter.Origin().IsTracker() {
			if t, ok := s.items[id]; ok {
				now := s.now()
				t.SyncedAt = &now
				s.items[id] = t
				s.version++
			}
		}
	case stderrors.As(err, &dispErr):
		s.settle(id, seq)
		reload = true
	default:
		reload = !s.rollback(id, seq)
	}
	s.mu.Unlock()

	p.err = err
	close(p.done)
	if !reload {
		if err != nil {
			s.log.Warn("mutation rejected by origin", "task_id", id, "error", err)
		}
		close(p.reconciled)
		return
	}

	s.log.Warn("dispatch failed, reconciling", "task_id", id, "error", err)
	s.loads.Forget(loadKey)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer close(p.reconciled)
		if err := s.Load(ctx); err != nil {
			s.log.Error("reconciliation failed", "task_id", id, "error", err)
		}
	}()
}

// confirm records that the origin accepted patch seq of task id. While a load
// is fetching, the patch stays pending until a load issued after this point
// commits. Callers hold mu.
func (s *Store) confirm(id string, seq uint64) {
	if s.fetching == 0 {
		s.settle(id, seq)
		return
	}
	patches := s.pending[id]
	for i := range patches {
		if patches[i].seq == seq {
			patches[i].confirmed = s.tickets
			return
		}
	}
}

// rollback restores task id to its state before patch seq when no later
// mutation or load has touched it, and reports whether it could. The patch is
// dropped either way. Callers hold mu.
func (s *Store) rollback(id string, seq uint64) bool {
	var entry *inflight
	for _, p := range s.pending[id] {
		if p.seq == seq {
			entry = &p
			break
		}
	}
	s.settle(id, seq)
	if entry == nil || s.lastWrite[id] != seq || s.lastLoad != entry.loadedAt {
		return false
	}
	if _, ok := s.items[id]; !ok {
		return true
	}
	s.items[id] = entry.before
	s.version++
	return true
}

// settle forgets the in-flight patch seq of task id. Callers hold mu.
func (s *Store) settle(id string, seq uint64) {
	patches := s.pending[id]
	for i, p := range patches {
		if p.seq == seq {
			patches = append(patches[:i:i], patches[i+1:]...)
			break
		}
	}
	if len(patches) == 0 {
		delete(s.pending, id)
		return
	}
	s.pending[id] = patches
}

// withChildIDs gives new sub-collection entries their ids up front, so the
// optimistic copy and the origin agree on them.
func (s *Store) withChildIDs(p models.TaskPatch) models.TaskPatch {
	if p.Subtasks != nil {
		subtasks := append([]models.Subtask(nil), *p.Subtasks...)
		for i := range subtasks {
			if subtasks[i].ID == "" {
				subtasks[i].ID = uuid.NewString()
			}
		}
		p.Subtasks = &subtasks
	}
	if p.Comments != nil {
		comments := append([]models.Comment(nil), *p.Comments...)
		for i := range comments {
			if comments[i].ID == "" {
				comments[i].ID = uuid.NewString()
			}
			if comments[i].CreatedAt.IsZero() {
				comments[i].CreatedAt = s.now()
			}
		}
		p.Comments = &comments
	}
	if p.Attachments != nil {
		attachments := append([]models.Attachment(nil), *p.Attachments...)
		for i := range attachments {
			if attachments[i].ID == "" {
				attachments[i].ID = uuid.NewString()
			}
		}
		p.Attachments = &attachments
	}
	return p
}

// MoveResult reports where a status move landed.
type MoveResult struct {
	Requested string        `json:"requested"`
	Applied   models.Status `json:"applied"`
	Clamped   bool          `json:"clamped"`
	Pending   *Pending      `json:"-"`
}

// MoveStatus sets the status, clamping a value the origin does not support
// to the nearest supported one instead of rejecting it.
func (s *Store) MoveStatus(ctx context.Context, id string, requested string) (MoveResult, error) {
	res := MoveResult{Requested: requested}
	fallback := s.adapter.DefaultStatus()
	if st, ok := models.ParseStatus(requested); ok {
		res.Applied = models.ClampStatus(s.adapter.Origin(), st, fallback)
		res.Clamped = res.Applied != st
	} else {
		res.Applied = fallback
		res.Clamped = true
	}
	if res.Clamped {
		s.log.Warn("status clamped", "task_id", id, "requested", requested, "applied", res.Applied)
	}

	p, err := s.Mutate(ctx, id, models.StatusPatch(res.Applied))
	if err != nil {
		return res, err
	}
	res.Pending = p
	return res, nil
}
