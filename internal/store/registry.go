package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/sources"
)

var (
	// ErrNotOpen is returned for a tracker store that has not been opened.
	ErrNotOpen = stderrors.New("integration is not open")

	// ErrNativeAlwaysOpen is returned when closing the native store.
	ErrNativeAlwaysOpen = stderrors.New("native tasks cannot be closed")
)

// AdapterFactory builds the adapter of an origin for a workspace.
type AdapterFactory interface {
	Adapter(origin models.Origin, workspaceID uint64) (sources.Adapter, error)
}

type storeKey struct {
	workspaceID uint64
	origin      models.Origin
}

type entry struct {
	store  *Store
	poller *Poller
}

// Registry hands out one store per workspace and origin. Native stores are
// created on first use; tracker stores exist between Open and Close and are
// resynced by a poller meanwhile.
type Registry struct {
	factory  AdapterFactory
	interval time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	entries map[storeKey]*entry
}

func NewRegistry(factory AdapterFactory, pollInterval time.Duration, log *slog.Logger) *Registry {
	return &Registry{
		factory:  factory,
		interval: pollInterval,
		log:      log,
		entries:  make(map[storeKey]*entry),
	}
}

// Store returns the loaded store for origin. Tracker stores must be open.
func (r *Registry) Store(ctx context.Context, workspaceID uint64, origin models.Origin) (*Store, error) {
	if origin == models.OriginNative {
		return r.ensure(ctx, workspaceID, origin)
	}
	r.mu.Lock()
	e, ok := r.entries[storeKey{workspaceID, origin}]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", origin, ErrNotOpen)
	}
	if !e.store.Loaded() {
		if err := e.store.Load(ctx); err != nil {
			return nil, err
		}
	}
	return e.store, nil
}

// Open activates the store of origin, loading it and starting its poller.
// Opening an open store returns it unchanged.
func (r *Registry) Open(ctx context.Context, workspaceID uint64, origin models.Origin) (*Store, error) {
	s, err := r.ensure(ctx, workspaceID, origin)
	if err != nil && origin.IsTracker() {
		r.Close(workspaceID, origin)
	}
	return s, err
}

func (r *Registry) ensure(ctx context.Context, workspaceID uint64, origin models.Origin) (*Store, error) {
	key := storeKey{workspaceID, origin}

	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		adapter, err := r.factory.Adapter(origin, workspaceID)
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		log := r.log.With("workspace_id", workspaceID)
		e = &entry{store: New(adapter, log)}
		if origin.IsTracker() {
			e.poller = NewPoller(e.store, r.interval, log)
			e.poller.Start(context.Background())
		}
		r.entries[key] = e
		r.log.Info("store opened", "workspace_id", workspaceID, "origin", origin)
	}
	r.mu.Unlock()

	if !e.store.Loaded() {
		if err := e.store.Load(ctx); err != nil {
			return nil, err
		}
	}
	return e.store, nil
}

// IsOpen reports whether the store of origin is active. Native always is.
func (r *Registry) IsOpen(workspaceID uint64, origin models.Origin) bool {
	if origin == models.OriginNative {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[storeKey{workspaceID, origin}]
	return ok
}

// Close stops a tracker store's poller and discards its state once
// in-flight dispatches have finished.
func (r *Registry) Close(workspaceID uint64, origin models.Origin) error {
	if origin == models.OriginNative {
		return ErrNativeAlwaysOpen
	}
	key := storeKey{workspaceID, origin}

	r.mu.Lock()
	e, ok := r.entries[key]
	delete(r.entries, key)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	e.shutdown()
	r.log.Info("store closed", "workspace_id", workspaceID, "origin", origin)
	return nil
}

// Shutdown stops every poller and waits for background work.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[storeKey]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.shutdown()
	}
}

func (e *entry) shutdown() {
	if e.poller != nil {
		e.poller.Stop()
	}
	e.store.Drain()
}
