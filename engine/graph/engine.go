package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/plexuslabs/plexus/engine/plexerr"
)

// Store is the persistence capability the Engine drives after every
// committed write closure (section 4.9). Implemented by engine/store.
type Store interface {
	SaveContext(ctx context.Context, g *Context) error
	LoadContext(ctx context.Context, id string) (*Context, error)
	ListContexts(ctx context.Context) ([]string, error)
	DeleteContext(ctx context.Context, id string) error
	RenameContext(ctx context.Context, id, newID string) error
}

type contextEntry struct {
	mu  sync.Mutex // exclusive-write discipline for this context (section 5)
	ctx *Context
}

// Engine is a concurrent map from context_id to Context with a
// per-context exclusive-write discipline: reads may be concurrent, writes
// to the same context serialize, and throughput scales across contexts
// rather than within one (section 5).
type Engine struct {
	mu       sync.RWMutex
	entries  map[string]*contextEntry
	store    Store
	logger   *slog.Logger
}

// NewEngine creates an Engine backed by store. If logger is nil,
// slog.Default() is used, matching the teacher's nil-logger convention.
func NewEngine(store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		entries: make(map[string]*contextEntry),
		store:   store,
		logger:  logger,
	}
}

// Load populates the engine's in-memory map from the store at startup.
func (e *Engine) Load(ctx context.Context) error {
	ids, err := e.store.ListContexts(ctx)
	if err != nil {
		return plexerr.StorageError("list_contexts", err)
	}
	for _, id := range ids {
		g, err := e.store.LoadContext(ctx, id)
		if err != nil {
			return plexerr.StorageError("load_context:"+id, err)
		}
		e.mu.Lock()
		e.entries[id] = &contextEntry{ctx: g}
		e.mu.Unlock()
	}
	e.logger.Info("engine.loaded", "contexts", len(ids))
	return nil
}

// CreateContext creates a new, empty, named context and persists it.
func (e *Engine) CreateContext(ctx context.Context, id string) (*Context, error) {
	e.mu.Lock()
	if _, exists := e.entries[id]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("graph: context %q already exists", id)
	}
	g := NewContext(id)
	e.entries[id] = &contextEntry{ctx: g}
	e.mu.Unlock()

	if err := e.store.SaveContext(ctx, g); err != nil {
		return nil, plexerr.StorageError("create_context:"+id, err)
	}
	e.logger.Info("engine.context_created", "context_id", id)
	return g, nil
}

// DeleteContext removes a context from memory and the store.
func (e *Engine) DeleteContext(ctx context.Context, id string) error {
	e.mu.Lock()
	if _, exists := e.entries[id]; !exists {
		e.mu.Unlock()
		return fmt.Errorf("%w: %q", plexerr.ErrContextNotFound, id)
	}
	delete(e.entries, id)
	e.mu.Unlock()

	if err := e.store.DeleteContext(ctx, id); err != nil {
		return plexerr.StorageError("delete_context:"+id, err)
	}
	e.logger.Info("engine.context_deleted", "context_id", id)
	return nil
}

// ListContexts returns every known context ID.
func (e *Engine) ListContexts() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.entries))
	for id := range e.entries {
		ids = append(ids, id)
	}
	return ids
}

// RenameContext changes a context's ID in memory and in the store.
func (e *Engine) RenameContext(ctx context.Context, id, newID string) error {
	e.mu.Lock()
	entry, exists := e.entries[id]
	if !exists {
		e.mu.Unlock()
		return fmt.Errorf("%w: %q", plexerr.ErrContextNotFound, id)
	}
	if _, taken := e.entries[newID]; taken {
		e.mu.Unlock()
		return fmt.Errorf("graph: context %q already exists", newID)
	}
	entry.ctx.id = newID
	delete(e.entries, id)
	e.entries[newID] = entry
	e.mu.Unlock()

	if err := e.store.RenameContext(ctx, id, newID); err != nil {
		return plexerr.StorageError("rename_context:"+id, err)
	}
	return nil
}

// lookup returns the entry for id without locking it, or an error if the
// context does not exist.
func (e *Engine) lookup(id string) (*contextEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", plexerr.ErrContextNotFound, id)
	}
	return entry, nil
}

// WithContextMut acquires the exclusive write lock for id, runs fn with
// the live Context, and — if fn succeeds — persists the context via the
// store before releasing the lock (one durable write per call). Failure of
// persistence does not roll back the in-memory state (documented deviation,
// section 4.2); fn's error, if any, is returned without persisting.
func (e *Engine) WithContextMut(ctx context.Context, id string, fn func(*Context) error) error {
	entry, err := e.lookup(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := fn(entry.ctx); err != nil {
		return err
	}
	if err := e.store.SaveContext(ctx, entry.ctx); err != nil {
		return plexerr.StorageError("save_context:"+id, err)
	}
	return nil
}

// Snapshot returns a read-only, immutable clone of the named context. Reads
// are wait-free against writes to other contexts (section 5).
func (e *Engine) Snapshot(id string) (*Snapshot, error) {
	entry, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	return entry.ctx.Snapshot(), nil
}

// Context returns the live context for read-only query use. Callers must
// not mutate it outside of WithContextMut.
func (e *Engine) Context(id string) (*Context, error) {
	entry, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	return entry.ctx, nil
}
