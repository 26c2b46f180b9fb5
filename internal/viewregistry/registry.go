// Package viewregistry owns the live surfaces, keyed by tab id.
package viewregistry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pkt.systems/pslog"
	"pkt.systems/tabshell/internal/eventbus"
	"pkt.systems/tabshell/internal/surface"
	"pkt.systems/tabshell/schema"
)

// CompanionStatus reports a surface's companion binding state.
type CompanionStatus string

const (
	// CompanionNone applies to the chrome surface, which never binds.
	CompanionNone CompanionStatus = "none"
	// CompanionPending means the bind attempt is still running.
	CompanionPending CompanionStatus = "pending"
	// CompanionConnected means the surface has full features.
	CompanionConnected CompanionStatus = "connected"
	// CompanionDegraded means the companion was unreachable; the surface still works.
	CompanionDegraded CompanionStatus = "degraded"
)

// Companion binds content surfaces to the companion process.
type Companion interface {
	Bind(ctx context.Context, id schema.TabID) (io.Closer, error)
}

// Metrics observes registry activity.
type Metrics interface {
	SurfaceCreated(kind surface.Kind, elapsed time.Duration)
	SurfaceDestroyed(kind surface.Kind)
	SurfaceFailed(kind surface.Kind)
	CompanionBound(status CompanionStatus)
}

// Handle is one live surface.
type Handle struct {
	ID      schema.TabID
	Kind    surface.Kind
	Surface surface.Surface
	Created time.Time
}

type entry struct {
	handle     *Handle
	status     CompanionStatus
	binding    io.Closer
	bindCancel context.CancelFunc
}

type pending struct {
	destroyed bool
}

// Deps wires the registry's collaborators.
type Deps struct {
	Factory   surface.Factory
	Companion Companion
	Bus       *eventbus.Bus
	Metrics   Metrics
	Logger    pslog.Logger
	// Args returns construction arguments for a surface.
	Args func(id schema.TabID) []string
}

// Registry is the only creator and destroyer of surfaces.
type Registry struct {
	deps    Deps
	log     pslog.Logger
	baseCtx context.Context
	group   singleflight.Group

	mu       sync.Mutex
	entries  map[schema.TabID]*entry
	building map[schema.TabID]*pending
	closed   bool
}

// New constructs a Registry. ctx bounds surface construction and companion binds.
func New(ctx context.Context, deps Deps) (*Registry, error) {
	if deps.Factory == nil {
		return nil, errors.New("surface factory is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	return &Registry{
		deps:     deps,
		log:      logger,
		baseCtx:  context.WithoutCancel(ctx),
		entries:  make(map[schema.TabID]*entry),
		building: make(map[schema.TabID]*pending),
	}, nil
}

// Ensure returns the surface for id, constructing it if needed. Concurrent
// calls for the same id share one construction. If id is destroyed while
// under construction, the new surface is closed and ErrViewDestroyed returned.
func (r *Registry) Ensure(ctx context.Context, id schema.TabID) (*Handle, error) {
	if id == "" {
		return nil, schema.ErrInvalidRequest
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errors.New("registry closed")
	}
	if e, ok := r.entries[id]; ok {
		r.mu.Unlock()
		return e.handle, nil
	}
	r.mu.Unlock()

	ch := r.group.DoChan(string(id), func() (any, error) {
		return r.construct(id)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) construct(id schema.TabID) (*Handle, error) {
	r.mu.Lock()
	if e, ok := r.entries[id]; ok {
		r.mu.Unlock()
		return e.handle, nil
	}
	p := &pending{}
	r.building[id] = p
	r.mu.Unlock()

	kind := surface.KindFor(id)
	spec := surface.Spec{ID: id, Kind: kind}
	if r.deps.Args != nil {
		spec.Args = r.deps.Args(id)
	}
	start := time.Now()
	s, err := r.deps.Factory.Create(r.baseCtx, spec)
	elapsed := time.Since(start)

	r.mu.Lock()
	delete(r.building, id)
	if err != nil {
		r.mu.Unlock()
		r.log.Error("registry view create failed", "id", id, "kind", kind, "err", err)
		if r.deps.Metrics != nil {
			r.deps.Metrics.SurfaceFailed(kind)
		}
		return nil, fmt.Errorf("create surface %s: %w", id, err)
	}
	if p.destroyed || r.closed {
		r.mu.Unlock()
		if cerr := s.Close(); cerr != nil {
			r.log.Warn("registry view close failed", "id", id, "err", cerr)
		}
		r.log.Debug("registry view destroyed during construction", "id", id)
		return nil, fmt.Errorf("create surface %s: %w", id, schema.ErrViewDestroyed)
	}
	handle := &Handle{ID: id, Kind: kind, Surface: s, Created: time.Now()}
	e := &entry{handle: handle, status: CompanionNone}
	var bindCtx context.Context
	if kind == surface.KindContent && r.deps.Companion != nil {
		e.status = CompanionPending
		bindCtx, e.bindCancel = context.WithCancel(r.baseCtx)
	}
	r.entries[id] = e
	r.deps.Bus.Enqueue(eventbus.Event{Type: eventbus.EventSurfaceAdded, TabID: id})
	r.mu.Unlock()
	r.deps.Bus.Flush()

	r.log.Info("registry view created", "id", id, "kind", kind, "elapsed", elapsed)
	if r.deps.Metrics != nil {
		r.deps.Metrics.SurfaceCreated(kind, elapsed)
	}
	if bindCtx != nil {
		go r.bind(bindCtx, e)
	}
	return handle, nil
}

func (r *Registry) bind(ctx context.Context, e *entry) {
	id := e.handle.ID
	binding, err := r.deps.Companion.Bind(ctx, id)
	r.mu.Lock()
	current := r.entries[id] == e
	if err != nil {
		if current {
			e.status = CompanionDegraded
		}
		r.mu.Unlock()
		if current {
			r.log.Warn("registry companion unavailable", "id", id, "err", err)
			if r.deps.Metrics != nil {
				r.deps.Metrics.CompanionBound(CompanionDegraded)
			}
		}
		return
	}
	if !current {
		r.mu.Unlock()
		_ = binding.Close()
		return
	}
	e.status = CompanionConnected
	e.binding = binding
	r.mu.Unlock()
	r.log.Debug("registry companion connected", "id", id)
	if r.deps.Metrics != nil {
		r.deps.Metrics.CompanionBound(CompanionConnected)
	}
}

// Destroy removes and releases the surface for id. A surface still under
// construction is closed as soon as construction finishes. Unknown ids are a
// no-op.
func (r *Registry) Destroy(id schema.TabID) {
	r.mu.Lock()
	if p, ok := r.building[id]; ok {
		p.destroyed = true
		r.mu.Unlock()
		r.log.Debug("registry destroy deferred until constructed", "id", id)
		return
	}
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.entries, id)
	binding := e.binding
	e.binding = nil
	if e.bindCancel != nil {
		e.bindCancel()
	}
	r.deps.Bus.Enqueue(eventbus.Event{Type: eventbus.EventSurfaceRemoved, TabID: id})
	r.mu.Unlock()

	if binding != nil {
		if err := binding.Close(); err != nil {
			r.log.Warn("registry companion release failed", "id", id, "err", err)
		}
	}
	if err := e.handle.Surface.Close(); err != nil {
		r.log.Warn("registry view close failed", "id", id, "err", err)
	}
	r.deps.Bus.Flush()
	r.log.Info("registry view destroyed", "id", id)
	if r.deps.Metrics != nil {
		r.deps.Metrics.SurfaceDestroyed(e.handle.Kind)
	}
}

// Get returns the live surface for id.
func (r *Registry) Get(id schema.TabID) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

// List returns the live surfaces as of now.
func (r *Registry) List() map[schema.TabID]*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[schema.TabID]*Handle, len(r.entries))
	for id, e := range r.entries {
		out[id] = e.handle
	}
	return out
}

// Content returns the live content surfaces ordered by id.
func (r *Registry) Content() []*Handle {
	r.mu.Lock()
	out := make([]*Handle, 0, len(r.entries))
	for id, e := range r.entries {
		if id.IsShell() {
			continue
		}
		out = append(out, e.handle)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Building reports whether id is under construction.
func (r *Registry) Building(id schema.TabID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.building[id]
	return ok
}

// Status returns the companion status of id.
func (r *Registry) Status(id schema.TabID) (CompanionStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return "", false
	}
	return e.status, true
}

// Close destroys every surface and rejects further construction.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	ids := make([]schema.TabID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	for _, p := range r.building {
		p.destroyed = true
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Destroy(id)
	}
}
