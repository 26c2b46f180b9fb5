package core

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/tabshell/internal/viewregistry"
	"pkt.systems/tabshell/schema"
)

// TopologyStore is the persisted topology the service mutates.
type TopologyStore interface {
	Get() schema.Topology
	Update(fn func(schema.Topology) (schema.Topology, bool)) (schema.Topology, bool, error)
}

// Registry owns the live surfaces.
type Registry interface {
	Ensure(ctx context.Context, id schema.TabID) (*viewregistry.Handle, error)
	Destroy(id schema.TabID)
	Get(id schema.TabID) (*viewregistry.Handle, bool)
	List() map[schema.TabID]*viewregistry.Handle
}

// Layout positions surfaces.
type Layout interface {
	BringToFront(ctx context.Context, id schema.TabID) bool
	Want(id schema.TabID)
	Resize(ctx context.Context, window schema.Rect)
	SetChromeBounds(ctx context.Context, rect schema.Rect)
}

// Metrics observes actions.
type Metrics interface {
	ActionApplied(action string, changed bool)
}

// ServiceDeps captures dependencies for the core service. Store, Registry and
// Layout are required.
type ServiceDeps struct {
	Store     TopologyStore
	Registry  Registry
	Layout    Layout
	EventSink EventSink
	Metrics   Metrics
	Logger    pslog.Logger
}
