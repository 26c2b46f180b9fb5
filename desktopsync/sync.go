package desktopsync

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/tabshell/internal/eventbus"
	"pkt.systems/tabshell/internal/logx"
	"pkt.systems/tabshell/schema"
)

// Broadcaster delivers messages to a set of windows or surfaces. Broadcast
// must not block.
type Broadcaster interface {
	Broadcast(msg Message)
}

// Enricher fills view titles and module names.
type Enricher interface {
	FillWorkbench(wb schema.Workbench) schema.Workbench
}

// Topology reads and patches the canonical topology.
type Topology interface {
	GetTopology(ctx context.Context) (schema.Topology, error)
	UpdateWorkbenchMeta(ctx context.Context, req schema.UpdateWorkbenchMetaRequest) (schema.ActionResponse, error)
}

// Metrics observes broadcasts.
type Metrics interface {
	MessageBroadcast(channel string)
}

// Deps wires the synchronizer.
type Deps struct {
	Bus      *eventbus.Bus
	Titles   Enricher
	Topology Topology
	Metrics  Metrics
	Logger   pslog.Logger
}

// SurfaceMeta is navigation state reported by a content surface.
type SurfaceMeta struct {
	TabID           schema.TabID   `json:"tabId"`
	Basename        *string        `json:"basename,omitempty"`
	Views           *[]schema.View `json:"views,omitempty"`
	ActiveViewIndex *int           `json:"activeViewIndex,omitempty"`
}

// Synchronizer turns bus events into channel messages.
type Synchronizer struct {
	deps Deps
	log  pslog.Logger

	mu      sync.Mutex
	seq     uint64
	targets map[int]Broadcaster
	nextID  int
	last    map[string]Message
}

// New constructs a Synchronizer. Bus and Topology are required.
func New(deps Deps) (*Synchronizer, error) {
	if deps.Bus == nil {
		return nil, errors.New("event bus is required")
	}
	if deps.Topology == nil {
		return nil, errors.New("topology is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Synchronizer{
		deps:    deps,
		log:     logger,
		targets: make(map[int]Broadcaster),
		last:    make(map[string]Message),
	}, nil
}

// AddTarget registers a broadcaster. The returned func removes it and is
// safe to call more than once.
func (s *Synchronizer) AddTarget(b Broadcaster) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.targets[id] = b
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.targets, id)
			s.mu.Unlock()
		})
	}
}

// Start follows the bus until the returned func is called.
func (s *Synchronizer) Start() func() {
	return s.deps.Bus.SubscribeFunc(s.handle)
}

func (s *Synchronizer) handle(ev eventbus.Event) {
	reg, ok := registrations[ev.Type]
	if !ok {
		return
	}
	if ev.Type == eventbus.EventTopology {
		ev.Topology = s.Enrich(ev.Topology)
	}
	payload, err := json.Marshal(reg.encode(ev))
	if err != nil {
		s.log.Error("sync encode failed", "event", ev.Type, "err", err)
		return
	}
	channel := Channel(Namespace, reg.key)

	s.mu.Lock()
	s.seq++
	msg := Message{Seq: s.seq, Channel: channel, Payload: payload}
	s.last[channel] = msg
	targets := make([]Broadcaster, 0, len(s.targets))
	for _, t := range s.targets {
		targets = append(targets, t)
	}
	s.mu.Unlock()

	for _, t := range targets {
		t.Broadcast(msg)
	}
	s.log.Trace("sync message broadcast", "channel", channel, "seq", msg.Seq, "targets", len(targets))
	if s.deps.Metrics != nil {
		s.deps.Metrics.MessageBroadcast(channel)
	}
}

// Enrich returns topo with view titles and module names refreshed.
func (s *Synchronizer) Enrich(topo schema.Topology) schema.Topology {
	if s.deps.Titles == nil {
		return topo
	}
	out := topo.Clone()
	for i, wb := range out.Workbenches {
		out.Workbenches[i] = s.deps.Titles.FillWorkbench(wb)
	}
	return out
}

// Snapshot returns the latest message of every channel, oldest first.
func (s *Synchronizer) Snapshot() []Message {
	s.mu.Lock()
	out := make([]Message, 0, len(s.last))
	for _, msg := range s.last {
		out = append(out, msg)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// ApplySurfaceMeta folds a content surface's navigation into its workbench.
// Titles are resolved before the write so that the persisted views carry them.
func (s *Synchronizer) ApplySurfaceMeta(ctx context.Context, meta SurfaceMeta) (schema.ActionResponse, error) {
	if meta.TabID == "" || meta.TabID.IsShell() {
		return schema.ActionResponse{}, schema.ErrInvalidRequest
	}
	log := logx.WithTab(pslog.ContextWithLogger(ctx, s.log), meta.TabID)
	patch := schema.WorkbenchPatch{
		Basename:        meta.Basename,
		ActiveViewIndex: meta.ActiveViewIndex,
	}
	if meta.Views != nil {
		views := s.fillViews(ctx, meta)
		patch.Views = &views
	}
	resp, err := s.deps.Topology.UpdateWorkbenchMeta(ctx, schema.UpdateWorkbenchMetaRequest{TabID: meta.TabID, Patch: patch})
	if err != nil {
		log.Warn("sync surface meta failed", "err", err)
		return resp, err
	}
	log.Trace("sync surface meta applied", "changed", resp.Changed)
	return resp, nil
}

func (s *Synchronizer) fillViews(ctx context.Context, meta SurfaceMeta) []schema.View {
	views := schema.Workbench{Views: *meta.Views}.Clone().Views
	if s.deps.Titles == nil {
		return views
	}
	basename := ""
	if meta.Basename != nil {
		basename = *meta.Basename
	} else if topo, err := s.deps.Topology.GetTopology(ctx); err == nil {
		if wb, ok := topo.Find(meta.TabID); ok {
			basename = wb.Basename
		}
	}
	filled := s.deps.Titles.FillWorkbench(schema.Workbench{Basename: basename, Views: views})
	return filled.Views
}
