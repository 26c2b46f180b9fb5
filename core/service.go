package core

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/tabshell/internal/logx"
	"pkt.systems/tabshell/internal/viewregistry"
	"pkt.systems/tabshell/schema"
)

// service implements the tab/view action protocol.
type service struct {
	cfg      schema.ServiceConfig
	store    TopologyStore
	registry Registry
	layout   Layout
	sink     EventSink
	metrics  Metrics
	logger   pslog.Logger

	mu     sync.Mutex
	loaded map[schema.TabID]*viewregistry.Handle
}

// NewService constructs the core service implementation.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.Store == nil {
		return nil, errors.New("topology store is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("view registry is required")
	}
	if deps.Layout == nil {
		return nil, errors.New("layout is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &service{
		cfg:      normalized,
		store:    deps.Store,
		registry: deps.Registry,
		layout:   deps.Layout,
		sink:     deps.EventSink,
		metrics:  deps.Metrics,
		logger:   logger,
		loaded:   make(map[schema.TabID]*viewregistry.Handle),
	}, nil
}

func (s *service) GetTopology(ctx context.Context) (schema.Topology, error) {
	if ctx == nil {
		return schema.Topology{}, errors.New("missing context")
	}
	return s.store.Get(), nil
}

func (s *service) emit(action schema.TabAction) {
	if s.sink != nil {
		s.sink.OnTabAction(action)
	}
}

func (s *service) record(action string, changed bool) {
	if s.metrics != nil {
		s.metrics.ActionApplied(action, changed)
	}
}

// logContext binds the service logger to a fresh context that keeps the
// tab/view markers of ctx.
func (s *service) logContext(ctx context.Context) context.Context {
	return pslog.ContextWithLogger(logx.CopyContextFields(context.Background(), ctx), s.logger)
}

func (s *service) tabLog(ctx context.Context, id schema.TabID) pslog.Logger {
	return logx.WithTab(s.logContext(ctx), id)
}

// viewURL addresses the active view of wb on the content origin.
func (s *service) viewURL(wb schema.Workbench) string {
	u, err := url.Parse(s.cfg.ContentOrigin)
	if err != nil {
		return s.cfg.ContentOrigin
	}
	path := strings.TrimSuffix(wb.Basename, "/")
	view, ok := wb.ActiveView()
	if ok && view.Path != nil {
		path += view.Path.Pathname
		u.RawQuery = strings.TrimPrefix(view.Path.Search, "?")
		u.Fragment = strings.TrimPrefix(view.Path.Hash, "#")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = path
	return u.String()
}

func (s *service) forget(id schema.TabID) {
	s.mu.Lock()
	delete(s.loaded, id)
	s.mu.Unlock()
}

func resolveTab(topo schema.Topology, id schema.TabID) schema.TabID {
	if id == "" {
		return topo.ActiveWorkbenchID
	}
	return id
}
