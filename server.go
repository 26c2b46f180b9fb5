package tabshell

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"pkt.systems/pslog"
	"pkt.systems/tabshell/core"
	"pkt.systems/tabshell/desktopsync"
	"pkt.systems/tabshell/httpapi"
	"pkt.systems/tabshell/internal/companion"
	"pkt.systems/tabshell/internal/eventbus"
	"pkt.systems/tabshell/internal/layout"
	"pkt.systems/tabshell/internal/metrics"
	"pkt.systems/tabshell/internal/persist"
	"pkt.systems/tabshell/internal/surface"
	"pkt.systems/tabshell/internal/surface/cdp"
	"pkt.systems/tabshell/internal/titles"
	"pkt.systems/tabshell/internal/topology"
	"pkt.systems/tabshell/internal/viewregistry"
	"pkt.systems/tabshell/schema"
)

// Server composes the orchestrator, its HTTP surface and the startup preload.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// Surface backends.
const (
	SurfaceBackendMemory   = "memory"
	SurfaceBackendChromedp = "chromedp"
)

// ServerConfig configures the compositor.
type ServerConfig struct {
	Service schema.ServiceConfig
	HTTP    httpapi.Config
	Surface SurfaceConfig
	// Companion is used when CompanionEnabled is set.
	Companion        companion.Config
	CompanionEnabled bool
	// TitlesCatalog is a YAML document catalog used to title views.
	TitlesCatalog string
}

// SurfaceConfig selects the native surface backend.
type SurfaceConfig struct {
	Backend  string
	Chromedp cdp.Options
}

// ServerDeps captures optional collaborators.
type ServerDeps struct {
	// Factory overrides the configured surface backend.
	Factory surface.Factory
	// EventSink receives core events alongside the synchronizer.
	EventSink core.EventSink
	Metrics   *metrics.Metrics
	Logger    pslog.Logger
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP    bool
	enablePreload bool
	enableWatch   bool
}

// WithHTTP enables the HTTP API and shell pages.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithPreload creates the chrome surface and restores persisted tabs on start.
func WithPreload() ServerOption {
	return func(o *serverOptions) { o.enablePreload = true }
}

// WithWatch follows topology writes made by other processes.
func WithWatch() ServerOption {
	return func(o *serverOptions) { o.enableWatch = true }
}

// New validates the configuration of a composable tabshell server. The
// component graph is assembled by Start.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.enableHTTP && !options.enablePreload {
		return nil, errors.New("no services enabled")
	}
	normalized, err := schema.NormalizeServiceConfig(cfg.Service)
	if err != nil {
		return nil, err
	}
	cfg.Service = normalized
	if deps.Factory == nil {
		switch cfg.Surface.Backend {
		case "", SurfaceBackendMemory, SurfaceBackendChromedp:
		default:
			return nil, errors.New("unsupported surface backend " + cfg.Surface.Backend)
		}
	}
	if cfg.CompanionEnabled && cfg.Companion.SocketPath == "" {
		return nil, errors.New("companion socket path is required")
	}
	return &compositeServer{cfg: cfg, deps: deps, options: options}, nil
}

// components is the assembled orchestrator.
type components struct {
	state    *persist.Store
	bus      *eventbus.Bus
	store    *topology.Store
	factory  surface.Factory
	ownsFact bool
	registry *viewregistry.Registry
	layout   *layout.Coordinator
	service  core.Service
	sync     *desktopsync.Synchronizer
	httpSrv  *httpapi.Server
	stops    []func()
}

type compositeServer struct {
	cfg     ServerConfig
	deps    ServerDeps
	options serverOptions
	logger  pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	done    chan struct{}
	started bool
	parts   *components
}

func (s *compositeServer) build(ctx context.Context) (*components, error) {
	logger := s.logger
	cfg := s.cfg
	parts := &components{}

	state, err := persist.NewStoreWithLogger(cfg.Service.StateDir, logger)
	if err != nil {
		return nil, err
	}
	parts.state = state
	parts.bus = eventbus.New(logger)
	store, err := topology.NewStore(state, cfg.Service.StorageKey, parts.bus, logger)
	if err != nil {
		return nil, err
	}
	parts.store = store

	switch {
	case s.deps.Factory != nil:
		parts.factory = s.deps.Factory
	case cfg.Surface.Backend == SurfaceBackendChromedp:
		opts := cfg.Surface.Chromedp
		if opts.Logger == nil {
			opts.Logger = logger
		}
		factory, err := cdp.NewFactory(ctx, opts)
		if err != nil {
			return nil, err
		}
		parts.factory = factory
		parts.ownsFact = true
	default:
		parts.factory = surface.NewMemoryFactory()
		parts.ownsFact = true
	}

	var regMetrics viewregistry.Metrics
	var coreMetrics core.Metrics
	var syncMetrics desktopsync.Metrics
	if m := s.deps.Metrics; m != nil {
		regMetrics, coreMetrics, syncMetrics = m, m, m
	}

	regDeps := viewregistry.Deps{
		Factory: parts.factory,
		Bus:     parts.bus,
		Args:    viewArgs,
		Metrics: regMetrics,
		Logger:  logger,
	}
	if cfg.CompanionEnabled {
		connector, err := companion.NewConnector(cfg.Companion, logger)
		if err != nil {
			parts.close()
			return nil, err
		}
		regDeps.Companion = connector
	}
	registry, err := viewregistry.New(ctx, regDeps)
	if err != nil {
		parts.close()
		return nil, err
	}
	parts.registry = registry

	parts.layout = layout.New(ctx, layout.Config{
		ChromeHeight: cfg.Service.ChromeHeight,
		Window:       schema.Rect{Width: cfg.Service.WindowWidth, Height: cfg.Service.WindowHeight},
	}, registry, logger)
	parts.stops = append(parts.stops, parts.layout.Attach(parts.bus))

	var sink core.EventSink = parts.bus
	if s.deps.EventSink != nil {
		sink = eventFanout{sinks: []core.EventSink{parts.bus, s.deps.EventSink}}
	}
	service, err := core.NewService(cfg.Service, core.ServiceDeps{
		Store:     store,
		Registry:  registry,
		Layout:    parts.layout,
		EventSink: sink,
		Metrics:   coreMetrics,
		Logger:    logger,
	})
	if err != nil {
		parts.close()
		return nil, err
	}
	parts.service = service

	catalog, err := titles.LoadCatalog(cfg.TitlesCatalog)
	if err != nil {
		parts.close()
		return nil, err
	}
	synchronizer, err := desktopsync.New(desktopsync.Deps{
		Bus:      parts.bus,
		Titles:   titles.NewResolver(catalog, catalog),
		Topology: service,
		Metrics:  syncMetrics,
		Logger:   logger,
	})
	if err != nil {
		parts.close()
		return nil, err
	}
	parts.sync = synchronizer
	parts.stops = append(parts.stops, synchronizer.Start())

	if s.options.enableHTTP {
		hub := httpapi.NewHub(cfg.HTTP.HubHistory, logger)
		parts.stops = append(parts.stops, synchronizer.AddTarget(hub))
		parts.httpSrv = httpapi.NewServer(cfg.HTTP, service, synchronizer, hub)
		if m := s.deps.Metrics; m != nil {
			parts.httpSrv.SetMetrics(m.Handler(), m.ObserveRequest)
		}
	}
	return parts, nil
}

// viewArgs tells a surface which view it renders.
func viewArgs(id schema.TabID) []string {
	return []string{"--view-id=" + string(id)}
}

// close releases the assembled components in reverse order.
func (p *components) close() {
	for i := len(p.stops) - 1; i >= 0; i-- {
		p.stops[i]()
	}
	p.stops = nil
	if p.registry != nil {
		p.registry.Close()
	}
	if p.ownsFact && p.factory != nil {
		_ = p.factory.Close()
	}
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 1)
	s.done = make(chan struct{})
	s.started = true
	s.logger = s.deps.Logger
	if s.logger == nil {
		s.logger = pslog.Ctx(s.ctx)
	}
	runCtx := pslog.ContextWithLogger(s.ctx, s.logger)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http", s.options.enableHTTP,
		"preload", s.options.enablePreload,
		"watch", s.options.enableWatch,
		"surface_backend", s.cfg.Surface.Backend,
		"companion", s.cfg.CompanionEnabled,
		"state_dir", s.cfg.Service.StateDir,
		"http_addr", s.cfg.HTTP.Addr,
		"http_base_path", s.cfg.HTTP.BasePath,
	)

	parts, err := s.build(runCtx)
	if err != nil {
		log.Error("server build failed", "err", err)
		s.cancel()
		s.errCh <- err
		close(s.done)
		return err
	}
	s.mu.Lock()
	s.parts = parts
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(runCtx)
	if s.options.enableWatch {
		if err := parts.store.Watch(gctx, parts.state); err != nil {
			log.Warn("server state watch failed", "err", err)
		}
	}
	if s.options.enableHTTP {
		g.Go(func() error {
			if err := httpapi.ListenAndServe(gctx, s.cfg.HTTP.Addr, parts.httpSrv.Handler()); err != nil {
				log.Error("http server failed", "err", err)
				return err
			}
			return nil
		})
	}
	if s.options.enablePreload {
		g.Go(func() error {
			// Preload failures leave the action protocol serving.
			if err := parts.service.Preload(gctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("server preload failed", "err", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	go func() {
		err := g.Wait()
		parts.close()
		log.Info("server components closed")
		s.errCh <- err
		close(s.done)
	}()
	return nil
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	err, ok := <-errCh
	if !ok || err == nil {
		return nil
	}
	pslog.Ctx(s.ctx).Error("server stopped", "err", err)
	_ = s.Stop(context.Background())
	return err
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	done := s.done
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-done:
		log.Info("server stopped")
		return nil
	}
}
