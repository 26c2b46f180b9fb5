package companion

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"pkt.systems/pslog"
	"pkt.systems/tabshell/schema"
)

// Server is the companion process surfaces bind to.
type Server struct {
	cfg    Config
	logger pslog.Logger

	mu    sync.Mutex
	views map[schema.TabID]struct{}
}

// NewServer constructs a companion server.
func NewServer(cfg Config, logger pslog.Logger) *Server {
	return &Server{cfg: cfg.withDefaults(), logger: logger, views: make(map[schema.TabID]struct{})}
}

// ListenAndServe serves the health service over a Unix domain socket until
// ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.cfg.SocketPath == "" {
		return errors.New("companion socket path is required")
	}
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	if err := os.MkdirAll(filepath.Dir(s.cfg.SocketPath), 0o755); err != nil {
		return err
	}
	_ = os.Remove(s.cfg.SocketPath)

	listener, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return err
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(s.trackViews))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(s.cfg.Service, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	s.logger.Info("companion grpc listening", "socket", s.cfg.SocketPath, "service", s.cfg.Service)

	errCh := make(chan error, 1)
	go func() {
		errCh <- grpcServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		_ = os.Remove(s.cfg.SocketPath)
		return nil
	case err := <-errCh:
		return err
	}
}

// Views returns the surface ids that have checked in.
func (s *Server) Views() []schema.TabID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.TabID, 0, len(s.views))
	for id := range s.views {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Server) trackViews(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		for _, id := range md.Get(ViewIDHeader) {
			s.mu.Lock()
			_, seen := s.views[schema.TabID(id)]
			s.views[schema.TabID(id)] = struct{}{}
			s.mu.Unlock()
			if !seen {
				s.logger.Debug("companion view connected", "id", id, "method", info.FullMethod)
			}
		}
	}
	return handler(ctx, req)
}
