package companion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"pkt.systems/pslog"
	"pkt.systems/tabshell/schema"
)

// ViewIDHeader carries the surface id on companion calls.
const ViewIDHeader = "x-tabshell-view-id"

// Connector binds content surfaces to the companion process.
type Connector struct {
	cfg Config
	log pslog.Logger
}

// NewConnector constructs a connector for the companion at cfg.SocketPath.
func NewConnector(cfg Config, logger pslog.Logger) (*Connector, error) {
	if cfg.SocketPath == "" {
		return nil, errors.New("companion socket path is required")
	}
	return &Connector{cfg: cfg.withDefaults(), log: logger}, nil
}

// Binding is one surface's connection to the companion.
type Binding struct {
	id   schema.TabID
	conn *grpc.ClientConn
}

// ID returns the bound surface id.
func (b *Binding) ID() schema.TabID {
	return b.id
}

// Close releases the connection.
func (b *Binding) Close() error {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.Close()
}

// Connect dials the companion and waits, bounded by the connect timeout,
// until it reports SERVING.
func (c *Connector) Connect(ctx context.Context, id schema.TabID) (*Binding, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := c.log
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	dialer := func(ctx context.Context, addr string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", addr)
	}
	conn, err := grpc.NewClient(
		"passthrough:///"+c.cfg.SocketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(dialer),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrCompanionUnavailable, err)
	}
	checkCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	checkCtx = metadata.AppendToOutgoingContext(checkCtx, ViewIDHeader, string(id))
	resp, err := healthpb.NewHealthClient(conn).Check(checkCtx, &healthpb.HealthCheckRequest{Service: c.cfg.Service}, grpc.WaitForReady(true))
	if err != nil {
		_ = conn.Close()
		logger.Debug("companion check failed", "id", id, "err", err)
		return nil, fmt.Errorf("%w: %v", schema.ErrCompanionUnavailable, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: status %s", schema.ErrCompanionUnavailable, resp.GetStatus())
	}
	logger.Debug("companion bound", "id", id)
	return &Binding{id: id, conn: conn}, nil
}

// Bind is Connect returning the binding as an io.Closer.
func (c *Connector) Bind(ctx context.Context, id schema.TabID) (io.Closer, error) {
	binding, err := c.Connect(ctx, id)
	if err != nil {
		return nil, err
	}
	return binding, nil
}
