package companion

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"pkt.systems/tabshell/schema"
)

func waitForSocketReady(t *testing.T, socketPath string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("unix", socketPath)
		if err == nil {
			_ = conn.Close()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("socket %s not ready", socketPath)
}

func TestConnectBindsView(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "companion.sock")
	srv := NewServer(Config{SocketPath: socketPath}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx)
	}()
	waitForSocketReady(t, socketPath, time.Second)

	connector, err := NewConnector(Config{SocketPath: socketPath}, nil)
	if err != nil {
		t.Fatalf("connector: %v", err)
	}
	binding, err := connector.Connect(context.Background(), "app-1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer binding.Close()
	if binding.ID() != "app-1" {
		t.Fatalf("unexpected binding id %q", binding.ID())
	}
	views := srv.Views()
	if len(views) != 1 || views[0] != "app-1" {
		t.Fatalf("expected companion to see app-1, got %v", views)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("server exited with error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestConnectWithoutCompanionIsUnavailable(t *testing.T) {
	connector, err := NewConnector(Config{
		SocketPath:     filepath.Join(t.TempDir(), "missing.sock"),
		ConnectTimeout: 50 * time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("connector: %v", err)
	}
	start := time.Now()
	_, err = connector.Connect(context.Background(), "app-1")
	if !errors.Is(err, schema.ErrCompanionUnavailable) {
		t.Fatalf("expected ErrCompanionUnavailable, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("connect did not respect timeout")
	}
}

func TestNewConnectorRequiresSocket(t *testing.T) {
	if _, err := NewConnector(Config{}, nil); err == nil {
		t.Fatalf("expected error without socket path")
	}
}
