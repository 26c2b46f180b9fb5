package integration_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/chromedp"

	"pkt.systems/tabshell/schema"
)

func requireLong(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

func requireChrome(t *testing.T) {
	t.Helper()
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no chrome binary on PATH")
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func newChromedpContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)
	ctx, timeoutCancel := context.WithTimeout(ctx, 30*time.Second)
	return ctx, func() {
		timeoutCancel()
		cancel()
		allocCancel()
	}
}

func getTopology(t *testing.T, baseURL string) (schema.Topology, bool) {
	t.Helper()
	resp, err := http.Get(baseURL + "/api/topology")
	if err != nil {
		return schema.Topology{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return schema.Topology{}, false
	}
	var topo schema.Topology
	if err := json.NewDecoder(resp.Body).Decode(&topo); err != nil {
		t.Fatalf("decode topology: %v", err)
	}
	return topo, true
}

func waitForTopology(t *testing.T, baseURL string, timeout time.Duration, ok func(schema.Topology) bool) schema.Topology {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var last schema.Topology
	for time.Now().Before(deadline) {
		if topo, fetched := getTopology(t, baseURL); fetched {
			last = topo
			if ok(topo) {
				return topo
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for topology (last=%+v)", last)
	return last
}
