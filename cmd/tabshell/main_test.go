package main

import (
	"bytes"
	"strings"
	"testing"

	"pkt.systems/tabshell/internal/appconfig"
	"pkt.systems/tabshell/schema"
)

func TestApplyArgv0Alias(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "empty", args: nil, want: nil},
		{name: "no-alias", args: []string{"tabshell", "serve"}, want: []string{"tabshell", "serve"}},
		{name: "helper", args: []string{"/usr/bin/tabshell-helper", "--socket", "x.sock"}, want: []string{"/usr/bin/tabshell-helper", "helper", "--socket", "x.sock"}},
	}
	for _, tc := range tests {
		got := applyArgv0Alias(tc.args)
		if len(got) != len(tc.want) {
			t.Fatalf("%s: applyArgv0Alias length = %d, want %d", tc.name, len(got), len(tc.want))
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: applyArgv0Alias[%d] = %q, want %q", tc.name, i, got[i], tc.want[i])
			}
		}
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	names := make(map[string]bool)
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "helper", "init-config", "state", "version"} {
		if !names[want] {
			t.Fatalf("expected root command to include %s", want)
		}
	}
}

func TestToServerConfig(t *testing.T) {
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Surface.Backend = appconfig.SurfaceBackendChromedp
	cfg.Surface.Chromedp.Headless = true
	cfg.Companion.Enabled = true
	cfg.HTTP.BasePath = "/shell"

	out := toServerConfig(cfg, nil)
	if out.Surface.Backend != "chromedp" || !out.Surface.Chromedp.Headless {
		t.Fatalf("unexpected surface config %+v", out.Surface)
	}
	if !out.CompanionEnabled || out.Companion.SocketPath != cfg.Companion.SocketPath {
		t.Fatalf("unexpected companion config %+v", out.Companion)
	}
	if out.HTTP.BasePath != "/shell" || out.HTTP.HubHistory != cfg.HTTP.HubHistory {
		t.Fatalf("unexpected http config %+v", out.HTTP)
	}
	if out.Service.StorageKey != schema.DefaultStorageKey {
		t.Fatalf("unexpected storage key %q", out.Service.StorageKey)
	}
}

func TestPrintTopology(t *testing.T) {
	topo := schema.Topology{
		Workbenches: []schema.Workbench{
			{ID: "a", Basename: "/", Pinned: true, Views: []schema.View{{ID: "v1", Path: &schema.ViewLocation{Pathname: "/all"}}}},
			{ID: "b", Basename: "/ws", ActiveViewIndex: 1, Views: []schema.View{{ID: "v2"}, {ID: "v3", Path: &schema.ViewLocation{Pathname: "/d1", Hash: "#x"}}}},
		},
		ActiveWorkbenchID: "b",
	}
	var buf bytes.Buffer
	if err := printTopology(&buf, topo); err != nil {
		t.Fatalf("print: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"  a / [pinned]", "* b /ws", "> v3 /d1#x"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	buf.Reset()
	_ = printTopology(&buf, schema.Topology{})
	if strings.TrimSpace(buf.String()) != "no tabs" {
		t.Fatalf("unexpected empty output %q", buf.String())
	}
}
