package appconfig

import (
	"testing"
	"time"

	"pkt.systems/tabshell/schema"
)

func TestDefaultConfigServiceConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Surface.Backend != SurfaceBackendMemory {
		t.Fatalf("expected memory backend by default, got %q", cfg.Surface.Backend)
	}
	svc, err := schema.NormalizeServiceConfig(cfg.ServiceConfig())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if svc.PreloadDelay != 500*time.Millisecond || svc.ChromeHeight != 52 {
		t.Fatalf("unexpected service config %+v", svc)
	}
	if svc.ShellURL != schema.DefaultContentOrigin+"/shell/" {
		t.Fatalf("unexpected shell url %q", svc.ShellURL)
	}
	if cfg.CompanionConfig().ConnectTimeout != 3*time.Second {
		t.Fatalf("unexpected companion timeout %v", cfg.CompanionConfig().ConnectTimeout)
	}
}
