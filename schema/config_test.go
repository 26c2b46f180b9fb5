package schema

import "testing"

func TestNormalizeServiceConfigDefaults(t *testing.T) {
	cfg, err := NormalizeServiceConfig(ServiceConfig{StateDir: t.TempDir(), ContentOrigin: "http://localhost:1/"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.ChromeHeight != DefaultChromeHeight {
		t.Fatalf("expected chrome height %d, got %d", DefaultChromeHeight, cfg.ChromeHeight)
	}
	if cfg.StorageKey != DefaultStorageKey {
		t.Fatalf("expected storage key %q, got %q", DefaultStorageKey, cfg.StorageKey)
	}
	if cfg.ContentOrigin != "http://localhost:1" {
		t.Fatalf("expected trimmed origin, got %q", cfg.ContentOrigin)
	}
	if cfg.ShellURL != "http://localhost:1/shell/" {
		t.Fatalf("unexpected shell url %q", cfg.ShellURL)
	}
	if cfg.PreloadDelay != DefaultPreloadDelay {
		t.Fatalf("unexpected preload delay %v", cfg.PreloadDelay)
	}
}

func TestNormalizeServiceConfigRejectsTinyWindow(t *testing.T) {
	if _, err := NormalizeServiceConfig(ServiceConfig{StateDir: t.TempDir(), WindowHeight: 10}); err == nil {
		t.Fatalf("expected error for window shorter than chrome")
	}
}
