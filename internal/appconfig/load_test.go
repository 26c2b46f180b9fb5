package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 7
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
state_dir: /tmp/state
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected missing config_version error, got %v", err)
	}
}

func TestLoadRejectsUnsupportedBackend(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
surface:
  backend: webkit
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported surface.backend") {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestLoadRejectsInvalidHTTPBaseURL(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
http:
  base_url: example.com
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "http.base_url") {
		t.Fatalf("expected base_url error, got %v", err)
	}
}

func TestLoadAppliesOverridesAndDefaults(t *testing.T) {
	t.Setenv("TABSHELL_TEST_DIR", "/var/lib/tabshell")
	path := writeConfig(t, `
config_version: 1
state_dir: $TABSHELL_TEST_DIR/state
shell:
  preload_delay_ms: 250
  window:
    width: 1440
surface:
  backend: chromedp
  chromedp:
    headless: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateDir != "/var/lib/tabshell/state" {
		t.Fatalf("expected expanded state dir, got %q", cfg.StateDir)
	}
	if cfg.Shell.PreloadDelayMS != 250 || cfg.Shell.Window.Width != 1440 || cfg.Shell.Window.Height != 800 {
		t.Fatalf("unexpected shell config %+v", cfg.Shell)
	}
	if cfg.Surface.Backend != SurfaceBackendChromedp || !cfg.Surface.Chromedp.Headless {
		t.Fatalf("unexpected surface config %+v", cfg.Surface)
	}
	if cfg.HTTP.Addr != "127.0.0.1:27420" || cfg.Shell.ChromeHeight != 52 {
		t.Fatalf("expected defaults to survive, got %+v %+v", cfg.HTTP, cfg.Shell)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConfigVersion != CurrentConfigVersion {
		t.Fatalf("unexpected version %d", cfg.ConfigVersion)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config to exist: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("expected written default to load: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
