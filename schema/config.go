package schema

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ServiceConfig defines defaults and limits for the orchestrator.
type ServiceConfig struct {
	StateDir   string
	StorageKey string
	// ChromeHeight is the height of the chrome band at the top of the window.
	ChromeHeight  int
	ContentOrigin string
	ShellURL      string
	PreloadDelay  time.Duration
	WindowWidth   int
	WindowHeight  int
}

const (
	// DefaultStorageKey is the key the topology document is stored under.
	DefaultStorageKey = "tabViewsMetaSchema"
	// DefaultChromeHeight is the chrome band height in pixels.
	DefaultChromeHeight = 52
	// DefaultPreloadDelay separates startup loads of persisted tabs.
	DefaultPreloadDelay = 500 * time.Millisecond
	// DefaultContentOrigin is the origin content surfaces are loaded from.
	DefaultContentOrigin = "http://127.0.0.1:27420"
)

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.StateDir = filepath.Join(home, ".tabshell", "state")
	}
	if cfg.StorageKey == "" {
		cfg.StorageKey = DefaultStorageKey
	}
	if cfg.ChromeHeight <= 0 {
		cfg.ChromeHeight = DefaultChromeHeight
	}
	if cfg.ContentOrigin == "" {
		cfg.ContentOrigin = DefaultContentOrigin
	}
	cfg.ContentOrigin = strings.TrimRight(cfg.ContentOrigin, "/")
	if cfg.ShellURL == "" {
		cfg.ShellURL = cfg.ContentOrigin + "/shell/"
	}
	if cfg.PreloadDelay < 0 {
		return ServiceConfig{}, errors.New("preload delay must not be negative")
	}
	if cfg.PreloadDelay == 0 {
		cfg.PreloadDelay = DefaultPreloadDelay
	}
	if cfg.WindowWidth < 0 || cfg.WindowHeight < 0 {
		return ServiceConfig{}, errors.New("window size must not be negative")
	}
	if cfg.WindowHeight > 0 && cfg.WindowHeight < cfg.ChromeHeight {
		return ServiceConfig{}, errors.New("window height must exceed chrome height")
	}
	return cfg, nil
}
