package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/tabshell/internal/companion"
	"pkt.systems/tabshell/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string          `mapstructure:"state_dir" yaml:"state_dir"`
	Shell         ShellConfig     `mapstructure:"shell" yaml:"shell"`
	Surface       SurfaceConfig   `mapstructure:"surface" yaml:"surface"`
	Companion     CompanionConfig `mapstructure:"companion" yaml:"companion"`
	HTTP          HTTPConfig      `mapstructure:"http" yaml:"http"`
	Metrics       MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Titles        TitlesConfig    `mapstructure:"titles" yaml:"titles"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ShellConfig controls window geometry and where surfaces load from.
type ShellConfig struct {
	ChromeHeight   int          `mapstructure:"chrome_height" yaml:"chrome_height"`
	ContentOrigin  string       `mapstructure:"content_origin" yaml:"content_origin"`
	ShellURL       string       `mapstructure:"shell_url" yaml:"shell_url"`
	PreloadDelayMS int          `mapstructure:"preload_delay_ms" yaml:"preload_delay_ms"`
	Window         WindowConfig `mapstructure:"window" yaml:"window"`
}

// WindowConfig is the initial host window content size.
type WindowConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// SurfaceConfig selects the native surface backend.
type SurfaceConfig struct {
	Backend  string         `mapstructure:"backend" yaml:"backend"`
	Chromedp ChromedpConfig `mapstructure:"chromedp" yaml:"chromedp"`
}

// Surface backends.
const (
	SurfaceBackendMemory   = "memory"
	SurfaceBackendChromedp = "chromedp"
)

// ChromedpConfig configures the browser process behind the chromedp backend.
type ChromedpConfig struct {
	Headless  bool   `mapstructure:"headless" yaml:"headless"`
	ExecPath  string `mapstructure:"exec_path" yaml:"exec_path"`
	NoSandbox bool   `mapstructure:"no_sandbox" yaml:"no_sandbox"`
}

// CompanionConfig configures the companion binding of content surfaces.
type CompanionConfig struct {
	Enabled          bool   `mapstructure:"enabled" yaml:"enabled"`
	SocketPath       string `mapstructure:"socket_path" yaml:"socket_path"`
	ConnectTimeoutMS int    `mapstructure:"connect_timeout_ms" yaml:"connect_timeout_ms"`
	Service          string `mapstructure:"service" yaml:"service"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr       string `mapstructure:"addr" yaml:"addr"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	BasePath   string `mapstructure:"base_path" yaml:"base_path"`
	HubHistory int    `mapstructure:"hub_history" yaml:"hub_history"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// TitlesConfig points at the document catalog used for view titles.
type TitlesConfig struct {
	CatalogFile string `mapstructure:"catalog_file" yaml:"catalog_file"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	root := filepath.Join(home, ".tabshell")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(root, "state"),
		Shell: ShellConfig{
			ChromeHeight:   schema.DefaultChromeHeight,
			ContentOrigin:  schema.DefaultContentOrigin,
			ShellURL:       "",
			PreloadDelayMS: int(schema.DefaultPreloadDelay.Milliseconds()),
			Window: WindowConfig{
				Width:  1280,
				Height: 800,
			},
		},
		Surface: SurfaceConfig{
			Backend: SurfaceBackendMemory,
			Chromedp: ChromedpConfig{
				Headless:  false,
				ExecPath:  "",
				NoSandbox: false,
			},
		},
		Companion: CompanionConfig{
			Enabled:          false,
			SocketPath:       filepath.Join(root, "state", "companion.sock"),
			ConnectTimeoutMS: int(companion.DefaultConnectTimeout.Milliseconds()),
			Service:          companion.DefaultService,
		},
		HTTP: HTTPConfig{
			Addr:       "127.0.0.1:27420",
			BaseURL:    "",
			BasePath:   "",
			HubHistory: 1000,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Titles: TitlesConfig{
			CatalogFile: "",
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tabshell", "config.yaml"), nil
}
