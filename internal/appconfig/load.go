package appconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/tabshell/internal/companion"
	"pkt.systems/tabshell/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TABSHELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("shell.chrome_height", cfg.Shell.ChromeHeight)
	v.SetDefault("shell.content_origin", cfg.Shell.ContentOrigin)
	v.SetDefault("shell.shell_url", cfg.Shell.ShellURL)
	v.SetDefault("shell.preload_delay_ms", cfg.Shell.PreloadDelayMS)
	v.SetDefault("shell.window.width", cfg.Shell.Window.Width)
	v.SetDefault("shell.window.height", cfg.Shell.Window.Height)
	v.SetDefault("surface.backend", cfg.Surface.Backend)
	v.SetDefault("surface.chromedp.headless", cfg.Surface.Chromedp.Headless)
	v.SetDefault("surface.chromedp.exec_path", cfg.Surface.Chromedp.ExecPath)
	v.SetDefault("surface.chromedp.no_sandbox", cfg.Surface.Chromedp.NoSandbox)
	v.SetDefault("companion.enabled", cfg.Companion.Enabled)
	v.SetDefault("companion.socket_path", cfg.Companion.SocketPath)
	v.SetDefault("companion.connect_timeout_ms", cfg.Companion.ConnectTimeoutMS)
	v.SetDefault("companion.service", cfg.Companion.Service)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.base_url", cfg.HTTP.BaseURL)
	v.SetDefault("http.base_path", cfg.HTTP.BasePath)
	v.SetDefault("http.hub_history", cfg.HTTP.HubHistory)
	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("titles.catalog_file", cfg.Titles.CatalogFile)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.Surface.Backend {
	case SurfaceBackendMemory, SurfaceBackendChromedp:
	default:
		return fmt.Errorf("unsupported surface.backend %q", cfg.Surface.Backend)
	}
	if cfg.Shell.PreloadDelayMS < 0 {
		return fmt.Errorf("shell.preload_delay_ms must not be negative")
	}
	if cfg.Shell.Window.Width < 0 || cfg.Shell.Window.Height < 0 {
		return fmt.Errorf("shell.window must not be negative")
	}
	origin, err := url.Parse(strings.TrimSpace(cfg.Shell.ContentOrigin))
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return fmt.Errorf("shell.content_origin must include scheme and host (e.g. http://127.0.0.1:27420)")
	}
	if cfg.Companion.Enabled && strings.TrimSpace(cfg.Companion.SocketPath) == "" {
		return fmt.Errorf("companion.socket_path is required when the companion is enabled")
	}
	return validateHTTPConfig(cfg.HTTP)
}

func validateHTTPConfig(cfg HTTPConfig) error {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("http.base_url must include scheme and host (e.g. http://127.0.0.1:27420)")
		}
	}
	basePath := strings.TrimSpace(cfg.BasePath)
	if basePath != "" {
		if strings.Contains(basePath, "://") {
			return fmt.Errorf("http.base_path must be a path prefix, not a URL")
		}
		if strings.ContainsAny(basePath, "?#") {
			return fmt.Errorf("http.base_path must not include query or fragment")
		}
	}
	if cfg.HubHistory < 0 {
		return fmt.Errorf("http.hub_history must not be negative")
	}
	return nil
}

// ServiceConfig maps the shell settings onto the orchestrator config.
func (c Config) ServiceConfig() schema.ServiceConfig {
	return schema.ServiceConfig{
		StateDir:      c.StateDir,
		StorageKey:    schema.DefaultStorageKey,
		ChromeHeight:  c.Shell.ChromeHeight,
		ContentOrigin: c.Shell.ContentOrigin,
		ShellURL:      c.Shell.ShellURL,
		PreloadDelay:  time.Duration(c.Shell.PreloadDelayMS) * time.Millisecond,
		WindowWidth:   c.Shell.Window.Width,
		WindowHeight:  c.Shell.Window.Height,
	}
}

// CompanionConfig maps the companion settings onto the binding config.
func (c Config) CompanionConfig() companion.Config {
	return companion.Config{
		SocketPath:     c.Companion.SocketPath,
		Service:        c.Companion.Service,
		ConnectTimeout: time.Duration(c.Companion.ConnectTimeoutMS) * time.Millisecond,
	}
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Surface.Chromedp.ExecPath = expandEnv(cfg.Surface.Chromedp.ExecPath)
	cfg.Companion.SocketPath = expandEnv(cfg.Companion.SocketPath)
	cfg.Titles.CatalogFile = expandEnv(cfg.Titles.CatalogFile)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
