package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/tabshell"
	"pkt.systems/tabshell/httpapi"
	"pkt.systems/tabshell/internal/appconfig"
	"pkt.systems/tabshell/internal/metrics"
	"pkt.systems/tabshell/internal/surface/cdp"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var backend string
	var noPreload bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestrator, the shell HTTP server and the startup preload",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if backend != "" {
				cfg.Surface.Backend = backend
			}
			logger.Info("surface backend selected", "backend", cfg.Surface.Backend, "headless", cfg.Surface.Chromedp.Headless)

			serverCfg := toServerConfig(cfg, logger)
			deps := tabshell.ServerDeps{Logger: logger}
			if cfg.Metrics.Enabled {
				deps.Metrics = metrics.New()
			}
			opts := []tabshell.ServerOption{tabshell.WithHTTP(), tabshell.WithWatch()}
			if !noPreload {
				opts = append(opts, tabshell.WithPreload())
			}
			server, err := tabshell.New(serverCfg, deps, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&backend, "backend", "", "surface backend override (memory|chromedp)")
	cmd.Flags().BoolVar(&noPreload, "no-preload", false, "do not create surfaces on start")
	return cmd
}

func toServerConfig(cfg appconfig.Config, logger pslog.Logger) tabshell.ServerConfig {
	return tabshell.ServerConfig{
		Service: cfg.ServiceConfig(),
		HTTP:    toHTTPConfig(cfg.HTTP),
		Surface: tabshell.SurfaceConfig{
			Backend: cfg.Surface.Backend,
			Chromedp: cdp.Options{
				Headless:  cfg.Surface.Chromedp.Headless,
				ExecPath:  cfg.Surface.Chromedp.ExecPath,
				NoSandbox: cfg.Surface.Chromedp.NoSandbox,
				Logger:    logger,
			},
		},
		Companion:        cfg.CompanionConfig(),
		CompanionEnabled: cfg.Companion.Enabled,
		TitlesCatalog:    cfg.Titles.CatalogFile,
	}
}

func toHTTPConfig(cfg appconfig.HTTPConfig) httpapi.Config {
	return httpapi.Config{
		Addr:       cfg.Addr,
		BaseURL:    cfg.BaseURL,
		BasePath:   cfg.BasePath,
		HubHistory: cfg.HubHistory,
	}
}
