package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/tabshell/internal/appconfig"
	"pkt.systems/tabshell/internal/companion"
)

func newHelperCmd() *cobra.Command {
	var cfgPath string
	var socketPath string
	cmd := &cobra.Command{
		Use:   "helper",
		Short: "Run the companion process content surfaces bind to",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			companionCfg := cfg.CompanionConfig()
			if socketPath != "" {
				companionCfg.SocketPath = socketPath
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			server := companion.NewServer(companionCfg, logger)
			return server.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&socketPath, "socket", "", "unix socket path override")
	return cmd
}
