package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bootforge/internal/api"
	"bootforge/internal/builder"
	"bootforge/internal/daemon"
	"bootforge/internal/history"
	"bootforge/internal/logging"
	"bootforge/internal/manifest"
	"bootforge/internal/preview"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store := manifest.NewStore()
			runs, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer runs.Close()

			portal := api.NewPortal(cfg, store,
				builder.New(cfg, store, logger),
				preview.New(cfg, logger),
				runs, logger)
			d, err := daemon.New(cfg, portal, logger)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := d.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "serving on %s (ctrl-c to stop)\n", d.Addr())
			<-runCtx.Done()
			d.Stop()
			return nil
		},
	}
}
