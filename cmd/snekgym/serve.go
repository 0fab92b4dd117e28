package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brensch/snekgym/config"
	"github.com/brensch/snekgym/server"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	var record bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve environment engines over a websocket at /ws",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := server.Options{
				Env:          cfg.EnvConfig(),
				ReadTimeout:  cfg.ReadTimeout,
				WriteTimeout: cfg.WriteTimeout,
				BaseSeed:     cfg.Seed,
				Logger:       slog.Default(),
			}
			if record {
				opts.RecordDir = cfg.OutDir
			}
			srv, err := server.New(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, cfg.ListenAddr)
		},
	}
	cmd.Flags().StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "Listen address")
	cmd.Flags().DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "Idle time before a session is dropped")
	cmd.Flags().DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "Per-frame write deadline")
	cmd.Flags().BoolVar(&record, "record", false, "Record finished episodes to --out-dir")
	return cmd
}
