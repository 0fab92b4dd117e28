package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/brensch/snekgym/config"
	"github.com/brensch/snekgym/logging"
)

func main() {
	config.LoadDotEnv(".env", "../.env", "../../.env")
	cfg := config.FromEnv()

	rootCmd := &cobra.Command{
		Use:           "snekgym",
		Short:         "Deterministic snake environment: env server, rollouts, replay and episode stats.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			level, _ := logging.ParseLevel(cfg.LogLevel)
			format, _ := logging.ParseFormat(cfg.LogFormat)
			slog.SetDefault(logging.New(os.Stderr, level, format))
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.IntVar(&cfg.BoardSize, "board-size", cfg.BoardSize, "Board side length")
	pf.StringVar(&cfg.Encoding, "encoding", cfg.Encoding, "Observation encoding: scalar or image")
	pf.IntVar(&cfg.ImageScale, "image-scale", cfg.ImageScale, "Pixels per cell for image observations")
	pf.IntVar(&cfg.StepLimit, "step-limit", cfg.StepLimit, "Truncate after this many ticks without food (0 disables)")
	pf.BoolVar(&cfg.MaskReversal, "mask-reversal", cfg.MaskReversal, "Also mask the reverse of the current heading")
	pf.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Base seed")
	pf.StringVar(&cfg.OutDir, "out-dir", cfg.OutDir, "Directory for Parquet transition files")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text, json or pretty")

	rootCmd.AddCommand(
		newServeCmd(&cfg),
		newRolloutCmd(&cfg),
		newReplayCmd(&cfg),
		newStatsCmd(&cfg),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
