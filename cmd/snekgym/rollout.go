package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/brensch/snekgym/config"
	"github.com/brensch/snekgym/logging"
	"github.com/brensch/snekgym/rollout"
)

func newRolloutCmd(cfg *config.Config) *cobra.Command {
	var tui bool
	cmd := &cobra.Command{
		Use:   "rollout",
		Short: "Play a baseline policy and record transitions to Parquet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollout(cfg, tui)
		},
	}
	f := cmd.Flags()
	f.IntVar(&cfg.Episodes, "episodes", cfg.Episodes, "Episodes to play")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "Parallel workers, each with its own engine")
	f.StringVar(&cfg.Policy, "policy", cfg.Policy, "Policy: uniform, random or greedy")
	f.IntVar(&cfg.MaxSteps, "max-steps", cfg.MaxSteps, "Hard cap on ticks per episode (0 disables)")
	f.IntVar(&cfg.EpisodesPerFlush, "episodes-per-flush", cfg.EpisodesPerFlush, "Episodes per Parquet file")
	f.BoolVar(&tui, "tui", false, "Show a live progress view instead of periodic logs")
	return cmd
}

type writeResult struct {
	files []string
	err   error
}

func runRollout(cfg *config.Config, tui bool) error {
	policy, err := rollout.ParsePolicy(cfg.Policy)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	if tui {
		// The progress view owns the terminal.
		logger = logging.New(io.Discard, slog.LevelError, logging.FormatText)
	}

	sink := make(chan rollout.Episode, 64)
	written := make(chan writeResult, 1)
	go func() {
		files, err := rollout.WriteLoop(cfg.OutDir, cfg.EpisodesPerFlush, sink, logger)
		written <- writeResult{files: files, err: err}
	}()

	updates := make(chan episodeMsg, 256)
	stats := &rollout.Stats{}
	opts := rollout.Options{
		Env:      cfg.EnvConfig(),
		Policy:   policy,
		Episodes: cfg.Episodes,
		Workers:  cfg.Workers,
		BaseSeed: cfg.Seed,
		MaxSteps: cfg.MaxSteps,
		Logger:   logger,
	}
	if tui {
		opts.OnEpisode = func(ep rollout.Episode) {
			select {
			case updates <- episodeMsg{ID: ep.ID, Seed: ep.Seed, Outcome: string(ep.Outcome), Score: ep.Score, Steps: ep.Steps}:
			default:
			}
		}
	}

	done := make(chan struct{})
	var runErr error
	start := time.Now()
	go func() {
		defer close(done)
		runErr = rollout.Run(ctx, opts, stats, sink)
		close(sink)
	}()

	if tui {
		final, err := tea.NewProgram(newProgressModel(stats, updates, done, cfg.Episodes, policy.Name())).Run()
		if err != nil {
			cancel()
			<-done
			return fmt.Errorf("progress view: %w", err)
		}
		if m, ok := final.(progressModel); ok && m.quitting {
			cancel()
		}
		<-done
	} else {
		logProgress(ctx, stats, done, cfg.Episodes)
	}

	res := <-written
	slog.Info("rollout complete",
		"policy", policy.Name(),
		"episodes", stats.Episodes.Load(),
		"steps", stats.Steps.Load(),
		"max_score", stats.MaxScore.Load(),
		"files", len(res.files),
		"out_dir", cfg.OutDir,
		"duration", time.Since(start).Round(time.Millisecond).String(),
	)
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return res.err
}

func logProgress(ctx context.Context, stats *rollout.Stats, done <-chan struct{}, total int) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			slog.Info("rollout progress",
				"episodes", stats.Episodes.Load(),
				"total", total,
				"steps", stats.Steps.Load(),
				"victories", stats.Victories.Load(),
				"collisions", stats.Collisions.Load(),
				"truncated", stats.Truncated.Load(),
				"cancelled", ctx.Err() != nil,
			)
		}
	}
}
