package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brensch/snekgym/config"
	"github.com/brensch/snekgym/store"
)

func newStatsCmd(cfg *config.Config) *cobra.Command {
	var perEpisode bool
	cmd := &cobra.Command{
		Use:   "stats [dir]",
		Short: "Summarize recorded episodes with DuckDB",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := cfg.OutDir
			if len(args) == 1 {
				dir = args[0]
			}
			ctx := context.Background()
			s, err := store.OpenSummarizer(ctx, dir)
			if err != nil {
				return err
			}
			defer s.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush()

			if perEpisode {
				eps, err := s.Episodes(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "EPISODE\tPOLICY\tSEED\tSTEPS\tSCORE\tLENGTH\tRESULT")
				for _, e := range eps {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n", e.EpisodeID, e.Policy, e.Seed, e.Steps, e.Score, e.MaxLength, e.Result)
				}
				return nil
			}

			pols, err := s.Policies(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "POLICY\tEPISODES\tMEAN SCORE\tMAX SCORE\tMEAN STEPS\tVICTORY\tCOLLISION\tTRUNCATED")
			for _, p := range pols {
				fmt.Fprintf(tw, "%s\t%d\t%.2f\t%d\t%.1f\t%d\t%d\t%d\n", p.Policy, p.Episodes, p.MeanScore, p.MaxScore, p.MeanSteps, p.Victories, p.Collisions, p.Truncated)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&perEpisode, "episodes", false, "List every episode instead of per-policy totals")
	return cmd
}
