package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/brensch/snekgym/config"
	"github.com/brensch/snekgym/convert"
	"github.com/brensch/snekgym/game"
	"github.com/brensch/snekgym/rollout"
	"github.com/brensch/snekgym/store"
)

func newReplayCmd(cfg *config.Config) *cobra.Command {
	var episodeID string
	var everyStep bool
	cmd := &cobra.Command{
		Use:   "replay <file.parquet>",
		Short: "Re-simulate recorded episodes from their seeds and check every tick",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := store.ReadRows(args[0])
			if err != nil {
				return err
			}
			episodes := store.GroupEpisodes(rows)
			if len(episodes) == 0 {
				return fmt.Errorf("%s holds no episodes", args[0])
			}

			kind, err := convert.ParseKind(cfg.Encoding)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			verified := 0
			for _, ep := range episodes {
				id := ep[0].EpisodeID
				if episodeID != "" && id != episodeID {
					continue
				}
				show := episodeID != "" || verified == 0
				var visit func(store.TransitionRow, *game.EpisodeState)
				if show && everyStep {
					visit = func(row store.TransitionRow, state *game.EpisodeState) {
						fmt.Fprintf(out, "step %d action %d result %s\n%s", row.Step, row.Action, row.Result, convert.DumpBoard(state))
						if kind == convert.KindScalar {
							fmt.Fprint(out, convert.DumpScalar(convert.ScalarGrid{}.Encode(state)))
						}
						fmt.Fprintln(out)
					}
				}
				final, err := rollout.Replay(ep, visit)
				if err != nil {
					return err
				}
				verified++
				if show {
					last := ep[len(ep)-1]
					fmt.Fprintf(out, "episode %s seed %d policy %s: %s after %d steps, score %d\n%s\n",
						id, last.Seed, last.Policy, last.Result, last.Step, last.Score, convert.DumpBoard(final))
				}
			}
			if verified == 0 {
				return fmt.Errorf("episode %q not found in %s", episodeID, args[0])
			}
			slog.Info("replay verified", "file", args[0], "episodes", verified)
			return nil
		},
	}
	cmd.Flags().StringVar(&episodeID, "episode", "", "Only replay this episode id")
	cmd.Flags().BoolVar(&everyStep, "boards", false, "Print the board after every step")
	return cmd
}
