package rollout

import (
	"fmt"

	"github.com/brensch/snekgym/env"
	"github.com/brensch/snekgym/game"
	"github.com/brensch/snekgym/store"
)

// Replay re-simulates one recorded episode from its seed and actions and
// checks every row against the engine. rows must belong to one episode and
// be ordered by step. visit, if set, sees the engine state after each tick.
func Replay(rows []store.TransitionRow, visit func(row store.TransitionRow, state *game.EpisodeState)) (*game.EpisodeState, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows to replay")
	}
	first := rows[0]
	cfg := env.DefaultConfig()
	cfg.BoardSize = int(first.BoardSize)
	engine, err := env.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("episode %s: %w", first.EpisodeID, err)
	}
	engine.Reset(first.Seed)

	for _, row := range rows {
		if row.EpisodeID != first.EpisodeID {
			return nil, fmt.Errorf("row for episode %s mixed into %s", row.EpisodeID, first.EpisodeID)
		}
		res, err := engine.Step(int(row.Action))
		if err != nil {
			return nil, fmt.Errorf("episode %s step %d: %w", row.EpisodeID, row.Step, err)
		}
		state := engine.State()
		if err := checkRow(row, res, state); err != nil {
			return nil, fmt.Errorf("episode %s step %d: %w", row.EpisodeID, row.Step, err)
		}
		if visit != nil {
			visit(row, state)
		}
	}
	return engine.State(), nil
}

func checkRow(row store.TransitionRow, res env.StepResult, state *game.EpisodeState) error {
	head := game.Point{Row: int(row.HeadRow), Col: int(row.HeadCol)}
	food := game.Point{Row: int(row.FoodRow), Col: int(row.FoodCol)}
	switch {
	case int(row.Step) != state.Steps:
		return fmt.Errorf("step counter %d, recorded %d", state.Steps, row.Step)
	case res.Info.Head != head:
		return fmt.Errorf("head %v, recorded %v", res.Info.Head, head)
	case res.Info.Food != food:
		return fmt.Errorf("food %v, recorded %v", res.Info.Food, food)
	case res.Info.SnakeSize != int(row.SnakeSize):
		return fmt.Errorf("length %d, recorded %d", res.Info.SnakeSize, row.SnakeSize)
	case state.Score != int(row.Score):
		return fmt.Errorf("score %d, recorded %d", state.Score, row.Score)
	case res.Info.FoodObtained != row.FoodObtained:
		return fmt.Errorf("food obtained %v, recorded %v", res.Info.FoodObtained, row.FoodObtained)
	case int32(res.Info.Direction) != row.Direction:
		return fmt.Errorf("direction %s, recorded %s", res.Info.Direction, game.Direction(row.Direction))
	case len(state.Snake) != len(row.BodyRow):
		return fmt.Errorf("body has %d cells, recorded %d", len(state.Snake), len(row.BodyRow))
	}

	// Truncation comes from limits the replay engine does not carry.
	if row.Result == string(env.OutcomeTruncated) {
		if !row.Done {
			return fmt.Errorf("truncated row not marked done")
		}
	} else {
		if string(res.Info.Result) != row.Result {
			return fmt.Errorf("result %s, recorded %s", res.Info.Result, row.Result)
		}
		if res.Done != row.Done {
			return fmt.Errorf("done %v, recorded %v", res.Done, row.Done)
		}
	}
	for i, p := range state.Snake {
		if p.Row != int(row.BodyRow[i]) || p.Col != int(row.BodyCol[i]) {
			return fmt.Errorf("body cell %d is %v, recorded (%d,%d)", i, p, row.BodyRow[i], row.BodyCol[i])
		}
	}
	return nil
}
