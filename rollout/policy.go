package rollout

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/brensch/snekgym/game"
	"github.com/brensch/snekgym/rules"
)

// Policy picks an action for the current state. mask is the engine's
// legality mask; rng is owned by the episode so choices replay exactly.
type Policy interface {
	Name() string
	Choose(state *game.EpisodeState, mask [game.NumDirections]bool, rng *rand.Rand) int
}

// ParsePolicy returns the named baseline policy.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "random":
		return Random{}, nil
	case "greedy":
		return Greedy{}, nil
	case "uniform":
		return Uniform{}, nil
	default:
		return nil, fmt.Errorf("unknown policy %q (want random, greedy or uniform)", name)
	}
}

// Uniform ignores the mask and picks any of the four actions.
type Uniform struct{}

func (Uniform) Name() string { return "uniform" }

func (Uniform) Choose(_ *game.EpisodeState, _ [game.NumDirections]bool, rng *rand.Rand) int {
	return rng.Intn(game.NumDirections)
}

// Random picks uniformly among legal actions, the way a masked policy
// samples before it has learned anything.
type Random struct{}

func (Random) Name() string { return "random" }

func (Random) Choose(_ *game.EpisodeState, mask [game.NumDirections]bool, rng *rand.Rand) int {
	legal := legalActions(mask)
	if len(legal) == 0 {
		return rng.Intn(game.NumDirections)
	}
	return legal[rng.Intn(len(legal))]
}

// Greedy moves to the legal neighbour closest to the food (Manhattan),
// breaking ties at random.
type Greedy struct{}

func (Greedy) Name() string { return "greedy" }

func (Greedy) Choose(state *game.EpisodeState, mask [game.NumDirections]bool, rng *rand.Rand) int {
	legal := legalActions(mask)
	if len(legal) == 0 {
		return int(state.Direction)
	}

	best := make([]int, 0, len(legal))
	bestDist := -1
	head := state.Head()
	for _, a := range legal {
		next := head.Add(rules.EffectiveDirection(state, game.Direction(a)).Delta())
		d := abs(next.Row-state.Food.Row) + abs(next.Col-state.Food.Col)
		switch {
		case bestDist < 0 || d < bestDist:
			bestDist = d
			best = append(best[:0], a)
		case d == bestDist:
			best = append(best, a)
		}
	}
	return best[rng.Intn(len(best))]
}

func legalActions(mask [game.NumDirections]bool) []int {
	out := make([]int, 0, game.NumDirections)
	for a, ok := range mask {
		if ok {
			out = append(out, a)
		}
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
