package rules

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/brensch/snekgym/game"
)

// PlaceFood picks a cell not covered by the snake.
//
// Free cells are enumerated in row-major order and one is drawn from rng, so
// a given rng stream always yields the same food sequence. A nil rng falls
// back to a generator seeded from a hash of the state.
func PlaceFood(state *game.EpisodeState, rng *rand.Rand) (game.Point, error) {
	if state == nil || state.BoardSize <= 0 {
		return game.NoPoint, fmt.Errorf("%w: no board", ErrInvariantViolation)
	}

	occupied := state.Occupancy()
	available := make([]game.Point, 0, max(len(occupied)-len(state.Snake), 0))
	for row := 0; row < state.BoardSize; row++ {
		for col := 0; col < state.BoardSize; col++ {
			if occupied[row*state.BoardSize+col] {
				continue
			}
			available = append(available, game.Point{Row: row, Col: col})
		}
	}
	if len(available) == 0 {
		return game.NoPoint, fmt.Errorf("%w: no free cell for food (snake=%d grid=%d)",
			ErrInvariantViolation, len(state.Snake), state.GridSize())
	}

	if rng == nil {
		seed := int64(stateHash(state))
		if seed == 0 {
			seed = 1
		}
		rng = rand.New(rand.NewSource(seed))
	}
	return available[rng.Intn(len(available))], nil
}

// DeriveSeed mixes a base seed with an episode index so parallel workers get
// independent but reproducible episodes.
func DeriveSeed(base int64, index int) int64 {
	// splitmix64 finalizer
	x := uint64(base) + uint64(index)*0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x ^= x >> 31
	return int64(x >> 1)
}

func stateHash(state *game.EpisodeState) uint64 {
	h := fnv.New64a()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(state.BoardSize))
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(state.Steps))
	_, _ = h.Write(buf[:])
	for _, p := range state.Snake {
		binary.LittleEndian.PutUint64(buf[:], (uint64(uint32(p.Row))<<32)|uint64(uint32(p.Col)))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}
