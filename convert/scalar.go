package convert

import "github.com/brensch/snekgym/game"

// Cell values of the scalar encoding.
const (
	ScalarEmpty    float32 = 0
	ScalarHead     float32 = 1
	ScalarFood     float32 = -1
	ScalarBodyNear float32 = 0.8 // segment next to the head end
	ScalarBodyFar  float32 = 0.2 // tail end
)

// ScalarGrid encodes one float per cell: empty 0, body graded from 0.8 at
// the head end to 0.2 at the tail, head 1 and food -1.
type ScalarGrid struct{}

func (ScalarGrid) Kind() Kind { return KindScalar }

func (ScalarGrid) Shape(boardSize int) []int { return []int{boardSize, boardSize} }

func (g ScalarGrid) Encode(state *game.EpisodeState) Observation {
	n := state.BoardSize
	data := make([]float32, n*n)

	set := func(p game.Point, v float32) {
		if !game.InBounds(p, n) {
			return
		}
		data[p.Row*n+p.Col] = v
	}

	l := len(state.Snake)
	for i, p := range state.Snake {
		set(p, lerp(ScalarBodyNear, ScalarBodyFar, i, l))
	}
	if l > 0 {
		set(state.Snake[0], ScalarHead)
	}
	set(state.Food, ScalarFood)

	return Observation{Kind: KindScalar, Shape: g.Shape(n), Scalars: data}
}
