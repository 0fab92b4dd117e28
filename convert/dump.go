package convert

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/brensch/snekgym/game"
)

// DumpBoard renders a state as text for logs and replays.
// H is the head, o the body, t the tail, F the food.
func DumpBoard(state *game.EpisodeState) string {
	if state == nil {
		return "<nil state>\n"
	}
	n := state.BoardSize
	grid := make([][]byte, n)
	for row := range grid {
		grid[row] = []byte(strings.Repeat(".", n))
	}
	put := func(p game.Point, c byte) {
		if game.InBounds(p, n) {
			grid[p.Row][p.Col] = c
		}
	}

	for _, p := range state.Snake {
		put(p, 'o')
	}
	if len(state.Snake) > 0 {
		put(state.Tail(), 't')
		put(state.Head(), 'H')
	}
	put(state.Food, 'F')

	var sb strings.Builder
	fmt.Fprintf(&sb, "step=%d score=%d len=%d dir=%s status=%s\n",
		state.Steps, state.Score, len(state.Snake), state.Direction, state.Status)
	for _, row := range grid {
		sb.Write(row)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// DumpScalar prints a scalar observation as a numeric grid. Image
// observations produce an empty string.
func DumpScalar(o Observation) string {
	m := o.Matrix()
	if m == nil {
		return ""
	}
	return fmt.Sprintf("%.2v\n", mat.Formatted(m, mat.Squeeze()))
}
