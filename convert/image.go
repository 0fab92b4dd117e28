package convert

import "github.com/brensch/snekgym/game"

// Channels is the number of color channels in an image observation.
const Channels = 3

// RGB is one pixel.
type RGB [Channels]uint8

// Fixed colors of the image encoding.
var (
	ColorHead = RGB{0, 255, 0}
	ColorTail = RGB{255, 0, 0}
	ColorFood = RGB{0, 0, 255}
)

// Gray levels of the body gradient.
const (
	GrayBodyNear uint8 = 200
	GrayBodyFar  uint8 = 50
)

// Image renders the board as an RGB picture, each cell repeated Scale times
// in both directions. Layout is [row][col][channel].
type Image struct {
	Scale int
}

func (Image) Kind() Kind { return KindImage }

func (m Image) Shape(boardSize int) []int {
	side := boardSize * m.Scale
	return []int{side, side, Channels}
}

func (m Image) Encode(state *game.EpisodeState) Observation {
	n := state.BoardSize
	cells := make([]RGB, n*n)

	set := func(p game.Point, c RGB) {
		if !game.InBounds(p, n) {
			return
		}
		cells[p.Row*n+p.Col] = c
	}

	l := len(state.Snake)
	for i, p := range state.Snake {
		g := uint8(lerp(float32(GrayBodyNear), float32(GrayBodyFar), i, l) + 0.5)
		set(p, RGB{g, g, g})
	}
	if l > 0 {
		set(state.Head(), ColorHead)
		set(state.Tail(), ColorTail)
	}
	set(state.Food, ColorFood)

	scale := m.Scale
	if scale < 1 {
		scale = 1
	}
	side := n * scale
	pixels := make([]uint8, side*side*Channels)
	for y := 0; y < side; y++ {
		rowBase := (y / scale) * n
		for x := 0; x < side; x++ {
			c := cells[rowBase+x/scale]
			copy(pixels[(y*side+x)*Channels:], c[:])
		}
	}

	return Observation{Kind: KindImage, Shape: []int{side, side, Channels}, Pixels: pixels}
}
