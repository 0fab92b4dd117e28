package game

import "fmt"

// Direction is one of the four moves. The numeric values double as the
// action encoding on the environment boundary.
type Direction int

const (
	Up Direction = iota
	Left
	Right
	Down
)

// NumDirections is the size of the action space.
const NumDirections = 4

var deltas = [NumDirections]Point{
	Up:    {Row: -1, Col: 0},
	Left:  {Row: 0, Col: -1},
	Right: {Row: 0, Col: 1},
	Down:  {Row: 1, Col: 0},
}

var directionNames = [NumDirections]string{"up", "left", "right", "down"}

// Valid reports whether d is one of the four moves.
func (d Direction) Valid() bool {
	return d >= Up && d <= Down
}

// Delta is the (row, col) offset of one step in direction d.
func (d Direction) Delta() Point {
	if !d.Valid() {
		return Point{}
	}
	return deltas[d]
}

// Opposite returns the direction that would reverse d.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	default:
		return d
	}
}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("direction(%d)", int(d))
	}
	return directionNames[d]
}
