// Package game defines the core state types for the snake environment.
//
// These types hold the minimal state needed for rules evaluation and
// observation encoding. The state is cheap to clone so the legality checker
// and tests can probe a copy without touching the live episode.
package game

// Point is a board coordinate.
// Coordinates are (row, col) with (0,0) at the top-left corner.
type Point struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// NoPoint marks an absent cell, e.g. the food slot after a full-board win.
var NoPoint = Point{Row: -1, Col: -1}

// Add returns p moved by d.
func (p Point) Add(d Point) Point {
	return Point{Row: p.Row + d.Row, Col: p.Col + d.Col}
}

// Status is the episode lifecycle state.
type Status int

const (
	Active Status = iota
	Victory
	Collision
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Victory:
		return "victory"
	case Collision:
		return "collision"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further ticks are allowed.
func (s Status) Terminal() bool {
	return s == Victory || s == Collision
}

// EpisodeState is the complete state of one episode.
// Snake is ordered head first.
type EpisodeState struct {
	BoardSize int       `json:"board_size"`
	Snake     []Point   `json:"snake"`
	Food      Point     `json:"food"`
	Direction Direction `json:"direction"`
	Score     int       `json:"score"`
	Steps     int       `json:"steps"`
	Status    Status    `json:"status"`
}

// GridSize is the number of cells on the board, which is also the longest
// the snake can get.
func (s *EpisodeState) GridSize() int {
	return s.BoardSize * s.BoardSize
}

// Clone performs a deep copy of the episode state.
func (s *EpisodeState) Clone() *EpisodeState {
	if s == nil {
		return nil
	}

	out := *s
	if len(s.Snake) > 0 {
		out.Snake = make([]Point, len(s.Snake))
		copy(out.Snake, s.Snake)
	}
	return &out
}
