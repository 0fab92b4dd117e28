package game

// InBounds reports whether p lies on a board of the given side length.
func InBounds(p Point, boardSize int) bool {
	return p.Row >= 0 && p.Row < boardSize && p.Col >= 0 && p.Col < boardSize
}

// Head returns the first body cell. The snake is never empty in a valid state.
func (s *EpisodeState) Head() Point {
	return s.Snake[0]
}

// Tail returns the last body cell.
func (s *EpisodeState) Tail() Point {
	return s.Snake[len(s.Snake)-1]
}

// Occupies reports whether p is covered by the snake. When withTail is false
// the last cell is skipped, since it vacates on a tick without food.
func (s *EpisodeState) Occupies(p Point, withTail bool) bool {
	body := s.Snake
	if !withTail && len(body) > 0 {
		body = body[:len(body)-1]
	}
	for _, bp := range body {
		if bp == p {
			return true
		}
	}
	return false
}

// Occupancy returns a row-major mask of cells covered by the snake.
func (s *EpisodeState) Occupancy() []bool {
	occ := make([]bool, s.GridSize())
	for _, p := range s.Snake {
		if InBounds(p, s.BoardSize) {
			occ[p.Row*s.BoardSize+p.Col] = true
		}
	}
	return occ
}
