package rules

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/brensch/snekgym/game"
)

const (
	MoveUp    = int(game.Up)
	MoveLeft  = int(game.Left)
	MoveRight = int(game.Right)
	MoveDown  = int(game.Down)
)

// StartLength is the length of the snake at the start of every episode.
const StartLength = 3

// MinBoardSize is the smallest board the starting snake fits on.
const MinBoardSize = StartLength

var (
	// ErrInvalidAction is returned for actions outside 0..3.
	ErrInvalidAction = errors.New("invalid action")
	// ErrEpisodeDone is returned when stepping a state that already ended.
	ErrEpisodeDone = errors.New("episode already finished")
	// ErrInvariantViolation means the rules reached a state they consider
	// impossible. It is never expected outside of a bug.
	ErrInvariantViolation = errors.New("invariant violation")
)

// Info describes the outcome of one tick. Field names on the wire match the
// keys reward code has always consumed.
type Info struct {
	SnakeSize    int            `json:"snake_size"`
	Head         game.Point     `json:"snake_head_pos"`
	PrevHead     game.Point     `json:"prev_snake_head_pos"`
	Food         game.Point     `json:"food_pos"`
	FoodObtained bool           `json:"food_obtained"`
	Attempted    game.Point     `json:"attempted_head_pos"`
	Direction    game.Direction `json:"direction"`
	Outcome      game.Status    `json:"outcome"`
}

// DecodeAction maps an action index to a direction.
func DecodeAction(action int) (game.Direction, error) {
	d := game.Direction(action)
	if !d.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAction, action)
	}
	return d, nil
}

// EffectiveDirection is the direction the snake will actually travel when
// asked to go in requested. Asking to reverse keeps the current heading.
func EffectiveDirection(state *game.EpisodeState, requested game.Direction) game.Direction {
	if requested == state.Direction.Opposite() {
		return state.Direction
	}
	return requested
}

// projection is the one-tick lookahead shared by Advance and IsLegal.
type projection struct {
	dir      game.Direction
	next     game.Point
	ateFood  bool
	collides bool
}

func project(state *game.EpisodeState, requested game.Direction) projection {
	dir := EffectiveDirection(state, requested)
	next := state.Head().Add(dir.Delta())
	ate := next == state.Food
	collides := !game.InBounds(next, state.BoardSize) || state.Occupies(next, ate)
	return projection{dir: dir, next: next, ateFood: ate, collides: collides}
}

// IsLegal reports whether action would keep the episode alive for one more
// tick. It does not mutate state.
func IsLegal(state *game.EpisodeState, action int) bool {
	d, err := DecodeAction(action)
	if err != nil {
		return false
	}
	if state == nil || state.Status.Terminal() || len(state.Snake) == 0 {
		return false
	}
	return !project(state, d).collides
}

// LegalMask evaluates IsLegal for every action.
func LegalMask(state *game.EpisodeState) [game.NumDirections]bool {
	var mask [game.NumDirections]bool
	for a := range mask {
		mask[a] = IsLegal(state, a)
	}
	return mask
}

// NewEpisode builds the starting state: three cells in the middle column
// heading down, with food placed from rng.
func NewEpisode(boardSize int, rng *rand.Rand) (*game.EpisodeState, error) {
	if boardSize < MinBoardSize {
		return nil, fmt.Errorf("board size %d below minimum %d", boardSize, MinBoardSize)
	}

	c := boardSize / 2
	state := &game.EpisodeState{
		BoardSize: boardSize,
		Snake:     make([]game.Point, 0, StartLength),
		Direction: game.Down,
		Status:    game.Active,
	}
	for i := 1; i > 1-StartLength; i-- {
		state.Snake = append(state.Snake, game.Point{Row: c + i, Col: c})
	}

	food, err := PlaceFood(state, rng)
	if err != nil {
		return nil, err
	}
	state.Food = food
	return state, nil
}

// Advance applies one tick to state in place.
//
// Reversal requests keep the current heading but still consume the tick.
// On collision the snake and score are left untouched and Status becomes
// Collision; filling the last free cell sets Status to Victory.
func Advance(state *game.EpisodeState, action int, rng *rand.Rand) (Info, error) {
	requested, err := DecodeAction(action)
	if err != nil {
		return Info{}, err
	}
	if state.Status.Terminal() {
		return Info{}, fmt.Errorf("%w: status %s", ErrEpisodeDone, state.Status)
	}
	if len(state.Snake) == 0 {
		return Info{}, fmt.Errorf("%w: empty snake", ErrInvariantViolation)
	}

	state.Steps++
	prevHead := state.Head()
	p := project(state, requested)

	info := Info{
		PrevHead:  prevHead,
		Attempted: p.next,
		Direction: p.dir,
	}

	if p.collides {
		state.Status = game.Collision
		info.SnakeSize = len(state.Snake)
		info.Head = prevHead
		info.Food = state.Food
		info.Outcome = state.Status
		return info, nil
	}

	newBody := make([]game.Point, 0, len(state.Snake)+1)
	newBody = append(newBody, p.next)
	newBody = append(newBody, state.Snake...)
	if !p.ateFood {
		newBody = newBody[:len(newBody)-1]
	}
	state.Snake = newBody
	state.Direction = p.dir
	info.FoodObtained = p.ateFood

	if p.ateFood {
		state.Score++
		if len(state.Snake) >= state.GridSize() {
			state.Status = game.Victory
			state.Food = game.NoPoint
		} else {
			food, err := PlaceFood(state, rng)
			if err != nil {
				return Info{}, fmt.Errorf("place food: %w", err)
			}
			state.Food = food
		}
	}

	info.SnakeSize = len(state.Snake)
	info.Head = state.Head()
	info.Food = state.Food
	info.Outcome = state.Status
	return info, nil
}
