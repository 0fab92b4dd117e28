// Package env wraps the rules in a stateful engine that follows the usual
// reinforcement-learning environment contract: Reset, Step and an action
// mask, each returning an observation from the configured encoder.
//
// An Engine is owned by a single caller. Run parallel episodes on separate
// engines; nothing here locks.
package env

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/brensch/snekgym/convert"
	"github.com/brensch/snekgym/game"
	"github.com/brensch/snekgym/rules"
)

// ErrNotReset is returned when an engine is used before its first Reset.
var ErrNotReset = errors.New("engine has not been reset")

// Outcome extends game.Status with truncation by the step limit.
type Outcome string

const (
	OutcomeActive    Outcome = "active"
	OutcomeVictory   Outcome = "victory"
	OutcomeCollision Outcome = "collision"
	OutcomeTruncated Outcome = "truncated"
)

// Config controls how an engine is built.
type Config struct {
	BoardSize  int
	Encoding   convert.Kind
	ImageScale int
	// StepLimit truncates an episode after this many ticks without food.
	// Zero disables it.
	StepLimit int
	// MaskReversal also reports the reverse of the current heading as
	// illegal in LegalActionsMask. Stepping it is still allowed.
	MaskReversal bool
}

// DefaultConfig is a 12x12 board with scalar observations.
func DefaultConfig() Config {
	return Config{
		BoardSize:  12,
		Encoding:   convert.KindScalar,
		ImageScale: convert.DefaultImageScale,
	}
}

// Info is the per-tick record handed to reward code.
type Info struct {
	rules.Info
	Result Outcome `json:"result"`
	Score  int     `json:"score"`
	Steps  int     `json:"steps"`
}

// StepResult is everything Step returns.
type StepResult struct {
	Observation convert.Observation `json:"observation"`
	Done        bool                `json:"done"`
	Info        Info                `json:"info"`
}

// Engine owns one episode and the random stream behind it.
type Engine struct {
	cfg     Config
	encoder convert.Encoder

	state     *game.EpisodeState
	rng       *rand.Rand
	seed      int64
	sinceFood int
	truncated bool
}

// New validates cfg and builds an engine. Call Reset before Step.
func New(cfg Config) (*Engine, error) {
	if cfg.BoardSize < rules.MinBoardSize {
		return nil, fmt.Errorf("board size %d below minimum %d", cfg.BoardSize, rules.MinBoardSize)
	}
	if cfg.StepLimit < 0 {
		return nil, fmt.Errorf("step limit must be >= 0, got %d", cfg.StepLimit)
	}
	if cfg.Encoding == "" {
		cfg.Encoding = convert.KindScalar
	}
	if cfg.ImageScale == 0 {
		cfg.ImageScale = convert.DefaultImageScale
	}
	enc, err := convert.New(cfg.Encoding, cfg.ImageScale)
	if err != nil {
		return nil, fmt.Errorf("build encoder: %w", err)
	}
	return &Engine{cfg: cfg, encoder: enc}, nil
}

// Encoder returns the observation encoder.
func (e *Engine) Encoder() convert.Encoder { return e.encoder }

// Seed returns the seed of the current episode.
func (e *Engine) Seed() int64 { return e.seed }

// Reset starts a new episode from seed. Equal seeds give equal episodes.
func (e *Engine) Reset(seed int64) convert.Observation {
	e.seed = seed
	e.rng = rand.New(rand.NewSource(seed))
	e.sinceFood = 0
	e.truncated = false

	state, err := rules.NewEpisode(e.cfg.BoardSize, e.rng)
	if err != nil {
		// The board size was validated in New.
		panic(fmt.Sprintf("env: reset: %v", err))
	}
	e.state = state
	return e.encoder.Encode(e.state)
}

// Step advances the episode by one tick.
//
// It fails with rules.ErrInvalidAction for actions outside 0..3 and with
// rules.ErrEpisodeDone once the episode has ended; neither mutates state.
func (e *Engine) Step(action int) (StepResult, error) {
	if e.state == nil {
		return StepResult{}, ErrNotReset
	}
	if _, err := rules.DecodeAction(action); err != nil {
		return StepResult{}, err
	}
	if e.truncated {
		return StepResult{}, fmt.Errorf("%w: truncated at step %d", rules.ErrEpisodeDone, e.state.Steps)
	}

	info, err := rules.Advance(e.state, action, e.rng)
	if err != nil {
		if errors.Is(err, rules.ErrInvariantViolation) {
			panic(fmt.Sprintf("env: seed %d step %d: %v", e.seed, e.state.Steps, err))
		}
		return StepResult{}, err
	}

	if info.FoodObtained {
		e.sinceFood = 0
	} else {
		e.sinceFood++
	}

	result := outcomeOf(e.state.Status)
	if result == OutcomeActive && e.cfg.StepLimit > 0 && e.sinceFood > e.cfg.StepLimit {
		e.truncated = true
		result = OutcomeTruncated
	}

	return StepResult{
		Observation: e.encoder.Encode(e.state),
		Done:        result != OutcomeActive,
		Info: Info{
			Info:   info,
			Result: result,
			Score:  e.state.Score,
			Steps:  e.state.Steps,
		},
	}, nil
}

// LegalActionsMask reports which actions would not end the episode on the
// next tick. A finished or unreset engine has no legal actions.
func (e *Engine) LegalActionsMask() [game.NumDirections]bool {
	var mask [game.NumDirections]bool
	if e.state == nil || e.truncated {
		return mask
	}
	mask = rules.LegalMask(e.state)
	if e.cfg.MaskReversal && len(e.state.Snake) >= 2 {
		mask[e.state.Direction.Opposite()] = false
	}
	return mask
}

// Observe encodes the current state without advancing it.
func (e *Engine) Observe() (convert.Observation, error) {
	if e.state == nil {
		return convert.Observation{}, ErrNotReset
	}
	return e.encoder.Encode(e.state), nil
}

// State returns a copy of the current episode state.
func (e *Engine) State() *game.EpisodeState {
	return e.state.Clone()
}

// Done reports whether the current episode has ended for any reason.
func (e *Engine) Done() bool {
	return e.state == nil || e.truncated || e.state.Status.Terminal()
}

// Outcome reports how the current episode stands.
func (e *Engine) Outcome() Outcome {
	if e.state == nil {
		return OutcomeActive
	}
	if e.truncated {
		return OutcomeTruncated
	}
	return outcomeOf(e.state.Status)
}

func outcomeOf(s game.Status) Outcome {
	switch s {
	case game.Victory:
		return OutcomeVictory
	case game.Collision:
		return OutcomeCollision
	default:
		return OutcomeActive
	}
}
