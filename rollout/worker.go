// Package rollout plays baseline policies against the environment and
// records every transition for offline analysis.
package rollout

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/brensch/snekgym/env"
	"github.com/brensch/snekgym/rules"
	"github.com/brensch/snekgym/store"
)

// Episode is one finished rollout.
type Episode struct {
	ID      string
	Seed    int64
	Outcome env.Outcome
	Score   int
	Steps   int
	Rows    []store.TransitionRow
}

// PlayEpisode runs policy on engine from seed until the episode ends or
// maxSteps ticks have passed. maxSteps <= 0 means no cap.
func PlayEpisode(ctx context.Context, engine *env.Engine, policy Policy, id string, seed int64, maxSteps int) (Episode, error) {
	engine.Reset(seed)
	rng := rand.New(rand.NewSource(rules.DeriveSeed(seed, 1)))
	ep := Episode{ID: id, Seed: seed, Rows: make([]store.TransitionRow, 0, 256)}

	for !engine.Done() {
		if err := ctx.Err(); err != nil {
			return ep, err
		}

		state := engine.State()
		mask := engine.LegalActionsMask()
		action := policy.Choose(state, mask, rng)

		res, err := engine.Step(action)
		if err != nil {
			return ep, fmt.Errorf("episode %s step %d: %w", id, state.Steps, err)
		}
		if maxSteps > 0 && res.Info.Steps >= maxSteps && !res.Done {
			res.Done = true
			res.Info.Result = env.OutcomeTruncated
		}
		ep.Rows = append(ep.Rows, store.NewTransitionRow(id, seed, policy.Name(), action, mask, res, engine.State()))
		if res.Done {
			ep.Outcome = res.Info.Result
			break
		}
	}

	final := engine.State()
	ep.Score = final.Score
	ep.Steps = final.Steps
	if ep.Outcome == "" {
		ep.Outcome = engine.Outcome()
	}
	return ep, nil
}

// Options configures a pool run.
type Options struct {
	Env      env.Config
	Policy   Policy
	Episodes int
	Workers  int
	BaseSeed int64
	MaxSteps int
	// OnEpisode is called from worker goroutines after every episode.
	OnEpisode func(Episode)
	Logger    *slog.Logger
}

// Stats counts what a run produced. It is safe to read while a run is going.
type Stats struct {
	Episodes   atomic.Int64
	Steps      atomic.Int64
	Score      atomic.Int64
	MaxScore   atomic.Int64
	Victories  atomic.Int64
	Collisions atomic.Int64
	Truncated  atomic.Int64
}

func (s *Stats) record(ep Episode) {
	s.Episodes.Add(1)
	s.Steps.Add(int64(ep.Steps))
	s.Score.Add(int64(ep.Score))
	for {
		cur := s.MaxScore.Load()
		if int64(ep.Score) <= cur || s.MaxScore.CompareAndSwap(cur, int64(ep.Score)) {
			break
		}
	}
	switch ep.Outcome {
	case env.OutcomeVictory:
		s.Victories.Add(1)
	case env.OutcomeCollision:
		s.Collisions.Add(1)
	case env.OutcomeTruncated:
		s.Truncated.Add(1)
	}
}

// Run plays opts.Episodes episodes across opts.Workers goroutines, each with
// its own engine. Episode i is seeded with rules.DeriveSeed(BaseSeed, i), so
// results do not depend on scheduling. Finished episodes are sent to sink in
// completion order; sink may be nil.
func Run(ctx context.Context, opts Options, stats *Stats, sink chan<- Episode) error {
	if opts.Policy == nil {
		return fmt.Errorf("policy is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if stats == nil {
		stats = &Stats{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runID := uuid.New()
	logger.Info("rollout started", "run", runID.String(), "policy", opts.Policy.Name(),
		"episodes", opts.Episodes, "workers", opts.Workers, "board", opts.Env.BoardSize)

	jobs := make(chan int)
	errs := make(chan error, opts.Workers)
	var wg sync.WaitGroup

	for w := 0; w < opts.Workers; w++ {
		engine, err := env.New(opts.Env)
		if err != nil {
			return fmt.Errorf("build engine: %w", err)
		}
		wg.Add(1)
		go func(workerID int, engine *env.Engine) {
			defer wg.Done()
			for i := range jobs {
				seed := rules.DeriveSeed(opts.BaseSeed, i)
				id := uuid.NewSHA1(runID, []byte(fmt.Sprintf("episode-%d", i))).String()
				ep, err := PlayEpisode(ctx, engine, opts.Policy, id, seed, opts.MaxSteps)
				if err != nil {
					errs <- err
					return
				}
				stats.record(ep)
				logger.Debug("episode finished", "worker", workerID, "episode", i,
					"outcome", ep.Outcome, "score", ep.Score, "steps", ep.Steps)
				if opts.OnEpisode != nil {
					opts.OnEpisode(ep)
				}
				if sink != nil {
					select {
					case sink <- ep:
					case <-ctx.Done():
						return
					}
				}
			}
		}(w, engine)
	}

	var runErr error
dispatch:
	for i := 0; i < opts.Episodes; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			runErr = ctx.Err()
			break dispatch
		case runErr = <-errs:
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if runErr == nil {
		select {
		case runErr = <-errs:
		default:
		}
	}

	logger.Info("rollout finished", "run", runID.String(), "episodes", stats.Episodes.Load(),
		"victories", stats.Victories.Load(), "collisions", stats.Collisions.Load(),
		"truncated", stats.Truncated.Load(), "max_score", stats.MaxScore.Load())
	return runErr
}
