package rollout

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"github.com/brensch/snekgym/env"
	"github.com/brensch/snekgym/game"
	"github.com/brensch/snekgym/store"
)

func smallEnv() env.Config {
	cfg := env.DefaultConfig()
	cfg.BoardSize = 6
	return cfg
}

func TestPlayEpisode_RecordsEveryTick(t *testing.T) {
	engine, err := env.New(smallEnv())
	if err != nil {
		t.Fatalf("env.New: %v", err)
	}
	ep, err := PlayEpisode(context.Background(), engine, Random{}, "ep-1", 42, 5000)
	if err != nil {
		t.Fatalf("PlayEpisode: %v", err)
	}
	if len(ep.Rows) != ep.Steps {
		t.Fatalf("rows=%d steps=%d", len(ep.Rows), ep.Steps)
	}
	last := ep.Rows[len(ep.Rows)-1]
	if !last.Done || last.Result != string(ep.Outcome) {
		t.Fatalf("last row done=%v result=%s outcome=%s", last.Done, last.Result, ep.Outcome)
	}
	for i, r := range ep.Rows {
		if int(r.Step) != i+1 {
			t.Fatalf("row %d step=%d", i, r.Step)
		}
		if !r.LegalMask[r.Action] && ep.Outcome != env.OutcomeCollision {
			t.Fatalf("random policy chose masked action %d at step %d", r.Action, r.Step)
		}
	}
}

func TestPlayEpisode_MaxStepsTruncates(t *testing.T) {
	engine, err := env.New(smallEnv())
	if err != nil {
		t.Fatalf("env.New: %v", err)
	}
	ep, err := PlayEpisode(context.Background(), engine, Random{}, "ep-cap", 7, 2)
	if err != nil {
		t.Fatalf("PlayEpisode: %v", err)
	}
	if ep.Steps > 2 {
		t.Fatalf("steps=%d want <= 2", ep.Steps)
	}
	if ep.Steps == 2 && ep.Outcome != env.OutcomeTruncated {
		t.Fatalf("outcome=%s want truncated", ep.Outcome)
	}
}

func TestGreedy_HeadsForFood(t *testing.T) {
	state := &game.EpisodeState{
		BoardSize: 6,
		Snake:     []game.Point{{Row: 3, Col: 3}, {Row: 4, Col: 3}, {Row: 5, Col: 3}},
		Food:      game.Point{Row: 3, Col: 0},
		Direction: game.Up,
	}
	mask := [game.NumDirections]bool{true, true, true, false}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		if a := (Greedy{}).Choose(state, mask, rng); a != int(game.Left) {
			t.Fatalf("greedy chose %s want left", game.Direction(a))
		}
	}
}

func TestParsePolicy(t *testing.T) {
	for _, name := range []string{"random", "Greedy", " uniform "} {
		if _, err := ParsePolicy(name); err != nil {
			t.Fatalf("ParsePolicy(%q): %v", name, err)
		}
	}
	if _, err := ParsePolicy("ppo"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func runCollect(t *testing.T, workers int) []Episode {
	t.Helper()
	sink := make(chan Episode, 64)
	var stats Stats
	opts := Options{Env: smallEnv(), Policy: Greedy{}, Episodes: 12, Workers: workers, BaseSeed: 99, MaxSteps: 2000}
	if err := Run(context.Background(), opts, &stats, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(sink)
	var eps []Episode
	for ep := range sink {
		eps = append(eps, ep)
	}
	if int(stats.Episodes.Load()) != len(eps) || len(eps) != 12 {
		t.Fatalf("stats episodes=%d collected=%d want 12", stats.Episodes.Load(), len(eps))
	}
	sort.Slice(eps, func(i, j int) bool { return eps[i].Seed < eps[j].Seed })
	return eps
}

func TestRun_ResultsIndependentOfWorkers(t *testing.T) {
	one := runCollect(t, 1)
	many := runCollect(t, 4)
	for i := range one {
		a, b := one[i], many[i]
		if a.Seed != b.Seed || a.Score != b.Score || a.Steps != b.Steps || a.Outcome != b.Outcome {
			t.Fatalf("episode %d differs: %+v vs %+v", i, a, b)
		}
	}
}

func TestWriteLoop_FlushesBatches(t *testing.T) {
	dir := t.TempDir()
	sink := make(chan Episode, 16)
	done := make(chan struct{})
	var files []string
	var werr error
	go func() {
		files, werr = WriteLoop(dir, 3, sink, nil)
		close(done)
	}()

	opts := Options{Env: smallEnv(), Policy: Random{}, Episodes: 7, Workers: 2, BaseSeed: 5, MaxSteps: 2000}
	if err := Run(context.Background(), opts, nil, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(sink)
	<-done
	if werr != nil {
		t.Fatalf("WriteLoop: %v", werr)
	}
	if len(files) != 3 {
		t.Fatalf("files=%d want 3 (3+3+1 episodes)", len(files))
	}

	episodes := 0
	for _, f := range files {
		rows, err := store.ReadRows(f)
		if err != nil {
			t.Fatalf("ReadRows: %v", err)
		}
		episodes += len(store.GroupEpisodes(rows))
	}
	if episodes != 7 {
		t.Fatalf("episodes on disk=%d want 7", episodes)
	}
}
