package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/brensch/snekgym/convert"
	"github.com/brensch/snekgym/env"
	"github.com/brensch/snekgym/game"
	"github.com/brensch/snekgym/rules"
)

// recordEpisode plays legal moves in action order and records each tick,
// plus the observation the engine produced for it.
func recordEpisode(t *testing.T, id, policy string, seed int64) ([]TransitionRow, []convert.Observation) {
	t.Helper()
	cfg := env.DefaultConfig()
	cfg.BoardSize = 5
	e, err := env.New(cfg)
	if err != nil {
		t.Fatalf("env.New: %v", err)
	}
	e.Reset(seed)

	var rows []TransitionRow
	var obs []convert.Observation
	for i := 0; i < 200 && !e.Done(); i++ {
		mask := e.LegalActionsMask()
		action := rules.MoveUp
		if moves := maskedActions(e.LegalActionsMask()); len(moves) > 0 {
			action = moves[i%len(moves)]
		}
		res, err := e.Step(action)
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		rows = append(rows, NewTransitionRow(id, seed, policy, action, mask, res, e.State()))
		obs = append(obs, res.Observation)
	}
	return rows, obs
}

func TestParquet_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	rows, _ := recordEpisode(t, "ep-a", "test", 11)

	path, err := WriteBatchParquetAtomic(dir, rows)
	if err != nil {
		t.Fatalf("WriteBatchParquetAtomic: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("file %s not moved into %s", path, dir)
	}
	tmpEntries, _ := os.ReadDir(filepath.Join(dir, "tmp"))
	if len(tmpEntries) != 0 {
		t.Fatalf("tmp dir not empty: %d entries", len(tmpEntries))
	}

	got, err := ReadRows(path)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if diff := cmp.Diff(rows, got); diff != "" {
		t.Fatalf("rows differ after round trip (-want +got):\n%s", diff)
	}
}

func TestTransitionRow_StateReencodes(t *testing.T) {
	rows, obs := recordEpisode(t, "ep-b", "test", 23)
	enc := convert.ScalarGrid{}
	for i, r := range rows {
		s, err := r.State()
		if err != nil {
			t.Fatalf("row %d State: %v", i, err)
		}
		if diff := cmp.Diff(obs[i], enc.Encode(s)); diff != "" {
			t.Fatalf("row %d: observation rebuilt from row differs (-want +got):\n%s\n%s", i, diff, convert.DumpBoard(s))
		}
	}
}

func TestBatchWriter_EmptyLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	bw, err := NewBatchWriter(dir)
	if err != nil {
		t.Fatalf("NewBatchWriter: %v", err)
	}
	batch, err := bw.Close()
	if err != nil || batch != (Batch{}) {
		t.Fatalf("Close empty = %+v,%v", batch, err)
	}
	pending, _ := os.ReadDir(filepath.Join(dir, "tmp"))
	if len(pending) != 0 {
		t.Fatalf("pending file left behind: %d entries", len(pending))
	}
	if files, _ := ListFiles(dir); len(files) != 0 {
		t.Fatalf("empty batch published: %v", files)
	}
	if err := bw.Append([]TransitionRow{{EpisodeID: "x"}}); err == nil {
		t.Fatalf("append after close should fail")
	}
}

func TestBatchWriter_PublishesOnClose(t *testing.T) {
	dir := t.TempDir()
	bw, err := NewBatchWriter(dir)
	if err != nil {
		t.Fatalf("NewBatchWriter: %v", err)
	}
	a, _ := recordEpisode(t, "a", "test", 1)
	b, _ := recordEpisode(t, "b", "test", 2)
	for _, rows := range [][]TransitionRow{a, b} {
		if err := bw.Append(rows); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if files, _ := ListFiles(dir); len(files) != 0 {
		t.Fatalf("file visible before close: %v", files)
	}

	batch, err := bw.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if batch.Episodes != 2 || batch.Rows != len(a)+len(b) {
		t.Fatalf("batch=%+v want 2 episodes, %d rows", batch, len(a)+len(b))
	}
	got, err := ReadRows(batch.Path)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if diff := cmp.Diff(append(a, b...), got); diff != "" {
		t.Fatalf("rows differ (-want +got):\n%s", diff)
	}
}

func TestGroupEpisodes_OrdersBySteps(t *testing.T) {
	rows := []TransitionRow{
		{EpisodeID: "b", Step: 2}, {EpisodeID: "a", Step: 1},
		{EpisodeID: "b", Step: 1}, {EpisodeID: "a", Step: 2},
	}
	eps := GroupEpisodes(rows)
	if len(eps) != 2 || eps[0][0].EpisodeID != "b" || eps[1][0].EpisodeID != "a" {
		t.Fatalf("unexpected grouping: %+v", eps)
	}
	for _, ep := range eps {
		if ep[0].Step != 1 || ep[1].Step != 2 {
			t.Fatalf("episode %s not sorted", ep[0].EpisodeID)
		}
	}
}

func TestSummarizer_Aggregates(t *testing.T) {
	dir := t.TempDir()
	bw, err := NewBatchWriter(dir)
	if err != nil {
		t.Fatalf("NewBatchWriter: %v", err)
	}
	var want []EpisodeSummary
	for i, seed := range []int64{1, 2, 3} {
		id := []string{"e1", "e2", "e3"}[i]
		rows, _ := recordEpisode(t, id, "cycle", seed)
		if err := bw.Append(rows); err != nil {
			t.Fatalf("Append: %v", err)
		}
		last := rows[len(rows)-1]
		want = append(want, EpisodeSummary{
			EpisodeID: id, Seed: seed, Policy: "cycle",
			Steps: int64(last.Step), Score: int64(last.Score), MaxLength: int64(last.SnakeSize), Result: last.Result,
		})
	}
	if _, err := bw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ctx := context.Background()
	s, err := OpenSummarizer(ctx, dir)
	if err != nil {
		t.Fatalf("OpenSummarizer: %v", err)
	}
	defer s.Close()

	got, err := s.Episodes(ctx)
	if err != nil {
		t.Fatalf("Episodes: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("episode summaries differ (-want +got):\n%s", diff)
	}

	pols, err := s.Policies(ctx)
	if err != nil {
		t.Fatalf("Policies: %v", err)
	}
	if len(pols) != 1 || pols[0].Policy != "cycle" || pols[0].Episodes != 3 {
		t.Fatalf("unexpected policy summary: %+v", pols)
	}
	if pols[0].Victories+pols[0].Collisions+pols[0].Truncated > 3 {
		t.Fatalf("outcome counts exceed episodes: %+v", pols[0])
	}
}

func TestSummarizer_RootNamedTmp(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tmp")
	kept, _ := recordEpisode(t, "kept", "cycle", 4)
	if _, err := WriteBatchParquetAtomic(root, kept); err != nil {
		t.Fatalf("write kept: %v", err)
	}
	// A complete file parked in the staging dir must not be summarized.
	staged, _ := recordEpisode(t, "staged", "cycle", 5)
	if _, err := WriteBatchParquetAtomic(filepath.Join(root, "tmp"), staged); err != nil {
		t.Fatalf("write staged: %v", err)
	}

	ctx := context.Background()
	s, err := OpenSummarizer(ctx, root)
	if err != nil {
		t.Fatalf("OpenSummarizer: %v", err)
	}
	defer s.Close()

	eps, err := s.Episodes(ctx)
	if err != nil {
		t.Fatalf("Episodes: %v", err)
	}
	if len(eps) != 1 || eps[0].EpisodeID != "kept" {
		t.Fatalf("episodes=%+v want only kept", eps)
	}
}

func TestOpenSummarizer_NoData(t *testing.T) {
	_, err := OpenSummarizer(context.Background(), t.TempDir())
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err=%v want ErrNoData", err)
	}
}

// maskedActions lists the actions a mask allows, in action order.
func maskedActions(mask [game.NumDirections]bool) []int {
	var out []int
	for a, ok := range mask {
		if ok {
			out = append(out, a)
		}
	}
	return out
}
