// Package store persists recorded episodes as Parquet transition files and
// summarizes them with DuckDB.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/snekgym/env"
	"github.com/brensch/snekgym/game"
)

// SchemaVersion is written into every file's key/value metadata.
const SchemaVersion = "transition_v1"

// TransitionRow is one tick of one episode.
//
// Body and head/food positions describe the state after the tick, so any
// row can be turned back into a game.EpisodeState and re-encoded.
// Action is the requested move (0=Up, 1=Left, 2=Right, 3=Down); Direction is
// the heading actually travelled after reversal handling.
type TransitionRow struct {
	EpisodeID string `parquet:"episode_id,dict"`
	Seed      int64  `parquet:"seed"`
	Policy    string `parquet:"policy,dict"`
	BoardSize int32  `parquet:"board_size"`
	Step      int32  `parquet:"step"`

	Action    int32  `parquet:"action"`
	Direction int32  `parquet:"direction"`
	LegalMask []bool `parquet:"legal_mask"`

	SnakeSize    int32  `parquet:"snake_size"`
	Score        int32  `parquet:"score"`
	HeadRow      int32  `parquet:"head_row"`
	HeadCol      int32  `parquet:"head_col"`
	PrevHeadRow  int32  `parquet:"prev_head_row"`
	PrevHeadCol  int32  `parquet:"prev_head_col"`
	FoodRow      int32  `parquet:"food_row"`
	FoodCol      int32  `parquet:"food_col"`
	FoodObtained bool   `parquet:"food_obtained"`
	Done         bool   `parquet:"done"`
	Result       string `parquet:"result,dict"`

	BodyRow []int32 `parquet:"body_row"`
	BodyCol []int32 `parquet:"body_col"`
}

// NewTransitionRow records the tick that produced res. state is the engine
// state after the tick and mask the legality mask the action was chosen from.
func NewTransitionRow(episodeID string, seed int64, policy string, action int, mask [game.NumDirections]bool, res env.StepResult, state *game.EpisodeState) TransitionRow {
	row := TransitionRow{
		EpisodeID:    episodeID,
		Seed:         seed,
		Policy:       policy,
		BoardSize:    int32(state.BoardSize),
		Step:         int32(state.Steps),
		Action:       int32(action),
		Direction:    int32(res.Info.Direction),
		LegalMask:    mask[:],
		SnakeSize:    int32(res.Info.SnakeSize),
		Score:        int32(state.Score),
		HeadRow:      int32(res.Info.Head.Row),
		HeadCol:      int32(res.Info.Head.Col),
		PrevHeadRow:  int32(res.Info.PrevHead.Row),
		PrevHeadCol:  int32(res.Info.PrevHead.Col),
		FoodRow:      int32(res.Info.Food.Row),
		FoodCol:      int32(res.Info.Food.Col),
		FoodObtained: res.Info.FoodObtained,
		Done:         res.Done,
		Result:       string(res.Info.Result),
		BodyRow:      make([]int32, len(state.Snake)),
		BodyCol:      make([]int32, len(state.Snake)),
	}
	for i, p := range state.Snake {
		row.BodyRow[i] = int32(p.Row)
		row.BodyCol[i] = int32(p.Col)
	}
	return row
}

// State rebuilds the post-tick episode state stored in the row.
func (r TransitionRow) State() (*game.EpisodeState, error) {
	if len(r.BodyRow) != len(r.BodyCol) {
		return nil, fmt.Errorf("episode %s step %d: body rows=%d cols=%d", r.EpisodeID, r.Step, len(r.BodyRow), len(r.BodyCol))
	}
	if len(r.BodyRow) == 0 {
		return nil, fmt.Errorf("episode %s step %d: empty body", r.EpisodeID, r.Step)
	}
	s := &game.EpisodeState{
		BoardSize: int(r.BoardSize),
		Snake:     make([]game.Point, len(r.BodyRow)),
		Food:      game.Point{Row: int(r.FoodRow), Col: int(r.FoodCol)},
		Direction: game.Direction(r.Direction),
		Score:     int(r.Score),
		Steps:     int(r.Step),
		Status:    statusOf(env.Outcome(r.Result)),
	}
	for i := range r.BodyRow {
		s.Snake[i] = game.Point{Row: int(r.BodyRow[i]), Col: int(r.BodyCol[i])}
	}
	return s, nil
}

// statusOf maps an outcome back to a game status. Truncation is an
// environment decision, the game itself was still running.
func statusOf(o env.Outcome) game.Status {
	switch o {
	case env.OutcomeVictory:
		return game.Victory
	case env.OutcomeCollision:
		return game.Collision
	default:
		return game.Active
	}
}

func writerOptions() []parquet.WriterOption {
	return []parquet.WriterOption{
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.SkipPageBounds("body_row"),
		parquet.SkipPageBounds("body_col"),
		parquet.KeyValueMetadata("schema", SchemaVersion),
	}
}

// stagePaths names a new batch under outDir. Files are written to pending,
// inside outDir/tmp, and renamed to final once complete.
func stagePaths(outDir string) (pending, final string, err error) {
	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create tmp dir: %w", err)
	}
	name := fmt.Sprintf("batch_%d_%s.parquet", time.Now().UnixNano(), uuid.NewString()[:8])
	return filepath.Join(tmpDir, name+".partial"), filepath.Join(outDir, name), nil
}

func publish(pending, final string) error {
	if err := os.Rename(pending, final); err != nil {
		_ = os.Remove(pending)
		return fmt.Errorf("publish %s: %w", filepath.Base(final), err)
	}
	return nil
}

// WriteBatchParquetAtomic writes rows as one file under outDir. Readers never
// see a partial file.
func WriteBatchParquetAtomic(outDir string, rows []TransitionRow) (string, error) {
	pending, final, err := stagePaths(outDir)
	if err != nil {
		return "", err
	}
	if err := parquet.WriteFile(pending, rows, writerOptions()...); err != nil {
		_ = os.Remove(pending)
		return "", fmt.Errorf("write parquet: %w", err)
	}
	if err := publish(pending, final); err != nil {
		return "", err
	}
	return final, nil
}

// ReadRows loads every row of a transition file.
func ReadRows(path string) ([]TransitionRow, error) {
	rows, err := parquet.ReadFile[TransitionRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}

// ListFiles returns the finished .parquet files under dir, skipping tmp/.
func ListFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "tmp" && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == ".parquet" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	return files, nil
}

// GroupEpisodes splits rows by episode, keeping each episode in step order.
// Episodes are returned in first-seen order.
func GroupEpisodes(rows []TransitionRow) [][]TransitionRow {
	index := make(map[string]int)
	var out [][]TransitionRow
	for _, r := range rows {
		i, ok := index[r.EpisodeID]
		if !ok {
			i = len(out)
			index[r.EpisodeID] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], r)
	}
	for _, ep := range out {
		sort.SliceStable(ep, func(i, j int) bool { return ep[i].Step < ep[j].Step })
	}
	return out
}
