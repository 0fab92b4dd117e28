package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// ErrNoData is returned when a directory holds no finished transition files.
var ErrNoData = errors.New("no transition files")

// EpisodeSummary is one recorded episode reduced to its outcome.
type EpisodeSummary struct {
	EpisodeID string
	Seed      int64
	Policy    string
	Steps     int64
	Score     int64
	MaxLength int64
	Result    string
}

// PolicySummary aggregates every episode recorded for one policy.
type PolicySummary struct {
	Policy     string
	Episodes   int64
	MeanScore  float64
	MaxScore   int64
	MeanSteps  float64
	Victories  int64
	Collisions int64
	Truncated  int64
}

// Summarizer runs SQL over the transition files below a directory.
type Summarizer struct {
	db *sql.DB
}

// OpenSummarizer opens an in-memory DuckDB with a transitions view over
// the finished Parquet files ListFiles finds under root. Files published
// later are not picked up.
func OpenSummarizer(ctx context.Context, root string) (*Summarizer, error) {
	files, err := ListFiles(root)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoData, root)
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// Basic pragmas; ignore errors for compatibility across versions.
	_, _ = db.ExecContext(ctx, "PRAGMA threads=4")

	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = "'" + escapeSQLString(f) + "'"
	}
	sqlText := `CREATE OR REPLACE VIEW transitions AS
		SELECT * FROM read_parquet([` + strings.Join(quoted, ",") + `], union_by_name=true)`
	if _, err := db.ExecContext(ctx, sqlText); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create transitions view: %w", err)
	}
	return &Summarizer{db: db}, nil
}

func (s *Summarizer) Close() error {
	return s.db.Close()
}

// Episodes lists every recorded episode ordered by policy then seed.
func (s *Summarizer) Episodes(ctx context.Context) ([]EpisodeSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			episode_id,
			any_value(seed),
			any_value(policy),
			max(step),
			max(score),
			max(snake_size),
			arg_max(result, step)
		FROM transitions
		GROUP BY episode_id
		ORDER BY any_value(policy), any_value(seed), episode_id`)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var out []EpisodeSummary
	for rows.Next() {
		var e EpisodeSummary
		if err := rows.Scan(&e.EpisodeID, &e.Seed, &e.Policy, &e.Steps, &e.Score, &e.MaxLength, &e.Result); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Policies aggregates the episodes of each policy.
func (s *Summarizer) Policies(ctx context.Context) ([]PolicySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH episodes AS (
			SELECT
				episode_id,
				any_value(policy) AS policy,
				max(step) AS steps,
				max(score) AS score,
				arg_max(result, step) AS result
			FROM transitions
			GROUP BY episode_id
		)
		SELECT
			policy,
			count(*),
			avg(score),
			max(score),
			avg(steps),
			count(*) FILTER (WHERE result = 'victory'),
			count(*) FILTER (WHERE result = 'collision'),
			count(*) FILTER (WHERE result = 'truncated')
		FROM episodes
		GROUP BY policy
		ORDER BY policy`)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()

	var out []PolicySummary
	for rows.Next() {
		var p PolicySummary
		if err := rows.Scan(&p.Policy, &p.Episodes, &p.MeanScore, &p.MaxScore, &p.MeanSteps, &p.Victories, &p.Collisions, &p.Truncated); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
