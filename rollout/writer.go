package rollout

import (
	"fmt"
	"log/slog"

	"github.com/brensch/snekgym/store"
)

// WriteLoop drains in into Parquet batches under outDir, rolling to a new
// file every episodesPerFlush episodes. It returns the files written once in
// is closed.
func WriteLoop(outDir string, episodesPerFlush int, in <-chan Episode, logger *slog.Logger) ([]string, error) {
	if episodesPerFlush <= 0 {
		episodesPerFlush = 50
	}
	if logger == nil {
		logger = slog.Default()
	}

	var files []string
	var bw *store.BatchWriter

	flush := func() error {
		if bw == nil {
			return nil
		}
		batch, err := bw.Close()
		bw = nil
		if err != nil {
			return err
		}
		if batch.Path != "" {
			files = append(files, batch.Path)
			logger.Info("parquet flush ok", "path", batch.Path, "episodes", batch.Episodes, "rows", batch.Rows)
		}
		return nil
	}

	for ep := range in {
		if bw == nil {
			var err error
			bw, err = store.NewBatchWriter(outDir)
			if err != nil {
				drain(in)
				return files, fmt.Errorf("open batch: %w", err)
			}
		}
		if err := bw.Append(ep.Rows); err != nil {
			_ = flush()
			drain(in)
			return files, fmt.Errorf("write episode %s: %w", ep.ID, err)
		}
		if bw.Episodes() >= episodesPerFlush {
			if err := flush(); err != nil {
				drain(in)
				return files, fmt.Errorf("flush: %w", err)
			}
		}
	}

	if err := flush(); err != nil {
		return files, fmt.Errorf("final flush: %w", err)
	}
	return files, nil
}

// drain keeps producers from blocking after the writer gave up.
func drain(in <-chan Episode) {
	for range in {
	}
}
