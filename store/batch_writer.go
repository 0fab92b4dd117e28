package store

import (
	"errors"
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
)

// Batch describes a published transition file.
type Batch struct {
	Path     string
	Rows     int
	Episodes int
}

// BatchWriter streams whole episodes into a single transition file that
// appears under its directory only when Close succeeds.
type BatchWriter struct {
	pending string
	final   string
	f       *os.File
	pw      *parquet.GenericWriter[TransitionRow]
	batch   Batch
}

func NewBatchWriter(outDir string) (*BatchWriter, error) {
	if outDir == "" {
		return nil, errors.New("output directory is required")
	}
	pending, final, err := stagePaths(outDir)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(pending)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", pending, err)
	}
	return &BatchWriter{
		pending: pending,
		final:   final,
		f:       f,
		pw:      parquet.NewGenericWriter[TransitionRow](f, writerOptions()...),
	}, nil
}

// Episodes is the number of episodes appended so far.
func (b *BatchWriter) Episodes() int { return b.batch.Episodes }

// Append adds the rows of one finished episode.
func (b *BatchWriter) Append(rows []TransitionRow) error {
	if b.pw == nil {
		return errors.New("batch writer is closed")
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := b.pw.Write(rows); err != nil {
		return fmt.Errorf("append episode %s: %w", rows[0].EpisodeID, err)
	}
	b.batch.Rows += len(rows)
	b.batch.Episodes++
	return nil
}

// Close finishes the file and publishes it. A writer that received no rows
// removes its pending file and returns an empty Batch.
func (b *BatchWriter) Close() (Batch, error) {
	if b.pw == nil {
		return Batch{}, nil
	}
	err := errors.Join(b.pw.Close(), b.f.Sync(), b.f.Close())
	b.pw, b.f = nil, nil

	if err != nil || b.batch.Rows == 0 {
		_ = os.Remove(b.pending)
		if err != nil {
			return Batch{}, fmt.Errorf("finish parquet: %w", err)
		}
		return Batch{}, nil
	}
	if err := publish(b.pending, b.final); err != nil {
		return Batch{}, err
	}
	out := b.batch
	out.Path = b.final
	return out, nil
}
