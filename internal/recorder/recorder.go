package recorder

import (
	"context"
	"errors"
	"time"

	"DivergenceScanner/internal/model"
)

// TimestampLayout formats run times in every sink.
const TimestampLayout = "2006-01-02 15:04:05"

// Run is one completed batch.
type Run struct {
	ID         string
	Provider   string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []model.AnalysisResult // every symbol, failures included
	Top        []model.AnalysisResult // ranked top-N
}

// Recorder persists completed runs.
type Recorder interface {
	RecordRun(ctx context.Context, run *Run) error
	Close() error
}

// Multi fans a run out to several recorders. Every recorder is attempted;
// the errors are joined.
type Multi []Recorder

func (m Multi) RecordRun(ctx context.Context, run *Run) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordRun(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
