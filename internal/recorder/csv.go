package recorder

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
)

// CSVHeader is written once to an empty file.
var CSVHeader = []string{"Ticker", "Raw Grade", "Weighted Grade", "Trade Type", "Market Cap", "Timestamp"}

// CSVRecorder appends the ranked top-N of every run to a CSV file.
type CSVRecorder struct {
	path string
	mu   sync.Mutex
}

func NewCSVRecorder(path string) *CSVRecorder {
	return &CSVRecorder{path: path}
}

func (r *CSVRecorder) RecordRun(_ context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat csv: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(CSVHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}

	ts := run.FinishedAt.Format(TimestampLayout)
	for _, res := range run.Top {
		row := []string{
			res.Symbol,
			strconv.FormatFloat(res.RawGrade, 'f', 2, 64),
			strconv.FormatFloat(res.WeightedGrade, 'f', 2, 64),
			string(res.Direction),
			strconv.FormatFloat(res.MarketCap, 'f', 0, 64),
			ts,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	log.Debug().Str("path", r.path).Int("rows", len(run.Top)).Msg("csv appended")
	return nil
}

func (r *CSVRecorder) Close() error { return nil }
