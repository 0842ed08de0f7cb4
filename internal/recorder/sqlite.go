package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"DivergenceScanner/internal/model"
)

// SQLiteRecorder keeps the full history of every run, failures included.
type SQLiteRecorder struct {
	db *sqlx.DB
	mu sync.Mutex
}

// StoredResult is one persisted per-symbol row.
type StoredResult struct {
	RunID         string          `db:"run_id"`
	Symbol        string          `db:"symbol"`
	RawGrade      sql.NullFloat64 `db:"raw_grade"`
	WeightedGrade sql.NullFloat64 `db:"weighted_grade"`
	Direction     string          `db:"direction"`
	MarketCap     sql.NullFloat64 `db:"market_cap"`
	Tier          string          `db:"tier"`
	Rank          sql.NullInt64   `db:"top_rank"`
	WeeklyRSI     bool            `db:"weekly_rsi"`
	WeeklyMACD    bool            `db:"weekly_macd"`
	NinetyMinRSI  bool            `db:"ninety_min_rsi"`
	NinetyMinMACD bool            `db:"ninety_min_macd"`
	HourlyRSI     bool            `db:"hourly_rsi"`
	HourlyMACD    bool            `db:"hourly_macd"`
	Minute15RSI   bool            `db:"minute_15_rsi"`
	Minute15MACD  bool            `db:"minute_15_macd"`
	Error         string          `db:"error"`
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			provider    TEXT,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			symbols     INTEGER,
			failed      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at)`,

		`CREATE TABLE IF NOT EXISTS results (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id          TEXT NOT NULL REFERENCES runs(id),
			symbol          TEXT NOT NULL,
			raw_grade       REAL,
			weighted_grade  REAL,
			direction       TEXT,
			market_cap      REAL,
			tier            TEXT,
			top_rank        INTEGER,
			weekly_rsi      INTEGER,
			weekly_macd     INTEGER,
			ninety_min_rsi  INTEGER,
			ninety_min_macd INTEGER,
			hourly_rsi      INTEGER,
			hourly_macd     INTEGER,
			minute_15_rsi   INTEGER,
			minute_15_macd  INTEGER,
			error           TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_symbol ON results(symbol)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(ctx context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	failed := 0
	for _, res := range run.Results {
		if res.Failed() {
			failed++
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO runs
		(id, provider, started_at, finished_at, symbols, failed)
		VALUES (?,?,?,?,?,?)`,
		run.ID, run.Provider, run.StartedAt.Unix(), run.FinishedAt.Unix(),
		len(run.Results), failed,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	ranks := make(map[string]int, len(run.Top))
	for i, res := range run.Top {
		ranks[res.Symbol] = i + 1
	}

	for _, res := range run.Results {
		row := toRow(run.ID, res, ranks[res.Symbol])
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO results
			(run_id, symbol, raw_grade, weighted_grade, direction, market_cap, tier, top_rank,
			 weekly_rsi, weekly_macd, ninety_min_rsi, ninety_min_macd,
			 hourly_rsi, hourly_macd, minute_15_rsi, minute_15_macd, error)
			VALUES (:run_id, :symbol, :raw_grade, :weighted_grade, :direction, :market_cap, :tier, :top_rank,
			 :weekly_rsi, :weekly_macd, :ninety_min_rsi, :ninety_min_macd,
			 :hourly_rsi, :hourly_macd, :minute_15_rsi, :minute_15_macd, :error)`, row); err != nil {
			return fmt.Errorf("insert result %s: %w", res.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Results returns the stored rows of runID ordered by rank, unranked last.
func (r *SQLiteRecorder) Results(ctx context.Context, runID string) ([]StoredResult, error) {
	var rows []StoredResult
	err := r.db.SelectContext(ctx, &rows, `SELECT
		run_id, symbol, raw_grade, weighted_grade, direction, market_cap, tier, top_rank,
		weekly_rsi, weekly_macd, ninety_min_rsi, ninety_min_macd,
		hourly_rsi, hourly_macd, minute_15_rsi, minute_15_macd, error
		FROM results WHERE run_id = ?
		ORDER BY top_rank IS NULL, top_rank, symbol`, runID)
	if err != nil {
		return nil, fmt.Errorf("select results: %w", err)
	}
	return rows, nil
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}

func toRow(runID string, res model.AnalysisResult, rank int) StoredResult {
	flags := res.Divergences
	row := StoredResult{
		RunID:         runID,
		Symbol:        res.Symbol,
		RawGrade:      nullFloat(res.RawGrade),
		WeightedGrade: nullFloat(res.WeightedGrade),
		Direction:     string(res.Direction),
		MarketCap:     nullFloat(res.MarketCap),
		Tier:          res.Tier.Label,
		WeeklyRSI:     flags[model.Weekly].RSI,
		WeeklyMACD:    flags[model.Weekly].MACD,
		NinetyMinRSI:  flags[model.NinetyMin].RSI,
		NinetyMinMACD: flags[model.NinetyMin].MACD,
		HourlyRSI:     flags[model.Hourly].RSI,
		HourlyMACD:    flags[model.Hourly].MACD,
		Minute15RSI:   flags[model.Minute15].RSI,
		Minute15MACD:  flags[model.Minute15].MACD,
	}
	if rank > 0 {
		row.Rank = sql.NullInt64{Int64: int64(rank), Valid: true}
	}
	if res.Err != nil {
		row.Error = res.Err.Error()
	}
	return row
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
