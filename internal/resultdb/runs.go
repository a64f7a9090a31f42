package resultdb

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/inodb/nmdscan/internal/events"
	"github.com/inodb/nmdscan/internal/pipeline"
)

// Run identifies one analysis of a dataset and splice type.
type Run struct {
	ID         string
	Dataset    string
	SpliceType events.SpliceType
	StartedAt  time.Time
}

// NewRun creates a run with a fresh random ID.
func NewRun(dataset string, st events.SpliceType) Run {
	return Run{
		ID:         uuid.NewString(),
		Dataset:    dataset,
		SpliceType: st,
		StartedAt:  time.Now().UTC(),
	}
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	Run
	FinishedAt   time.Time
	Events       int64
	Results      int64
	Skips        int64
	Failed       int64
	MissingGenes int64
}

// WriteReport stores a finished run with its results and skips.
func (s *Store) WriteReport(ctx context.Context, run Run, report *pipeline.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Dataset, string(run.SpliceType), run.StartedAt, time.Now().UTC(),
		int64(report.Events), int64(len(report.Results)), int64(len(report.Skips)),
		int64(report.Failed), int64(len(report.MissingGenes)),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	// A run, its results and its skips are committed together.
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare result insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range report.Results {
		var ptc, junction sql.NullInt64
		if r.NMDEvaluated {
			ptc = sql.NullInt64{Int64: int64(r.PTCPosition), Valid: true}
			junction = sql.NullInt64{Int64: r.LastJunction, Valid: r.HasJunction}
		}
		dpsi := sql.NullFloat64{Float64: r.IncLevelDifference, Valid: !math.IsNaN(r.IncLevelDifference)}

		if _, err := stmt.ExecContext(ctx,
			run.ID, run.Dataset, string(run.SpliceType), r.EventID, r.GeneID, r.TranscriptID,
			r.ExonStart, r.ExonEnd, int64(r.RefLenAA), int64(r.AltLenAA), int64(r.TruncationAA),
			r.Disrupted, r.LikelyNMD, r.Direction, dpsi, ptc, junction,
		); err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
	}

	skipStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO skips VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare skip insert: %w", err)
	}
	defer skipStmt.Close()

	for _, sk := range report.Skips {
		if _, err := skipStmt.ExecContext(ctx,
			run.ID, run.Dataset, string(run.SpliceType), sk.EventID, sk.GeneID, sk.TranscriptID,
			sk.ExonStart, sk.ExonEnd, sk.Reason, int64(sk.OverlappingExons),
		); err != nil {
			return fmt.Errorf("insert skip record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// Runs returns all stored runs, oldest first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		run_id, dataset, splice_type, started_at, finished_at,
		events, results, skips, failed, missing_genes
		FROM runs ORDER BY started_at, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var st string
		if err := rows.Scan(
			&r.ID, &r.Dataset, &st, &r.StartedAt, &r.FinishedAt,
			&r.Events, &r.Results, &r.Skips, &r.Failed, &r.MissingGenes,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.SpliceType = events.SpliceType(st)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// NMDCandidates returns the transcripts predicted to undergo NMD in a run.
func (s *Store) NMDCandidates(ctx context.Context, runID string) ([]*pipeline.DisruptionResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		event_id, splice_type, gene_id, transcript_id, exon_start, exon_end,
		ref_len_aa, alt_len_aa, truncation_aa, direction, inc_level_difference,
		ptc_position, last_junction
		FROM results
		WHERE run_id = ? AND likely_nmd
		ORDER BY gene_id, transcript_id, event_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query NMD candidates: %w", err)
	}
	defer rows.Close()

	var out []*pipeline.DisruptionResult
	for rows.Next() {
		var (
			r                          pipeline.DisruptionResult
			st                         string
			refLen, altLen, trunc, ptc int64
			dpsi                       sql.NullFloat64
			junction                   sql.NullInt64
		)
		if err := rows.Scan(
			&r.EventID, &st, &r.GeneID, &r.TranscriptID, &r.ExonStart, &r.ExonEnd,
			&refLen, &altLen, &trunc, &r.Direction, &dpsi, &ptc, &junction,
		); err != nil {
			return nil, fmt.Errorf("scan NMD candidate: %w", err)
		}
		r.SpliceType = events.SpliceType(st)
		r.RefLenAA, r.AltLenAA, r.TruncationAA = int(refLen), int(altLen), int(trunc)
		r.IncLevelDifference = math.NaN()
		if dpsi.Valid {
			r.IncLevelDifference = dpsi.Float64
		}
		// Likely NMD implies a disrupted pair with an evaluated junction.
		r.Disrupted, r.LikelyNMD, r.NMDEvaluated = true, true, true
		r.PTCPosition = int(ptc)
		r.LastJunction, r.HasJunction = junction.Int64, junction.Valid
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate NMD candidates: %w", err)
	}
	return out, nil
}
