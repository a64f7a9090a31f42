// Package output writes analysis results as CSV tables.
package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/inodb/nmdscan/internal/pipeline"
)

// Output file names within a run directory.
const (
	ResultsFile = "orf_disruption_results.csv"
	SkippedFile = "skipped_transcripts_log.csv"
)

// ResultColumns are the columns of the results table. The first eleven
// match the historical layout; the rest were added later.
var ResultColumns = []string{
	"GeneID",
	"TranscriptID",
	"ExonStart",
	"ExonEnd",
	"RefLen_AA",
	"AltLen_AA",
	"TruncationAA",
	"Disrupted",
	"Likely_NMD",
	"AS_Direction",
	"IncLevelDifference",
	"EventID",
	"SpliceType",
	"PTC_Position",
	"LastJunction_NT",
}

// SkipColumns are the columns of the skipped-transcripts table.
var SkipColumns = []string{
	"GeneID",
	"TranscriptID",
	"ExonStart",
	"ExonEnd",
	"Reason",
	"EventID",
	"SpliceType",
	"OverlappingExons",
}

// ResultWriter writes disruption results as CSV.
type ResultWriter struct {
	w *csv.Writer
}

// NewResultWriter creates a new results writer.
func NewResultWriter(w io.Writer) *ResultWriter {
	return &ResultWriter{w: csv.NewWriter(w)}
}

// WriteHeader writes the header line.
func (rw *ResultWriter) WriteHeader() error {
	return rw.w.Write(ResultColumns)
}

// Write writes a single result.
func (rw *ResultWriter) Write(r *pipeline.DisruptionResult) error {
	// PTC position and junction are only known when NMD was evaluated
	ptc, junction := "", ""
	if r.NMDEvaluated {
		ptc = strconv.Itoa(r.PTCPosition)
		if r.HasJunction {
			junction = strconv.FormatInt(r.LastJunction, 10)
		}
	}

	return rw.w.Write([]string{
		r.GeneID,
		r.TranscriptID,
		strconv.FormatInt(r.ExonStart, 10),
		strconv.FormatInt(r.ExonEnd, 10),
		strconv.Itoa(r.RefLenAA),
		strconv.Itoa(r.AltLenAA),
		strconv.Itoa(r.TruncationAA),
		formatBool(r.Disrupted),
		formatBool(r.LikelyNMD),
		r.Direction,
		formatFloat(r.IncLevelDifference),
		r.EventID,
		string(r.SpliceType),
		ptc,
		junction,
	})
}

// Flush flushes any buffered data to the underlying writer.
func (rw *ResultWriter) Flush() error {
	rw.w.Flush()
	return rw.w.Error()
}

// SkipWriter writes skip records as CSV.
type SkipWriter struct {
	w *csv.Writer
}

// NewSkipWriter creates a new skip record writer.
func NewSkipWriter(w io.Writer) *SkipWriter {
	return &SkipWriter{w: csv.NewWriter(w)}
}

// WriteHeader writes the header line.
func (sw *SkipWriter) WriteHeader() error {
	return sw.w.Write(SkipColumns)
}

// Write writes a single skip record.
func (sw *SkipWriter) Write(s *pipeline.SkipRecord) error {
	return sw.w.Write([]string{
		s.GeneID,
		s.TranscriptID,
		strconv.FormatInt(s.ExonStart, 10),
		strconv.FormatInt(s.ExonEnd, 10),
		s.Reason,
		s.EventID,
		string(s.SpliceType),
		strconv.Itoa(s.OverlappingExons),
	})
}

// Flush flushes any buffered data to the underlying writer.
func (sw *SkipWriter) Flush() error {
	sw.w.Flush()
	return sw.w.Error()
}

// WriteReport writes the results table into dir and, when there are skips,
// the skipped-transcripts table. A skipped-transcripts table left by an
// earlier run is removed when there are none. It returns the paths written.
func WriteReport(dir string, report *pipeline.Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	resultsPath := filepath.Join(dir, ResultsFile)
	err := writeFile(resultsPath, func(w io.Writer) error {
		rw := NewResultWriter(w)
		if err := rw.WriteHeader(); err != nil {
			return err
		}
		for _, r := range report.Results {
			if err := rw.Write(r); err != nil {
				return err
			}
		}
		return rw.Flush()
	})
	if err != nil {
		return nil, err
	}
	paths := []string{resultsPath}

	skippedPath := filepath.Join(dir, SkippedFile)
	if len(report.Skips) == 0 {
		if err := os.Remove(skippedPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale %s: %w", SkippedFile, err)
		}
		return paths, nil
	}

	err = writeFile(skippedPath, func(w io.Writer) error {
		sw := NewSkipWriter(w)
		if err := sw.WriteHeader(); err != nil {
			return err
		}
		for _, s := range report.Skips {
			if err := sw.Write(s); err != nil {
				return err
			}
		}
		return sw.Flush()
	})
	if err != nil {
		return nil, err
	}
	return append(paths, skippedPath), nil
}

// writeFile writes to a temporary file renamed into place on success, so an
// interrupted run never leaves a partial results file behind.
func writeFile(path string, fn func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
