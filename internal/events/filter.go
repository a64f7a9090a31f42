package events

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"
)

// Default significance thresholds for Filter.
const (
	DefaultMaxFDR  = 0.01
	DefaultMinDPSI = 0.15
)

// FilterStats summarizes a filter run.
type FilterStats struct {
	Total int
	Kept  int
}

// Filter copies rows of a raw rMATS table whose FDR is below maxFDR and whose
// absolute IncLevelDifference is at least minDPSI. Rows with missing values
// never pass. The header is written unchanged.
func Filter(p *Parser, w io.Writer, maxFDR, minDPSI float64) (FilterStats, error) {
	var stats FilterStats

	idx, err := p.Require(ColFDR, ColIncLevelDifference)
	if err != nil {
		return stats, err
	}
	fdrCol, dpsiCol := idx[0], idx[1]

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(p.Header(), "\t") + "\n"); err != nil {
		return stats, err
	}

	for {
		fields, err := p.Next()
		if err != nil {
			return stats, err
		}
		if fields == nil {
			break
		}
		stats.Total++

		fdr, err := parseFloat(fields[fdrCol])
		if err != nil {
			return stats, &ParseError{Line: p.LineNumber(), Message: fmt.Sprintf("invalid FDR: %s", fields[fdrCol])}
		}
		dpsi, err := parseFloat(fields[dpsiCol])
		if err != nil {
			return stats, &ParseError{Line: p.LineNumber(), Message: fmt.Sprintf("invalid IncLevelDifference: %s", fields[dpsiCol])}
		}

		// NaN comparisons are false, so missing values are dropped.
		if !(fdr < maxFDR && math.Abs(dpsi) >= minDPSI) {
			continue
		}

		stats.Kept++
		if _, err := bw.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
			return stats, err
		}
	}

	return stats, bw.Flush()
}
