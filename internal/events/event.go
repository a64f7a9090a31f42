// Package events reads rMATS alternative-splicing event tables.
package events

import (
	"fmt"
	"strings"
)

// SpliceType is an rMATS event class.
type SpliceType string

// Supported splice types.
const (
	SE   SpliceType = "SE"   // Skipped exon
	RI   SpliceType = "RI"   // Retained intron
	MXE  SpliceType = "MXE"  // Mutually exclusive exons
	A3SS SpliceType = "A3SS" // Alternative 3' splice site
	A5SS SpliceType = "A5SS" // Alternative 5' splice site
)

// AllSpliceTypes lists the splice types in processing order.
var AllSpliceTypes = []SpliceType{SE, RI, MXE, A3SS, A5SS}

// coordinateColumns maps each splice type to the fromGTF columns holding the
// exon removed in the alternative isoform (0-based start, 1-based end).
var coordinateColumns = map[SpliceType][2]string{
	SE:   {"exonStart_0base", "exonEnd"},
	RI:   {"riExonStart_0base", "riExonEnd"},
	MXE:  {"1stExonStart_0base", "1stExonEnd"},
	A3SS: {"longExonStart_0base", "longExonEnd"},
	A5SS: {"longExonStart_0base", "longExonEnd"},
}

// ParseSpliceType converts a name such as "se" or "A3SS" to a SpliceType.
func ParseSpliceType(s string) (SpliceType, error) {
	st := SpliceType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := coordinateColumns[st]; !ok {
		return "", fmt.Errorf("unsupported splice type: %q", s)
	}
	return st, nil
}

// CoordinateColumns returns the start and end column names for the splice type.
func (t SpliceType) CoordinateColumns() (start, end string, err error) {
	cols, ok := coordinateColumns[t]
	if !ok {
		return "", "", fmt.Errorf("unsupported splice type: %q", string(t))
	}
	return cols[0], cols[1], nil
}

// Direction labels.
const (
	DirectionInclusion = "Inclusion"
	DirectionExclusion = "Exclusion"
)

// Event is one significant splicing event anchored to a gene and an exon.
type Event struct {
	ID                 string
	GeneID             string
	GeneSymbol         string
	Chrom              string
	Strand             string
	ExonStart          int64 // 1-based, inclusive
	ExonEnd            int64 // 1-based, inclusive
	IncLevelDifference float64
	FDR                float64
}

// Direction returns "Inclusion" for a positive IncLevelDifference, else "Exclusion".
func (e Event) Direction() string {
	if e.IncLevelDifference > 0 {
		return DirectionInclusion
	}
	return DirectionExclusion
}
