// Package pipeline drives ORF disruption analysis over splicing events.
package pipeline

import (
	"github.com/inodb/nmdscan/internal/events"
)

// DisruptionResult is the prediction for one (transcript, event) pair.
type DisruptionResult struct {
	EventID            string
	SpliceType         events.SpliceType
	GeneID             string
	TranscriptID       string
	ExonStart          int64
	ExonEnd            int64
	RefLenAA           int
	AltLenAA           int
	TruncationAA       int
	Disrupted          bool
	LikelyNMD          bool
	Direction          string
	IncLevelDifference float64

	// NMDEvaluated is set for disrupted pairs; PTCPosition and LastJunction
	// are meaningful only then, and LastJunction only when HasJunction.
	NMDEvaluated bool
	PTCPosition  int
	LastJunction int64
	HasJunction  bool
}

// SkipRecord is written for a pair whose event exon is not an exon of the transcript.
type SkipRecord struct {
	EventID      string
	SpliceType   events.SpliceType
	GeneID       string
	TranscriptID string
	ExonStart    int64
	ExonEnd      int64
	Reason       string

	// OverlappingExons counts exons of the transcript that overlap the event
	// exon without matching its boundaries.
	OverlappingExons int
}

// Outcome is the result of one (transcript, event) pair. Exactly one field is set.
type Outcome struct {
	Result *DisruptionResult
	Skip   *SkipRecord
	Err    error
}

// Report collects the outcomes of a run in input order.
type Report struct {
	SpliceType   events.SpliceType
	Events       int
	Results      []*DisruptionResult
	Skips        []*SkipRecord
	Failed       int
	MissingGenes []string
}

func (r *Report) add(o Outcome) {
	switch {
	case o.Result != nil:
		r.Results = append(r.Results, o.Result)
	case o.Skip != nil:
		r.Skips = append(r.Skips, o.Skip)
	default:
		r.Failed++
	}
}
