package orf

import (
	"fmt"
	"strings"

	"github.com/inodb/nmdscan/internal/annotation"
)

// SequenceStore provides genomic subsequences.
type SequenceStore interface {
	// Subsequence returns bases [start, end) (0-based, half-open) of chrom.
	Subsequence(chrom string, start, end int64) (string, error)
}

// Exclusion identifies the exon left out of an alternative isoform (1-based, inclusive).
type Exclusion struct {
	Start, End int64
}

// Reconstruct assembles a transcript sequence from the genome.
//
// With a nil exclusion it returns the reference coding sequence: all CDS
// segments in ascending genomic order. Otherwise it returns the alternative
// isoform: all exon segments in ascending order except the one whose
// boundaries equal the exclusion exactly, or an *ExonNotFoundError when no
// exon matches.
//
// Segments on the reverse strand are reverse-complemented one at a time and
// never reordered.
func Reconstruct(t *annotation.Transcript, g SequenceStore, exclude *Exclusion) (string, error) {
	segments := t.CDSSegments()
	skip := -1
	if exclude != nil {
		segments = t.ExonSegments()
		skip = t.FindExon(exclude.Start, exclude.End)
		if skip < 0 {
			return "", &ExonNotFoundError{TranscriptID: t.ID, Start: exclude.Start, End: exclude.End}
		}
	}

	var sb strings.Builder
	for i, seg := range segments {
		if i == skip {
			continue
		}
		seq, err := g.Subsequence(seg.Chrom, seg.Start-1, seg.End)
		if err != nil {
			return "", fmt.Errorf("fetch %s:%d-%d: %w", seg.Chrom, seg.Start, seg.End, err)
		}
		if seg.IsReverse() {
			seq = ReverseComplement(seq)
		}
		sb.WriteString(seq)
	}
	return sb.String(), nil
}
