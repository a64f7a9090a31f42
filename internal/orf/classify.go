package orf

import (
	"github.com/inodb/nmdscan/internal/annotation"
)

// Classification thresholds.
const (
	// DisruptionThresholdAA is the minimum protein shortening, exclusive, that counts as disruption.
	DisruptionThresholdAA = 300
	// NMDDistanceNT is the minimum distance, exclusive, between a PTC and the last exon junction.
	NMDDistanceNT = 50
)

// FindStopPosition returns the nucleotide offset of the first in-frame stop
// codon of seq, or len(seq) when there is none.
func FindStopPosition(seq string) int {
	for i := 0; i+3 <= len(seq); i += 3 {
		if IsStopCodon(seq[i : i+3]) {
			return i
		}
	}
	return len(seq)
}

// LastCDSJunction returns the coding-sequence offset of the last exon-exon
// junction: the summed length of every CDS segment but the last. It reports
// false when the transcript has fewer than two CDS segments.
func LastCDSJunction(t *annotation.Transcript) (int64, bool) {
	cds := t.CDSSegments()
	if len(cds) < 2 {
		return 0, false
	}
	var n int64
	for _, seg := range cds[:len(cds)-1] {
		n += seg.Len()
	}
	return n, true
}

// IsDisrupted returns true if alt is more than DisruptionThresholdAA residues shorter than ref.
func IsDisrupted(refProtein, altProtein string) bool {
	return len(refProtein)-len(altProtein) > DisruptionThresholdAA
}

// IsNMD applies the 50-nt rule: a PTC further than NMDDistanceNT upstream of
// the last exon junction triggers decay. Without a junction it is false.
func IsNMD(ptc int, junction int64, hasJunction bool) bool {
	if !hasJunction {
		return false
	}
	return junction-int64(ptc) > NMDDistanceNT
}

// Prediction is the classification of one reference/alternative pair.
type Prediction struct {
	RefLenAA     int
	AltLenAA     int
	TruncationAA int
	Disrupted    bool
	LikelyNMD    bool

	// Set only when Disrupted; NMD is not evaluated otherwise.
	Evaluated    bool
	PTCPosition  int
	LastJunction int64
	HasJunction  bool
}

// Predict translates both sequences and classifies the alternative isoform.
// The stop position and the last junction are looked up only for disrupted
// pairs, so undisrupted pairs are never NMD.
func Predict(t *annotation.Transcript, refSeq, altSeq string) Prediction {
	ref := Translate(refSeq)
	alt := Translate(altSeq)

	p := Prediction{
		RefLenAA:     len(ref),
		AltLenAA:     len(alt),
		TruncationAA: len(ref) - len(alt),
		Disrupted:    IsDisrupted(ref, alt),
	}
	if !p.Disrupted {
		return p
	}

	p.Evaluated = true
	p.PTCPosition = FindStopPosition(altSeq)
	p.LastJunction, p.HasJunction = LastCDSJunction(t)
	p.LikelyNMD = IsNMD(p.PTCPosition, p.LastJunction, p.HasJunction)
	return p
}
