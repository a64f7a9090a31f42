package annotation

import (
	"fmt"

	"github.com/biogo/store/interval"
)

// ExonHit is an exon returned by an overlap query together with its transcript.
type ExonHit struct {
	TranscriptID string
	Exon         Segment
}

// exonInterval adapts an exon to interval.IntInterface.
// Coordinates are stored half-open: [Start-1, End).
type exonInterval struct {
	start, end int
	uid        uintptr
	hit        ExonHit
}

func (i exonInterval) Overlap(b interval.IntRange) bool {
	return i.end > b.Start && i.start < b.End
}

func (i exonInterval) ID() uintptr { return i.uid }

func (i exonInterval) Range() interval.IntRange {
	return interval.IntRange{Start: i.start, End: i.end}
}

func (i exonInterval) String() string {
	return fmt.Sprintf("[%d,%d)#%d-%s", i.start, i.end, i.uid, i.hit.TranscriptID)
}

// ExonIndex answers exon overlap queries per chromosome.
// Trees are built once and never modified afterwards.
type ExonIndex struct {
	trees map[string]*interval.IntTree
}

// BuildExonIndex indexes every exon of every transcript of the given genes.
// An exon starting before 1 or ending before it starts is an error.
func BuildExonIndex(genes []*Gene) (*ExonIndex, error) {
	idx := &ExonIndex{trees: make(map[string]*interval.IntTree)}
	var uid uintptr
	for _, g := range genes {
		for _, t := range g.Transcripts {
			for _, e := range t.Exons {
				if e.Start < 1 || e.Start > e.End {
					return nil, fmt.Errorf("transcript %s: invalid exon %s:%d-%d", t.ID, e.Chrom, e.Start, e.End)
				}
				tree, ok := idx.trees[e.Chrom]
				if !ok {
					tree = &interval.IntTree{}
					idx.trees[e.Chrom] = tree
				}
				iv := exonInterval{
					start: int(e.Start - 1),
					end:   int(e.End),
					uid:   uid,
					hit:   ExonHit{TranscriptID: t.ID, Exon: e},
				}
				if err := tree.Insert(iv, true); err != nil {
					return nil, fmt.Errorf("transcript %s: index exon %s:%d-%d: %w", t.ID, e.Chrom, e.Start, e.End, err)
				}
				uid++
			}
		}
	}
	for _, tree := range idx.trees {
		tree.AdjustRanges()
	}
	return idx, nil
}

// Overlaps returns all exons on chrom sharing at least one base with
// [start, end] (1-based, inclusive).
func (x *ExonIndex) Overlaps(chrom string, start, end int64) []ExonHit {
	tree, ok := x.trees[chrom]
	if !ok || start > end {
		return nil
	}
	q := exonInterval{start: int(start - 1), end: int(end)}
	var hits []ExonHit
	for _, iv := range tree.Get(q) {
		hits = append(hits, iv.(exonInterval).hit)
	}
	return hits
}

// Len returns the number of indexed exons.
func (x *ExonIndex) Len() int {
	n := 0
	for _, tree := range x.trees {
		n += tree.Len()
	}
	return n
}
