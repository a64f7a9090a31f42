// Package annotation provides the gene/transcript/exon model and its loaders.
package annotation

// Strand values for genomic segments.
const (
	StrandForward byte = '+'
	StrandReverse byte = '-'
)

// Segment is a stranded genomic interval (exon or CDS portion).
type Segment struct {
	Chrom  string // Chromosome name as written in the annotation
	Start  int64  // Genomic start (1-based)
	End    int64  // Genomic end (1-based, inclusive)
	Strand byte   // '+' or '-'
}

// Len returns the number of bases covered by the segment.
func (s Segment) Len() int64 {
	return s.End - s.Start + 1
}

// IsReverse returns true if the segment lies on the reverse strand.
func (s Segment) IsReverse() bool {
	return s.Strand == StrandReverse
}

// Matches returns true if the segment boundaries equal start and end exactly.
func (s Segment) Matches(start, end int64) bool {
	return s.Start == start && s.End == end
}

// Transcript represents a specific gene isoform.
type Transcript struct {
	ID       string    // Transcript ID as written in the GTF (e.g., ENST00000311936.8)
	GeneID   string    // Parent gene ID
	GeneName string    // Parent gene symbol
	Chrom    string    // Chromosome
	Start    int64     // Transcript start (1-based)
	End      int64     // Transcript end (1-based, inclusive)
	Strand   byte      // '+' or '-'
	Biotype  string    // Transcript biotype
	Exons    []Segment // All exons, ascending Start
	CDS      []Segment // Coding portions, ascending Start
}

// CDSSegments returns the coding segments in ascending genomic order.
func (t *Transcript) CDSSegments() []Segment {
	return t.CDS
}

// ExonSegments returns all exon segments in ascending genomic order.
func (t *Transcript) ExonSegments() []Segment {
	return t.Exons
}

// CDSLength returns the total number of coding bases.
func (t *Transcript) CDSLength() int64 {
	var n int64
	for _, s := range t.CDS {
		n += s.Len()
	}
	return n
}

// FindExon returns the index of the exon whose boundaries equal start and end,
// or -1 if there is none.
func (t *Transcript) FindExon(start, end int64) int {
	for i, e := range t.Exons {
		if e.Matches(start, end) {
			return i
		}
	}
	return -1
}

// Gene groups the transcripts annotated for one gene identifier.
type Gene struct {
	ID          string        // Gene identifier (e.g., ENSG00000133703.14)
	Name        string        // Gene symbol (e.g., KRAS)
	Chrom       string        // Chromosome
	Strand      byte          // '+' or '-'
	Transcripts []*Transcript // Transcripts in annotation order
}
