package annotation

import (
	"fmt"
	"sort"
	"sync"
)

// GeneLookupError reports a gene identifier that is absent from the store.
type GeneLookupError struct {
	GeneID string
}

func (e *GeneLookupError) Error() string {
	return fmt.Sprintf("gene %q not found in annotation", e.GeneID)
}

// Store is a read-only, query-by-key index of genes and their transcripts.
// It is safe for concurrent reads once loading has finished.
type Store struct {
	genes    map[string]*Gene
	order    []string          // gene IDs in annotation order
	unversed map[string]string // version-stripped ID -> gene ID

	mu       sync.Mutex
	exons    *ExonIndex // built lazily, reset on mutation
	exonsErr error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		genes:    make(map[string]*Gene),
		unversed: make(map[string]string),
	}
}

// AddGene registers a gene. A gene added twice keeps its first record.
func (s *Store) AddGene(g *Gene) {
	if _, ok := s.genes[g.ID]; ok {
		return
	}
	s.genes[g.ID] = g
	s.order = append(s.order, g.ID)
	if bare := stripVersion(g.ID); bare != g.ID {
		if _, taken := s.unversed[bare]; !taken {
			s.unversed[bare] = g.ID
		}
	}
	s.exons, s.exonsErr = nil, nil
}

// AddTranscript attaches a transcript to its gene, creating the gene if needed.
func (s *Store) AddTranscript(t *Transcript) {
	g, ok := s.genes[t.GeneID]
	if !ok {
		g = &Gene{ID: t.GeneID, Name: t.GeneName, Chrom: t.Chrom, Strand: t.Strand}
		s.AddGene(g)
	}
	g.Transcripts = append(g.Transcripts, t)
	s.exons, s.exonsErr = nil, nil
}

// Gene returns the gene with the given ID. IDs are matched exactly first,
// then with the version suffix stripped (ENSG00000133703 matches ENSG00000133703.14).
func (s *Store) Gene(id string) (*Gene, bool) {
	if g, ok := s.genes[id]; ok {
		return g, true
	}
	bare := stripVersion(id)
	if full, ok := s.unversed[bare]; ok {
		return s.genes[full], true
	}
	if g, ok := s.genes[bare]; ok {
		return g, true
	}
	return nil, false
}

// TranscriptsOf returns the transcripts of a gene in annotation order.
// Returns a *GeneLookupError if the gene is unknown.
func (s *Store) TranscriptsOf(geneID string) ([]*Transcript, error) {
	g, ok := s.Gene(geneID)
	if !ok {
		return nil, &GeneLookupError{GeneID: geneID}
	}
	return g.Transcripts, nil
}

// Genes returns all genes in annotation order.
func (s *Store) Genes() []*Gene {
	genes := make([]*Gene, 0, len(s.order))
	for _, id := range s.order {
		genes = append(genes, s.genes[id])
	}
	return genes
}

// GeneCount returns the number of genes in the store.
func (s *Store) GeneCount() int {
	return len(s.genes)
}

// TranscriptCount returns the total number of transcripts in the store.
func (s *Store) TranscriptCount() int {
	n := 0
	for _, g := range s.genes {
		n += len(g.Transcripts)
	}
	return n
}

// Chromosomes returns a sorted list of chromosomes carrying at least one gene.
func (s *Store) Chromosomes() []string {
	seen := make(map[string]bool)
	for _, g := range s.genes {
		seen[g.Chrom] = true
	}
	chroms := make([]string, 0, len(seen))
	for c := range seen {
		chroms = append(chroms, c)
	}
	sort.Strings(chroms)
	return chroms
}

// OverlappingExons returns the exons of transcript t that overlap [start, end]
// (1-based, inclusive) without matching its boundaries exactly.
// The exon index is built on first use; a failed build is reported on every call.
func (s *Store) OverlappingExons(t *Transcript, start, end int64) ([]Segment, error) {
	idx, err := s.exonIndex()
	if err != nil {
		return nil, err
	}
	var partial []Segment
	for _, hit := range idx.Overlaps(t.Chrom, start, end) {
		if hit.TranscriptID != t.ID || hit.Exon.Matches(start, end) {
			continue
		}
		partial = append(partial, hit.Exon)
	}
	return partial, nil
}

func (s *Store) exonIndex() (*ExonIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exons == nil && s.exonsErr == nil {
		s.exons, s.exonsErr = BuildExonIndex(s.Genes())
	}
	return s.exons, s.exonsErr
}
