package annotation

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := (&GTFLoader{}).parseGTF(strings.NewReader(testGTF))
	require.NoError(t, err)
	return s
}

func TestStore_GeneLookup(t *testing.T) {
	s := loadTestStore(t)

	tests := []struct {
		name string
		id   string
		want string
		ok   bool
	}{
		{"exact versioned", "ENSG00000133703.14", "ENSG00000133703.14", true},
		{"unversioned query", "ENSG00000133703", "ENSG00000133703.14", true},
		{"other version", "ENSG00000133703.99", "ENSG00000133703.14", true},
		{"unknown", "ENSG00000999999", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, ok := s.Gene(tt.id)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, g.ID)
			}
		})
	}
}

func TestStore_TranscriptsOfUnknownGene(t *testing.T) {
	s := loadTestStore(t)

	_, err := s.TranscriptsOf("ENSG00000999999")
	require.Error(t, err)

	var lookupErr *GeneLookupError
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, "ENSG00000999999", lookupErr.GeneID)
}

func TestStore_AddGeneKeepsFirst(t *testing.T) {
	s := NewStore()
	s.AddGene(&Gene{ID: "G1", Name: "first"})
	s.AddGene(&Gene{ID: "G1", Name: "second"})

	g, ok := s.Gene("G1")
	require.True(t, ok)
	assert.Equal(t, "first", g.Name)
	assert.Equal(t, 1, s.GeneCount())
}

func TestStore_OverlappingExons(t *testing.T) {
	s := loadTestStore(t)
	txs, err := s.TranscriptsOf("ENSG00000133703")
	require.NoError(t, err)
	canonical, retained := txs[0], txs[1]

	// Exact match on the canonical transcript is not a partial overlap
	exact, err := s.OverlappingExons(canonical, 25245274, 25245395)
	require.NoError(t, err)
	assert.Empty(t, exact)

	// The same event overlaps the retained-intron transcript's longer exon
	partial, err := s.OverlappingExons(retained, 25245274, 25245395)
	require.NoError(t, err)
	require.Len(t, partial, 1)
	assert.Equal(t, int64(25245200), partial[0].Start)

	// Index is rebuilt after mutation
	s.AddTranscript(&Transcript{
		ID: "T_NEW", GeneID: "ENSG00000133703.14", Chrom: "chr12", Strand: StrandReverse,
		Exons: []Segment{{Chrom: "chr12", Start: 25245300, End: 25245500, Strand: StrandReverse}},
	})
	txs, err = s.TranscriptsOf("ENSG00000133703")
	require.NoError(t, err)
	partial, err = s.OverlappingExons(txs[2], 25245274, 25245395)
	require.NoError(t, err)
	assert.Len(t, partial, 1)
}

func TestStore_ConcurrentOverlapQueries(t *testing.T) {
	s := loadTestStore(t)
	txs, err := s.TranscriptsOf("ENSG00000133703")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			partial, err := s.OverlappingExons(txs[1], 25245274, 25245395)
			assert.NoError(t, err)
			assert.Len(t, partial, 1)
		}()
	}
	wg.Wait()
}

func TestStore_OverlappingExons_InvalidExon(t *testing.T) {
	s := NewStore()
	bad := &Transcript{
		ID: "T_BAD", GeneID: "G1", Chrom: "chr1", Strand: StrandForward,
		Exons: []Segment{{Chrom: "chr1", Start: 500, End: 400, Strand: StrandForward}},
	}
	s.AddTranscript(bad)

	_, err := s.OverlappingExons(bad, 400, 500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "T_BAD")

	// Fixing the annotation clears the cached failure
	bad.Exons[0] = Segment{Chrom: "chr1", Start: 400, End: 500, Strand: StrandForward}
	s.AddTranscript(&Transcript{ID: "T_OK", GeneID: "G1", Chrom: "chr1", Strand: StrandForward})
	partial, err := s.OverlappingExons(bad, 450, 460)
	require.NoError(t, err)
	assert.Len(t, partial, 1)
}
