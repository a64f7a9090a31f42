package genome

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFASTA = `>chr1 test chromosome
ACGTACGTAC
gtacgtacgt
>chrM
NNNNACGT
`

func TestRead(t *testing.T) {
	s, err := Read(strings.NewReader(testFASTA))
	require.NoError(t, err)

	assert.Equal(t, []string{"chr1", "chrM"}, s.Chromosomes())

	full, err := s.Subsequence("chr1", 0, 20)
	require.NoError(t, err)
	assert.Len(t, full, 20)
	_, err = s.Subsequence("chr1", 0, 21)
	assert.Error(t, err)

	// Soft-masked bases are uppercased
	seq, err := s.Subsequence("chr1", 8, 14)
	require.NoError(t, err)
	assert.Equal(t, "ACGTAC", seq)
}

func TestSubsequence(t *testing.T) {
	s := New(map[string]string{"chr1": "ACGTACGTAC", "MT": "GATTACA"})

	tests := []struct {
		name       string
		chrom      string
		start, end int64
		want       string
	}{
		{"prefix", "chr1", 0, 4, "ACGT"},
		{"whole", "chr1", 0, 10, "ACGTACGTAC"},
		{"empty", "chr1", 5, 5, ""},
		{"ensembl name", "1", 2, 6, "GTAC"},
		{"mitochondrial alias", "chrM", 0, 3, "GAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Subsequence(tt.chrom, tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubsequence_Errors(t *testing.T) {
	s := New(map[string]string{"chr1": "ACGTACGTAC"})

	_, err := s.Subsequence("chr2", 0, 1)
	var chromErr *UnknownChromError
	require.True(t, errors.As(err, &chromErr))
	assert.Equal(t, "chr2", chromErr.Chrom)

	for _, iv := range [][2]int64{{-1, 3}, {5, 4}, {8, 11}} {
		_, err := s.Subsequence("chr1", iv[0], iv[1])
		var rangeErr *RangeError
		assert.True(t, errors.As(err, &rangeErr), "interval %v", iv)
	}
}

func TestLoadGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(testFASTA))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "genome.fa.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	seq, err := s.Subsequence("chrM", 4, 8)
	require.NoError(t, err)
	assert.Equal(t, "ACGT", seq)
}
