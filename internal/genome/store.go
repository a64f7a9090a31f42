// Package genome provides random access to chromosome sequences loaded from FASTA.
package genome

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/klauspost/compress/gzip"
)

// UnknownChromError reports a chromosome that is not present in the genome.
type UnknownChromError struct {
	Chrom string
}

func (e *UnknownChromError) Error() string {
	return fmt.Sprintf("chromosome %q not found in genome", e.Chrom)
}

// RangeError reports an interval that does not fit on its chromosome.
type RangeError struct {
	Chrom      string
	Start, End int64
	Length     int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("interval %s:[%d,%d) outside chromosome of length %d", e.Chrom, e.Start, e.End, e.Length)
}

// Store holds uppercase chromosome sequences keyed by FASTA record name.
// It is read-only after loading and safe for concurrent use.
type Store struct {
	seqs map[string]string
}

// New creates a store from in-memory sequences. Sequences are uppercased.
func New(seqs map[string]string) *Store {
	s := &Store{seqs: make(map[string]string, len(seqs))}
	for name, seq := range seqs {
		s.seqs[name] = strings.ToUpper(seq)
	}
	return s
}

// Load reads a (optionally gzipped) genome FASTA file.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FASTA file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f

	// Handle gzipped files
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return Read(reader)
}

// Read parses FASTA records from r. The record name is the first word of
// the header line (">chr1 AC:CM000663.2" is stored as "chr1").
func Read(r io.Reader) (*Store, error) {
	s := &Store{seqs: make(map[string]string)}

	sc := seqio.NewScanner(fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNAredundant)))
	for sc.Next() {
		seq := sc.Seq().(*linear.Seq)
		s.seqs[seq.Name()] = string(bytes.ToUpper(alphabet.LettersToBytes(seq.Seq)))
	}
	if err := sc.Error(); err != nil {
		return nil, fmt.Errorf("read FASTA: %w", err)
	}
	return s, nil
}

// resolve finds the stored name for chrom, accepting UCSC and Ensembl
// naming interchangeably ("chr1" vs "1", "chrM" vs "MT").
func (s *Store) resolve(chrom string) (string, bool) {
	if _, ok := s.seqs[chrom]; ok {
		return chrom, true
	}
	var alt string
	switch {
	case chrom == "chrM":
		alt = "MT"
	case chrom == "MT":
		alt = "chrM"
	case strings.HasPrefix(chrom, "chr"):
		alt = strings.TrimPrefix(chrom, "chr")
	default:
		alt = "chr" + chrom
	}
	if _, ok := s.seqs[alt]; ok {
		return alt, true
	}
	return "", false
}

// Subsequence returns bases [start, end) (0-based, half-open) of chrom.
func (s *Store) Subsequence(chrom string, start, end int64) (string, error) {
	name, ok := s.resolve(chrom)
	if !ok {
		return "", &UnknownChromError{Chrom: chrom}
	}
	seq := s.seqs[name]
	if start < 0 || end < start || end > int64(len(seq)) {
		return "", &RangeError{Chrom: chrom, Start: start, End: end, Length: int64(len(seq))}
	}
	return seq[start:end], nil
}

// Chromosomes returns the sorted record names.
func (s *Store) Chromosomes() []string {
	names := make([]string, 0, len(s.seqs))
	for name := range s.seqs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
